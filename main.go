package main

import "mockly/cmd"

func main() {
	cmd.Execute()
}
