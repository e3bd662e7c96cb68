package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub(t *testing.T) {
	hub := NewHub()
	first := make(chan Message, 1)
	second := make(chan Message, 1)

	assert.False(t, hub.SendToUser("alice", Message{"type": "ping"}))

	hub.Register("alice", first)
	hub.Register("alice", second)
	assert.Equal(t, 2, hub.Connected("alice"))

	assert.True(t, hub.SendToUser("alice", Message{"type": "started"}))
	assert.Equal(t, "started", (<-first)["type"])
	assert.Equal(t, "started", (<-second)["type"])

	assert.False(t, hub.SendToUser("bob", Message{"type": "started"}))

	hub.Unregister("alice", first)
	hub.Unregister("alice", second)
	assert.Equal(t, 0, hub.Connected("alice"))
}

func TestHubDoesNotBlockOnFullStream(t *testing.T) {
	hub := NewHub()
	ch := make(chan Message, 1)
	hub.Register("alice", ch)

	assert.True(t, hub.SendToUser("alice", Message{"n": 1}))
	assert.False(t, hub.SendToUser("alice", Message{"n": 2}))
	assert.Equal(t, 1, (<-ch)["n"])
}
