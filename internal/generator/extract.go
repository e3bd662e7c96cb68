package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	fenceOpen  = regexp.MustCompile("```json\\s*")
	fenceClose = regexp.MustCompile("\\s*```")
)

var ErrNoJSON = errors.New("no json payload found in response")

// ExtractJSON pulls the JSON payload delimited by open and close out of a
// free-text model response. Code fences are stripped first, then the text
// from the first open byte to the last close byte is returned as-is; the
// caller's decode decides whether it is valid.
func ExtractJSON(text string, open, close byte) (string, error) {
	s := strings.TrimSpace(text)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")

	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: missing %q ... %q", ErrNoJSON, open, close)
	}
	return s[start : end+1], nil
}

// RepairJSON fixes common model slips (trailing commas, unclosed brackets,
// single quotes) in an invalid payload. Valid input is returned unchanged.
func RepairJSON(payload string) (string, error) {
	if json.Valid([]byte(payload)) {
		return payload, nil
	}
	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	if !json.Valid([]byte(repaired)) {
		return "", errors.New("repaired json is still invalid")
	}
	return repaired, nil
}

func extract(text string, open, close byte, repair bool) (string, error) {
	payload, err := ExtractJSON(text, open, close)
	if err != nil || !repair {
		return payload, err
	}
	return RepairJSON(payload)
}
