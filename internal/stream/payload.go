package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/humanplus/posture-console/internal/model"
)

var errNotObject = errors.New("payload is not a JSON object")

// DecodePayload parses one inbound text frame. Frames that are not a JSON
// object or whose fields have the wrong types are rejected.
func DecodePayload(data []byte) (*model.StreamPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var p model.StreamPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &p, nil
}
