package obproto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned when decoding an envelope of unknown type.
var ErrUnknownMessage = errors.New("unknown message type")

// MessageType identifies the payload of an Envelope.
type MessageType string

const (
	TypeInstanceUp   MessageType = "instance_up"
	TypeAlert        MessageType = "alert"
	TypeReadRequest  MessageType = "read_request"
	TypeReadResponse MessageType = "read_response"
	TypeError        MessageType = "error"
)

// Envelope frames every message exchanged with box instances. XID correlates
// a read request with its response or error.
type Envelope struct {
	Type    MessageType     `json:"type"`
	XID     string          `json:"xid,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// ReadRequest asks an instance for the state behind a read handle.
type ReadRequest struct {
	Location Location   `json:"location"`
	Target   ReadTarget `json:"target"`
}

// Encode frames payload in an envelope of the given type.
func Encode(t MessageType, xid string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, XID: xid, Payload: raw})
}

// Decode unframes an envelope and returns its XID and typed payload: one of
// InstanceUp, Alert, ReadRequest, ReadResponse or Error.
func Decode(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	var (
		payload any
		err     error
	)
	switch env.Type {
	case TypeInstanceUp:
		var m InstanceUp
		err = json.Unmarshal(env.Payload, &m)
		payload = m
	case TypeAlert:
		var m Alert
		err = json.Unmarshal(env.Payload, &m)
		payload = m
	case TypeReadRequest:
		var m ReadRequest
		err = json.Unmarshal(env.Payload, &m)
		payload = m
	case TypeReadResponse:
		var m ReadResponse
		err = json.Unmarshal(env.Payload, &m)
		payload = m
	case TypeError:
		var m Error
		err = json.Unmarshal(env.Payload, &m)
		payload = m
	default:
		return env.XID, nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err != nil {
		return env.XID, nil, fmt.Errorf("failed to decode %s payload: %w", env.Type, err)
	}
	return env.XID, payload, nil
}
