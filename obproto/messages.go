package obproto

import (
	"context"
	"fmt"
)

// InstanceUp announces that a box instance became reachable.
type InstanceUp struct {
	Instance Location `json:"instance"`
	Name     string   `json:"name,omitempty"`
}

func (u InstanceUp) String() string {
	if u.Name == "" {
		return u.Instance.String()
	}
	return fmt.Sprintf("%s (%s)", u.Instance, u.Name)
}

// Alert carries the inspection messages a running alert block emitted.
type Alert struct {
	Origin   Location       `json:"origin"`
	Block    string         `json:"block"`
	Messages []AlertMessage `json:"messages"`
}

// AlertMessage is one inspection result with the captured packet.
type AlertMessage struct {
	Message string `json:"message"`
	Packet  []byte `json:"packet,omitempty"`
	Origin  string `json:"origin_block,omitempty"`
}

// ReadTarget names the block state a read request asks for.
type ReadTarget struct {
	Block  string `json:"block_id"`
	Handle string `json:"read_handle"`
}

func (t ReadTarget) String() string {
	return t.Block + "::" + t.Handle
}

// ReadResponse is the successful completion of a read request.
type ReadResponse struct {
	Block  string `json:"block_id"`
	Handle string `json:"read_handle"`
	Result string `json:"result"`
}

// ErrorType classifies an error reported by a box instance.
type ErrorType string

const (
	ErrorTypeBadRequest    ErrorType = "BAD_REQUEST"
	ErrorTypeUnsupported   ErrorType = "UNSUPPORTED"
	ErrorTypeInternal      ErrorType = "INTERNAL"
	ErrorTypeBlockNotFound ErrorType = "BLOCK_NOT_FOUND"
)

// Error is an error reported by a box instance in place of a response. It is
// data for the request handler, not a Go error.
type Error struct {
	Type    ErrorType `json:"error_type"`
	Subtype string    `json:"error_subtype,omitempty"`
	Message string    `json:"message"`
}

// ReadResult is the terminal outcome of one read request: exactly one of
// Response and Err is set.
type ReadResult struct {
	Response *ReadResponse
	Err      *Error
}

// Succeeded reports whether the request produced a response.
func (r ReadResult) Succeeded() bool {
	return r.Response != nil
}

// ReadHandler receives the completion of a read request.
type ReadHandler func(ctx context.Context, result ReadResult)
