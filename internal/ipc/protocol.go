// Package ipc implements the framed JSON protocol between the stagepath CLI
// client and the resolver daemon.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Frame tags identify the type of each IPC message.
// Client-to-server tags are in the 0x01-0x0F range.
// Server-to-client tags are in the 0x10-0x1F range.
const (
	TagRequest  byte = 0x01 // C→S: JSON-encoded Request
	TagResponse byte = 0x10 // S→C: JSON-encoded Response
)

// Request operations.
const (
	OpParse   = "parse"   // decode a path into a stack
	OpResolve = "resolve" // resolve one symbolic token
	OpExpand  = "expand"  // expand a declared template
	OpTargets = "targets" // enumerate a root's targets
)

// Request is the single frame a client sends per connection.
type Request struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	// Token is the symbolic token for OpResolve.
	Token string `json:"token,omitempty"`
	// Template is the declared template for OpExpand.
	Template string `json:"template,omitempty"`
	// Position addresses a stage in the stack; nil means the last stage.
	Position *int `json:"position,omitempty"`
	// Wildcards lists the rule's declared parameter/wildcard names.
	Wildcards []string `json:"wildcards,omitempty"`
}

// Response is the single frame the daemon sends back.
type Response struct {
	// Paths holds the expanded path strings (one for scalar tokens, one per
	// target for fan-out).
	Paths []string `json:"paths,omitempty"`
	// Canonical and Display carry the two encodings of a parsed stack.
	Canonical string `json:"canonical,omitempty"`
	Display   string `json:"display,omitempty"`
	// Error and ErrorKind describe a typed resolution failure. ErrorKind is
	// the stable machine name (e.g. "unknown-stage"); Error is the message.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// WriteFrame writes a tagged frame: [tag:1][len:4 big-endian][payload:len].
func WriteFrame(w io.Writer, tag byte, payload []byte) error {
	var header [5]byte
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one tagged frame, returning the tag and payload.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	tag := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return tag, payload, nil
}

// WriteJSON writes a tagged frame with a JSON-encoded payload.
func WriteJSON(w io.Writer, tag byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return WriteFrame(w, tag, data)
}
