// Package client talks to a running resolver daemon over its Unix socket.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/stagepath/stagepath/internal/ipc"
)

// DialTimeout bounds the connection attempt; the daemon is local, so a slow
// dial means it is not there.
const DialTimeout = 250 * time.Millisecond

// Connect attempts to connect to a running daemon.
func Connect() (net.Conn, error) {
	sockPath, err := ipc.SocketPath()
	if err != nil {
		return nil, err
	}
	return net.DialTimeout("unix", sockPath, DialTimeout)
}

// Query sends one request and reads the single response frame.
func Query(conn net.Conn, req *ipc.Request) (*ipc.Response, error) {
	if err := ipc.WriteJSON(conn, ipc.TagRequest, req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	tag, payload, err := ipc.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read daemon frame: %w", err)
	}
	if tag != ipc.TagResponse {
		return nil, fmt.Errorf("expected response frame (0x%02x), got 0x%02x", ipc.TagResponse, tag)
	}
	var resp ipc.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// QueryDaemon connects, queries, and closes. It returns an error when no
// daemon is running; callers fall back to in-process resolution.
func QueryDaemon(req *ipc.Request) (*ipc.Response, error) {
	conn, err := Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return Query(conn, req)
}

// Remote answers requests through a running daemon, one connection per
// request. It satisfies the CLI's handler boundary, so query commands run
// unchanged against the daemon or in-process.
type Remote struct{}

// NewRemote creates a daemon-backed handler.
func NewRemote() *Remote { return &Remote{} }

// Handle forwards one request to the daemon. Transport failures are reported
// like resolution errors, with the "daemon-unavailable" kind.
func (r *Remote) Handle(req ipc.Request) ipc.Response {
	resp, err := QueryDaemon(&req)
	if err != nil {
		return ipc.Response{Error: err.Error(), ErrorKind: "daemon-unavailable"}
	}
	return *resp
}
