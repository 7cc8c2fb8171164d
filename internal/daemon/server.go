// Package daemon runs the persistent resolver process. It answers framed
// JSON requests over a Unix socket and, alternatively, serves the same
// operations as MCP tools over stdio.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stagepath/stagepath/internal/cli"
	"github.com/stagepath/stagepath/internal/ipc"
)

// Server is the persistent daemon process that accepts IPC connections and
// answers resolution requests on behalf of the task engine.
type Server struct {
	env         *cli.Env
	log         *zap.Logger
	idleTimeout time.Duration

	mu        sync.Mutex
	idleTimer *time.Timer
	active    sync.WaitGroup
}

// New creates a daemon server.
func New(env *cli.Env, log *zap.Logger, idleTimeout time.Duration) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		env:         env,
		log:         log,
		idleTimeout: idleTimeout,
	}
}

// Run creates a listener at the standard socket path and calls Serve.
func (s *Server) Run(ctx context.Context) error {
	sockPath, err := ipc.SocketPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(sockPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	if err := cleanStaleSocket(sockPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := os.Chmod(sockPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	if err := writePidFile(); err != nil {
		ln.Close()
		return fmt.Errorf("write pid: %w", err)
	}

	defer func() {
		os.Remove(sockPath)
		if pidPath, err := ipc.PidPath(); err == nil {
			os.Remove(pidPath)
		}
	}()

	s.log.Info("daemon listening", zap.String("socket", sockPath))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the idle timer
// fires. The listener is closed on return. Exported so tests can pass a
// listener on a temp socket.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	// Idle timer cancels idleCtx when no connections arrive for idleTimeout.
	idleCtx, idleCancel := context.WithCancel(ctx)
	defer idleCancel()

	s.mu.Lock()
	s.idleTimer = time.AfterFunc(s.idleTimeout, idleCancel)
	s.mu.Unlock()

	// Close the listener when the context is done (idle or parent cancel).
	go func() {
		<-idleCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Check if this is a clean shutdown.
			select {
			case <-idleCtx.Done():
				s.active.Wait()
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.resetIdle()

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			defer conn.Close()
			defer s.resetIdle()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) resetIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}

// handleConnection answers one request per connection.
func (s *Server) handleConnection(conn net.Conn) {
	tag, payload, err := ipc.ReadFrame(conn)
	if err != nil {
		writeError(conn, fmt.Sprintf("read request: %v", err))
		return
	}
	if tag != ipc.TagRequest {
		writeError(conn, fmt.Sprintf("expected request frame (0x%02x), got 0x%02x", ipc.TagRequest, tag))
		return
	}

	var req ipc.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		writeError(conn, fmt.Sprintf("unmarshal request: %v", err))
		return
	}

	resp := s.env.Handle(req)
	if resp.Error != "" {
		s.log.Warn("request failed",
			zap.String("op", req.Op),
			zap.String("path", req.Path),
			zap.String("kind", resp.ErrorKind),
			zap.String("error", resp.Error))
	} else {
		s.log.Debug("request served",
			zap.String("op", req.Op),
			zap.String("path", req.Path),
			zap.Int("paths", len(resp.Paths)))
	}
	if err := ipc.WriteJSON(conn, ipc.TagResponse, resp); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func writeError(conn net.Conn, msg string) {
	ipc.WriteJSON(conn, ipc.TagResponse, ipc.Response{Error: msg, ErrorKind: "bad-request"})
}
