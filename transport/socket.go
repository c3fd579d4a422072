// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/remora-foundation/remora/lib/codec"
	"github.com/remora-foundation/remora/wire"
)

// readTimeout is how long the host waits for a connection to deliver
// its request. A well-behaved client sends the request immediately
// after connecting. Subscribe connections clear this deadline once
// registered.
const readTimeout = 30 * time.Second

// writeTimeout is how long a response or event write may take before
// the connection is considered dead.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request frame. Wire payloads
// are JSON-shaped argument lists; 1 MB is generous.
const maxRequestSize = 1024 * 1024

// SocketHost serves the boundary protocol on a Unix socket. Each
// connection carries exactly one request: the client writes a CBOR
// wire.Request, the host replies with a wire.Response, and the
// connection closes. Two request kinds deviate from that cycle:
// "release" produces no response, and "subscribe" turns the
// connection into the session's long-lived event stream.
type SocketHost struct {
	socketPath string
	handler    Handler

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*socketSubscriber

	// activeConnections tracks in-flight connection goroutines so
	// Serve can drain before returning.
	activeConnections sync.WaitGroup
}

// socketSubscriber is one session's registered event stream. The
// write mutex serializes event frames from concurrent forwarders.
type socketSubscriber struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewSocketHost creates a host that will listen on socketPath and
// deliver every request to handler.
func NewSocketHost(socketPath string, handler Handler) *SocketHost {
	return &SocketHost{
		socketPath:  socketPath,
		handler:     handler,
		subscribers: make(map[string]*socketSubscriber),
	}
}

func (h *SocketHost) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Serve starts accepting connections and blocks until ctx is
// cancelled, then stops accepting, closes subscriber streams, and
// waits for active connection handlers to complete.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (h *SocketHost) Serve(ctx context.Context) error {
	if err := os.Remove(h.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", h.socketPath, err)
	}

	listener, err := net.Listen("unix", h.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(h.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	h.logger().Info("socket host listening", "path", h.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			h.logger().Error("accept failed", "error", err)
			continue
		}

		h.activeConnections.Add(1)
		go func() {
			defer h.activeConnections.Done()
			h.handleConnection(ctx, conn)
		}()
	}

	// Closing subscriber connections unblocks their handler
	// goroutines, which are counted in activeConnections.
	h.mu.Lock()
	for _, subscriber := range h.subscribers {
		subscriber.conn.Close()
	}
	h.mu.Unlock()

	h.activeConnections.Wait()
	return nil
}

// handleConnection processes one request cycle.
func (h *SocketHost) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so a single Decode reads exactly one
	// request with no framing protocol. LimitReader bounds memory.
	var request wire.Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		h.writeError(conn, nil, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if request.Type == "" {
		h.writeError(conn, nil, "missing required field: type")
		return
	}

	switch request.Type {
	case wire.TypeSubscribe:
		h.serveEventStream(conn, request)
	case wire.TypeRelease:
		// Fire-and-forget: no response frame, errors only logged.
		origin := &socketOrigin{host: h, session: request.Session}
		if _, err := h.handler.HandleRequest(ctx, origin, request); err != nil {
			h.logger().Debug("release failed", "error", err)
		}
	default:
		origin := &socketOrigin{host: h, session: request.Session}
		result, err := h.handler.HandleRequest(ctx, origin, request)
		if err != nil {
			h.logger().Debug("request failed",
				"type", request.Type,
				"error", err,
			)
			var wireErr *wire.Error
			if errors.As(err, &wireErr) {
				h.writeError(conn, wireErr, wireErr.Message)
				return
			}
			h.writeError(conn, nil, err.Error())
			return
		}
		h.writeSuccess(conn, result)
	}
}

// serveEventStream registers the connection as the session's event
// stream and holds it open until the client disconnects or the host
// shuts down. An {ok: true} acknowledgement confirms registration so
// the client can rely on the stream before issuing requests.
func (h *SocketHost) serveEventStream(conn net.Conn, request wire.Request) {
	if request.Session == "" {
		h.writeError(conn, nil, "subscribe requires a session id")
		return
	}

	subscriber := &socketSubscriber{conn: conn}

	h.mu.Lock()
	if previous, exists := h.subscribers[request.Session]; exists {
		// A reconnecting client replaces its stale stream.
		previous.conn.Close()
	}
	h.subscribers[request.Session] = subscriber
	h.mu.Unlock()

	h.logger().Debug("event stream registered", "session", request.Session)
	h.writeSuccess(conn, nil)

	// The client writes nothing further on this connection; a read
	// returning is the disconnect signal. No deadline — the stream
	// lives until one side closes.
	conn.SetReadDeadline(time.Time{})
	io.Copy(io.Discard, conn)

	h.mu.Lock()
	if h.subscribers[request.Session] == subscriber {
		delete(h.subscribers, request.Session)
	}
	h.mu.Unlock()
	h.logger().Debug("event stream closed", "session", request.Session)
}

// sendEvent encodes one event frame onto the session's stream.
func (h *SocketHost) sendEvent(session string, evt wire.Event) error {
	if session == "" {
		return fmt.Errorf("request carried no session id")
	}

	h.mu.Lock()
	subscriber, exists := h.subscribers[session]
	h.mu.Unlock()
	if !exists {
		return fmt.Errorf("no event stream for session %q", session)
	}

	subscriber.mu.Lock()
	defer subscriber.mu.Unlock()
	subscriber.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return codec.NewEncoder(subscriber.conn).Encode(evt)
}

// writeError sends a failure response. Write failures are logged at
// debug level — the connection is closing regardless.
func (h *SocketHost) writeError(conn net.Conn, wireErr *wire.Error, message string) {
	response := wire.Response{OK: false, Error: message}
	if wireErr != nil {
		response.Kind = wireErr.Kind
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		h.logger().Debug("writing error response failed", "error", err)
	}
}

// writeSuccess sends {ok: true} with the encoded result, if any.
func (h *SocketHost) writeSuccess(conn net.Conn, result any) {
	response := wire.Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			h.writeError(conn, nil, fmt.Sprintf("encoding response: %v", err))
			return
		}
		response.Data = data
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		h.logger().Debug("writing response failed", "error", err)
	}
}

// socketOrigin directs forwarded events at the session that issued a
// request. One value is created per inbound request; the registry
// holds it for the lifetime of handles the request created.
type socketOrigin struct {
	host    *SocketHost
	session string
}

var _ Origin = (*socketOrigin)(nil)

func (o *socketOrigin) SendEvent(evt wire.Event) error {
	return o.host.sendEvent(o.session, evt)
}
