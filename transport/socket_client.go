// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/remora-foundation/remora/lib/codec"
	"github.com/remora-foundation/remora/wire"
)

// dialTimeout covers the connect phase of every round trip.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the host's
// response after writing a request, when the caller's context carries
// no deadline. Constructors and method calls run host-side code of
// unknown cost, so this is deliberately generous.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a single CBOR response frame. Matches the
// host's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// SocketClient is the consumer-side Endpoint for a SocketHost. Each
// Call opens its own connection (matching the host's one-request-per-
// connection model); Start opens the long-lived subscribe connection
// that carries the event stream.
type SocketClient struct {
	socketPath string
	session    string

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	events    chan wire.Event
	closed    chan struct{}
	closeOnce sync.Once

	// streamConn is the subscribe connection, set by Start. Closing
	// it terminates the event pump.
	streamConn net.Conn
}

var _ Endpoint = (*SocketClient)(nil)

// NewSocketClient creates a client for the host socket at socketPath.
// A random session id is generated; it accompanies every request so
// the host can direct forwarded events back to this client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		session:    newSessionID(),
		events:     make(chan wire.Event, eventBuffer),
		closed:     make(chan struct{}),
	}
}

// newSessionID returns a random 16-hex-digit session identifier.
func newSessionID() string {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic("transport: reading random session id: " + err.Error())
	}
	return hex.EncodeToString(raw[:])
}

func (c *SocketClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Session returns the client's session id.
func (c *SocketClient) Session() string { return c.session }

// Start opens the event stream and begins pumping events. Returns
// once the host has acknowledged the subscription. Callers that never
// consume events may skip Start; request round trips do not depend on
// it.
func (c *SocketClient) Start(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return wire.WrapError(wire.KindTransportUnavailable, err, "opening event stream")
	}

	request := wire.Request{Type: wire.TypeSubscribe, Session: c.session}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return wire.WrapError(wire.KindTransportUnavailable, err, "subscribing")
	}

	// The acknowledgement confirms the host registered the stream
	// before any request that could raise events is issued.
	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	decoder := codec.NewDecoder(io.LimitReader(conn, maxResponseSize))
	var ack wire.Response
	if err := decoder.Decode(&ack); err != nil {
		conn.Close()
		return wire.WrapError(wire.KindTransportUnavailable, err, "reading subscribe acknowledgement")
	}
	if !ack.OK {
		conn.Close()
		return wire.NewError(wire.KindTransportUnavailable, "subscribe rejected: %s", ack.Error)
	}

	c.streamConn = conn
	go c.pumpEvents(conn)

	c.logger().Debug("event stream open", "session", c.session)
	return nil
}

// pumpEvents decodes event frames off the subscribe connection into
// the events channel until the connection closes, then closes the
// channel.
func (c *SocketClient) pumpEvents(conn net.Conn) {
	defer close(c.events)
	conn.SetReadDeadline(time.Time{})
	decoder := codec.NewDecoder(conn)
	for {
		var evt wire.Event
		if err := decoder.Decode(&evt); err != nil {
			select {
			case <-c.closed:
			default:
				c.logger().Debug("event stream terminated", "error", err)
			}
			return
		}
		select {
		case c.events <- evt:
		default:
			// Consumer fell behind; forwarding is best-effort.
			c.logger().Warn("event buffer full, dropping event",
				"id", evt.ID,
				"event_type", evt.EventType,
			)
		}
	}
}

// Close shuts the client down. The event stream channel closes once
// the pump drains. Idempotent.
func (c *SocketClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.streamConn != nil {
			c.streamConn.Close()
		}
	})
	return nil
}

// Call sends req on a fresh connection and decodes the response. The
// context's deadline, when present, bounds the whole round trip;
// otherwise responseReadTimeout applies.
func (c *SocketClient) Call(ctx context.Context, req wire.Request, result any) error {
	return c.roundTrip(ctx, req, result)
}

// CallSync performs the same round trip as Call without a caller
// context: default deadlines apply and the calling goroutine blocks
// until a response exists.
func (c *SocketClient) CallSync(req wire.Request, result any) error {
	return c.roundTrip(context.Background(), req, result)
}

// Send writes req on a fresh connection without reading a response.
func (c *SocketClient) Send(req wire.Request) error {
	select {
	case <-c.closed:
		return wire.NewError(wire.KindTransportUnavailable, "client is closed")
	default:
	}

	req.Session = c.session
	conn, err := c.dial(context.Background())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	return nil
}

// Events returns the inbound event stream. Empty until Start is
// called; closed when the stream terminates.
func (c *SocketClient) Events() <-chan wire.Event { return c.events }

func (c *SocketClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	return dialer.DialContext(ctx, "unix", c.socketPath)
}

func (c *SocketClient) roundTrip(ctx context.Context, req wire.Request, result any) error {
	select {
	case <-c.closed:
		return wire.NewError(wire.KindTransportUnavailable, "client is closed")
	default:
	}

	req.Session = c.session
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(responseReadTimeout)
	}

	conn.SetWriteDeadline(deadline)
	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}

	// Half-close signals end of request. CBOR is self-delimiting so
	// this is not required by the protocol, but it is good hygiene.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(deadline)
	var response wire.Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if !response.OK {
		return response.DecodeError()
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}
