package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 1 << 20
)

var tracer = otel.Tracer("patrolsignal/bridge")

// Conn is one connected host session.
// Call is safe for concurrent use; the read loop runs on the HTTP handler goroutine.
type Conn struct {
	ws      *websocket.Conn
	session string
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, session string, timeout time.Duration) *Conn {
	ws.SetReadLimit(maxMessageSize)
	return &Conn{
		ws:      ws,
		session: session,
		timeout: timeout,
		pending: make(map[uint64]chan Envelope),
		done:    make(chan struct{}),
	}
}

// Session returns the session identifier assigned on connect.
func (c *Conn) Session() string {
	return c.session
}

// Call invokes name on the host with args and decodes the reply into result.
// result may be nil when the reply carries no data.
func (c *Conn) Call(ctx context.Context, name string, args, result any) error {
	ctx, span := tracer.Start(ctx, "bridge.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("call", name)))
	defer span.End()

	err := c.call(ctx, name, args, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Conn) call(ctx context.Context, name string, args, result any) error {
	var payload json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encoding %s arguments: %w", name, err)
		}
		payload = data
	}

	id, ch, err := c.register()
	if err != nil {
		return err
	}
	defer c.unregister(id)

	if err := c.write(Envelope{Kind: KindCall, ID: id, Name: name, Payload: payload}); err != nil {
		return fmt.Errorf("sending %s: %w", name, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	select {
	case res := <-ch:
		if res.Error != "" {
			return fmt.Errorf("%s: %w: %s", name, ErrRemote, res.Error)
		}
		if result == nil || len(res.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Payload, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", name, err)
		}
		return nil
	case <-c.done:
		return fmt.Errorf("%s: %w", name, ErrNotConnected)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

func (c *Conn) register() (uint64, chan Envelope, error) {
	select {
	case <-c.done:
		return 0, nil, ErrNotConnected
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	ch := make(chan Envelope, 1)
	c.pending[c.nextID] = ch
	return c.nextID, ch, nil
}

func (c *Conn) unregister(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) resolve(env Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.ID]
	c.mu.Unlock()
	if !ok {
		slog.Debug("dropping result for unknown call", "session", c.session, "id", env.ID)
		return
	}
	select {
	case ch <- env:
	default:
		slog.Debug("dropping duplicate result", "session", c.session, "id", env.ID)
	}
}

func (c *Conn) write(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the socket fails. Results are handed to the waiting
// caller; events go to onEvent.
func (c *Conn) readLoop(onEvent func(Envelope)) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("host connection closed", "session", c.session, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("discarding malformed frame", "session", c.session, "error", err)
			continue
		}

		switch env.Kind {
		case KindResult:
			c.resolve(env)
		case KindEvent:
			onEvent(env)
		default:
			slog.Debug("ignoring frame", "session", c.session, "kind", env.Kind, "name", env.Name)
		}
	}
}

// Close ends the session and fails every pending call.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
