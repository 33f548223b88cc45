package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Config struct {
	URL            string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	ReconnectDelay time.Duration
	EventBuffer    int
}

// Client talks to the voice chat bridge over a single websocket. Requests
// are correlated with responses by id; call events arrive on the same socket
// and are exposed through Events. The connection is re-dialed until Close.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.SugaredLogger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Frame

	writeMu sync.Mutex

	events chan domain.CallEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ ports.CallTransport = (*Client)(nil)
	_ ports.EventSource   = (*Client)(nil)
)

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger:  logger,
		pending: make(map[string]chan Frame),
		events:  make(chan domain.CallEvent, cfg.EventBuffer),
	}
}

// Start connects in the background and keeps reconnecting until ctx is done
// or Close is called. Requests made while disconnected fail with
// domain.ErrTransportUnavailable.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Close stops reconnecting, drops the connection and closes Events.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Client) Events() <-chan domain.CallEvent {
	return c.events
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warnw("failed to connect to call bridge",
				"url", c.cfg.URL,
				"error", err,
			)
		} else {
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Infow("connected to call bridge", "url", c.cfg.URL)

	c.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline(conn)
		return nil
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.keepAlive(ctx, conn, stop)
	}()

	err := c.readLoop(ctx, conn)
	close(stop)
	wg.Wait()
	conn.Close()
	c.disconnect()

	if ctx.Err() == nil {
		c.logger.Warnw("call bridge connection lost", "error", err)
	}
}

// keepAlive pings the bridge and closes conn once ctx is done, which also
// unblocks the read loop.
func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(interval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debugw("bridge ping failed", "error", err)
				return
			}
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-stop:
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		c.extendReadDeadline(conn)

		switch f.Type {
		case frameResponse:
			c.deliver(f)
		case frameEvent:
			c.emit(ctx, f)
		default:
			c.logger.Debugw("ignoring bridge frame", "type", f.Type)
		}
	}
}

func (c *Client) extendReadDeadline(conn *websocket.Conn) {
	if c.cfg.PongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
}

func (c *Client) deliver(f Frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debugw("response for unknown request", "id", f.ID, "op", f.Op)
		return
	}
	ch <- f
}

func (c *Client) emit(ctx context.Context, f Frame) {
	ev := domain.CallEvent{
		Kind:   domain.EventKind(f.Event),
		ChatID: f.ChatID,
		At:     time.Now(),
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// disconnect forgets the connection and fails every request still waiting.
func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) request(ctx context.Context, op string, chatID domain.ChatID, payload, out any) error {
	ctx, span := tracing.TraceBridgeRequest(ctx, op, int64(chatID))
	defer span.End()

	err := c.roundTrip(ctx, op, chatID, payload, out)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op string, chatID domain.ChatID, payload, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	f := Frame{Type: frameRequest, ID: uuid.NewString(), Op: op, ChatID: chatID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		f.Payload = raw
	}

	ch := make(chan Frame, 1)
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return domain.ErrTransportNotConnected
	}
	c.pending[f.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.write(conn, f); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: connection lost during %s", domain.ErrTransportUnavailable, op)
		}
		if resp.Error != nil {
			return resp.Error.Err()
		}
		if out != nil && len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", op, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.RequestTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	}
	return conn.WriteJSON(f)
}

func (c *Client) Play(ctx context.Context, chatID domain.ChatID, desc domain.StreamDescriptor) error {
	return c.request(ctx, opPlay, chatID, newPlayPayload(desc), nil)
}

func (c *Client) Leave(ctx context.Context, chatID domain.ChatID) error {
	return c.request(ctx, opLeave, chatID, nil, nil)
}

func (c *Client) Pause(ctx context.Context, chatID domain.ChatID) error {
	return c.request(ctx, opPause, chatID, nil, nil)
}

func (c *Client) Resume(ctx context.Context, chatID domain.ChatID) error {
	return c.request(ctx, opResume, chatID, nil, nil)
}

func (c *Client) ActiveCalls(ctx context.Context) (map[domain.ChatID]domain.NativeCallStatus, error) {
	var p callsPayload
	if err := c.request(ctx, opCalls, 0, nil, &p); err != nil {
		return nil, err
	}
	calls := make(map[domain.ChatID]domain.NativeCallStatus, len(p.Calls))
	for _, e := range p.Calls {
		calls[e.ChatID] = e.Status
	}
	return calls, nil
}

func (c *Client) Self(ctx context.Context) (domain.UserID, error) {
	var p selfPayload
	if err := c.request(ctx, opSelf, 0, nil, &p); err != nil {
		return 0, err
	}
	if p.UserID == 0 {
		return 0, errors.New("bridge did not report its account id")
	}
	return p.UserID, nil
}
