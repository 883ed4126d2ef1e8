package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/monitoring"
	"github.com/docchat/realtime/internal/wire"
)

// Config tunes the connection lifecycle.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8000/ws".
	URL string

	// Token is an opaque auth token passed on the handshake.
	Token string

	// MaxAttempts caps dial attempts per connect or reconnect cycle.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the wait between dial attempts.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// ConnectTimeout bounds one whole connect cycle.
	ConnectTimeout time.Duration

	// HandshakeTimeout bounds a single websocket upgrade.
	HandshakeTimeout time.Duration

	// PingInterval is the health check cadence. Zero disables pings.
	PingInterval time.Duration

	// RejoinTimeout bounds the room rejoin ack wait after reconnect.
	RejoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.RejoinTimeout == 0 {
		c.RejoinTimeout = 10 * time.Second
	}
	return c
}

// RejoinFunc re-establishes room membership after a reconnect. It must
// block until the membership ack arrives or ctx expires.
type RejoinFunc func(ctx context.Context) error

// Client manages one persistent websocket connection.
type Client struct {
	cfg     Config
	log     *logging.Logger
	bus     *events.Bus
	metrics *monitoring.Metrics

	mu         sync.Mutex
	conn       *websocket.Conn
	status     Status
	connecting bool
	closing    bool
	ready      bool
	lastPingAt time.Time
	rejoin     RejoinFunc
	beforeStop func()

	writeMu sync.Mutex
}

// New creates a client. The bus receives every status transition and
// all inbound protocol events.
func New(cfg Config, bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics) *Client {
	return &Client{
		cfg:     cfg.withDefaults(),
		log:     log.Named("client"),
		bus:     bus,
		metrics: metrics,
		status:  StatusDisconnected,
	}
}

// OnReconnect registers the room rejoin barrier. The function runs
// after the socket is reestablished and before the connected status is
// published.
func (c *Client) OnReconnect(fn RejoinFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejoin = fn
}

// OnDisconnect registers a hook that runs before a manual disconnect
// closes the transport, used to leave the joined room first.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeStop = fn
}

// Connect opens the transport. Idempotent when already connected;
// returns ErrConnectInFlight when an attempt is already running.
// Retries up to the attempt cap within ConnectTimeout, then returns
// ErrAttemptsExhausted and publishes an error event.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnected {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return ErrConnectInFlight
	}
	c.connecting = true
	c.closing = false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
	}()

	c.setStatus(StatusConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.dial(dialCtx)
	if err != nil {
		c.setStatus(StatusError)
		c.bus.Publish(events.Event{
			Kind:    events.KindError,
			Payload: wire.ErrorEvent{Message: err.Error()},
		})
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.ready = true
	c.mu.Unlock()

	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	c.setStatus(StatusConnected)
	c.log.Info("Connected", zap.String("url", c.cfg.URL))
	return nil
}

// Disconnect leaves the joined room, closes the transport, and resets
// the state machine. Safe to call when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	hook := c.beforeStop
	c.closing = true
	c.mu.Unlock()

	if conn != nil && hook != nil {
		hook()
	}

	c.mu.Lock()
	c.conn = nil
	c.ready = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = conn.Close()
	}

	c.setStatus(StatusDisconnected)
	c.log.Info("Disconnected")
}

// IsConnected reports whether the transport is established.
func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Ready reports whether chat-scoped sends are accepted: the transport
// is up and any room membership has been restored after reconnect.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusConnected && c.ready
}

// Send emits one protocol event. Fails fast when no transport is open.
func (c *Client) Send(event string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// dial attempts the websocket upgrade up to MaxAttempts times with a
// bounded linear backoff. Individual attempt failures are logged, not
// surfaced; only cap exhaustion is.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	var header http.Header
	if c.cfg.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.cfg.Token}}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.metrics.ConnectAttempts.Inc()

		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.log.Debug("Dial attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrAttemptsExhausted, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, c.cfg.MaxAttempts, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BaseDelay * time.Duration(attempt)
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	return delay
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	prev := c.status
	c.status = s
	c.mu.Unlock()

	if s == StatusConnected {
		c.metrics.ConnectionUp.Set(1)
	} else {
		c.metrics.ConnectionUp.Set(0)
	}

	c.log.Debug("Status change",
		zap.String("from", prev.String()),
		zap.String("to", s.String()),
	)
	c.bus.Publish(events.Event{Kind: events.KindStatus, Payload: s})
}
