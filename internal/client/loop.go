package client

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/wire"
)

// readLoop is the single dispatcher for one connection. Every inbound
// event reaches the bus from this goroutine, which is what preserves
// wire order for all subscribers.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *wire.Envelope) {
	c.metrics.RecordEvent(env.Event)

	switch env.Event {
	case wire.EventConnectionStatus:
		var p wire.ConnectionStatus
		if err := env.Decode(&p); err == nil {
			c.log.Debug("Server connection status", zap.String("status", p.Status))
		}

	case wire.EventProjectJoined:
		c.publish(env, events.KindRoomJoined, &wire.RoomAck{})

	case wire.EventProjectLeft:
		c.publish(env, events.KindRoomLeft, &wire.RoomAck{})

	case wire.EventMessageReceived:
		c.publish(env, events.KindMessageReceived, &wire.MessageReceived{})

	case wire.EventMessageToken:
		c.metrics.TokensReceived.Inc()
		c.publish(env, events.KindToken, &wire.MessageToken{})

	case wire.EventMessageSources:
		c.publish(env, events.KindSources, &wire.MessageSources{})

	case wire.EventMessageComplete:
		c.publish(env, events.KindComplete, &wire.MessageComplete{})

	case wire.EventDocumentStatus:
		c.publish(env, events.KindDocumentStatus, &wire.DocumentStatus{})

	case wire.EventProjectUpdate:
		c.publish(env, events.KindProjectUpdate, &wire.ProjectUpdate{})

	case wire.EventError:
		c.publish(env, events.KindError, &wire.ErrorEvent{})

	case wire.EventPong:
		c.handlePong(env)

	default:
		c.log.Warn("Unknown event", zap.String("event", env.Event))
	}
}

// publish decodes the payload into out and forwards it to the bus.
// Malformed payloads are dropped with a log line; one bad frame must
// not kill the connection.
func (c *Client) publish(env *wire.Envelope, kind events.Kind, out interface{}) {
	if err := env.Decode(out); err != nil {
		c.log.Warn("Malformed payload",
			zap.String("event", env.Event),
			zap.Error(err),
		)
		return
	}
	c.bus.Publish(events.Event{Kind: kind, Payload: deref(out)})
}

func (c *Client) handlePong(env *wire.Envelope) {
	var p wire.Pong
	if err := env.Decode(&p); err != nil {
		return
	}

	c.mu.Lock()
	sentAt := c.lastPingAt
	c.mu.Unlock()

	if !sentAt.IsZero() {
		latency := time.Since(sentAt)
		c.metrics.PongLatency.Observe(latency.Seconds())
		c.log.Debug("Pong", zap.Duration("latency", latency))
	}
	c.bus.Publish(events.Event{Kind: events.KindPong, Payload: p})
}

// handleDrop reacts to a read failure: nothing on manual disconnect,
// otherwise the automatic reconnect cycle.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closing || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.ready = false
	c.mu.Unlock()

	// A clean server close is deliberate; reconnecting is the caller's
	// decision, not ours.
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Info("Server closed connection", zap.Error(err))
		c.setStatus(StatusDisconnected)
		return
	}

	c.log.Warn("Connection dropped", zap.Error(err))
	c.setStatus(StatusDisconnected)
	go c.reconnect()
}

// reconnect redials with the same bounded attempt policy, restores
// room membership, and only then reports the connection usable.
func (c *Client) reconnect() {
	c.setStatus(StatusReconnecting)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		c.log.Error("Reconnect failed", zap.Error(err))
		c.setStatus(StatusError)
		c.bus.Publish(events.Event{
			Kind:    events.KindError,
			Payload: wire.ErrorEvent{Message: err.Error()},
		})
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	rejoin := c.rejoin
	c.mu.Unlock()

	// The read loop must run during the rejoin wait so the ack frame
	// can arrive
	go c.readLoop(conn)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	if rejoin != nil {
		rctx, rcancel := context.WithTimeout(context.Background(), c.cfg.RejoinTimeout)
		if err := rejoin(rctx); err != nil {
			c.log.Warn("Room rejoin after reconnect failed", zap.Error(err))
		}
		rcancel()
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()

	c.metrics.Reconnects.Inc()
	c.setStatus(StatusConnected)
	c.log.Info("Reconnected", zap.String("url", c.cfg.URL))
}

// pingLoop sends periodic health probes on one connection. It exits
// when a write fails, which happens as soon as the connection is
// closed or replaced.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn == conn
		if current {
			c.lastPingAt = time.Now()
		}
		c.mu.Unlock()
		if !current {
			return
		}

		if err := c.Send(wire.EventPing, wire.Ping{}); err != nil {
			return
		}
	}
}

// deref unwraps the pointer used for decoding so bus payloads are
// plain values.
func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *wire.RoomAck:
		return *p
	case *wire.MessageReceived:
		return *p
	case *wire.MessageToken:
		return *p
	case *wire.MessageSources:
		return *p
	case *wire.MessageComplete:
		return *p
	case *wire.DocumentStatus:
		return *p
	case *wire.ProjectUpdate:
		return *p
	case *wire.ErrorEvent:
		return *p
	default:
		return v
	}
}
