package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/monitoring"
	"github.com/docchat/realtime/internal/shared/id"
	"github.com/docchat/realtime/internal/store"
	"github.com/docchat/realtime/internal/wire"
)

// ErrNotReady is returned by Send when the connection is not usable
// for chat-scoped commands.
var ErrNotReady = errors.New("connection not ready for sends")

// Sender is the slice of the connection manager the controller drives.
type Sender interface {
	Send(event string, payload interface{}) error
	Ready() bool
}

// SendOptions carries generation settings and the per-send callbacks
// used for incremental UI rendering.
type SendOptions struct {
	Model          string
	Temperature    *float64
	IncludeHistory *bool
	TopK           *int
	MaxTokens      *int
	HistoryLength  *int

	// OnToken fires for each streamed fragment, in receipt order.
	OnToken func(token string)
	// OnComplete fires once after the placeholder is finalized.
	OnComplete func(meta wire.CompletionMetadata)
	// OnError fires when the stream aborts for this chat.
	OnError func(err error)
}

// Controller manages streaming sessions keyed by chat id.
type Controller struct {
	conn    Sender
	store   *store.Store
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	sessions map[int64]*session

	subs []*events.Subscription
}

// New creates a controller and subscribes it to the streaming events
// on the bus.
func New(conn Sender, st *store.Store, bus *events.Bus, log *logging.Logger, metrics *monitoring.Metrics) *Controller {
	c := &Controller{
		conn:     conn,
		store:    st,
		log:      log.Named("stream"),
		metrics:  metrics,
		sessions: make(map[int64]*session),
	}

	c.subs = []*events.Subscription{
		bus.Subscribe(events.KindToken, c.onToken),
		bus.Subscribe(events.KindSources, c.onSources),
		bus.Subscribe(events.KindComplete, c.onComplete),
		bus.Subscribe(events.KindError, c.onError),
	}
	return c
}

// Close cancels the bus subscriptions and drops all sessions.
func (c *Controller) Close() {
	for _, s := range c.subs {
		s.Cancel()
	}

	c.mu.Lock()
	n := len(c.sessions)
	c.sessions = make(map[int64]*session)
	c.mu.Unlock()
	c.metrics.SessionsActive.Sub(float64(n))
}

// Send emits the user message and opens a streaming session for the
// chat. Fails synchronously when the connection is not ready; no
// session or store writes happen in that case.
func (c *Controller) Send(chatID int64, content string, opts SendOptions) error {
	if !c.conn.Ready() {
		return ErrNotReady
	}

	now := time.Now()
	userID := id.NewPendingID().String()
	placeholderID := id.NewPendingID().String()

	c.store.Append(store.Message{
		ID:        userID,
		ChatID:    chatID,
		Role:      store.RoleUser,
		Content:   content,
		CreatedAt: now,
	})
	c.store.Append(store.Message{
		ID:        placeholderID,
		ChatID:    chatID,
		Role:      store.RoleAssistant,
		Streaming: true,
		CreatedAt: now,
	})

	sess := &session{
		chatID:        chatID,
		userID:        userID,
		placeholderID: placeholderID,
		opts:          opts,
	}

	c.mu.Lock()
	if stale, ok := c.sessions[chatID]; ok {
		c.log.Warn("Replacing stale session",
			zap.Int64("chat_id", chatID),
			zap.String("placeholder_id", stale.placeholderID),
		)
		c.metrics.SessionsActive.Dec()
	}
	c.sessions[chatID] = sess
	c.mu.Unlock()
	c.metrics.SessionsActive.Inc()

	cmd := wire.SendMessage{
		ChatID:         chatID,
		Message:        content,
		Model:          opts.Model,
		Temperature:    opts.Temperature,
		IncludeHistory: opts.IncludeHistory,
		TopK:           opts.TopK,
		MaxTokens:      opts.MaxTokens,
		HistoryLength:  opts.HistoryLength,
	}
	if err := c.conn.Send(wire.EventSendMessage, cmd); err != nil {
		// Roll back the optimistic writes so a failed send leaves no
		// phantom conversation state
		c.dropSession(chatID)
		c.store.Remove(chatID, userID)
		c.store.Remove(chatID, placeholderID)
		return fmt.Errorf("send message for chat %d: %w", chatID, err)
	}

	c.metrics.MessagesSent.Inc()
	c.log.Info("Message sent",
		zap.Int64("chat_id", chatID),
		zap.String("placeholder_id", placeholderID),
	)
	return nil
}

// Active reports whether a session is live for the chat.
func (c *Controller) Active(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[chatID]
	return ok
}

// Abandon drops the session for a chat without touching the store.
// Further events for the chat are ignored; server-side generation
// continues regardless.
func (c *Controller) Abandon(chatID int64) {
	if c.dropSession(chatID) {
		c.log.Info("Session abandoned", zap.Int64("chat_id", chatID))
	}
}

func (c *Controller) onToken(evt events.Event) {
	tok, ok := evt.Payload.(wire.MessageToken)
	if !ok {
		return
	}

	c.mu.Lock()
	sess, live := c.sessions[tok.ChatID]
	if live {
		sess.append(tok.Token)
	}
	var onToken func(string)
	if live {
		onToken = sess.opts.OnToken
	}
	c.mu.Unlock()

	// Events for an absent session are dropped silently
	if live && onToken != nil {
		onToken(tok.Token)
	}
}

func (c *Controller) onSources(evt events.Event) {
	src, ok := evt.Payload.(wire.MessageSources)
	if !ok {
		return
	}

	c.mu.Lock()
	if sess, live := c.sessions[src.ChatID]; live {
		sess.replaceSources(src.Sources)
	}
	c.mu.Unlock()
}

func (c *Controller) onComplete(evt events.Event) {
	done, ok := evt.Payload.(wire.MessageComplete)
	if !ok {
		return
	}

	c.mu.Lock()
	sess, live := c.sessions[done.ChatID]
	if live {
		delete(c.sessions, done.ChatID)
	}
	c.mu.Unlock()

	if !live {
		return
	}
	c.metrics.SessionsActive.Dec()

	err := c.store.Finalize(
		done.ChatID,
		sess.placeholderID,
		sess.content(),
		sess.sources,
		done.Metadata.Model,
	)
	if err != nil {
		c.log.Error("Finalize failed",
			zap.Int64("chat_id", done.ChatID),
			zap.String("placeholder_id", sess.placeholderID),
			zap.Error(err),
		)
		return
	}

	c.log.Info("Message complete",
		zap.Int64("chat_id", done.ChatID),
		zap.String("model", done.Metadata.Model),
		zap.Int("sources", len(sess.sources)),
	)
	if sess.opts.OnComplete != nil {
		sess.opts.OnComplete(done.Metadata)
	}
}

func (c *Controller) onError(evt events.Event) {
	failure, ok := evt.Payload.(wire.ErrorEvent)
	if !ok {
		return
	}
	// Connection-scoped errors are not session business
	if failure.ChatID == nil {
		return
	}

	chatID := *failure.ChatID
	c.mu.Lock()
	sess, live := c.sessions[chatID]
	if live {
		delete(c.sessions, chatID)
	}
	c.mu.Unlock()

	if !live {
		return
	}
	c.metrics.SessionsActive.Dec()

	if err := c.store.Fail(chatID, sess.placeholderID); err != nil {
		c.log.Error("Placeholder rollback failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}

	c.log.Warn("Stream aborted",
		zap.Int64("chat_id", chatID),
		zap.String("message", failure.Message),
	)
	if sess.opts.OnError != nil {
		sess.opts.OnError(errors.New(failure.Message))
	}
}

func (c *Controller) dropSession(chatID int64) bool {
	c.mu.Lock()
	_, ok := c.sessions[chatID]
	if ok {
		delete(c.sessions, chatID)
	}
	c.mu.Unlock()

	if ok {
		c.metrics.SessionsActive.Dec()
	}
	return ok
}
