package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/monitoring"
	"github.com/docchat/realtime/internal/wire"
	"github.com/docchat/realtime/internal/wstest"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func newTestClient(t *testing.T, url string, bus *events.Bus) *Client {
	t.Helper()
	cfg := Config{
		URL:            url,
		MaxAttempts:    2,
		BaseDelay:      10 * time.Millisecond,
		MaxDelay:       50 * time.Millisecond,
		ConnectTimeout: 2 * time.Second,
		RejoinTimeout:  2 * time.Second,
	}
	return New(cfg, bus, logging.NewNop(), monitoring.NewMetrics())
}

// statusRecorder collects status transitions off the bus.
type statusRecorder struct {
	mu  sync.Mutex
	seq []Status
}

func recordStatuses(bus *events.Bus) *statusRecorder {
	r := &statusRecorder{}
	bus.Subscribe(events.KindStatus, func(evt events.Event) {
		s, ok := evt.Payload.(Status)
		if !ok {
			return
		}
		r.mu.Lock()
		r.seq = append(r.seq, s)
		r.mu.Unlock()
	})
	return r
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.seq))
	copy(out, r.seq)
	return out
}

func (r *statusRecorder) has(want Status) bool {
	for _, s := range r.all() {
		if s == want {
			return true
		}
	}
	return false
}

func TestConnectAndDisconnect(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	rec := recordStatuses(bus)
	c := newTestClient(t, srv.URL(), bus)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.True(t, c.Ready())
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, rec.all())

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.False(t, c.Ready())
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectIdempotent(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	c := newTestClient(t, srv.URL(), bus)
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
}

func TestConnectExhaustsAttempts(t *testing.T) {
	bus := events.New()
	rec := recordStatuses(bus)

	var errEvents []wire.ErrorEvent
	var mu sync.Mutex
	bus.Subscribe(events.KindError, func(evt events.Event) {
		if e, ok := evt.Payload.(wire.ErrorEvent); ok {
			mu.Lock()
			errEvents = append(errEvents, e)
			mu.Unlock()
		}
	})

	// Nothing listens on this port.
	c := newTestClient(t, "ws://127.0.0.1:1/ws", bus)

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, StatusError, c.Status())
	assert.True(t, rec.has(StatusError))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errEvents, 1)
	assert.NotEmpty(t, errEvents[0].Message)
}

func TestSendRequiresConnection(t *testing.T) {
	bus := events.New()
	c := newTestClient(t, "ws://127.0.0.1:1/ws", bus)

	err := c.Send(wire.EventPing, wire.Ping{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDispatchStreamEvents(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	srv.ScriptResponse(7, wstest.Script{
		Sources: []wire.RawSource{{ID: "c1", Score: ptr(0.9)}},
		Tokens:  []string{"Hello", ", ", "world"},
		Model:   "llama3.2",
	})

	bus := events.New()

	var mu sync.Mutex
	var tokens []string
	var complete *wire.MessageComplete
	var sources *wire.MessageSources
	bus.Subscribe(events.KindToken, func(evt events.Event) {
		mu.Lock()
		tokens = append(tokens, evt.Payload.(wire.MessageToken).Token)
		mu.Unlock()
	})
	bus.Subscribe(events.KindSources, func(evt events.Event) {
		p := evt.Payload.(wire.MessageSources)
		mu.Lock()
		sources = &p
		mu.Unlock()
	})
	bus.Subscribe(events.KindComplete, func(evt events.Event) {
		p := evt.Payload.(wire.MessageComplete)
		mu.Lock()
		complete = &p
		mu.Unlock()
	})

	c := newTestClient(t, srv.URL(), bus)
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Send(wire.EventSendMessage, wire.SendMessage{
		ChatID:  7,
		Message: "hi",
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return complete != nil
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Hello", ", ", "world"}, tokens)
	require.NotNil(t, sources)
	require.Len(t, sources.Sources, 1)
	assert.Equal(t, "c1", sources.Sources[0].ID)
	assert.Equal(t, int64(7), complete.ChatID)
	assert.Equal(t, "llama3.2", complete.Metadata.Model)
	assert.Equal(t, 1, complete.Metadata.SourcesCount)
}

func TestReconnectRunsRejoinBeforeReady(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	c := newTestClient(t, srv.URL(), bus)
	defer c.Disconnect()

	// Stand-in for the room subscriber: the barrier reports how many
	// joins the server had seen by the time it ran.
	var mu sync.Mutex
	var joinsAtRejoin int
	c.OnReconnect(func(ctx context.Context) error {
		mu.Lock()
		joinsAtRejoin = len(srv.Joins())
		mu.Unlock()
		return c.Send(wire.EventJoinProject, wire.JoinProject{ProjectID: 42})
	})

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Send(wire.EventJoinProject, wire.JoinProject{ProjectID: 42}))

	require.Eventually(t, func() bool {
		return len(srv.Joins()) == 1
	}, waitFor, tick)

	srv.DropConnections()

	require.Eventually(t, func() bool {
		return c.Status() == StatusConnected && len(srv.Joins()) == 2
	}, waitFor, tick)

	assert.True(t, c.Ready())
	mu.Lock()
	assert.Equal(t, 1, joinsAtRejoin)
	mu.Unlock()
}

func TestReconnectStatusSequence(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	c := newTestClient(t, srv.URL(), bus)
	defer c.Disconnect()
	require.NoError(t, c.Connect(context.Background()))

	rec := recordStatuses(bus)
	srv.DropConnections()

	require.Eventually(t, func() bool {
		return rec.has(StatusConnected)
	}, waitFor, tick)

	seq := rec.all()
	// Replayed connected first, then the drop and recovery.
	assert.Equal(t, []Status{StatusConnected, StatusDisconnected, StatusReconnecting, StatusConnected}, seq)
}

func TestDisconnectRunsHookFirst(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	c := newTestClient(t, srv.URL(), bus)

	var hookRanWhileConnected bool
	c.OnDisconnect(func() {
		hookRanWhileConnected = c.IsConnected()
	})

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()

	assert.True(t, hookRanWhileConnected)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.New()
	c := newTestClient(t, srv.URL(), bus)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.Ready())
}

func ptr[T any](v T) *T { return &v }
