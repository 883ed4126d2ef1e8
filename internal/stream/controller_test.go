package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/monitoring"
	"github.com/docchat/realtime/internal/shared/id"
	"github.com/docchat/realtime/internal/store"
	"github.com/docchat/realtime/internal/wire"
)

type fakeSender struct {
	ready   bool
	sendErr error
	sent    []interface{}
}

func (f *fakeSender) Send(event string, payload interface{}) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeSender) Ready() bool { return f.ready }

type fixture struct {
	conn  *fakeSender
	store *store.Store
	bus   *events.Bus
	ctrl  *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := &fakeSender{ready: true}
	st := store.New()
	bus := events.New()
	ctrl := New(conn, st, bus, logging.NewNop(), monitoring.NewMetrics())
	t.Cleanup(ctrl.Close)
	return &fixture{conn: conn, store: st, bus: bus, ctrl: ctrl}
}

func (f *fixture) token(chatID int64, token string) {
	f.bus.Publish(events.Event{
		Kind:    events.KindToken,
		Payload: wire.MessageToken{ChatID: chatID, Token: token},
	})
}

func (f *fixture) sources(chatID int64, raw ...wire.RawSource) {
	f.bus.Publish(events.Event{
		Kind:    events.KindSources,
		Payload: wire.MessageSources{ChatID: chatID, Sources: raw},
	})
}

func (f *fixture) complete(chatID int64, model string) {
	f.bus.Publish(events.Event{
		Kind: events.KindComplete,
		Payload: wire.MessageComplete{
			ChatID:   chatID,
			Metadata: wire.CompletionMetadata{Model: model},
		},
	})
}

func (f *fixture) streamError(chatID int64, msg string) {
	f.bus.Publish(events.Event{
		Kind:    events.KindError,
		Payload: wire.ErrorEvent{Message: msg, ChatID: &chatID},
	})
}

func (f *fixture) assistant(t *testing.T, chatID int64) store.Message {
	t.Helper()
	msgs := f.store.Messages(chatID)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, store.RoleAssistant, last.Role)
	return last
}

func docSource(docID int64, name string, score float64) wire.RawSource {
	chunk := 0
	return wire.RawSource{
		Content:  "excerpt",
		Metadata: wire.SourceMetadata{DocumentID: &docID, DocumentName: name, ChunkIndex: &chunk},
		Score:    &score,
	}
}

func TestSendCreatesOptimisticMessages(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{}))

	msgs := f.store.Messages(10)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.True(t, id.IsPending(msgs[0].ID))
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Empty(t, msgs[1].Content)
	assert.True(t, msgs[1].Streaming)
	assert.True(t, id.IsPending(msgs[1].ID))

	require.Len(t, f.conn.sent, 1)
	cmd := f.conn.sent[0].(wire.SendMessage)
	assert.Equal(t, int64(10), cmd.ChatID)
	assert.Equal(t, "hi", cmd.Message)
	assert.True(t, f.ctrl.Active(10))
}

func TestSendWhileNotReady(t *testing.T) {
	f := newFixture(t)
	f.conn.ready = false

	err := f.ctrl.Send(10, "hi", SendOptions{})
	assert.ErrorIs(t, err, ErrNotReady)

	assert.Empty(t, f.store.Messages(10))
	assert.Empty(t, f.conn.sent)
	assert.False(t, f.ctrl.Active(10))
}

func TestSendFailureRollsBackOptimisticWrites(t *testing.T) {
	f := newFixture(t)
	f.conn.sendErr = errors.New("write failed")

	err := f.ctrl.Send(10, "hi", SendOptions{})
	require.Error(t, err)

	assert.Empty(t, f.store.Messages(10))
	assert.False(t, f.ctrl.Active(10))
}

func TestTokenAccumulation(t *testing.T) {
	f := newFixture(t)

	var streamed []string
	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{
		OnToken: func(tok string) { streamed = append(streamed, tok) },
	}))

	f.token(10, "Hel")
	f.token(10, "lo ")
	f.token(10, "world")
	f.complete(10, "llama3.2")

	assert.Equal(t, []string{"Hel", "lo ", "world"}, streamed)
	assert.Equal(t, "Hello world", f.assistant(t, 10).Content)
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)

	var completed *wire.CompletionMetadata
	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{
		OnComplete: func(meta wire.CompletionMetadata) { completed = &meta },
	}))

	f.token(10, "Hel")
	f.token(10, "lo ")
	f.token(10, "world")
	f.sources(10, docSource(1, "report.pdf", 0.9))
	f.complete(10, "llama3.2")

	final := f.assistant(t, 10)
	assert.Equal(t, "Hello world", final.Content)
	assert.False(t, final.Streaming)
	assert.Equal(t, "llama3.2", final.Model)
	require.Len(t, final.Sources, 1)
	assert.Equal(t, int64(1), final.Sources[0].DocumentID)
	assert.Equal(t, "report.pdf", final.Sources[0].DocumentName)

	require.NotNil(t, completed)
	assert.Equal(t, "llama3.2", completed.Model)
	assert.False(t, f.ctrl.Active(10))
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "first", SendOptions{}))
	require.NoError(t, f.ctrl.Send(11, "second", SendOptions{}))

	// Interleave tokens for both chats on the shared channel
	f.token(10, "A1")
	f.token(11, "B1")
	f.token(10, "A2")
	f.token(11, "B2")
	f.token(10, "A3")

	f.complete(10, "m")
	f.complete(11, "m")

	assert.Equal(t, "A1A2A3", f.assistant(t, 10).Content)
	assert.Equal(t, "B1B2", f.assistant(t, 11).Content)
}

func TestEventsWithoutSessionAreDropped(t *testing.T) {
	f := newFixture(t)

	f.token(99, "orphan")
	f.sources(99, docSource(1, "x", 0.5))
	f.complete(99, "m")
	f.streamError(99, "boom")

	assert.Empty(t, f.store.Messages(99))
}

func TestTokensAfterCompleteAreDropped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{}))
	f.token(10, "done")
	f.complete(10, "m")

	f.token(10, " extra")

	assert.Equal(t, "done", f.assistant(t, 10).Content)
}

func TestSourcesReplaceNotMerge(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{}))

	f.sources(10, docSource(1, "a.pdf", 0.9), docSource(2, "b.pdf", 0.8))
	f.sources(10, docSource(3, "c.pdf", 0.7))
	f.complete(10, "m")

	final := f.assistant(t, 10)
	require.Len(t, final.Sources, 1)
	assert.Equal(t, int64(3), final.Sources[0].DocumentID)
}

func TestStreamErrorAbortsOnlyMatchingSession(t *testing.T) {
	f := newFixture(t)

	var gotErr error
	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{
		OnError: func(err error) { gotErr = err },
	}))
	require.NoError(t, f.ctrl.Send(11, "other", SendOptions{}))

	f.token(11, "fine")
	f.streamError(10, "model unavailable")

	require.EqualError(t, gotErr, "model unavailable")
	assert.False(t, f.ctrl.Active(10))
	assert.True(t, f.ctrl.Active(11))

	// The aborted placeholder is rolled back, not filled
	aborted := f.assistant(t, 10)
	assert.Empty(t, aborted.Content)
	assert.False(t, aborted.Streaming)

	// The healthy session still completes
	f.complete(11, "m")
	assert.Equal(t, "fine", f.assistant(t, 11).Content)
}

func TestConnectionScopedErrorLeavesSessions(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{}))
	f.bus.Publish(events.Event{
		Kind:    events.KindError,
		Payload: wire.ErrorEvent{Message: "connect lost"},
	})

	assert.True(t, f.ctrl.Active(10))
}

func TestResendReplacesStaleSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "first", SendOptions{}))
	f.token(10, "stale")

	require.NoError(t, f.ctrl.Send(10, "second", SendOptions{}))
	f.token(10, "fresh")
	f.complete(10, "m")

	// Four messages: two user sends, two placeholders; only the second
	// placeholder got the fresh tokens
	msgs := f.store.Messages(10)
	require.Len(t, msgs, 4)
	assert.Equal(t, "fresh", msgs[3].Content)
	assert.Empty(t, msgs[1].Content)
}

func TestAbandonStopsLocalConsumption(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.ctrl.Send(10, "hi", SendOptions{}))
	f.token(10, "before")

	f.ctrl.Abandon(10)
	f.token(10, " after")
	f.complete(10, "m")

	assert.False(t, f.ctrl.Active(10))
	placeholder := f.assistant(t, 10)
	assert.Empty(t, placeholder.Content)
	assert.True(t, placeholder.Streaming)
}
