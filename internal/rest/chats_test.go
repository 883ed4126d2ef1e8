package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, logging.NewNop())
}

func TestCreateChat(t *testing.T) {
	var gotBody createChatRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chats", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Chat{ID: 42, ProjectID: 5, Title: "New Chat"})
	}))

	chat, err := client.CreateChat(context.Background(), 5, "New Chat")
	require.NoError(t, err)

	assert.Equal(t, int64(42), chat.ID)
	assert.Equal(t, int64(5), gotBody.ProjectID)
	assert.Equal(t, "New Chat", gotBody.Title)
}

func TestMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chats/10/messages", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 1, "chat_id": 10, "role": "user", "content": "hi", "created_at": "2025-05-01T10:00:00Z"},
			{"id": 2, "chat_id": 10, "role": "assistant", "content": "hello",
			 "model_name": "llama3.2",
			 "sources": [{"id": "c1", "content": "x", "metadata": {"document_id": 1, "chunk_index": 0}, "score": 0.8}],
			 "created_at": "2025-05-01T10:00:05Z"}
		]`))
	}))

	msgs, err := client.Messages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	converted := msgs[1].ToStoreMessage()
	assert.Equal(t, "2", converted.ID)
	assert.Equal(t, store.RoleAssistant, converted.Role)
	assert.Equal(t, "llama3.2", converted.Model)
	require.Len(t, converted.Sources, 1)
	assert.Equal(t, int64(1), converted.Sources[0].DocumentID)
}

func TestLoadHistoryReplacesStore(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "chat_id": 10, "role": "user", "content": "q", "created_at": "2025-05-01T10:00:00Z"}]`))
	}))

	st := store.New()
	st.Append(store.Message{ID: "stale", ChatID: 10, Role: store.RoleUser, Content: "old"})

	require.NoError(t, client.LoadHistory(context.Background(), st, 10))

	msgs := st.Messages(10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "q", msgs[0].Content)
}

func TestBackendErrorSurfaces(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Chat 99 not found"}`, http.StatusNotFound)
	}))

	_, err := client.Messages(context.Background(), 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		_, _ = client.Messages(context.Background(), 10)
	}

	assert.Equal(t, "open", client.BreakerState().String())
}
