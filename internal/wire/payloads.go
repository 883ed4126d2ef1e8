package wire

import "encoding/json"

// JoinProject requests membership in a project room.
type JoinProject struct {
	ProjectID int64 `json:"project_id"`
}

// LeaveProject requests leaving a project room.
type LeaveProject struct {
	ProjectID int64 `json:"project_id"`
}

// SendMessage starts a streamed assistant response for one chat.
// Optional generation settings are omitted when nil and the backend
// falls back to its configured defaults.
type SendMessage struct {
	ChatID         int64    `json:"chat_id"`
	Message        string   `json:"message"`
	Model          string   `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	IncludeHistory *bool    `json:"include_history,omitempty"`
	TopK           *int     `json:"top_k,omitempty"`
	MaxTokens      *int     `json:"max_tokens,omitempty"`
	HistoryLength  *int     `json:"history_length,omitempty"`
}

// Ping is an empty keep-alive probe.
type Ping struct{}

// ConnectionStatus reports the server-side view after the handshake.
type ConnectionStatus struct {
	Status string `json:"status"`
}

// RoomAck acknowledges a join_project or leave_project command and is
// the source of truth for current room membership.
type RoomAck struct {
	ProjectID int64  `json:"project_id"`
	Status    string `json:"status"`
}

// MessageReceived acknowledges a send_message command before any
// tokens arrive.
type MessageReceived struct {
	ChatID int64  `json:"chat_id"`
	Status string `json:"status"`
}

// MessageToken carries one incremental fragment of generated text.
type MessageToken struct {
	ChatID int64  `json:"chat_id"`
	Token  string `json:"token"`
}

// MessageSources carries the retrieved documents backing the response.
// Each arrival replaces any previously received list.
type MessageSources struct {
	ChatID  int64       `json:"chat_id"`
	Sources []RawSource `json:"sources"`
}

// CompletionMetadata is the server-reported generation summary.
type CompletionMetadata struct {
	Model        string `json:"model"`
	SourcesCount int    `json:"sources_count"`
}

// MessageComplete signals the end of a streamed response.
type MessageComplete struct {
	ChatID   int64              `json:"chat_id"`
	Metadata CompletionMetadata `json:"metadata"`
}

// DocumentStatus reports document processing progress to the project
// room. Consumed by document-processing listeners outside this core.
type DocumentStatus struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	Progress   *int   `json:"progress,omitempty"`
}

// ProjectUpdate is a project-level broadcast used for cache
// invalidation by listeners outside this core.
type ProjectUpdate struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorEvent reports a failure. A nil ChatID means the error is
// connection scoped; otherwise it aborts only the matching session.
type ErrorEvent struct {
	Message string `json:"message"`
	ChatID  *int64 `json:"chat_id,omitempty"`
}

// Pong is the reply to a ping, carrying the server clock for latency
// measurement.
type Pong struct {
	Timestamp float64 `json:"timestamp"`
}
