package rest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/store"
	"github.com/docchat/realtime/internal/wire"
)

// Chat is one chat session as the backend reports it.
type Chat struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// MessageRecord is one persisted message from the history endpoint.
// Sources come back in the raw retrieval shape.
type MessageRecord struct {
	ID        int64            `json:"id"`
	ChatID    int64            `json:"chat_id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Sources   []wire.RawSource `json:"sources,omitempty"`
	ModelName string           `json:"model_name,omitempty"`
	CreatedAt string           `json:"created_at"`
}

// ToStoreMessage converts a persisted record into the conversation
// store shape, normalizing sources and the server-assigned numeric id.
func (m MessageRecord) ToStoreMessage() store.Message {
	createdAt, _ := time.Parse(time.RFC3339, m.CreatedAt)
	return store.Message{
		ID:        strconv.FormatInt(m.ID, 10),
		ChatID:    m.ChatID,
		Role:      store.Role(m.Role),
		Content:   m.Content,
		Sources:   wire.NormalizeSources(m.Sources),
		Model:     m.ModelName,
		CreatedAt: createdAt,
	}
}

type createChatRequest struct {
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
}

// CreateChat creates a chat in a project, used before the first send
// when no chat exists yet.
func (c *Client) CreateChat(ctx context.Context, projectID int64, title string) (*Chat, error) {
	var chat Chat
	_, err := c.execute(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(createChatRequest{ProjectID: projectID, Title: title}).
			SetResult(&chat).
			Post("/api/chats")
	})
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	c.log.Info("Chat created",
		zap.Int64("chat_id", chat.ID),
		zap.Int64("project_id", projectID),
	)
	return &chat, nil
}

// ListChats returns a project's chats.
func (c *Client) ListChats(ctx context.Context, projectID int64) ([]Chat, error) {
	var chats []Chat
	_, err := c.execute(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetResult(&chats).
			Get(fmt.Sprintf("/api/projects/%d/chats", projectID))
	})
	if err != nil {
		return nil, fmt.Errorf("list chats for project %d: %w", projectID, err)
	}
	return chats, nil
}

// Messages fetches a chat's history.
func (c *Client) Messages(ctx context.Context, chatID int64) ([]MessageRecord, error) {
	var msgs []MessageRecord
	_, err := c.execute(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetResult(&msgs).
			Get(fmt.Sprintf("/api/chats/%d/messages", chatID))
	})
	if err != nil {
		return nil, fmt.Errorf("fetch messages for chat %d: %w", chatID, err)
	}
	return msgs, nil
}

// LoadHistory fetches a chat's history and replaces the chat's
// messages in the store.
func (c *Client) LoadHistory(ctx context.Context, st *store.Store, chatID int64) error {
	records, err := c.Messages(ctx, chatID)
	if err != nil {
		return err
	}

	msgs := make([]store.Message, len(records))
	for i, rec := range records {
		msgs[i] = rec.ToStoreMessage()
	}
	st.Replace(chatID, msgs)

	c.log.Debug("History loaded",
		zap.Int64("chat_id", chatID),
		zap.Int("messages", len(msgs)),
	)
	return nil
}

// DeleteChat removes a chat and its history.
func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	_, err := c.execute(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(fmt.Sprintf("/api/chats/%d", chatID))
	})
	if err != nil {
		return fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	return nil
}
