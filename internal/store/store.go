package store

import (
	"errors"
	"sync"
	"time"

	"github.com/docchat/realtime/internal/wire"
)

var (
	ErrNotFound  = errors.New("message not found")
	ErrFinalized = errors.New("message is finalized")
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation entry. Pending ids live in the pend_*
// namespace; confirmed server ids are numeric strings.
type Message struct {
	ID        string                 `json:"id"`
	ChatID    int64                  `json:"chat_id"`
	Role      Role                   `json:"role"`
	Content   string                 `json:"content"`
	Sources   []wire.SourceReference `json:"sources,omitempty"`
	Model     string                 `json:"model,omitempty"`
	Streaming bool                   `json:"streaming,omitempty"`
	CreatedAt time.Time              `json:"created_at"`

	final bool
}

type chat struct {
	order []*Message
	byID  map[string]*Message
}

// Store is an in-memory conversation store.
type Store struct {
	mu    sync.RWMutex
	chats map[int64]*chat
}

// New creates an empty store.
func New() *Store {
	return &Store{chats: make(map[int64]*chat)}
}

// Append inserts a message at the end of its chat.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.chat(msg.ChatID)
	m := msg
	c.order = append(c.order, &m)
	c.byID[m.ID] = &m
}

// Get returns a copy of one message.
func (s *Store) Get(chatID int64, id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return Message{}, false
	}
	m, ok := c.byID[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Messages returns copies of a chat's messages in insertion order.
func (s *Store) Messages(chatID int64) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]Message, len(c.order))
	for i, m := range c.order {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages in a chat.
func (s *Store) Len(chatID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[chatID]
	if !ok {
		return 0
	}
	return len(c.order)
}

// Finalize writes the streamed content, sources, and model into a
// placeholder as one atomic update and freezes the message.
func (s *Store) Finalize(chatID int64, id, content string, sources []wire.SourceReference, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.lookup(chatID, id)
	if err != nil {
		return err
	}
	if m.final {
		return ErrFinalized
	}

	m.Content = content
	m.Sources = sources
	m.Model = model
	m.Streaming = false
	m.final = true
	return nil
}

// Fail rolls back a placeholder's streaming indicator without writing
// partial content. The message stays mutable so a retry can reuse it.
func (s *Store) Fail(chatID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.lookup(chatID, id)
	if err != nil {
		return err
	}
	if m.final {
		return ErrFinalized
	}

	m.Streaming = false
	return nil
}

// Remove deletes one message, used to drop an optimistic insert whose
// send never went out.
func (s *Store) Remove(chatID int64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[chatID]
	if !ok {
		return
	}
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	for i, m := range c.order {
		if m.ID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Replace swaps a chat's messages wholesale, used when loading history
// from the backend. Loaded messages are frozen.
func (s *Store) Replace(chatID int64, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &chat{byID: make(map[string]*Message, len(msgs))}
	for i := range msgs {
		m := msgs[i]
		m.final = true
		c.order = append(c.order, &m)
		c.byID[m.ID] = &m
	}
	s.chats[chatID] = c
}

// Clear drops all state for one chat.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
}

func (s *Store) chat(chatID int64) *chat {
	c, ok := s.chats[chatID]
	if !ok {
		c = &chat{byID: make(map[string]*Message)}
		s.chats[chatID] = c
	}
	return c
}

func (s *Store) lookup(chatID int64, id string) (*Message, error) {
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	m, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}
