package rooms

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/docchat/realtime/internal/events"
	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/wire"
)

// Commander is the slice of the connection manager the subscriber
// drives.
type Commander interface {
	Send(event string, payload interface{}) error
	IsConnected() bool
}

// Subscriber tracks the currently joined project room.
type Subscriber struct {
	cmd Commander
	log *logging.Logger

	mu      sync.Mutex
	current *int64 // ack-confirmed membership
	last    *int64 // last requested join, rejoined after reconnect
	waiters []chan int64

	joined *events.Subscription
	left   *events.Subscription
}

// New creates a subscriber listening for membership acks on the bus.
func New(cmd Commander, bus *events.Bus, log *logging.Logger) *Subscriber {
	s := &Subscriber{
		cmd: cmd,
		log: log.Named("rooms"),
	}
	s.joined = bus.Subscribe(events.KindRoomJoined, s.onJoined)
	s.left = bus.Subscribe(events.KindRoomLeft, s.onLeft)
	return s
}

// Close cancels the bus subscriptions.
func (s *Subscriber) Close() {
	s.joined.Cancel()
	s.left.Cancel()
}

// Join requests membership in a project room. A no-op when not
// connected. Callers must not assume membership until the ack fires.
func (s *Subscriber) Join(projectID int64) {
	if !s.cmd.IsConnected() {
		s.log.Warn("Join ignored, not connected", zap.Int64("project_id", projectID))
		return
	}

	s.mu.Lock()
	s.last = &projectID
	s.mu.Unlock()

	if err := s.cmd.Send(wire.EventJoinProject, wire.JoinProject{ProjectID: projectID}); err != nil {
		s.log.Error("Join failed", zap.Int64("project_id", projectID), zap.Error(err))
		return
	}
	s.log.Info("Join requested", zap.Int64("project_id", projectID))
}

// Leave requests leaving a project room. A no-op when not connected.
func (s *Subscriber) Leave(projectID int64) {
	if !s.cmd.IsConnected() {
		s.log.Warn("Leave ignored, not connected", zap.Int64("project_id", projectID))
		return
	}

	s.mu.Lock()
	if s.last != nil && *s.last == projectID {
		s.last = nil
	}
	s.mu.Unlock()

	if err := s.cmd.Send(wire.EventLeaveProject, wire.LeaveProject{ProjectID: projectID}); err != nil {
		s.log.Error("Leave failed", zap.Int64("project_id", projectID), zap.Error(err))
		return
	}
	s.log.Info("Leave requested", zap.Int64("project_id", projectID))
}

// Switch leaves the current room, if any, and joins the new one as one
// coordinated operation.
func (s *Subscriber) Switch(projectID int64) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil && *current != projectID {
		s.Leave(*current)
	}
	s.Join(projectID)
}

// LeaveCurrent leaves the confirmed room, if any. Wired as the
// connection manager's pre-disconnect hook.
func (s *Subscriber) LeaveCurrent() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil {
		s.Leave(*current)
	}
}

// Current returns the ack-confirmed room membership.
func (s *Subscriber) Current() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return 0, false
	}
	return *s.current, true
}

// Rejoin re-issues the last requested join and blocks until the
// membership ack arrives or ctx expires. Nil when no room was tracked.
func (s *Subscriber) Rejoin(ctx context.Context) error {
	s.mu.Lock()
	last := s.last
	if last == nil {
		last = s.current
	}
	if last == nil {
		s.mu.Unlock()
		return nil
	}
	projectID := *last
	s.current = nil

	ack := make(chan int64, 1)
	s.waiters = append(s.waiters, ack)
	s.mu.Unlock()

	if err := s.cmd.Send(wire.EventJoinProject, wire.JoinProject{ProjectID: projectID}); err != nil {
		return fmt.Errorf("rejoin project %d: %w", projectID, err)
	}
	s.log.Info("Rejoining project after reconnect", zap.Int64("project_id", projectID))

	for {
		select {
		case got := <-ack:
			// Stale acks for a different room can arrive first
			if got == projectID {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("rejoin project %d: %w", projectID, ctx.Err())
		}
	}
}

func (s *Subscriber) onJoined(evt events.Event) {
	ack, ok := evt.Payload.(wire.RoomAck)
	if !ok {
		return
	}

	s.mu.Lock()
	pid := ack.ProjectID
	s.current = &pid
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	s.log.Info("Joined project", zap.Int64("project_id", ack.ProjectID))
	for _, w := range waiters {
		w <- ack.ProjectID
	}
}

func (s *Subscriber) onLeft(evt events.Event) {
	ack, ok := evt.Payload.(wire.RoomAck)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.current != nil && *s.current == ack.ProjectID {
		s.current = nil
	}
	s.mu.Unlock()

	s.log.Info("Left project", zap.Int64("project_id", ack.ProjectID))
}
