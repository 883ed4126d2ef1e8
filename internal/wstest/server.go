package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/docchat/realtime/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Script is the canned response to one send_message command.
type Script struct {
	Sources []wire.RawSource
	Tokens  []string
	Model   string
	// Error, when set, is sent instead of tokens and completion.
	Error string
}

// Server is a scripted protocol backend.
type Server struct {
	httpSrv *httptest.Server

	mu      sync.Mutex
	scripts map[int64]Script
	conns   []*websocket.Conn
	joins   []int64
	sends   []wire.SendMessage
}

// NewServer starts a backend on an ephemeral port.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{scripts: make(map[int64]Script)}

	router := gin.New()
	router.GET("/ws", s.handleConnection)
	s.httpSrv = httptest.NewServer(router)
	return s
}

// URL returns the websocket endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/ws"
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.DropConnections()
	s.httpSrv.Close()
}

// ScriptResponse sets the canned stream for a chat id.
func (s *Server) ScriptResponse(chatID int64, script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[chatID] = script
}

// Joins returns the project ids of received join commands, in order.
func (s *Server) Joins() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.joins))
	copy(out, s.joins)
	return out
}

// Sends returns the received send_message commands, in order.
func (s *Server) Sends() []wire.SendMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.SendMessage, len(s.sends))
	copy(out, s.sends)
	return out
}

// DropConnections closes every open connection without a close
// handshake, simulating a network drop.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) handleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	s.send(conn, wire.EventConnectionStatus, wire.ConnectionStatus{Status: "connected"})

	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case wire.EventJoinProject:
			var p wire.JoinProject
			if env.Decode(&p) != nil {
				continue
			}
			s.mu.Lock()
			s.joins = append(s.joins, p.ProjectID)
			s.mu.Unlock()
			s.send(conn, wire.EventProjectJoined, wire.RoomAck{ProjectID: p.ProjectID, Status: "success"})

		case wire.EventLeaveProject:
			var p wire.LeaveProject
			if env.Decode(&p) != nil {
				continue
			}
			s.send(conn, wire.EventProjectLeft, wire.RoomAck{ProjectID: p.ProjectID, Status: "success"})

		case wire.EventSendMessage:
			var p wire.SendMessage
			if env.Decode(&p) != nil {
				continue
			}
			s.mu.Lock()
			s.sends = append(s.sends, p)
			script := s.scripts[p.ChatID]
			s.mu.Unlock()
			s.stream(conn, p.ChatID, script)

		case wire.EventPing:
			s.send(conn, wire.EventPong, wire.Pong{Timestamp: float64(time.Now().UnixNano()) / 1e9})
		}
	}
}

func (s *Server) stream(conn *websocket.Conn, chatID int64, script Script) {
	s.send(conn, wire.EventMessageReceived, wire.MessageReceived{ChatID: chatID, Status: "processing"})

	if script.Error != "" {
		s.send(conn, wire.EventError, wire.ErrorEvent{Message: script.Error, ChatID: &chatID})
		return
	}

	if len(script.Sources) > 0 {
		s.send(conn, wire.EventMessageSources, wire.MessageSources{ChatID: chatID, Sources: script.Sources})
	}
	for _, token := range script.Tokens {
		s.send(conn, wire.EventMessageToken, wire.MessageToken{ChatID: chatID, Token: token})
	}

	model := script.Model
	if model == "" {
		model = "llama3.2"
	}
	s.send(conn, wire.EventMessageComplete, wire.MessageComplete{
		ChatID:   chatID,
		Metadata: wire.CompletionMetadata{Model: model, SourcesCount: len(script.Sources)},
	})
}

func (s *Server) send(conn *websocket.Conn, event string, payload interface{}) {
	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = conn.WriteJSON(env)
}
