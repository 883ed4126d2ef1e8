package wire

import "encoding/json"

// Client → server event names.
const (
	EventJoinProject  = "join_project"
	EventLeaveProject = "leave_project"
	EventSendMessage  = "send_message"
	EventPing         = "ping"
)

// Server → client event names.
const (
	EventConnectionStatus = "connection_status"
	EventProjectJoined    = "project_joined"
	EventProjectLeft      = "project_left"
	EventMessageReceived  = "message_received"
	EventMessageToken     = "message_token"
	EventMessageSources   = "message_sources"
	EventMessageComplete  = "message_complete"
	EventDocumentStatus   = "document_status"
	EventProjectUpdate    = "project_update"
	EventError            = "error"
	EventPong             = "pong"
)

// Envelope is the frame every protocol event travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload in an envelope, marshaling the payload.
func NewEnvelope(event string, payload interface{}) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the envelope payload into out.
func (e *Envelope) Decode(out interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}
