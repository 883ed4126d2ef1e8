package stream

import (
	"strings"

	"github.com/docchat/realtime/internal/wire"
)

// session is the client-side state of one in-flight assistant
// response. Owned by the controller; all access goes through the
// controller's lock.
type session struct {
	chatID        int64
	userID        string
	placeholderID string
	buf           strings.Builder
	sources       []wire.SourceReference
	opts          SendOptions
}

func (s *session) append(token string) {
	s.buf.WriteString(token)
}

func (s *session) replaceSources(raw []wire.RawSource) {
	s.sources = wire.NormalizeSources(raw)
}

func (s *session) content() string {
	return s.buf.String()
}
