// Package id provides centralized ID generation for the realtime client.
//
// Optimistic messages need identifiers before the server has assigned
// one. Server ids are numeric, so locally generated ids live in a
// distinct prefixed ULID namespace (pend_*) and can never be mistaken
// for confirmed ids. Request ids (req_*) correlate outbound commands
// with log lines.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PendingID identifies a locally created, not yet confirmed message.
type PendingID string

// RequestID identifies an outbound command for log correlation.
type RequestID string

// Prefixes for each ID namespace.
const (
	PendingPrefix = "pend"
	RequestPrefix = "req"
)

// Generator generates ULIDs with namespace prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewPendingID generates an optimistic message ID.
func NewPendingID() PendingID {
	return PendingID(Default().GenerateWithPrefix(PendingPrefix))
}

// NewRequestID generates a command correlation ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id PendingID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsPending reports whether an ID string belongs to the pending
// namespace. Confirmed server ids are numeric and never match.
func IsPending(id string) bool {
	return strings.HasPrefix(id, PendingPrefix+"_")
}

// IsValid checks if the ULID part of a prefixed ID parses.
func IsValid(id string) bool {
	parts := strings.SplitN(id, "_", 2)
	if len(parts) != 2 {
		return false
	}
	_, err := ulid.Parse(parts[1])
	return err == nil
}
