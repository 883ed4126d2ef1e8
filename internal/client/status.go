package client

import "errors"

var (
	// ErrConnectInFlight is returned when Connect is called while a
	// previous attempt is still running.
	ErrConnectInFlight = errors.New("connect already in flight")

	// ErrNotConnected is returned by Send when no transport is open.
	ErrNotConnected = errors.New("not connected")

	// ErrAttemptsExhausted is returned once the dial attempt cap is hit.
	ErrAttemptsExhausted = errors.New("connect attempts exhausted")
)

// Status is the connection state. Exactly one value holds at any time;
// transitions are published on the bus and are the only way consumers
// observe connectivity.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
