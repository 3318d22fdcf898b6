// Copyright 2024-2026 Aiku AI

package chat

import "sync/atomic"

// ConnectionState is the lifecycle state of one client connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateHandshaking
	StateJoining
	StateJoined
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets the state appear by name in JSON and log output.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AtomicState is a ConnectionState that one goroutine writes and any
// goroutine may read.
type AtomicState struct {
	v atomic.Int32
}

func (a *AtomicState) Load() ConnectionState {
	return ConnectionState(a.v.Load())
}

func (a *AtomicState) Store(s ConnectionState) {
	a.v.Store(int32(s))
}
