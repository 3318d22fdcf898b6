// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package galene

import (
	"encoding/json"
	"strconv"
	"time"
)

// Frame types exchanged with the server.
const (
	TypeHandshake   = "handshake"
	TypeJoin        = "join"
	TypeJoined      = "joined"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeUser        = "user"
	TypeChat        = "chat"
	TypeUserMessage = "usermessage"
)

// Frame kinds.
const (
	KindJoin   = "join"
	KindAdd    = "add"
	KindDelete = "delete"
	KindError  = "error"
)

const anonymousUsername = "(anon)"

// mediaTypes are negotiation frames the bridge never acts on.
var mediaTypes = map[string]struct{}{
	"abort":       {},
	"answer":      {},
	"ice":         {},
	"renegotiate": {},
}

// message is an incoming frame. Only the fields the client reads are decoded.
type message struct {
	Type     string          `json:"type"`
	Kind     string          `json:"kind,omitempty"`
	ID       string          `json:"id,omitempty"`
	Source   string          `json:"source,omitempty"`
	Dest     string          `json:"dest,omitempty"`
	Username *string         `json:"username,omitempty"`
	Group    string          `json:"group,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Time     json.RawMessage `json:"time,omitempty"`
}

// username returns the sender name or the anonymous placeholder.
func (m *message) username() string {
	if m.Username == nil {
		return anonymousUsername
	}
	return *m.Username
}

// valueString returns the value as text. String values are unquoted; any
// other JSON is returned verbatim.
func (m *message) valueString() string {
	if len(m.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return s
	}
	return string(m.Value)
}

// timestamp converts the time field to a time.Time. Servers have sent both
// epoch milliseconds and RFC 3339 strings; anything missing or unreadable
// yields fallback.
func (m *message) timestamp(fallback time.Time) time.Time {
	if len(m.Time) == 0 || string(m.Time) == "null" {
		return fallback
	}
	if ms, err := strconv.ParseInt(string(m.Time), 10, 64); err == nil {
		if ms <= 0 {
			return fallback
		}
		return time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseFloat(string(m.Time), 64); err == nil {
		if ms <= 0 {
			return fallback
		}
		return time.UnixMilli(int64(ms))
	}
	var s string
	if err := json.Unmarshal(m.Time, &s); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
	}
	return fallback
}

type handshakeFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type joinFrame struct {
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Group    string `json:"group"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type chatFrame struct {
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Source   string `json:"source"`
	Username string `json:"username"`
	Dest     string `json:"dest"`
	Value    string `json:"value"`
}

type pongFrame struct {
	Type string `json:"type"`
}
