// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package chat

import (
	"context"
	"time"
)

// KindAction marks a chat message as an action ("/me waves").
const KindAction = "me"

// Event is one of *Chat, *UserJoined or *UserLeft.
type Event interface {
	isEvent()
}

// Chat is a text message seen on a network.
type Chat struct {
	Kind     string
	SourceID string
	Username string
	Text     string
	// Timestamp is when the message was sent, not when it was relayed.
	Timestamp time.Time
}

// UserJoined is emitted when a user enters the group or channel.
type UserJoined struct {
	ID       string
	Username string
}

// UserLeft is emitted when a user leaves the group or channel.
type UserLeft struct {
	ID       string
	Username string
}

func (*Chat) isEvent()       {}
func (*UserJoined) isEvent() {}
func (*UserLeft) isEvent()   {}

// OutboundMessage is the payload a client transmits on behalf of the bridge.
type OutboundMessage struct {
	Text string
	Kind string
}

// Handler receives events from a client. Callbacks run on the client's
// receive goroutine and must not block on network I/O.
type Handler interface {
	OnChat(ctx context.Context, evt *Chat)
	OnUserJoined(ctx context.Context, evt *UserJoined)
	OnUserLeft(ctx context.Context, evt *UserLeft)
}

// NoopHandler ignores every event. Embed it to implement only some callbacks.
type NoopHandler struct{}

var _ Handler = NoopHandler{}

func (NoopHandler) OnChat(context.Context, *Chat)             {}
func (NoopHandler) OnUserJoined(context.Context, *UserJoined) {}
func (NoopHandler) OnUserLeft(context.Context, *UserLeft)     {}

// Dispatch calls the handler callback matching the event type.
func Dispatch(ctx context.Context, h Handler, evt Event) {
	if h == nil {
		return
	}
	switch e := evt.(type) {
	case *Chat:
		h.OnChat(ctx, e)
	case *UserJoined:
		h.OnUserJoined(ctx, e)
	case *UserLeft:
		h.OnUserLeft(ctx, e)
	}
}
