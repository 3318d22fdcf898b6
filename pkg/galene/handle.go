// Copyright 2024-2026 Aiku AI

package galene

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aiku/galene-ircbridge/pkg/chat"
)

// handleFrame decodes and dispatches one frame. Undecodable frames are
// logged and skipped; a non-nil return ends the receive loop.
func (c *Client) handleFrame(ctx context.Context, data []byte) error {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn().
			Err(fmt.Errorf("%w: %w", chat.ErrMalformedFrame, err)).
			Msg("Skipping undecodable frame")
		return nil
	}

	// Keepalive comes first so a slow handler can never delay it.
	if msg.Type == TypePing {
		return c.send(pongFrame{Type: TypePong})
	}
	if _, ok := mediaTypes[msg.Type]; ok {
		return nil
	}

	switch msg.Type {
	case TypeJoined:
		return c.handleJoined(&msg)
	case TypeUserMessage:
		return c.handleUserMessage(&msg)
	}

	if c.State() != chat.StateJoined {
		c.log.Debug().Str("type", msg.Type).Msg("Skipping frame received before join")
		return nil
	}
	switch msg.Type {
	case TypeUser:
		c.handleUser(ctx, &msg)
	case TypeChat:
		c.handleChat(ctx, &msg)
	default:
		c.log.Warn().Str("type", msg.Type).Str("kind", msg.Kind).Msg("Not implemented")
	}
	return nil
}

func (c *Client) handleJoined(msg *message) error {
	if msg.Kind != KindJoin {
		return fmt.Errorf("%w: group %q answered %q", chat.ErrJoinRejected, c.cfg.Group, msg.Kind)
	}
	if c.joined.IsSet() {
		c.log.Debug().Msg("Ignoring repeated join confirmation")
		return nil
	}
	c.state.Store(chat.StateJoined)
	c.joined.Set()
	c.log.Info().Msg("Joined group")
	return nil
}

func (c *Client) handleUserMessage(msg *message) error {
	value := msg.valueString()
	if msg.Kind == KindError {
		return fmt.Errorf("%w: %s", chat.ErrServer, value)
	}
	c.log.Warn().Str("kind", msg.Kind).Str("value", value).Msg("Not implemented user message")
	return nil
}

func (c *Client) handleUser(ctx context.Context, msg *message) {
	if msg.ID == c.cfg.ClientID {
		return
	}
	switch msg.Kind {
	case KindAdd:
		name := msg.username()
		c.users.Add(msg.ID, name)
		chat.Dispatch(ctx, c.handler, &chat.UserJoined{ID: msg.ID, Username: name})
	case KindDelete:
		registered, ok := c.users.Remove(msg.ID)
		if !ok {
			c.log.Warn().Str("user_id", msg.ID).Msg("Delete for unknown user")
		}
		name := registered
		if msg.Username != nil {
			name = *msg.Username
		} else if !ok {
			name = anonymousUsername
		}
		chat.Dispatch(ctx, c.handler, &chat.UserLeft{ID: msg.ID, Username: name})
	default:
		c.log.Warn().Str("kind", msg.Kind).Str("user_id", msg.ID).Msg("Not implemented user kind")
	}
}

func (c *Client) handleChat(ctx context.Context, msg *message) {
	if msg.Source != "" && msg.Source == c.cfg.ClientID {
		return
	}
	chat.Dispatch(ctx, c.handler, &chat.Chat{
		Kind:      msg.Kind,
		SourceID:  msg.Source,
		Username:  msg.username(),
		Text:      msg.valueString(),
		Timestamp: msg.timestamp(time.Now()),
	})
}
