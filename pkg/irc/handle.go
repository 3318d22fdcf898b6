// Copyright 2024-2026 Aiku AI

package irc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aiku/galene-ircbridge/pkg/chat"
	"github.com/aiku/galene-ircbridge/pkg/irc/ircfmt"
)

const (
	rplWelcome       = "001"
	rplNamReply      = "353"
	errNicknameInUse = "433"
)

// channelModePrefixes are the membership prefixes a NAMES reply may put in
// front of a nickname.
const channelModePrefixes = "@+%&~"

// handleLine decodes one raw line and dispatches it. Malformed lines are
// logged and skipped; a non-nil return ends the receive loop.
func (c *Client) handleLine(ctx context.Context, line string) error {
	line = strings.ToValidUTF8(strings.TrimRight(line, "\r\n"), "")
	if line == "" {
		return nil
	}
	c.log.Trace().Str("line", line).Msg("Received line")
	msg, err := Parse(line)
	if err != nil {
		c.log.Warn().Err(err).Msg("Skipping malformed line")
		return nil
	}
	return c.handleMessage(ctx, msg)
}

func (c *Client) handleMessage(ctx context.Context, msg *Message) error {
	switch msg.Command {
	case "PING":
		return c.send(NewMessage("PONG", nil, msg.Trailing()))
	case "PRIVMSG":
		c.handlePrivmsg(ctx, msg)
	case "JOIN":
		c.handleMembership(ctx, msg, true)
	case "PART", "QUIT":
		c.handleMembership(ctx, msg, false)
	case rplWelcome:
		return c.handleWelcome(msg)
	case errNicknameInUse:
		nick := c.Nickname() + "_"
		c.log.Info().Str("nickname", nick).Msg("Nickname in use, retrying")
		c.setNickname(nick)
		return c.send(NewMessage("NICK", []string{nick}, ""))
	case rplNamReply:
		c.handleNames(ctx, msg)
	case "ERROR":
		return fmt.Errorf("%w: %s", chat.ErrServer, msg.Trailing())
	default:
		c.log.Debug().Str("command", msg.Command).Msg("Unknown command")
	}
	return nil
}

func (c *Client) handleWelcome(msg *Message) error {
	// The first parameter of 001 is the nickname the server assigned.
	if len(msg.Params) > 1 && msg.Params[0] != "" {
		c.setNickname(msg.Params[0])
	}
	c.state.Store(chat.StateJoining)
	if err := c.send(NewMessage("JOIN", []string{c.cfg.Channel}, "")); err != nil {
		return err
	}
	c.state.Store(chat.StateJoined)
	c.joined.Set()
	c.log.Info().
		Str("channel", c.cfg.Channel).
		Str("nickname", c.Nickname()).
		Msg("Registered with IRC server")
	return nil
}

func (c *Client) handlePrivmsg(ctx context.Context, msg *Message) {
	nick := msg.Nick()
	if nick == "" || nick == c.Nickname() {
		return
	}
	if target := msg.Param(0); len(msg.Params) < 2 || !strings.EqualFold(target, c.cfg.Channel) {
		c.log.Debug().Str("nick", nick).Str("target", target).Msg("Dropping message not sent to the channel")
		return
	}
	raw := msg.Trailing()
	evt := &chat.Chat{
		SourceID:  nick,
		Username:  nick,
		Timestamp: msg.Time(),
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if action, ok := ircfmt.ParseAction(raw); ok {
		evt.Kind = chat.KindAction
		evt.Text = nick + " " + ircfmt.Strip(action)
	} else if ircfmt.IsCTCP(raw) {
		c.log.Debug().Str("nick", nick).Msg("Ignoring CTCP request")
		return
	} else {
		evt.Text = "<" + nick + "> " + ircfmt.Strip(raw)
	}
	c.emit(ctx, evt)
}

func (c *Client) handleMembership(ctx context.Context, msg *Message, joined bool) {
	nick := msg.Nick()
	if nick == "" || nick == c.Nickname() {
		return
	}
	if joined {
		c.emit(ctx, &chat.UserJoined{ID: nick, Username: nick})
	} else {
		c.emit(ctx, &chat.UserLeft{ID: nick, Username: nick})
	}
}

func (c *Client) handleNames(ctx context.Context, msg *Message) {
	own := c.Nickname()
	for _, name := range strings.Fields(msg.Trailing()) {
		nick := strings.TrimLeft(name, channelModePrefixes)
		if nick == "" || nick == own {
			continue
		}
		c.emit(ctx, &chat.UserJoined{ID: nick, Username: nick})
	}
}

// emit hands an event to the handler. Nothing is emitted before the channel
// has been joined.
func (c *Client) emit(ctx context.Context, evt chat.Event) {
	if c.State() != chat.StateJoined {
		c.log.Debug().Type("event", evt).Msg("Dropping event received before join")
		return
	}
	chat.Dispatch(ctx, c.handler, evt)
}
