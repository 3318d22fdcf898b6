// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package irc

import (
	"fmt"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/aiku/galene-ircbridge/pkg/chat"
)

// Message is one IRC protocol line:
//
//	[@tags ][:prefix ]COMMAND[ params]
//
// The embedded ircmsg.Message carries the source (prefix), the upper-cased
// command, the split parameters and the unescaped tags.
type Message struct {
	ircmsg.Message
}

// Parse decodes a single line (without or with its CRLF terminator). Lines
// that do not follow the grammar, including commands that are neither
// alphabetic nor a three digit numeric, yield chat.ErrMalformedLine.
func Parse(line string) (*Message, error) {
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %q", chat.ErrMalformedLine, err, line)
	}
	if !isCommand(msg.Command) {
		return nil, fmt.Errorf("%w: bad command %q in %q", chat.ErrMalformedLine, msg.Command, line)
	}
	return &Message{Message: msg}, nil
}

// isCommand accepts an alphabetic verb or a three digit numeric reply.
func isCommand(s string) bool {
	if s == "" {
		return false
	}
	if len(s) == 3 && isDigit(s[0]) && isDigit(s[1]) && isDigit(s[2]) {
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// NewMessage builds an outgoing message. A non-empty trailing parameter is
// always sent after a ':' so it may contain spaces.
func NewMessage(command string, middle []string, trailing string) *Message {
	params := append([]string(nil), middle...)
	if trailing != "" {
		params = append(params, trailing)
	}
	msg := &Message{Message: ircmsg.MakeMessage(nil, "", command, params...)}
	if trailing != "" {
		msg.ForceTrailing()
	}
	return msg
}

// Bytes serializes the message with its CRLF terminator. Parameters holding
// CR, LF or NUL are rejected.
func (m *Message) Bytes() ([]byte, error) {
	return m.LineBytes()
}

// String serializes the message without the CRLF terminator, or returns ""
// for a message that cannot be sent.
func (m *Message) String() string {
	line, err := m.Line()
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(line, "\r\n")
}

// Prefix returns the message source, e.g. "nick!user@host".
func (m *Message) Prefix() string {
	return m.Source
}

// Nick returns the nickname part of the prefix (before '!').
func (m *Message) Nick() string {
	nick, _, _ := strings.Cut(m.Source, "!")
	return nick
}

// Param returns the i-th parameter or "".
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the final parameter, which carries the free text of
// PRIVMSG, PING, ERROR and NAMES replies.
func (m *Message) Trailing() string {
	return m.Param(len(m.Params) - 1)
}

// Tag returns the unescaped value of an IRCv3 message tag.
func (m *Message) Tag(key string) (string, bool) {
	ok, value := m.GetTag(key)
	return value, ok
}

// Time returns the server-time tag of the message, or the zero time.
func (m *Message) Time() time.Time {
	v, ok := m.Tag("time")
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts
}
