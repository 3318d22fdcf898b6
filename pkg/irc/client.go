// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package irc implements the IRC side of the bridge: a line codec and a
// single-channel client that relays through one shared nickname.
package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"

	"github.com/aiku/galene-ircbridge/pkg/chat"
)

const (
	DefaultPort    = 6667
	DefaultTLSPort = 6697

	dialTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
	readBufSize  = 4096
	// maxTextBytes leaves room for the command, channel and the prefix the
	// server adds when relaying to other clients.
	maxTextBytes = 400
)

// Config holds the IRC connection settings.
type Config struct {
	Server   string
	Port     int
	TLS      bool
	Nickname string
	Channel  string

	// Dial overrides how the transport is opened, mainly for tests.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Addr returns host:port, picking the default port for the TLS setting when
// none is configured.
func (c *Config) Addr() string {
	port := c.Port
	if port == 0 {
		if c.TLS {
			port = DefaultTLSPort
		} else {
			port = DefaultPort
		}
	}
	return net.JoinHostPort(c.Server, strconv.Itoa(port))
}

// Client is a single IRC connection that joins one channel.
type Client struct {
	cfg     Config
	handler chat.Handler
	log     zerolog.Logger

	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	nickMu   sync.RWMutex
	nickname string

	state    chat.AtomicState
	joined   *exsync.Event
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewClient creates a client. The handler receives events once the channel
// has been joined; pass nil to ignore them.
func NewClient(cfg Config, handler chat.Handler, log zerolog.Logger) (*Client, error) {
	if cfg.Nickname == "" {
		return nil, errors.New("irc: nickname must not be empty")
	}
	if cfg.Server == "" && cfg.Dial == nil {
		return nil, errors.New("irc: server must not be empty")
	}
	if handler == nil {
		handler = chat.NoopHandler{}
	}
	return &Client{
		cfg:      cfg,
		handler:  handler,
		log:      log.With().Str("component", "irc_client").Logger(),
		nickname: cfg.Nickname,
		joined:   exsync.NewEvent(),
		stopChan: make(chan struct{}),
	}, nil
}

// Connect opens the transport and registers with NICK and USER.
func (c *Client) Connect(ctx context.Context) error {
	c.state.Store(chat.StateConnecting)
	addr := c.cfg.Addr()
	c.log.Info().Str("addr", addr).Bool("tls", c.cfg.TLS).Msg("Connecting to IRC")

	conn, err := c.dial(ctx, addr)
	if err != nil {
		c.state.Store(chat.StateFailed)
		return fmt.Errorf("%w: %s: %w", chat.ErrConnect, addr, err)
	}
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, readBufSize)

	c.state.Store(chat.StateHandshaking)
	nick := c.Nickname()
	err = c.send(NewMessage("NICK", []string{nick}, ""))
	if err == nil {
		err = c.send(NewMessage("USER", []string{nick, "0", "*"}, nick))
	}
	if err != nil {
		c.state.Store(chat.StateFailed)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.cfg.Dial != nil {
		return c.cfg.Dial(ctx, "tcp", addr)
	}
	if c.cfg.TLS {
		d := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: dialTimeout},
			Config:    &tls.Config{ServerName: c.cfg.Server},
		}
		return d.DialContext(ctx, "tcp", addr)
	}
	d := &net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Run is the receive loop. It reads lines until the connection fails, the
// server reports a fatal error or ctx is cancelled. Connect must be called
// first.
func (c *Client) Run(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", chat.ErrTransport)
	}
	defer c.stop()
	stopClose := context.AfterFunc(ctx, func() {
		_ = c.conn.Close()
	})
	defer stopClose()

	for {
		// ReadString keeps buffering until a full line has arrived, so lines
		// split across TCP reads are reassembled here.
		line, readErr := c.reader.ReadString('\n')
		if line != "" {
			if err := c.handleLine(ctx, line); err != nil {
				c.state.Store(chat.StateFailed)
				c.log.Error().Err(err).Msg("IRC connection terminated")
				return err
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				c.state.Store(chat.StateDisconnected)
				return ctx.Err()
			}
			c.state.Store(chat.StateDisconnected)
			c.log.Warn().Err(readErr).Msg("IRC connection closed")
			return fmt.Errorf("%w: read: %w", chat.ErrTransport, readErr)
		}
	}
}

// Transmit waits until the channel is joined and then sends every message
// from the mailbox to the channel, one PRIVMSG per line. It returns when ctx
// is cancelled or the receive loop has stopped.
func (c *Client) Transmit(ctx context.Context, mailbox *chat.Mailbox[chat.OutboundMessage]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.joined.Wait(ctx); err != nil {
		return nil
	}
	c.log.Debug().Msg("Transmit loop started")
	for {
		msg, err := mailbox.Get(ctx)
		if err != nil {
			return nil
		}
		if err := c.SendText(msg.Text); err != nil {
			if errors.Is(err, chat.ErrTransport) {
				c.log.Error().Err(err).Msg("Failed to send message to IRC")
				return err
			}
			c.log.Warn().Err(err).Msg("Dropping message that cannot be encoded")
		}
	}
}

// lineBreaks turns every CR, LF or CRLF into a single LF and drops NUL, none
// of which may appear inside an IRC line.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "")

// SendText sends text to the channel, one PRIVMSG per non-empty line.
func (c *Client) SendText(text string) error {
	for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
		for _, part := range splitLine(line, maxTextBytes) {
			if err := c.send(NewMessage("PRIVMSG", []string{c.cfg.Channel}, part)); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitLine cuts line into chunks of at most max bytes without splitting a
// UTF-8 sequence. An empty line yields no chunks.
func splitLine(line string, max int) []string {
	var parts []string
	for len(line) > max {
		cut := max
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		parts = append(parts, line[:cut])
		line = line[cut:]
	}
	if line != "" {
		parts = append(parts, line)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func (c *Client) send(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", chat.ErrTransport)
	}
	line, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Command, err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.conn.Write(line); err != nil {
		// A failed write leaves the stream in an unknown state; closing it
		// makes the receive loop return as well.
		c.state.Store(chat.StateDisconnected)
		_ = c.conn.Close()
		return fmt.Errorf("%w: write %s: %w", chat.ErrTransport, msg.Command, err)
	}
	c.log.Trace().Bytes("line", line).Msg("Sent line")
	return nil
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Close shuts the connection down. The receive loop returns shortly after.
func (c *Client) Close() {
	c.stop()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// State returns the current connection state.
func (c *Client) State() chat.ConnectionState {
	return c.state.Load()
}

// Nickname returns the nickname currently in use, including any suffix added
// after a collision.
func (c *Client) Nickname() string {
	c.nickMu.RLock()
	defer c.nickMu.RUnlock()
	return c.nickname
}

func (c *Client) setNickname(nick string) {
	c.nickMu.Lock()
	c.nickname = nick
	c.nickMu.Unlock()
}

// WaitJoined blocks until the channel has been joined or ctx is done.
func (c *Client) WaitJoined(ctx context.Context) error {
	return c.joined.Wait(ctx)
}
