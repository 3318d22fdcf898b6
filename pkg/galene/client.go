// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package galene implements a client for the Galène group chat protocol:
// JSON frames over a websocket, one group per connection.
package galene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"

	"github.com/aiku/galene-ircbridge/pkg/chat"
)

const (
	handshakeTimeout = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Config holds the group connection settings.
type Config struct {
	// Server is the websocket URL, e.g. wss://galene.example.com/ws.
	Server   string
	Group    string
	Username string
	Password string
	// ClientID identifies this client to the server. A random id is used
	// when empty.
	ClientID string

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Client is one connection to a Galène group.
type Client struct {
	cfg     Config
	handler chat.Handler
	log     zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	state    chat.AtomicState
	joined   *exsync.Event
	users    *UserRegistry
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewClient creates a client. The handler receives events once the group has
// been joined; pass nil to ignore them.
func NewClient(cfg Config, handler chat.Handler, log zerolog.Logger) (*Client, error) {
	if cfg.Server == "" {
		return nil, errors.New("galene: server must not be empty")
	}
	if cfg.Group == "" {
		return nil, errors.New("galene: group must not be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = NewClientID()
	}
	if handler == nil {
		handler = chat.NoopHandler{}
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		log: log.With().
			Str("component", "galene_client").
			Str("group", cfg.Group).
			Logger(),
		joined:   exsync.NewEvent(),
		users:    NewUserRegistry(),
		stopChan: make(chan struct{}),
	}, nil
}

// Connect opens the websocket, performs the handshake and requests to join
// the group. The join is confirmed asynchronously by the receive loop.
func (c *Client) Connect(ctx context.Context) error {
	c.state.Store(chat.StateConnecting)
	c.log.Info().Str("server", c.cfg.Server).Msg("Connecting to Galène")

	dialer := c.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.Server, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.state.Store(chat.StateFailed)
		return fmt.Errorf("%w: %s: %w", chat.ErrConnect, c.cfg.Server, err)
	}
	c.conn = conn

	c.state.Store(chat.StateHandshaking)
	c.log.Debug().Str("client_id", c.cfg.ClientID).Msg("Handshaking")
	if err := c.send(handshakeFrame{Type: TypeHandshake, ID: c.cfg.ClientID}); err != nil {
		return c.connectFailed(err)
	}
	// The handshake reply carries nothing the client needs.
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if _, _, err := conn.ReadMessage(); err != nil {
		return c.connectFailed(fmt.Errorf("%w: handshake: %w", chat.ErrTransport, err))
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.state.Store(chat.StateJoining)
	c.log.Info().Str("username", c.cfg.Username).Msg("Joining group")
	err = c.send(joinFrame{
		Type:     TypeJoin,
		Kind:     KindJoin,
		Group:    c.cfg.Group,
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	})
	if err != nil {
		return c.connectFailed(err)
	}
	return nil
}

// connectFailed marks the client failed and drops a half-open connection.
func (c *Client) connectFailed(err error) error {
	c.state.Store(chat.StateFailed)
	_ = c.conn.Close()
	return err
}

// Run is the receive loop. It returns when the connection fails, the server
// rejects the join or reports an error, or ctx is cancelled.
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.state.Store(chat.StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Websocket closed unexpectedly")
			} else {
				c.log.Info().Err(err).Msg("Websocket closed")
			}
			return fmt.Errorf("%w: read: %w", chat.ErrTransport, err)
		}
		if err := c.handleFrame(ctx, data); err != nil {
			c.state.Store(chat.StateFailed)
			c.log.Error().Err(err).Msg("Galène connection terminated")
			return err
		}
	}
}

// Transmit waits until the group is joined and then sends every message from
// the mailbox as a broadcast chat message. It returns when ctx is cancelled or
// the receive loop has stopped.
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
	for {
		msg, err := mailbox.Get(ctx)
		if err != nil {
			return nil
		}
		if err := c.SendChat(msg.Text, "", msg.Kind); err != nil {
			c.log.Error().Err(err).Msg("Failed to send chat message")
			return err
		}
	}
}

// SendChat sends a chat message. An empty dest broadcasts to the group; kind
// is "" for plain text or chat.KindAction.
func (c *Client) SendChat(text, dest, kind string) error {
	return c.send(chatFrame{
		Type:     TypeChat,
		Kind:     kind,
		Source:   c.cfg.ClientID,
		Username: c.cfg.Username,
		Dest:     dest,
		Value:    text,
	})
}

func (c *Client) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", chat.ErrTransport)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		// A failed write leaves the stream in an unknown state; closing it
		// makes the receive loop return as well.
		c.state.Store(chat.StateDisconnected)
		_ = c.conn.Close()
		return fmt.Errorf("%w: write: %w", chat.ErrTransport, err)
	}
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
	if c.conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

// State returns the current connection state.
func (c *Client) State() chat.ConnectionState {
	return c.state.Load()
}

// ClientID returns the identity sent in the handshake.
func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// Users returns a snapshot of the users currently in the group.
func (c *Client) Users() map[string]string {
	return c.users.Snapshot()
}

// WaitJoined blocks until the group has been joined or ctx is done.
func (c *Client) WaitJoined(ctx context.Context) error {
	return c.joined.Wait(ctx)
}
