// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/galene-ircbridge/pkg/chat"
	"github.com/aiku/galene-ircbridge/pkg/galene"
	"github.com/aiku/galene-ircbridge/pkg/irc"
)

// Bridge relays one Galène group and one IRC channel through a shared
// identity on each side.
type Bridge struct {
	Config *Config
	Galene *galene.Client
	IRC    *irc.Client

	log      zerolog.Logger
	toIRC    *chat.Mailbox[chat.OutboundMessage]
	toGalene *chat.Mailbox[chat.OutboundMessage]

	relayedToIRC    atomic.Int64
	relayedToGalene atomic.Int64
	skippedHistory  atomic.Int64
}

// NewBridge creates both clients from a post-processed config.
func NewBridge(cfg *Config, log zerolog.Logger) (*Bridge, error) {
	b := &Bridge{
		Config:   cfg,
		log:      log.With().Str("component", "bridge").Logger(),
		toIRC:    chat.NewMailbox[chat.OutboundMessage](),
		toGalene: chat.NewMailbox[chat.OutboundMessage](),
	}
	var err error
	b.Galene, err = galene.NewClient(cfg.GaleneClientConfig(), &galeneHandler{b}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create galene client: %w", err)
	}
	b.IRC, err = irc.NewClient(cfg.IRCClientConfig(), &ircHandler{b}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create irc client: %w", err)
	}
	return b, nil
}

// Run connects both sides and relays until ctx is cancelled or both sides
// have stopped. A failure on one side never stops the other. The first error
// is returned.
func (b *Bridge) Run(ctx context.Context) error {
	if addr := b.Config.Bridge.AdminAPIAddr; addr != "" {
		b.startAdminAPI(ctx, addr)
	}

	var g errgroup.Group
	g.Go(func() error {
		return b.runSide(ctx, "galene", b.Galene.Connect, b.Galene.Run, func(ctx context.Context) error {
			return b.Galene.Transmit(ctx, b.toGalene)
		})
	})
	g.Go(func() error {
		return b.runSide(ctx, "irc", b.IRC.Connect, b.IRC.Run, func(ctx context.Context) error {
			return b.IRC.Transmit(ctx, b.toIRC)
		})
	})
	return g.Wait()
}

func (b *Bridge) runSide(ctx context.Context, side string, connect, receive, transmit func(context.Context) error) error {
	log := b.log.With().Str("side", side).Logger()
	if err := connect(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to connect")
		return fmt.Errorf("%s: %w", side, err)
	}
	var g errgroup.Group
	g.Go(func() error { return receive(ctx) })
	g.Go(func() error { return transmit(ctx) })
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Side stopped")
		return fmt.Errorf("%s: %w", side, err)
	}
	log.Info().Msg("Side stopped")
	return err
}

// Close shuts both connections down.
func (b *Bridge) Close() {
	b.Galene.Close()
	b.IRC.Close()
}

type galeneHandler struct {
	b *Bridge
}

func (h *galeneHandler) OnChat(_ context.Context, evt *chat.Chat) {
	if galene.IsHistory(evt.Timestamp, h.b.Config.HistoryWindow()) {
		h.b.skippedHistory.Add(1)
		h.b.log.Debug().
			Str("username", evt.Username).
			Time("timestamp", evt.Timestamp).
			Msg("Skipping replayed chat history")
		return
	}
	h.b.relay(h.b.toIRC, &h.b.relayedToIRC, chat.OutboundMessage{Text: formatGaleneChat(evt)})
}

func (h *galeneHandler) OnUserJoined(_ context.Context, evt *chat.UserJoined) {
	h.b.relay(h.b.toIRC, &h.b.relayedToIRC, chat.OutboundMessage{Text: formatJoined(evt.Username)})
}

func (h *galeneHandler) OnUserLeft(_ context.Context, evt *chat.UserLeft) {
	h.b.relay(h.b.toIRC, &h.b.relayedToIRC, chat.OutboundMessage{Text: formatLeft(evt.Username)})
}

type ircHandler struct {
	b *Bridge
}

// OnChat passes the text through; the IRC client has already prefixed it
// with the sender.
func (h *ircHandler) OnChat(_ context.Context, evt *chat.Chat) {
	h.b.relay(h.b.toGalene, &h.b.relayedToGalene, chat.OutboundMessage{Text: evt.Text})
}

func (h *ircHandler) OnUserJoined(_ context.Context, evt *chat.UserJoined) {
	h.b.relay(h.b.toGalene, &h.b.relayedToGalene, chat.OutboundMessage{Text: formatJoined(evt.Username)})
}

func (h *ircHandler) OnUserLeft(_ context.Context, evt *chat.UserLeft) {
	h.b.relay(h.b.toGalene, &h.b.relayedToGalene, chat.OutboundMessage{Text: formatLeft(evt.Username)})
}

func (b *Bridge) relay(mailbox *chat.Mailbox[chat.OutboundMessage], counter *atomic.Int64, msg chat.OutboundMessage) {
	mailbox.Put(msg)
	counter.Add(1)
	b.log.Trace().Str("text", msg.Text).Int("pending", mailbox.Len()).Msg("Queued message")
}

// SideStatus describes one side of the bridge.
type SideStatus struct {
	State   chat.ConnectionState `json:"state"`
	Pending int                  `json:"pending"`
	Relayed int64                `json:"relayed"`
}

// Status is a point-in-time snapshot of the bridge. Relayed counts messages
// queued towards that side; Pending is how many are still waiting to be sent.
type Status struct {
	Galene         SideStatus        `json:"galene"`
	IRC            SideStatus        `json:"irc"`
	IRCNickname    string            `json:"irc_nickname"`
	GaleneUsers    map[string]string `json:"galene_users"`
	SkippedHistory int64             `json:"skipped_history"`
}

func (b *Bridge) Status() Status {
	return Status{
		Galene: SideStatus{
			State:   b.Galene.State(),
			Pending: b.toGalene.Len(),
			Relayed: b.relayedToGalene.Load(),
		},
		IRC: SideStatus{
			State:   b.IRC.State(),
			Pending: b.toIRC.Len(),
			Relayed: b.relayedToIRC.Load(),
		},
		IRCNickname:    b.IRC.Nickname(),
		GaleneUsers:    b.Galene.Users(),
		SkippedHistory: b.skippedHistory.Load(),
	}
}

// HandleStatus is an HTTP handler for GET /api/status.
func (b *Bridge) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.Status()); err != nil {
		b.log.Warn().Err(err).Msg("Failed to write status response")
	}
}

// AdminHandler returns the admin API routes.
func (b *Bridge) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", b.HandleStatus)
	return mux
}

func (b *Bridge) startAdminAPI(ctx context.Context, addr string) {
	server := &http.Server{
		Addr:         addr,
		Handler:      b.AdminHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		b.log.Info().Str("addr", addr).Msg("Starting bridge admin API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error().Err(err).Msg("Bridge admin API error")
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
}
