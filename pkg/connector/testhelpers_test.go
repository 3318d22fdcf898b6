// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const testTimeout = 5 * time.Second

// fakeGalene simulates a Galène server for a single client. It answers the
// handshake and exposes every other frame the client sends.
type fakeGalene struct {
	Server *httptest.Server

	conns  chan *websocket.Conn
	frames chan map[string]any

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func newFakeGalene(t *testing.T) *fakeGalene {
	t.Helper()
	f := &fakeGalene{
		conns:  make(chan *websocket.Conn, 1),
		frames: make(chan map[string]any, 100),
	}
	upgrader := websocket.Upgrader{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame["type"] == "handshake" {
				f.writeTo(conn, `{"type":"handshake","version":["1"]}`)
				continue
			}
			f.frames <- frame
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeGalene) URL() string {
	return "ws" + strings.TrimPrefix(f.Server.URL, "http")
}

func (f *fakeGalene) writeTo(conn *websocket.Conn, frame string) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Accept waits for the client to connect.
func (f *fakeGalene) Accept(t *testing.T) {
	t.Helper()
	select {
	case conn := <-f.conns:
		f.conn = conn
		t.Cleanup(func() { _ = conn.Close() })
	case <-time.After(testTimeout):
		t.Fatal("galene client never connected")
	}
}

func (f *fakeGalene) Send(frame string) {
	f.writeTo(f.conn, frame)
}

// Expect returns the next frame of the given type, skipping pongs.
func (f *fakeGalene) Expect(t *testing.T, typ string) map[string]any {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case frame := <-f.frames:
			if frame["type"] == "pong" && typ != "pong" {
				continue
			}
			if frame["type"] != typ {
				t.Fatalf("galene got frame %v, want type %q", frame, typ)
			}
			return frame
		case <-deadline:
			t.Fatalf("timed out waiting for galene frame %q", typ)
			return nil
		}
	}
}

// Join accepts the connection, checks the join request and confirms it.
func (f *fakeGalene) Join(t *testing.T) {
	t.Helper()
	f.Accept(t)
	join := f.Expect(t, "join")
	f.Send(`{"type":"joined","kind":"join","group":"` + join["group"].(string) + `"}`)
}

// fakeIRC is a loopback IRC server for a single client.
type fakeIRC struct {
	ln    net.Listener
	conns chan net.Conn
	lines chan string
	conn  net.Conn
}

func newFakeIRC(t *testing.T) *fakeIRC {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeIRC{ln: ln, conns: make(chan net.Conn, 1), lines: make(chan string, 100)}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		f.conns <- conn
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			f.lines <- strings.TrimRight(scanner.Text(), "\r")
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeIRC) Port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeIRC) Accept(t *testing.T) {
	t.Helper()
	select {
	case conn := <-f.conns:
		f.conn = conn
		t.Cleanup(func() { _ = conn.Close() })
	case <-time.After(testTimeout):
		t.Fatal("irc client never connected")
	}
}

func (f *fakeIRC) Send(t *testing.T, line string) {
	t.Helper()
	if _, err := f.conn.Write([]byte(line + "\r\n")); err != nil {
		t.Fatalf("irc write: %v", err)
	}
}

func (f *fakeIRC) Expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.lines:
		if got != want {
			t.Fatalf("irc got %q, want %q", got, want)
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for irc line %q", want)
	}
}

// Register accepts the connection, checks registration and sends the
// welcome.
func (f *fakeIRC) Register(t *testing.T) {
	t.Helper()
	f.Accept(t)
	f.Expect(t, "NICK relay")
	f.Expect(t, "USER relay 0 * :relay")
	f.Send(t, ":srv 001 relay :Welcome")
	f.Expect(t, "JOIN #chan")
}

// newTestConfig returns a post-processed config pointing at the fakes.
func newTestConfig(t *testing.T, g *fakeGalene, i *fakeIRC) *Config {
	t.Helper()
	cfg := &Config{
		Galene: GaleneConfig{
			Server:   g.URL(),
			Group:    "lobby",
			Username: "irc-bridge",
			ClientID: "bridge-id",
		},
		IRC: IRCConfig{
			Server:   "127.0.0.1",
			Port:     i.Port(),
			Nickname: "relay",
			Channel:  "#chan",
		},
		Bridge: BridgeConfig{HistoryWindow: "5s"},
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	cfg.Bridge.AdminAPIAddr = ""
	return cfg
}

// startBridge runs a bridge against fresh fakes. Cancelling the returned
// context stops it; the error channel receives Run's result.
func startBridge(t *testing.T) (*Bridge, *fakeGalene, *fakeIRC, context.CancelFunc, <-chan error) {
	t.Helper()
	g := newFakeGalene(t)
	i := newFakeIRC(t)
	b, err := NewBridge(newTestConfig(t, g, i), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()
	return b, g, i, cancel, runErr
}

// eventually polls cond until it holds or the test times out.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
