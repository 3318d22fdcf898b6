// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package chat

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// Mailbox is an unbounded FIFO queue. Put never blocks; Get blocks while the
// mailbox is empty. There is no overflow policy: a consumer that stops
// draining lets the mailbox grow without limit.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  *queue.Queue
	notify chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		items:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Put appends an item to the end of the mailbox.
func (m *Mailbox[T]) Put(item T) {
	m.mu.Lock()
	m.items.Add(item)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// TryGet removes and returns the oldest item if there is one.
func (m *Mailbox[T]) TryGet() (item T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items.Length() == 0 {
		return item, false
	}
	return m.items.Remove().(T), true
}

// Get removes and returns the oldest item, waiting for one to arrive if the
// mailbox is empty. It returns the context error if ctx is done first.
func (m *Mailbox[T]) Get(ctx context.Context) (T, error) {
	for {
		if item, ok := m.TryGet(); ok {
			return item, nil
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Length()
}
