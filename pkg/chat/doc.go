// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package chat holds the protocol-agnostic types shared by the Galène client,
// the IRC client and the relay bridge.
//
// Clients report what happens on their network as [Event] values delivered to
// a [Handler] on the client's receive goroutine. The bridge turns those events
// into [OutboundMessage] values and queues them in a [Mailbox] that the other
// client's transmit goroutine drains.
package chat
