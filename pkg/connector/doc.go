// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector relays a Galène group and an IRC channel.
//
// # Core Types
//
// [Bridge] owns a [galene.Client], an [irc.Client] and one mailbox per
// direction. Each client's receive loop hands events to the bridge, which
// formats them and queues them for the other client's transmit loop. The
// bridge itself does no I/O besides the optional admin API.
//
// [Config] is the YAML configuration file, merged over the embedded
// [ExampleConfig] when loaded with [LoadConfig].
//
// # Formatting
//
// Galène chat is sent to IRC as "<username> text", or "username text" for
// actions. IRC chat arrives already prefixed with the sender's nickname and is
// passed through. Joins and departures on either side become "name joined" and
// "name left".
//
// Galène replays recent chat to clients that join. Messages older than the
// configured history window are dropped instead of being relayed again.
//
// # Identity
//
// Each side posts under one shared identity: the configured Galène username
// and IRC nickname. Per-user puppeting is not implemented. Echoes of the
// bridge's own messages are filtered by the clients, by Galène client id and
// by IRC nickname.
//
// # Admin API
//
// When bridge.admin_api_addr (or $BRIDGE_API_ADDR) is set, GET /api/status
// returns a [Status] snapshot as JSON.
package connector
