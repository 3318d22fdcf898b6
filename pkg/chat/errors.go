// Copyright 2024-2026 Aiku AI

package chat

import "errors"

var (
	// ErrConnect means the transport could not be opened.
	ErrConnect = errors.New("connect failed")
	// ErrTransport means a read or write on an open connection failed.
	ErrTransport = errors.New("transport error")
	// ErrMalformedFrame is returned for a group-chat frame that cannot be decoded.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMalformedLine is returned for an IRC line that does not match the grammar.
	ErrMalformedLine = errors.New("malformed line")
	// ErrJoinRejected means the server refused to let us into the group.
	ErrJoinRejected = errors.New("join rejected")
	// ErrServer means the server reported a fatal error for this connection.
	ErrServer = errors.New("server error")
)
