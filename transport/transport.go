// Copyright (c) 2014 The AUTHORS
//
// This file is part of chainrpc.
//
// chainrpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chainrpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chainrpc.  If not, see <http://www.gnu.org/licenses/>.

// Package transport defines the transport contract: the thin adapter
// boundary between the batching/dispatch logic and a
// concrete byte transport. The client depends only on this interface;
// concrete HTTP and WebSocket implementations live in the transport/http
// and transport/websocket subpackages.
package transport

import (
	"context"

	"github.com/cider/chainrpc/wire"
)

// DownstreamHandler receives a decoded downstream payload.
type DownstreamHandler func(payload any)

// Transport is the contract every concrete transport implements. Execute
// is the only required method; the rest are optional for stateless
// transports (an HTTP transport may implement Connect/Disconnect/
// IsConnected as no-ops and SetKeepAlive as a no-op).
type Transport interface {
	// Execute atomically sends one batch request and returns its batch
	// response; a batch is never partially delivered.
	Execute(ctx context.Context, req wire.BatchRequest) (wire.BatchResponse, error)

	// Connect establishes a stateful transport's connection. No-op for
	// stateless transports.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Outstanding operations must
	// reject with a disconnect error.
	Disconnect(ctx context.Context) error

	// IsConnected reports current connectivity; always true for a
	// stateless transport.
	IsConnected() bool

	// SetDownstreamHandler registers the fire-and-forget message handler.
	// No-op for transports that cannot receive downstream messages.
	SetDownstreamHandler(fn DownstreamHandler)

	// SetKeepAlive toggles a stateful transport's reconnect-on-drop
	// behavior. HTTP implements it as a no-op.
	SetKeepAlive(enabled bool)
}

// ErrDisconnected is returned by Execute (and used to reject pending
// operations) when a stateful transport's connection drops mid-flight.
type ErrDisconnected struct{ Cause error }

func (e *ErrDisconnected) Error() string {
	if e.Cause != nil {
		return "transport: disconnected: " + e.Cause.Error()
	}
	return "transport: disconnected"
}

func (e *ErrDisconnected) Unwrap() error { return e.Cause }
