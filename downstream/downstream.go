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

// Package downstream implements the fire-and-forget server-to-client
// channel: best-effort delivery of a tagged payload to whichever client
// currently holds that clientId's connection, with no reply correlation.
package downstream

import (
	"sync"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Sender is how a transport exposes best-effort delivery to one
// connected client, e.g. writing a downstream frame to its WebSocket.
type Sender func(payload any)

// Registry maps clientIds to their currently-connected Sender. A client
// not currently connected simply has no entry, so Publish to it is a
// silent no-op.
type Registry struct {
	mu   sync.RWMutex
	trie *patricia.Trie
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{trie: patricia.NewTrie()}
}

// Register associates clientId with send, replacing any prior connection
// for the same id (e.g. after a reconnect).
func (r *Registry) Register(clientID string, send Sender) {
	if clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trie.Set(patricia.Prefix(clientID), send)
}

// Unregister removes clientId's current connection, e.g. on disconnect.
func (r *Registry) Unregister(clientID string) {
	if clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trie.Delete(patricia.Prefix(clientID))
}

// Publish delivers payload to clientId's current connection if any. It
// never blocks on transport I/O beyond what Sender itself does, and
// never returns an error: this is not RPC and carries no reply
// correlation, so there is nothing to report back to the publisher.
func (r *Registry) Publish(clientID string, payload any) (delivered bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item := r.trie.Get(patricia.Prefix(clientID))
	send, ok := item.(Sender)
	if !ok || send == nil {
		return false
	}
	send(payload)
	return true
}

// Connected reports whether clientId currently has a registered
// connection.
func (r *Registry) Connected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trie.Get(patricia.Prefix(clientID)) != nil
}
