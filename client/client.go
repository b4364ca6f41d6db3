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

package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/transport"
	"github.com/cider/chainrpc/wire"
)

// DefaultBatchWindow is how long the batcher waits after the first
// enqueue before draining, giving the rest of the calling goroutine's
// synchronous chain-building a chance to add more operations to the same
// batch.
const DefaultBatchWindow = time.Millisecond

// InspectEvent is emitted to an optional InspectHandler for diagnostics
// and tests; the batcher is otherwise a black box to callers.
type InspectEvent struct {
	Kind      string
	BatchSize int
	Dropped   int
}

// InspectHandler receives InspectEvents as they occur.
type InspectHandler func(InspectEvent)

// Client binds the recorder surface, the batcher, and a transport. One
// Client owns exactly one root Handle and one pending batch queue;
// concurrent goroutines may record chains off the same Client safely.
type Client struct {
	Transport   transport.Transport
	batchWindow time.Duration

	// MaxDepth/MaxArgs mirror the server's validation caps so
	// obviously-oversized chains fail fast client-side instead of paying a
	// round trip; zero means "rely on the server's own validation only".
	MaxDepth int
	MaxArgs  int

	mu                sync.Mutex
	queue             []*Handle
	handleByChain     map[string]*Handle
	inspectHandler    InspectHandler
	downstreamHandler DownstreamHandler

	root *Handle
}

// NewClient binds a Client to a transport. The transport is not connected
// here; callers using the WebSocket transport should call
// Transport.Connect separately before issuing any calls.
func NewClient(t transport.Transport) *Client {
	c := &Client{
		Transport:     t,
		batchWindow:   DefaultBatchWindow,
		handleByChain: make(map[string]*Handle),
	}
	c.root = newHandle(c, chain.Chain{}, nil)
	if t != nil {
		t.SetDownstreamHandler(c.handleDownstream)
	}
	return c
}

// SetBatchWindow overrides the debounce delay used between the first
// enqueue of a batch and its drain.
func (c *Client) SetBatchWindow(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchWindow = d
}

// SetInspectHandler installs a hook for tests and diagnostics. It is
// invoked during every drain, before the batch is sent, and when
// client-side validation rejects queued items.
func (c *Client) SetInspectHandler(fn InspectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inspectHandler = fn
}

// DownstreamHandler receives fire-and-forget payloads pushed by the host.
// Install one to react to server-initiated pushes on a stateful
// (WebSocket) transport.
type DownstreamHandler func(payload any)

func (c *Client) SetDownstreamHandler(fn DownstreamHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downstreamHandler = fn
}

// SetCloseHandler installs fn on transports that can report connection
// loss (the WebSocket transport); a no-op for stateless transports.
func (c *Client) SetCloseHandler(fn func(err error)) {
	type closeNotifier interface{ SetCloseHandler(fn func(err error)) }
	if t, ok := c.Transport.(closeNotifier); ok {
		t.SetCloseHandler(fn)
	}
}

func (c *Client) handleDownstream(payload any) {
	c.mu.Lock()
	h := c.downstreamHandler
	c.mu.Unlock()
	if h != nil {
		h(payload)
	}
}

// Root returns the handle representing the host's root object.
func (c *Client) Root() *Handle { return c.root }

// Get is Root().Get(key) sugar.
func (c *Client) Get(key string) *Handle { return c.root.Get(key) }

// Call is Root().Call(method, args...) sugar.
func (c *Client) Call(method string, args ...any) *Handle { return c.root.Call(method, args...) }

func (c *Client) emitInspect(ev InspectEvent) {
	c.mu.Lock()
	h := c.inspectHandler
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (c *Client) resolveMarker(m wire.RemoteFunctionMarker) any {
	key := chainKey(m.OperationChain)
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handleByChain[key]; ok {
		return h
	}
	h := newHandle(c, m.OperationChain, c.root)
	c.handleByChain[key] = h
	return h
}

func (c *Client) release(h *Handle) {
	key := chainKey(h.chain)
	c.mu.Lock()
	if existing, ok := c.handleByChain[key]; ok && existing == h {
		delete(c.handleByChain, key)
	}
	c.mu.Unlock()
}

// chainKey builds a deterministic dedup key so that two RemoteFunctionMarkers
// describing the exact same absolute chain from the host root — including
// Apply argument VALUES, not just operation shape — resolve to the same
// client-side Handle object. Keying on the chain's canonical wire
// encoding is what distinguishes, say, makeCounter(5) from
// makeCounter(7): a shape-only key (operation kind plus argument count)
// would collide the two and hand back the wrong cached Handle.
func chainKey(c chain.Chain) string {
	encoded, err := wire.EncodeValue(c)
	if err != nil {
		// Only genuinely unencodable arguments reach here, and those will
		// fail the call itself once dispatched; %#v still gives a
		// collision-free key for the brief in-memory window before that
		// failure surfaces.
		return fmt.Sprintf("%#v", c)
	}
	return string(encoded)
}
