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

// Package client implements the client side of the chain-RPC fabric: a
// fluent recorder surface (Get/Call/Apply) that compiles expressions into
// operation chains, per-handle bookkeeping, and the batcher that collapses
// concurrently-recorded chains into single round trips with pipelining,
// alias detection, and prefix filtering. Go has no dynamic
// property-access interception, so recording is explicit: awaiting is
// Await, and passing an unresolved handle as an argument (optionally via
// Pipe) pipelines it.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
)

// Handle is the client-side stand-in for a remote value: it records every
// member access and call as an Operation appended to its chain. Every
// Handle returned to user code has exactly one chain registered for it,
// and that chain never changes once the Handle exists.
type Handle struct {
	c      *Client
	id     string
	chain  chain.Chain
	parent *Handle

	mu       sync.Mutex
	enqueued bool
	resolved bool
	released bool
	value    any
	err      error
	resultCh chan struct{}
}

var _ io.Closer = (*Handle)(nil)

func newHandle(c *Client, ch chain.Chain, parent *Handle) *Handle {
	return &Handle{
		c:        c,
		id:       uuid.NewString(),
		chain:    ch,
		parent:   parent,
		resultCh: make(chan struct{}),
	}
}

// ID returns the handle's opaque stable identity, used as the refId for
// aliasing when the same handle is used more than once as an argument in
// one batch.
func (h *Handle) ID() string { return h.id }

// Chain returns the operation chain this handle represents.
func (h *Handle) Chain() chain.Chain { return h.chain }

// Parent returns the handle this one was derived from via Get, GetIndex
// or Apply, or nil for a root handle. A handle produced by Postprocess
// has the Client's root handle as its parent, since marker chains are
// absolute from the host root.
func (h *Handle) Parent() *Handle { return h.parent }

// Get yields a new handle for a string member access. A non-string key
// is rejected at the type level: callers needing an integer index use
// GetIndex.
func (h *Handle) Get(key string) *Handle {
	return newHandle(h.c, h.chain.Extend(chain.GetOp(chain.StringKey(key))), h)
}

// GetIndex yields a new handle for an integer-indexed member access.
func (h *Handle) GetIndex(i int64) *Handle {
	return newHandle(h.c, h.chain.Extend(chain.GetOp(chain.IndexKey(i))), h)
}

// Apply invokes the handle's currently-selected value with args, yielding
// a new handle whose chain is extended with Apply(args). The new handle
// is enqueued for execution immediately but still permits further
// Get/Apply chaining before (or instead of) being awaited.
func (h *Handle) Apply(args ...any) *Handle {
	child := newHandle(h.c, h.chain.Extend(chain.ApplyOp(args)), h)
	child.enqueued = true
	h.c.enqueue(child)
	return child
}

// Call is Get(method).Apply(args...) sugar for the common method-call
// shape.
func (h *Handle) Call(method string, args ...any) *Handle {
	return h.Get(method).Apply(args...)
}

// Pipe returns the handle itself for use as an argument to another Apply/
// Call, documenting at the call site that the argument is being pipelined
// rather than awaited. Passing a bare *Handle as an argument works
// identically; Pipe exists for readability.
func (h *Handle) Pipe() *Handle { return h }

// Await enqueues the handle's chain if it was not already enqueued by
// Apply (a bare Get-only handle is still awaitable), then blocks until
// the batch containing it resolves or ctx is done.
//
// Calling Await twice returns the same cached outcome. Calling Get/Apply
// on a handle after Await has observed a value still works — the
// handle's own state doesn't change — but a caller holding the resolved
// value should use it directly instead of chaining further.
func (h *Handle) Await(ctx context.Context) (any, error) {
	h.mu.Lock()
	if !h.enqueued {
		h.enqueued = true
		h.mu.Unlock()
		h.c.enqueue(h)
	} else {
		h.mu.Unlock()
	}

	select {
	case <-h.resultCh:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.value, h.err
	case <-ctx.Done():
		return nil, chainerr.Transportf("await canceled: %v", ctx.Err())
	}
}

// resolve is called exactly once by the batcher when this handle's item
// gets a correlated result.
func (h *Handle) resolve(value any, err error) {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return
	}
	h.resolved = true
	h.value = value
	h.err = err
	h.mu.Unlock()
	close(h.resultCh)
}

// AsObject is the reserved diagnostic entry point: unlike Get, calling it
// never appends an operation to the chain — like Close below, it is
// consumed locally. It fires its own single-item round trip flagged
// wire.Item.Inspect, whose result the server marshals with every callable
// leaf rendered as the literal string "<name> [Function]" instead of a
// RemoteFunctionMarker, so the reply needs no marker-to-handle
// postprocessing at all.
func (h *Handle) AsObject(ctx context.Context) (any, error) {
	return h.c.inspect(ctx, h.chain)
}

// Close releases the handle's bookkeeping. It is consumed locally:
// calling it never produces an Operation.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	h.c.release(h)
	return nil
}

func (h *Handle) String() string {
	return fmt.Sprintf("Handle(%s, depth=%d)", h.id, len(h.chain))
}
