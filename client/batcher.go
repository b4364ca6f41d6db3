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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/marshal"
	"github.com/cider/chainrpc/wire"
)

// enqueue adds h to the pending batch and, if it is the first item since
// the last drain, schedules a drain after the batch window elapses. Go
// has no scheduler-tick boundary to coalesce on, so the window is a
// short timer: long enough for the calling goroutine's synchronous
// chain-building to finish enqueueing its siblings, short enough to add
// no observable latency. Callers that want a deterministic boundary use
// Flush.
func (c *Client) enqueue(h *Handle) {
	c.mu.Lock()
	c.queue = append(c.queue, h)
	first := len(c.queue) == 1
	c.mu.Unlock()

	if first {
		time.AfterFunc(c.batchWindow, c.drain)
	}
}

// Flush forces an immediate drain of whatever is currently queued,
// bypassing the batch window. Useful for tests and for callers that know
// they are about to block on Await anyway.
func (c *Client) Flush() {
	c.drain()
}

func (c *Client) drain() {
	c.mu.Lock()
	q := c.queue
	c.queue = nil
	c.mu.Unlock()
	if len(q) == 0 {
		return
	}

	q = c.rejectOversized(q)
	if len(q) == 0 {
		return
	}

	refIDs := make(map[*Handle]string, len(q))
	pipelined := make(map[*Handle]bool)
	resolved := make([]chain.Chain, len(q))
	for i, h := range q {
		resolved[i] = c.substituteChainArgs(h.chain, refIDs, pipelined)
	}

	keep := make([]bool, len(q))
	for i := range q {
		keep[i] = !pipelined[q[i]]
	}
	// Prefix filtering: if A is a direct lineage ancestor of B within
	// this same batch, A's chain is a strict prefix of B's and executing
	// both is redundant — drop A. A's own promise is simply never
	// resolved, which is safe because a caller who wanted A's value
	// directly would have awaited A before deriving B from it.
	for i, hi := range q {
		if !keep[i] {
			continue
		}
		for j, hj := range q {
			if i == j || !keep[j] {
				continue
			}
			if isDirectAncestor(hi, hj) {
				keep[i] = false
				break
			}
		}
	}

	items := make([]wire.Item, 0, len(q))
	itemIdx := make([]int, 0, len(q))
	for i, h := range q {
		if !keep[i] {
			continue
		}
		items = append(items, wire.Item{ID: h.id, Operations: resolved[i]})
		itemIdx = append(itemIdx, i)
	}
	c.emitInspect(InspectEvent{Kind: "drain", BatchSize: len(items), Dropped: len(q) - len(items)})
	if len(items) == 0 {
		return
	}

	resp, err := c.Transport.Execute(context.Background(), wire.BatchRequest{Batch: items})
	if err != nil {
		for _, idx := range itemIdx {
			q[idx].resolve(nil, err)
		}
		return
	}

	byID := make(map[string]wire.Result, len(resp.Batch))
	for _, r := range resp.Batch {
		byID[r.ID] = r
	}
	for _, idx := range itemIdx {
		h := q[idx]
		r, ok := byID[h.id]
		if !ok {
			h.resolve(nil, chainerr.Transportf("no result correlated for item %s", h.id))
			continue
		}
		if !r.Success {
			h.resolve(nil, resultToError(r))
			continue
		}
		h.resolve(marshal.Postprocess(r.Value, c.resolveMarker), nil)
	}
}

// rejectOversized fails fast, client-side, on any queued chain that
// already exceeds c.MaxDepth/c.MaxArgs, sparing it the round trip to
// discover the same violation server-side. Each rejected handle is
// resolved with just its own cause. The violations found this drain are
// also collected into one *multierror.Error, but that aggregate is not
// passed on: the inspect hook receives only a "client-validation-failed"
// event carrying the number of rejected items.
func (c *Client) rejectOversized(q []*Handle) []*Handle {
	if c.MaxDepth <= 0 && c.MaxArgs <= 0 {
		return q
	}

	var problems *multierror.Error
	kept := make([]*Handle, 0, len(q))
	for _, h := range q {
		if err := c.validateLocal(h.chain); err != nil {
			problems = multierror.Append(problems, fmt.Errorf("item %s: %w", h.id, err))
			h.resolve(nil, err)
			continue
		}
		kept = append(kept, h)
	}
	if problems != nil {
		c.emitInspect(InspectEvent{Kind: "client-validation-failed", Dropped: len(q) - len(kept)})
	}
	return kept
}

func (c *Client) validateLocal(ch chain.Chain) error {
	if c.MaxDepth > 0 && ch.Depth() > c.MaxDepth {
		return chainerr.Validationf("chain depth %d exceeds client maxDepth %d", ch.Depth(), c.MaxDepth)
	}
	if c.MaxArgs > 0 {
		for _, op := range ch {
			if op.Kind == chain.Apply && len(op.Args) > c.MaxArgs {
				return chainerr.Validationf("apply arity %d exceeds client maxArgs %d", len(op.Args), c.MaxArgs)
			}
		}
	}
	return nil
}

// substituteChainArgs rewrites a chain's Apply-operation arguments,
// replacing any *Handle with a wire.NestedOperationMarker: the first
// occurrence of a given handle within a batch becomes the definer
// (carries the recursively-substituted nested chain), every later
// occurrence of the SAME handle becomes a bare alias referencing the
// definer's refId.
func (c *Client) substituteChainArgs(ch chain.Chain, refIDs map[*Handle]string, pipelined map[*Handle]bool) chain.Chain {
	out := make(chain.Chain, len(ch))
	for i, op := range ch {
		if op.Kind != chain.Apply || len(op.Args) == 0 {
			out[i] = op
			continue
		}
		newArgs := make([]any, len(op.Args))
		for j, a := range op.Args {
			newArgs[j] = c.substituteArg(a, refIDs, pipelined)
		}
		out[i] = chain.Operation{Kind: chain.Apply, Args: newArgs}
	}
	return out
}

func (c *Client) substituteArg(a any, refIDs map[*Handle]string, pipelined map[*Handle]bool) any {
	switch v := a.(type) {
	case *Handle:
		pipelined[v] = true
		if id, seen := refIDs[v]; seen {
			return wire.NestedOperationMarker{IsNestedOperation: true, RefID: id}
		}
		refIDs[v] = v.id
		nested := c.substituteChainArgs(v.chain, refIDs, pipelined)
		return wire.NestedOperationMarker{IsNestedOperation: true, RefID: v.id, OperationChain: nested}
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = c.substituteArg(e, refIDs, pipelined)
		}
		return out
	default:
		// *regexp.Regexp/*big.Int/HTTP-shaped arguments carry unexported
		// fields the codec cannot walk (same reason marshal.Preprocess
		// converts them server-side); convert outbound here so the wire
		// only ever sees codec-friendly stand-ins in either direction.
		if converted, ok := wire.EncodeNativeValue(a); ok {
			return converted
		}
		return a
	}
}

// inspect fires a standalone one-item batch carrying wire.Item.Inspect,
// bypassing the normal enqueue/drain path entirely: this diagnostic call
// is never batched alongside other operations, and its result must skip
// marker-to-handle postprocessing — the raw decoded value, callables
// already rendered as "<name> [Function]" strings by the dispatcher, is
// handed back as-is.
func (c *Client) inspect(ctx context.Context, ch chain.Chain) (any, error) {
	id := uuid.NewString()
	resp, err := c.Transport.Execute(ctx, wire.BatchRequest{Batch: []wire.Item{
		{ID: id, Operations: ch, Inspect: true},
	}})
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Batch {
		if r.ID != id {
			continue
		}
		if !r.Success {
			return nil, resultToError(r)
		}
		return r.Value, nil
	}
	return nil, chainerr.Transportf("no result correlated for inspect call %s", id)
}

// isDirectAncestor reports whether a is reachable by walking b's parent
// chain, i.e. b was derived from a via a straight line of Get/Apply calls
// within the same recording session.
func isDirectAncestor(a, b *Handle) bool {
	for cur := b.parent; cur != nil; cur = cur.parent {
		if cur == a {
			return true
		}
	}
	return false
}

func resultToError(r wire.Result) error {
	switch e := r.Err.(type) {
	case *wire.ErrorValue:
		return chainerr.NewHostThrown(nonEmpty(e.Name, "Error"), e.Message, e.Properties, nil)
	case wire.ErrorValue:
		return chainerr.NewHostThrown(nonEmpty(e.Name, "Error"), e.Message, e.Properties, nil)
	case map[string]any:
		// An ErrorValue that crossed a real transport decodes generically;
		// lift its properties submap so callers see the host error's own
		// fields directly rather than the envelope's key layout.
		name, _ := e["name"].(string)
		msg, _ := e["message"].(string)
		fields, _ := e["properties"].(map[string]any)
		if fields == nil {
			fields = e
		}
		return chainerr.NewHostThrown(nonEmpty(name, "Error"), msg, fields, nil)
	default:
		return chainerr.NewHostThrown("Error", fmt.Sprintf("%v", r.Err), nil, nil)
	}
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
