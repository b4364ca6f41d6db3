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

// Package dispatch implements the server-side dispatcher: validating,
// resolving, and executing operation chains against a live host object,
// then marshalling the result for the return trip.
package dispatch

import (
	"context"
	"reflect"
	"sync"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/internal/slogx"
	"github.com/cider/chainrpc/marshal"
	"github.com/cider/chainrpc/wire"
)

// Config bounds a dispatcher's validation limits.
type Config struct {
	MaxDepth         int
	MaxArgs          int
	SerializeBatches bool
}

// DefaultConfig returns the default limits: chains up to 50 operations,
// calls up to 100 arguments, batches not serialized.
func DefaultConfig() Config {
	return Config{MaxDepth: 50, MaxArgs: 100, SerializeBatches: false}
}

// Dispatcher executes batches of operation chains against a host value.
type Dispatcher struct {
	cfg  Config
	host any
	log  slogx.Logger

	// mu serializes whole-batch execution when cfg.SerializeBatches is
	// set, ensuring no other batch's effects interleave.
	mu sync.Mutex
}

// New builds a Dispatcher over host using cfg.
func New(host any, cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, host: host, log: slogx.Default()}
}

// SetLogger installs a logger for lifecycle events (batch start, item
// failures). The default is silent.
func (d *Dispatcher) SetLogger(l slogx.Logger) {
	if l != nil {
		d.log = l
	}
}

// refIdCache holds values resolved from nested operation chains for the
// duration of one ExecuteBatch call.
type refIdCache struct {
	values map[string]any
	// defined marks refIds whose defining (non-alias) marker has already
	// been executed, to catch an alias appearing before its definer.
	defined map[string]bool
}

func newRefIDCache() *refIdCache {
	return &refIdCache{values: make(map[string]any), defined: make(map[string]bool)}
}

// ExecuteBatch runs every item in req sequentially — item-by-item, never
// in parallel, so the host observes enqueue order and refId definers
// always execute before their aliases — and returns a response whose
// Batch always has one Result per input Item, independent of that item's
// success.
func (d *Dispatcher) ExecuteBatch(ctx context.Context, req wire.BatchRequest) wire.BatchResponse {
	if d.cfg.SerializeBatches {
		d.mu.Lock()
		defer d.mu.Unlock()
	}

	cache := newRefIDCache()
	resp := wire.BatchResponse{Batch: make([]wire.Result, 0, len(req.Batch))}
	d.log.Debug("dispatch: batch start", "items", len(req.Batch))
	for _, item := range req.Batch {
		r := d.executeItem(ctx, item, cache)
		if !r.Success {
			d.log.Info("dispatch: item failed", "id", item.ID)
		}
		resp.Batch = append(resp.Batch, r)
	}
	return resp
}

func (d *Dispatcher) executeItem(ctx context.Context, item wire.Item, cache *refIdCache) wire.Result {
	if err := d.validate(item.Operations); err != nil {
		return errorResult(item.ID, err)
	}
	val, err := d.executeChain(ctx, item.Operations, cache)
	if err != nil {
		return errorResult(item.ID, err)
	}
	// Inspect items execute normally above but marshal with callables
	// rendered as "<name> [Function]" strings instead of
	// RemoteFunctionMarkers; the client skips marker-to-handle
	// postprocessing on this reply entirely.
	if item.Inspect {
		return wire.Result{ID: item.ID, Success: true, Value: marshal.PreprocessInspect(val, item.Operations)}
	}
	marshalled := marshal.Preprocess(val, item.Operations)
	return wire.Result{ID: item.ID, Success: true, Value: marshalled}
}

func (d *Dispatcher) validate(c chain.Chain) error {
	if c.Depth() > d.cfg.MaxDepth {
		return chainerr.Validationf("chain depth %d exceeds maxDepth %d", c.Depth(), d.cfg.MaxDepth)
	}
	for _, op := range c {
		if op.Kind == chain.Apply && len(op.Args) > d.cfg.MaxArgs {
			return chainerr.Validationf("apply arity %d exceeds maxArgs %d", len(op.Args), d.cfg.MaxArgs)
		}
	}
	return nil
}

// executeChain runs c against d.host, starting with current=host and, for
// each Get, recording the selecting object as the receiver for any Apply
// that follows directly.
func (d *Dispatcher) executeChain(ctx context.Context, c chain.Chain, cache *refIdCache) (any, error) {
	current := reflect.ValueOf(d.host)
	receiver := current
	var path []string

	for _, op := range c {
		switch op.Kind {
		case chain.Get:
			next, err := getMember(current, op.Key)
			if err != nil {
				return nil, chainerr.Traversalf("cannot read property %q of %s: %v", op.Key.String(), traversalPathString(path), err)
			}
			receiver = current
			current = next
			path = append(path, op.Key.String())

		case chain.Apply:
			if !isCallable(current) {
				return nil, chainerr.Traversalf("%s is not a function", traversalPathString(path))
			}
			args := make([]any, len(op.Args))
			for i, raw := range op.Args {
				resolved, err := d.resolveArg(ctx, raw, cache)
				if err != nil {
					return nil, err
				}
				args[i] = resolved
			}
			result, err := invoke(ctx, receiver, current, args)
			if err != nil {
				return nil, err
			}
			current = reflect.ValueOf(result)
			receiver = current
		}
	}

	if !current.IsValid() {
		return nil, nil
	}
	return current.Interface(), nil
}

func traversalPathString(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return path[len(path)-1]
}

// resolveArg resolves a single Apply argument, substituting
// NestedOperationMarkers with the value their chain produces. Arguments
// never contain client handles on the wire: any handle present
// client-side was already converted to a marker by the batcher.
func (d *Dispatcher) resolveArg(ctx context.Context, raw any, cache *refIdCache) (any, error) {
	marker, ok := wire.RecognizeNested(raw)
	if !ok {
		return raw, nil
	}

	if !marker.IsDefiner() {
		// Alias form: must already be cached.
		if marker.RefID == "" {
			return nil, chainerr.NestedResolutionf("nested operation alias missing refId")
		}
		v, ok := cache.values[marker.RefID]
		if !ok {
			return nil, chainerr.NestedResolutionf("alias for refId %q appeared before its definer", marker.RefID)
		}
		return v, nil
	}

	// Definer form: recursively resolve its own args, execute it, cache
	// under refId, then substitute.
	if cache.defined[marker.RefID] {
		return cache.values[marker.RefID], nil
	}
	if err := d.validate(marker.OperationChain); err != nil {
		return nil, err
	}
	val, err := d.executeChain(ctx, marker.OperationChain, cache)
	if err != nil {
		return nil, err
	}
	cache.values[marker.RefID] = val
	cache.defined[marker.RefID] = true
	return val, nil
}

func errorResult(id string, err error) wire.Result {
	if ce, ok := chainerr.AsError(err); ok {
		props := ce.Fields
		return wire.Result{
			ID:      id,
			Success: false,
			Err: &wire.ErrorValue{
				Name:       ce.Name,
				Message:    ce.Msg,
				Properties: props,
			},
		}
	}
	return wire.Result{ID: id, Success: false, Err: &wire.ErrorValue{Name: "Error", Message: err.Error()}}
}

// DispatchError builds the single synthetic parse-error result used by
// transports when the envelope itself could not be decoded.
func DispatchError(msg string) wire.Result {
	return wire.Result{ID: wire.ParseErrorID, Success: false, Err: &wire.ErrorValue{Name: "BatchParseError", Message: msg}}
}
