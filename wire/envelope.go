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

// Package wire defines the batch envelope and marker shapes that cross
// the transport boundary, plus the structured-clone-style codec used to
// encode/decode them.
package wire

import "github.com/cider/chainrpc/chain"

// Item is one entry of a batch request: an opaque id paired with the
// operation chain to execute against the host root.
type Item struct {
	ID         string      `codec:"id"`
	Operations chain.Chain `codec:"operations"`

	// Inspect marks this item as an asObject diagnostic call: the
	// dispatcher still executes Operations normally, but marshals the
	// result with callables rendered as "<name> [Function]" strings
	// instead of RemoteFunctionMarkers, and the client skips
	// marker-to-handle postprocessing on the reply.
	Inspect bool `codec:"inspect,omitempty"`
}

// BatchRequest is the top-level request envelope.
type BatchRequest struct {
	Batch []Item `codec:"batch"`
}

// Result is one entry of a batch response. Success is independent per
// item; Result always carries either Value or Err, never both.
type Result struct {
	ID      string `codec:"id"`
	Success bool   `codec:"success"`
	Value   any    `codec:"result,omitempty"`
	Err     any    `codec:"error,omitempty"`
}

// BatchResponse is the top-level response envelope.
type BatchResponse struct {
	Batch []Result `codec:"batch"`
}

// RemoteFunctionMarker denotes a callable member surfaced to the client:
// calling it appends Apply(args) to OperationChain and enqueues the
// extended chain. OperationChain is always absolute from the host root.
type RemoteFunctionMarker struct {
	IsRemoteFunction bool        `codec:"isRemoteFunction"`
	OperationChain   chain.Chain `codec:"operationChain"`
	FunctionName     string      `codec:"functionName"`
}

// NewRemoteFunctionMarker builds a marker for the callable found at key
// within base's preprocessed output.
func NewRemoteFunctionMarker(base chain.Chain, key chain.Key) RemoteFunctionMarker {
	return RemoteFunctionMarker{
		IsRemoteFunction: true,
		OperationChain:   base.Extend(chain.GetOp(key)),
		FunctionName:     key.String(),
	}
}

// NestedOperationMarker denotes a client handle used as an argument,
// substituted in place by the batcher before send. Only the first
// occurrence of a given RefID in a batch carries OperationChain; later
// occurrences are aliases.
type NestedOperationMarker struct {
	IsNestedOperation bool        `codec:"isNestedOperation"`
	RefID             string      `codec:"refId"`
	OperationChain    chain.Chain `codec:"operationChain,omitempty"`
}

// IsDefiner reports whether this marker carries the chain to execute,
// as opposed to being a bare alias referencing an already-defined refId.
func (m NestedOperationMarker) IsDefiner() bool { return len(m.OperationChain) > 0 }

// ParseErrorID is the synthetic item id used for batch-parse failures.
const ParseErrorID = "parse-error"
