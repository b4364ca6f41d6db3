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

// Package chain implements the data model shared by both sides of the
// RPC fabric: the Operation/OperationChain trace that a client-side
// expression compiles down to before it is shipped to a host.
package chain

import "strconv"

// Kind identifies which variant an Operation is.
type Kind uint8

const (
	// Get selects a member of the currently-held value.
	Get Kind = iota
	// Apply invokes the currently-held value with a list of arguments.
	Apply
)

func (k Kind) String() string {
	switch k {
	case Get:
		return "get"
	case Apply:
		return "apply"
	default:
		return "unknown"
	}
}

// Key is a wire-legal member key. The wire boundary only admits strings and
// non-negative integers; any other key (e.g. a symbol) must never reach
// this type. Fields are exported (rather than encapsulated) so the codec
// can encode/decode them directly without a hand-rolled Selfer.
type Key struct {
	Name  string `codec:"name,omitempty"`
	Index int64  `codec:"index,omitempty"`
	IsIdx bool   `codec:"isIdx,omitempty"`
}

// StringKey builds a string member key.
func StringKey(name string) Key { return Key{Name: name} }

// IndexKey builds a non-negative integer member key. It panics on a
// negative index since the recorder must never construct one.
func IndexKey(i int64) Key {
	if i < 0 {
		panic("chain: index key must be non-negative")
	}
	return Key{Index: i, IsIdx: true}
}

// IsIndex reports whether the key is an integer index rather than a name.
func (k Key) IsIndex() bool { return k.IsIdx }

// IndexOf returns the integer value of an index key. Behavior is undefined
// if IsIndex is false.
func (k Key) IndexOf() int64 { return k.Index }

// NameOf returns the string value of a string key. Behavior is undefined
// if IsIndex is true.
func (k Key) NameOf() string { return k.Name }

// String renders the key for diagnostics (error messages, inspect output).
func (k Key) String() string {
	if k.IsIdx {
		return strconv.FormatInt(k.Index, 10)
	}
	return k.Name
}

// Operation is one step of a chain: a Get carries a Key, an Apply carries
// an argument list.
type Operation struct {
	Kind Kind  `codec:"kind"`
	Key  Key   `codec:"key,omitempty"`
	Args []any `codec:"args,omitempty"`
}

// GetOp builds a member-access operation.
func GetOp(k Key) Operation { return Operation{Kind: Get, Key: k} }

// ApplyOp builds an invocation operation. args is copied so later mutation
// by the caller cannot change what was captured.
func ApplyOp(args []any) Operation {
	cp := make([]any, len(args))
	copy(cp, args)
	return Operation{Kind: Apply, Args: cp}
}

// Chain is an ordered, immutable-once-registered sequence of Operations
// applied left to right starting from a host root.
type Chain []Operation

// Extend returns a new chain consisting of c followed by op. It never
// mutates c: a chain is immutable once registered, and extending one
// always creates a fresh chain.
func (c Chain) Extend(op Operation) Chain {
	out := make(Chain, len(c)+1)
	copy(out, c)
	out[len(c)] = op
	return out
}

// Depth is the number of operations, used against the server's maxDepth cap.
func (c Chain) Depth() int { return len(c) }

// IsAncestorOf reports whether c is a strict prefix of other: same
// leading operations, and other strictly longer. Get operations are
// compared by key; Apply operations only by argument count, not by
// argument values. It is a structural
// check used only after handle lineage has already established that
// other really does descend from a handle whose chain is c.
func (c Chain) IsAncestorOf(other Chain) bool {
	if len(other) <= len(c) {
		return false
	}
	for i := range c {
		if !operationsEqual(c[i], other[i]) {
			return false
		}
	}
	return true
}

func operationsEqual(a, b Operation) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Get {
		return a.Key == b.Key
	}
	return len(a.Args) == len(b.Args)
}

// Clone returns a defensive copy of the chain.
func (c Chain) Clone() Chain {
	out := make(Chain, len(c))
	copy(out, c)
	return out
}
