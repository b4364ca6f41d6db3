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

// Package chainerr classifies errors crossing the RPC boundary into a
// small closed taxonomy: a Kind for each failure class plus a typed
// wrapper carrying the name, message, and own fields a client needs to
// reconstruct what the host threw.
package chainerr

import "fmt"

// Kind is one class of RPC failure. All kinds except Transport are
// per-item: they fail one batch item without aborting its siblings.
// Transport failures reject every item awaiting the batch.
type Kind string

const (
	Validation       Kind = "validation"
	Traversal        Kind = "traversal"
	HostThrown       Kind = "host_thrown"
	NestedResolution Kind = "nested_resolution"
	BatchParse       Kind = "batch_parse"
	Transport        Kind = "transport"
	Serialization    Kind = "serialization"
)

// Error wraps a cause with the Kind it was classified as.
type Error struct {
	Kind Kind
	// Name is the error's wire-visible name (e.g. "TypeError" for
	// traversal errors, or whatever name the host attached), preserved so
	// clients can branch on it.
	Name string
	Msg  string
	// Fields holds arbitrary own properties attached to a host-thrown
	// error; they survive the round trip alongside name and message.
	Fields map[string]any
	Cause  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Msg)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, name, format string, args ...any) *Error {
	return &Error{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a Validation-kind error (chain too deep, too many
// args, malformed operation).
func Validationf(format string, args ...any) *Error {
	return newf(Validation, "ValidationError", format, args...)
}

// Traversalf builds a Traversal-kind error (undefined/null dereference,
// non-callable invocation).
func Traversalf(format string, args ...any) *Error {
	return newf(Traversal, "TypeError", format, args...)
}

// NewHostThrown wraps a value thrown or returned as an error by the host
// method, preserving its name, message, and own fields.
func NewHostThrown(name, msg string, fields map[string]any, cause error) *Error {
	return &Error{Kind: HostThrown, Name: name, Msg: msg, Fields: fields, Cause: cause}
}

// NestedResolutionf builds a NestedResolution-kind error (alias before
// definer, missing operation chain).
func NestedResolutionf(format string, args ...any) *Error {
	return newf(NestedResolution, "NestedResolutionError", format, args...)
}

// BatchParsef builds the single synthetic per-item error used when the
// envelope itself is unreadable.
func BatchParsef(format string, args ...any) *Error {
	return newf(BatchParse, "BatchParseError", format, args...)
}

// Transportf builds a Transport-kind error (network, timeout,
// disconnect). This kind always fails the whole batch rather than one
// item.
func Transportf(format string, args ...any) *Error {
	return newf(Transport, "TransportError", format, args...)
}

// Serializationf builds a Serialization-kind error (value not encodable),
// reported on the origin side.
func Serializationf(format string, args ...any) *Error {
	return newf(Serialization, "SerializationError", format, args...)
}

// AsError extracts a *Error from err, returning ok=false for plain errors
// (e.g. ones returned directly by a host method with no classification).
func AsError(err error) (*Error, bool) {
	ce, ok := err.(*Error)
	return ce, ok
}
