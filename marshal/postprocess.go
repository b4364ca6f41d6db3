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

package marshal

import (
	"reflect"

	"github.com/cider/chainrpc/wire"
)

// MarkerResolver converts a decoded RemoteFunctionMarker into whatever the
// caller's side represents an invocable remote handle as. The client
// package supplies one that builds a *client.Handle rooted at
// marker.OperationChain.
type MarkerResolver func(marker wire.RemoteFunctionMarker) any

// Postprocess walks a decoded wire value and replaces every
// RemoteFunctionMarker with resolve's result, preserving identity across
// cycles the same way Preprocess does.
func Postprocess(v any, resolve MarkerResolver) any {
	seen := make(map[any]any)
	return postprocess(v, resolve, seen)
}

func postprocess(v any, resolve MarkerResolver, seen map[any]any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case wire.RemoteFunctionMarker:
		return resolve(t)
	case *wire.RemoteFunctionMarker:
		return resolve(*t)
	case map[string]any:
		if marker, ok := wire.RecognizeRemoteFunction(t); ok {
			return resolve(marker)
		}
		if native, ok := wire.DecodeNativeValue(t); ok {
			return native
		}
		if out, ok := seen[addrOf(t)]; ok {
			return out
		}
		out := make(map[string]any, len(t))
		seen[addrOf(t)] = out
		for k, child := range t {
			out[k] = postprocess(child, resolve, seen)
		}
		return out
	case []any:
		if out, ok := seen[addrOf(t)]; ok {
			return out
		}
		out := make([]any, len(t))
		seen[addrOf(t)] = out
		for i, child := range t {
			out[i] = postprocess(child, resolve, seen)
		}
		return out
	case wire.OrderedMap:
		om := wire.OrderedMap{Keys: make([]any, len(t.Keys)), Values: make([]any, len(t.Values))}
		for i := range t.Keys {
			om.Keys[i] = postprocess(t.Keys[i], resolve, seen)
		}
		for i := range t.Values {
			om.Values[i] = postprocess(t.Values[i], resolve, seen)
		}
		return om
	case wire.Set:
		s := wire.Set{Items: make([]any, len(t.Items))}
		for i := range t.Items {
			s.Items[i] = postprocess(t.Items[i], resolve, seen)
		}
		return s
	case map[interface{}]interface{}:
		conv := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				conv[ks] = val
			}
		}
		return postprocess(conv, resolve, seen)
	default:
		// Primitives, time.Time, errors, and raw buffers arrive already
		// decoded by the transport codec and pass through unchanged.
		// RegExp/bigint/HTTP-shaped values arrive as stand-in maps and are
		// converted in the map case above; a stand-in handed over in memory
		// in its struct form is not converted and passes through as-is.
		return v
	}
}

// addrOf gives a stable identity key for maps/slices so repeated visits of
// the same underlying node resolve to the same already-built output,
// keeping cyclic inputs cyclic in the output.
// reflect.ValueOf(x).Pointer() is stable for the lifetime of a single
// Postprocess call.
func addrOf(v any) uintptr {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr:
		return rv.Pointer()
	default:
		return 0
	}
}
