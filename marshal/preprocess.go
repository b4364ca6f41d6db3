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

// Package marshal implements the result-graph marshaller: converting host
// values to wire values with callables replaced by RemoteFunctionMarkers
// (Preprocess), and converting wire values back to client-usable values
// with markers replaced by invocable handles (Postprocess). Both
// directions preserve object identity across cycles by installing the
// output node into a seen-map before descending into children.
package marshal

import (
	"fmt"
	"reflect"
	"time"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/wire"
)

// isPassthrough reports values carried to the wire encoder unchanged: the
// encoder (wire.Encode*, backed by ugorji/go/codec) already preserves
// them, so the marshaller must not walk their fields. Values the codec
// cannot serialize directly (*regexp.Regexp, *big.Int, HTTP-shaped types)
// are NOT passthrough — wire.EncodeNativeValue, checked earlier in
// preprocess, converts them into codec-friendly wire stand-ins instead.
func isPassthrough(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Interface().(type) {
	case time.Time, *wire.ErrorValue, wire.OrderedMap, wire.Set:
		return true
	}
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Interface &&
		v.Type() != reflect.TypeOf([]any(nil)) {
		// Raw byte buffers and typed numeric buffers pass through whole.
		switch v.Type().Elem().Kind() {
		case reflect.Uint8, reflect.Int8, reflect.Int16, reflect.Uint16,
			reflect.Int32, reflect.Uint32, reflect.Int64, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
	}
	return false
}

// Preprocess walks v (a host-side value reachable from the dispatcher's
// chain execution) and produces its wire form, with base as the absolute
// operation chain from the host root that reached v. Every
// RemoteFunctionMarker minted during the walk extends base, so a client
// re-invoking the marker replays the full path from the root.
func Preprocess(v any, base chain.Chain) any {
	seen := make(map[uintptr]any)
	return preprocess(reflect.ValueOf(v), base, seen, false)
}

// PreprocessInspect is the asObject diagnostic's marshalling mode:
// identical to Preprocess except every callable leaf is rendered as the
// literal string "<name> [Function]" instead of a RemoteFunctionMarker,
// since asObject's whole point is to let a caller see the host's object
// shape without minting new handles for every method it finds.
func PreprocessInspect(v any, base chain.Chain) any {
	seen := make(map[uintptr]any)
	return preprocess(reflect.ValueOf(v), base, seen, true)
}

func preprocess(rv reflect.Value, base chain.Chain, seen map[uintptr]any, asObject bool) any {
	if !rv.IsValid() {
		return nil
	}

	if converted, ok := wire.EncodeNativeValue(rv.Interface()); ok {
		return converted
	}

	if err, ok := rv.Interface().(error); ok && !isWireError(rv) {
		return errorToWire(err)
	}

	if isPassthrough(rv) {
		return rv.Interface()
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return preprocess(rv.Elem(), base, seen, asObject)

	case reflect.Slice, reflect.Array:
		var key uintptr
		if rv.Kind() == reflect.Slice {
			key = rv.Pointer()
			if out, ok := seen[key]; ok {
				return out
			}
		}
		n := rv.Len()
		out := make([]any, n)
		if key != 0 {
			seen[key] = out
		}
		for i := 0; i < n; i++ {
			out[i] = preprocess(rv.Index(i), base.Extend(chain.GetOp(chain.IndexKey(int64(i)))), seen, asObject)
		}
		return out

	case reflect.Map:
		key := rv.Pointer()
		if out, ok := seen[key]; ok {
			return out
		}
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			seen[key] = out
			iter := rv.MapRange()
			for iter.Next() {
				k := iter.Key().String()
				out[k] = preprocess(iter.Value(), base.Extend(chain.GetOp(chain.StringKey(k))), seen, asObject)
			}
			return out
		}
		// Non-string-keyed Go maps model the wire grammar's ordered Map
		// container: key order is not guaranteed by Go map iteration, so
		// this is a best-effort encode; callers that need deterministic
		// Map order should produce wire.OrderedMap directly.
		om := wire.OrderedMap{}
		iter := rv.MapRange()
		for iter.Next() {
			om.Keys = append(om.Keys, preprocess(iter.Key(), base, seen, asObject))
			om.Values = append(om.Values, preprocess(iter.Value(), base, seen, asObject))
		}
		return om

	case reflect.Struct, reflect.Func:
		return preprocessObject(rv, base, seen, asObject)

	default:
		return rv.Interface()
	}
}

// preprocessObject converts a struct (or bare function value) into its
// wire shape: a fresh output map is installed into the seen-map BEFORE
// descending, stabilising cycles, then exported fields are enumerated;
// function-typed values become RemoteFunctionMarkers (or, in asObject
// mode, "<name> [Function]" strings), and the value's method set is
// walked for callables not shadowed by a field of the same name.
func preprocessObject(rv reflect.Value, base chain.Chain, seen map[uintptr]any, asObject bool) any {
	if rv.Kind() == reflect.Func {
		// A bare function value reached directly (e.g. a slice element)
		// has no name to hang a member key on; the caller's base chain is
		// itself the chain to reach it.
		if asObject {
			return functionLabel(lastKeyName(base))
		}
		return wire.RemoteFunctionMarker{
			IsRemoteFunction: true,
			OperationChain:   base,
			FunctionName:     "",
		}
	}

	var key uintptr
	if rv.CanAddr() {
		key = rv.UnsafeAddr()
		if out, ok := seen[key]; ok {
			return out
		}
	}

	out := make(map[string]any)
	if rv.CanAddr() {
		seen[key] = out
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := wireFieldName(f)
		fv := rv.Field(i)
		if fv.Kind() == reflect.Func {
			if fv.IsNil() {
				continue
			}
			if asObject {
				out[name] = functionLabel(name)
			} else {
				out[name] = wire.NewRemoteFunctionMarker(base, chain.StringKey(name))
			}
			continue
		}
		out[name] = preprocess(fv, base.Extend(chain.GetOp(chain.StringKey(name))), seen, asObject)
	}

	// Walk the method set (of the addressable value or its pointer) for
	// callables not already claimed by a field of the same name. Method
	// promotion from embedded structs already resolves shadowing, so
	// every reachable method appears exactly once.
	methodSrc := rv
	if rv.CanAddr() {
		methodSrc = rv.Addr()
	}
	mt := methodSrc.Type()
	for i := 0; i < mt.NumMethod(); i++ {
		m := mt.Method(i)
		if !m.IsExported() {
			continue
		}
		if _, shadowed := out[m.Name]; shadowed {
			continue
		}
		if asObject {
			out[m.Name] = functionLabel(m.Name)
		} else {
			out[m.Name] = wire.NewRemoteFunctionMarker(base, chain.StringKey(m.Name))
		}
	}

	return out
}

// functionLabel renders a callable leaf in asObject mode as the literal
// string "<name> [Function]".
func functionLabel(name string) string {
	return fmt.Sprintf("%s [Function]", name)
}

// lastKeyName extracts the member name of base's final Get operation, if
// any, for labeling a bare function value reached directly (asObject mode
// has no field/method name to fall back on otherwise).
func lastKeyName(base chain.Chain) string {
	if len(base) == 0 {
		return ""
	}
	last := base[len(base)-1]
	if last.Kind == chain.Get {
		return last.Key.String()
	}
	return ""
}

func wireFieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("chainrpc"); ok && tag != "" && tag != "-" {
		return tag
	}
	return f.Name
}

func isWireError(rv reflect.Value) bool {
	_, ok := rv.Interface().(*wire.ErrorValue)
	return ok
}

func errorToWire(err error) *wire.ErrorValue {
	if we, ok := err.(*wire.ErrorValue); ok {
		return we
	}
	if ce, ok := chainerr.AsError(err); ok {
		return &wire.ErrorValue{Name: ce.Name, Message: ce.Msg, Properties: ce.Fields}
	}
	type named interface{ Name() string }
	name := "Error"
	if n, ok := err.(named); ok {
		name = n.Name()
	}
	return &wire.ErrorValue{Name: name, Message: err.Error()}
}
