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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cider/chainrpc/chain"
	"github.com/cider/chainrpc/chainerr"
	"github.com/cider/chainrpc/wire"
)

var errNoSuchMember = errors.New("no such member")

// getMember resolves a single Get operation against cur, which may be a
// struct (field or method), a map with string keys, or a slice/array
// (index key). Bound methods obtained here already carry their receiver
// via reflect's method-value semantics, so a later Apply invokes the
// method on the object the Get selected it from.
func getMember(cur reflect.Value, key chain.Key) (reflect.Value, error) {
	cur = deref(cur)
	if !cur.IsValid() {
		return reflect.Value{}, errNoSuchMember
	}

	switch cur.Kind() {
	case reflect.Map:
		if key.IsIndex() {
			return reflect.Value{}, errNoSuchMember
		}
		v := cur.MapIndex(reflect.ValueOf(key.NameOf()))
		if !v.IsValid() {
			return reflect.Value{}, errNoSuchMember
		}
		return v, nil

	case reflect.Slice, reflect.Array:
		if !key.IsIndex() {
			return reflect.Value{}, errNoSuchMember
		}
		i := int(key.IndexOf())
		if i < 0 || i >= cur.Len() {
			return reflect.Value{}, errNoSuchMember
		}
		return cur.Index(i), nil

	case reflect.Struct:
		if key.IsIndex() {
			return reflect.Value{}, errNoSuchMember
		}
		name := key.NameOf()
		if f := cur.FieldByName(exportedName(name)); f.IsValid() {
			return f, nil
		}
		addressable := cur
		if cur.CanAddr() {
			addressable = cur.Addr()
		} else {
			// Methods with pointer receivers are unreachable on a
			// non-addressable struct; fall back to an addressable copy so
			// they resolve too (bound to the copy, not the original).
			ptr := reflect.New(cur.Type())
			ptr.Elem().Set(cur)
			addressable = ptr
		}
		if m := addressable.MethodByName(exportedName(name)); m.IsValid() {
			return m, nil
		}
		return reflect.Value{}, errNoSuchMember

	default:
		return reflect.Value{}, errNoSuchMember
	}
}

// exportedName upper-cases the first rune so a wire member name ("get")
// can reach a Go-exported identifier ("Get"), since the wire grammar's
// keys are ordinary lower-camel strings but only exported Go identifiers
// are reachable via reflection.
func exportedName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - ('a' - 'A')
	}
	return string(r)
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isCallable(v reflect.Value) bool {
	v = deref(v)
	return v.IsValid() && v.Kind() == reflect.Func
}

// invoke calls fn with args, honoring the Go convention of an optional
// trailing error return value; a panic inside fn is recovered and
// reported as a host-thrown error rather than crashing the dispatcher.
func invoke(ctx context.Context, receiver, fn reflect.Value, args []any) (result any, err error) {
	fn = deref(fn)
	defer func() {
		if r := recover(); r != nil {
			err = chainerr.NewHostThrown("Error", fmt.Sprintf("%v", r), nil, nil)
		}
	}()

	ft := fn.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		in = append(in, coerceArg(a, paramType(ft, i)))
	}
	if ft.NumIn() > 0 && ft.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		if !last.IsNil() {
			e := last.Interface().(error)
			if ce, ok := chainerr.AsError(e); ok {
				return nil, ce
			}
			return nil, chainerr.NewHostThrown("Error", e.Error(), nil, e)
		}
		if len(out) == 1 {
			return nil, nil
		}
		return out[0].Interface(), nil
	}
	if len(out) == 1 {
		return out[0].Interface(), nil
	}
	vals := make([]any, len(out))
	for i, o := range out {
		vals[i] = o.Interface()
	}
	return vals, nil
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
		offset = 1
	}
	if i+offset < ft.NumIn() {
		return ft.In(i + offset)
	}
	return reflect.TypeOf((*any)(nil)).Elem()
}

// coerceArg converts a decoded wire argument into the reflect.Value a host
// method parameter expects. Arguments that arrived as one of the
// codec-friendly wire stand-ins for *regexp.Regexp/*big.Int/HTTP-shaped
// values (wire.DecodeNativeValue) are converted back to their native Go
// type first, so host methods see the real type they declared rather than
// a RegExpValue/BigIntValue/etc. map.
func coerceArg(a any, t reflect.Type) reflect.Value {
	if a == nil {
		return reflect.Zero(t)
	}
	if native, ok := wire.DecodeNativeValue(a); ok {
		a = native
	}
	av := reflect.ValueOf(a)
	if t == nil || t.Kind() == reflect.Interface {
		return av
	}
	if av.Type().AssignableTo(t) {
		return av
	}
	if av.Type().ConvertibleTo(t) {
		return av.Convert(t)
	}
	return av
}
