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

package wire

// OrderedMap is the wire representation of an ordered key-value
// container: unlike a plain
// string-keyed mapping, a Map's keys can be arbitrary values and insertion
// order is significant, so it is carried as parallel slices rather than a
// Go map.
type OrderedMap struct {
	Keys   []any `codec:"keys"`
	Values []any `codec:"values"`
}

// Set is the wire representation of the "unordered unique container
// (Set)" member. Uniqueness is the producer's responsibility; the wire
// form is simply the member list.
type Set struct {
	Items []any `codec:"items"`
}

// ErrorValue is the wire representation of an error: name, message,
// optional stack, and arbitrary own properties.
type ErrorValue struct {
	Name       string         `codec:"name"`
	Message    string         `codec:"message"`
	Stack      string         `codec:"stack,omitempty"`
	Properties map[string]any `codec:"properties,omitempty"`
}

func (e *ErrorValue) Error() string { return e.Name + ": " + e.Message }

// RegExpValue is the wire stand-in for a regular expression.
// *regexp.Regexp carries only unexported internal state, which
// the reflection-based codec.MsgpackHandle in codec.go cannot walk, so
// Preprocess/Postprocess convert to and from this plain-field shape at the
// marshal boundary instead of handing the codec a type it would silently
// serialize as an empty struct.
type RegExpValue struct {
	IsRegExp bool   `codec:"isRegExp"`
	Source   string `codec:"source"`
}

// BigIntValue is the wire stand-in for an arbitrary-precision integer,
// carried as its decimal string form (sign
// included) since *big.Int, like *regexp.Regexp, exposes no fields the
// codec could serialize directly.
type BigIntValue struct {
	IsBigInt bool   `codec:"isBigInt"`
	Value    string `codec:"value"`
}

// HTTPRequestValue, HTTPResponseValue, and URLValue are the wire
// stand-ins for HTTP-shaped values:
// *http.Request/*http.Response/*url.URL all carry
// unexported fields the codec cannot walk, so these plain, exported-field
// structs cross the wire in their place.
type HTTPRequestValue struct {
	IsHTTPRequest bool                `codec:"isHTTPRequest"`
	Method        string              `codec:"method"`
	URL           string              `codec:"url"`
	Header        map[string][]string `codec:"header,omitempty"`
	Body          []byte              `codec:"body,omitempty"`
}

type HTTPResponseValue struct {
	IsHTTPResponse bool                `codec:"isHTTPResponse"`
	StatusCode     int                 `codec:"statusCode"`
	Header         map[string][]string `codec:"header,omitempty"`
	Body           []byte              `codec:"body,omitempty"`
}

type URLValue struct {
	IsURL bool   `codec:"isURL"`
	Href  string `codec:"href"`
}
