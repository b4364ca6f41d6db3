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

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"regexp"

	"github.com/cider/chainrpc/chain"
)

// RecognizeNested detects whether a generically-decoded value (a
// map[string]any produced when the codec decodes a marker embedded inside
// an `any`-typed field, e.g. an Apply argument) is a NestedOperationMarker,
// and reconstructs it. This mirrors the real protocol's own technique of
// tagging reserved shapes with a boolean sentinel field rather than relying
// on static typing, since decoded Apply arguments have no static Go type.
func RecognizeNested(v any) (NestedOperationMarker, bool) {
	switch t := v.(type) {
	case NestedOperationMarker:
		return t, t.IsNestedOperation
	case *NestedOperationMarker:
		if t == nil {
			return NestedOperationMarker{}, false
		}
		return *t, t.IsNestedOperation
	}

	m, ok := asGenericMap(v)
	if !ok {
		return NestedOperationMarker{}, false
	}
	if flag, ok := m["isNestedOperation"].(bool); !ok || !flag {
		return NestedOperationMarker{}, false
	}
	marker := NestedOperationMarker{IsNestedOperation: true}
	if refID, ok := m["refId"].(string); ok {
		marker.RefID = refID
	}
	if raw, ok := m["operationChain"]; ok && raw != nil {
		c, err := DecodeGenericChain(raw)
		if err == nil {
			marker.OperationChain = c
		}
	}
	return marker, true
}

// RecognizeRemoteFunction detects and reconstructs a RemoteFunctionMarker
// from its generic decoded shape.
func RecognizeRemoteFunction(v any) (RemoteFunctionMarker, bool) {
	switch t := v.(type) {
	case RemoteFunctionMarker:
		return t, t.IsRemoteFunction
	case *RemoteFunctionMarker:
		if t == nil {
			return RemoteFunctionMarker{}, false
		}
		return *t, t.IsRemoteFunction
	}

	m, ok := asGenericMap(v)
	if !ok {
		return RemoteFunctionMarker{}, false
	}
	if flag, ok := m["isRemoteFunction"].(bool); !ok || !flag {
		return RemoteFunctionMarker{}, false
	}
	marker := RemoteFunctionMarker{IsRemoteFunction: true}
	if name, ok := m["functionName"].(string); ok {
		marker.FunctionName = name
	}
	if raw, ok := m["operationChain"]; ok && raw != nil {
		c, err := DecodeGenericChain(raw)
		if err == nil {
			marker.OperationChain = c
		}
	}
	return marker, true
}

// RecognizeRegExp, RecognizeBigInt, RecognizeHTTPRequest,
// RecognizeHTTPResponse, and RecognizeURL each detect and reconstruct one
// of the plain-struct wire stand-ins for a type the codec cannot serialize
// directly (see containers.go), using the same sentinel-field technique as
// RecognizeNested/RecognizeRemoteFunction above.
func RecognizeRegExp(v any) (RegExpValue, bool) {
	switch t := v.(type) {
	case RegExpValue:
		return t, t.IsRegExp
	case *RegExpValue:
		if t == nil {
			return RegExpValue{}, false
		}
		return *t, t.IsRegExp
	}
	m, ok := asGenericMap(v)
	if !ok {
		return RegExpValue{}, false
	}
	if flag, ok := m["isRegExp"].(bool); !ok || !flag {
		return RegExpValue{}, false
	}
	src, _ := m["source"].(string)
	return RegExpValue{IsRegExp: true, Source: src}, true
}

func RecognizeBigInt(v any) (BigIntValue, bool) {
	switch t := v.(type) {
	case BigIntValue:
		return t, t.IsBigInt
	case *BigIntValue:
		if t == nil {
			return BigIntValue{}, false
		}
		return *t, t.IsBigInt
	}
	m, ok := asGenericMap(v)
	if !ok {
		return BigIntValue{}, false
	}
	if flag, ok := m["isBigInt"].(bool); !ok || !flag {
		return BigIntValue{}, false
	}
	val, _ := m["value"].(string)
	return BigIntValue{IsBigInt: true, Value: val}, true
}

func RecognizeHTTPRequest(v any) (HTTPRequestValue, bool) {
	switch t := v.(type) {
	case HTTPRequestValue:
		return t, t.IsHTTPRequest
	case *HTTPRequestValue:
		if t == nil {
			return HTTPRequestValue{}, false
		}
		return *t, t.IsHTTPRequest
	}
	m, ok := asGenericMap(v)
	if !ok {
		return HTTPRequestValue{}, false
	}
	if flag, ok := m["isHTTPRequest"].(bool); !ok || !flag {
		return HTTPRequestValue{}, false
	}
	out := HTTPRequestValue{IsHTTPRequest: true}
	out.Method, _ = m["method"].(string)
	out.URL, _ = m["url"].(string)
	out.Header = asStringSliceMap(m["header"])
	out.Body, _ = asBytes(m["body"])
	return out, true
}

func RecognizeHTTPResponse(v any) (HTTPResponseValue, bool) {
	switch t := v.(type) {
	case HTTPResponseValue:
		return t, t.IsHTTPResponse
	case *HTTPResponseValue:
		if t == nil {
			return HTTPResponseValue{}, false
		}
		return *t, t.IsHTTPResponse
	}
	m, ok := asGenericMap(v)
	if !ok {
		return HTTPResponseValue{}, false
	}
	if flag, ok := m["isHTTPResponse"].(bool); !ok || !flag {
		return HTTPResponseValue{}, false
	}
	out := HTTPResponseValue{IsHTTPResponse: true}
	if code, ok := asInt(m["statusCode"]); ok {
		out.StatusCode = int(code)
	}
	out.Header = asStringSliceMap(m["header"])
	out.Body, _ = asBytes(m["body"])
	return out, true
}

func RecognizeURL(v any) (URLValue, bool) {
	switch t := v.(type) {
	case URLValue:
		return t, t.IsURL
	case *URLValue:
		if t == nil {
			return URLValue{}, false
		}
		return *t, t.IsURL
	}
	m, ok := asGenericMap(v)
	if !ok {
		return URLValue{}, false
	}
	if flag, ok := m["isURL"].(bool); !ok || !flag {
		return URLValue{}, false
	}
	href, _ := m["href"].(string)
	return URLValue{IsURL: true, Href: href}, true
}

func asStringSliceMap(v any) map[string][]string {
	if v == nil {
		return nil
	}
	if h, ok := v.(map[string][]string); ok {
		return h
	}
	m, ok := asGenericMap(v)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, raw := range m {
		switch vals := raw.(type) {
		case []string:
			out[k] = vals
		case []any:
			strs := make([]string, 0, len(vals))
			for _, e := range vals {
				if s, ok := e.(string); ok {
					strs = append(strs, s)
				}
			}
			out[k] = strs
		}
	}
	return out
}

func asBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case []byte:
		return t, true
	case nil:
		return nil, false
	default:
		return nil, false
	}
}

// EncodeNativeValue converts a host-side value the codec cannot serialize
// directly (*regexp.Regexp, *big.Int, *http.Request, *http.Response,
// http.Header, *url.URL) into its plain-struct wire stand-in. ok is false
// for anything the codec already handles natively.
func EncodeNativeValue(v any) (any, bool) {
	switch t := v.(type) {
	case *regexp.Regexp:
		if t == nil {
			return nil, false
		}
		return RegExpValue{IsRegExp: true, Source: t.String()}, true
	case *big.Int:
		if t == nil {
			return nil, false
		}
		return BigIntValue{IsBigInt: true, Value: t.String()}, true
	case *http.Request:
		if t == nil {
			return nil, false
		}
		var body []byte
		if t.Body != nil {
			body, _ = io.ReadAll(t.Body)
			t.Body = io.NopCloser(bytes.NewReader(body))
		}
		href := ""
		if t.URL != nil {
			href = t.URL.String()
		}
		return HTTPRequestValue{
			IsHTTPRequest: true,
			Method:        t.Method,
			URL:           href,
			Header:        map[string][]string(t.Header),
			Body:          body,
		}, true
	case *http.Response:
		if t == nil {
			return nil, false
		}
		var body []byte
		if t.Body != nil {
			body, _ = io.ReadAll(t.Body)
			t.Body = io.NopCloser(bytes.NewReader(body))
		}
		return HTTPResponseValue{
			IsHTTPResponse: true,
			StatusCode:     t.StatusCode,
			Header:         map[string][]string(t.Header),
			Body:           body,
		}, true
	case http.Header:
		return map[string][]string(t), true
	case *url.URL:
		if t == nil {
			return nil, false
		}
		return URLValue{IsURL: true, Href: t.String()}, true
	default:
		return nil, false
	}
}

// DecodeNativeValue converts a decoded wire stand-in (RegExpValue,
// BigIntValue, HTTPRequestValue, HTTPResponseValue, URLValue) back into
// its native Go equivalent. ok is false for anything that isn't one of
// these stand-ins, in which case callers fall back to their own generic
// handling.
func DecodeNativeValue(v any) (any, bool) {
	if rx, ok := RecognizeRegExp(v); ok {
		re, err := regexp.Compile(rx.Source)
		if err != nil {
			return nil, false
		}
		return re, true
	}
	if bi, ok := RecognizeBigInt(v); ok {
		n := new(big.Int)
		if _, ok := n.SetString(bi.Value, 10); !ok {
			return nil, false
		}
		return n, true
	}
	if hr, ok := RecognizeHTTPRequest(v); ok {
		u, err := url.Parse(hr.URL)
		if err != nil {
			u = &url.URL{}
		}
		req := &http.Request{Method: hr.Method, URL: u, Header: http.Header(hr.Header)}
		if len(hr.Body) > 0 {
			req.Body = io.NopCloser(bytes.NewReader(hr.Body))
		}
		return req, true
	}
	if hrsp, ok := RecognizeHTTPResponse(v); ok {
		resp := &http.Response{StatusCode: hrsp.StatusCode, Header: http.Header(hrsp.Header)}
		if len(hrsp.Body) > 0 {
			resp.Body = io.NopCloser(bytes.NewReader(hrsp.Body))
		}
		return resp, true
	}
	if u, ok := RecognizeURL(v); ok {
		parsed, err := url.Parse(u.Href)
		if err != nil {
			return nil, false
		}
		return parsed, true
	}
	return nil, false
}

func asGenericMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// DecodeGenericChain reconstructs a chain.Chain from the generically
// decoded representation produced when a Chain value was embedded inside
// an `any`-typed field (so the codec could not decode it directly into
// chain.Chain).
func DecodeGenericChain(v any) (chain.Chain, error) {
	items, ok := v.([]any)
	if !ok {
		if items2, ok2 := v.([]interface{}); ok2 {
			items = items2
		} else {
			return nil, errNotAChain
		}
	}
	out := make(chain.Chain, 0, len(items))
	for _, item := range items {
		op, err := decodeGenericOperation(item)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func decodeGenericOperation(v any) (chain.Operation, error) {
	m, ok := asGenericMap(v)
	if !ok {
		return chain.Operation{}, errNotAChain
	}
	kind := chain.Get
	if k, ok := asInt(m["kind"]); ok && k == int64(chain.Apply) {
		kind = chain.Apply
	}
	op := chain.Operation{Kind: kind}
	if raw, ok := m["key"]; ok && raw != nil {
		if km, ok := asGenericMap(raw); ok {
			isIdx, _ := km["isIdx"].(bool)
			if isIdx {
				idx, _ := asInt(km["index"])
				op.Key = chain.IndexKey(idx)
			} else {
				name, _ := km["name"].(string)
				op.Key = chain.StringKey(name)
			}
		}
	}
	if raw, ok := m["args"]; ok && raw != nil {
		if args, ok := raw.([]any); ok {
			op.Args = args
		} else if args2, ok := raw.([]interface{}); ok {
			op.Args = []any(args2)
		}
	}
	return op, nil
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float64:
		return int64(t), true
	case uint8:
		return int64(t), true
	default:
		return 0, false
	}
}

var errNotAChain = genericChainError("wire: value is not an operation chain")

type genericChainError string

func (e genericChainError) Error() string { return string(e) }
