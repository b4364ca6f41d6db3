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
	"reflect"

	"github.com/ugorji/go/codec"
)

// handle is the single symmetric msgpack handle used to encode/decode
// batch envelopes on both sides. The settings matter for the marker
// recognition path: values embedded in any-typed fields (Apply args,
// Result.Value) decode generically, and RecognizeNested/
// RecognizeRemoteFunction need string-keyed maps with string values and
// signed integers to come back as map[string]any / string / int64 rather
// than map[interface{}]interface{} / []byte / uint64.
var handle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.Canonical = true
	h.RawToString = true
	h.SignedInteger = true
	h.WriteExt = true
	h.TimeNotBuiltin = false
	h.Raw = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	return h
}()

// EncodeRequest serializes a BatchRequest to wire bytes.
func EncodeRequest(req BatchRequest) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, handle).Encode(req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses wire bytes into a BatchRequest.
func DecodeRequest(data []byte) (BatchRequest, error) {
	var req BatchRequest
	err := codec.NewDecoderBytes(data, handle).Decode(&req)
	return req, err
}

// EncodeResponse serializes a BatchResponse to wire bytes.
func EncodeResponse(resp BatchResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, handle).Encode(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses wire bytes into a BatchResponse.
func DecodeResponse(data []byte) (BatchResponse, error) {
	var resp BatchResponse
	err := codec.NewDecoderBytes(data, handle).Decode(&resp)
	return resp, err
}

// EncodeValue serializes an arbitrary value using the same handle, for
// callers (frame bodies, dedup keys, tests) that need to round-trip a
// single value outside a full batch envelope.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, handle).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue parses wire bytes into dst using the same handle.
func DecodeValue(data []byte, dst any) error {
	return codec.NewDecoderBytes(data, handle).Decode(dst)
}
