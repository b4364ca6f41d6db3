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

import "github.com/ugorji/go/codec"

// Frame is the WebSocket wire envelope: a framed
// `{ type, batch }` for requests/responses, or `{ type, payload }` for
// downstream messages. Batch and Payload are kept as raw encoded bytes
// (codec.Raw) so a Frame can be decoded in one pass to learn Type, then
// its body decoded into the concrete shape (Item vs Result vs arbitrary
// payload) the caller already knows to expect from the message direction.
type Frame struct {
	Type    string    `codec:"type"`
	Batch   codec.Raw `codec:"batch,omitempty"`
	Payload codec.Raw `codec:"payload,omitempty"`
}

// DownstreamFrameType is the reserved Type value for fire-and-forget
// messages.
const DownstreamFrameType = "downstream"

func EncodeFrame(f Frame) ([]byte, error) {
	return EncodeValue(f)
}

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	err := DecodeValue(data, &f)
	return f, err
}

// EncodeRequestFrame builds a `{type, batch}` request frame carrying items.
func EncodeRequestFrame(frameType string, items []Item) ([]byte, error) {
	raw, err := EncodeValue(items)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(Frame{Type: frameType, Batch: raw})
}

// DecodeRequestBatch decodes a frame's Batch field as a request item list.
func DecodeRequestBatch(f Frame) ([]Item, error) {
	var items []Item
	if len(f.Batch) == 0 {
		return nil, nil
	}
	err := DecodeValue(f.Batch, &items)
	return items, err
}

// EncodeResponseFrame builds a `{type, batch}` response frame carrying
// results.
func EncodeResponseFrame(frameType string, results []Result) ([]byte, error) {
	raw, err := EncodeValue(results)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(Frame{Type: frameType, Batch: raw})
}

// DecodeResponseBatch decodes a frame's Batch field as a response result
// list.
func DecodeResponseBatch(f Frame) ([]Result, error) {
	var results []Result
	if len(f.Batch) == 0 {
		return nil, nil
	}
	err := DecodeValue(f.Batch, &results)
	return results, err
}

// EncodeDownstreamFrame builds a `{type: "downstream", payload}` frame.
func EncodeDownstreamFrame(payload any) ([]byte, error) {
	raw, err := EncodeValue(payload)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(Frame{Type: DownstreamFrameType, Payload: raw})
}

// DecodeDownstreamPayload decodes a frame's Payload field generically
// (the application-defined payload shape is not known to chainrpc).
func DecodeDownstreamPayload(f Frame) (any, error) {
	var payload any
	if len(f.Payload) == 0 {
		return nil, nil
	}
	err := DecodeValue(f.Payload, &payload)
	return payload, err
}
