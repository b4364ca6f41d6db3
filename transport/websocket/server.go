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

package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cider/chainrpc/downstream"
	"github.com/cider/chainrpc/wire"
)

// Endpoint is the server's WebSocket handler: it upgrades, detects an
// advertised clientId subprotocol, registers the connection with a
// downstream.Registry for fire-and-forget delivery, and dispatches each
// incoming batch frame to Execute.
type Endpoint struct {
	Execute  func(ctx context.Context, req wire.BatchRequest) wire.BatchResponse
	Registry *downstream.Registry

	// Upgrader is exposed so callers can set CheckOrigin, buffer sizes,
	// etc; a zero value with permissive defaults is used if nil.
	Upgrader *websocket.Upgrader

	frameType string
}

// NewEndpoint builds an Endpoint. prefix determines the frame Type both
// directions use, mirroring Client.frameType.
func NewEndpoint(prefix string, execute func(ctx context.Context, req wire.BatchRequest) wire.BatchResponse, registry *downstream.Registry) *Endpoint {
	return &Endpoint{
		Execute:   execute,
		Registry:  registry,
		frameType: strings.Trim(prefix, "/"),
	}
}

func (e *Endpoint) upgrader() *websocket.Upgrader {
	if e.Upgrader != nil {
		return e.Upgrader
	}
	return &websocket.Upgrader{Subprotocols: []string{Protocol}}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := detectClientID(r)

	conn, err := e.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(payload any) {
		frame, err := wire.EncodeDownstreamFrame(payload)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteMessage(websocket.BinaryMessage, frame)
	}

	if e.Registry != nil && clientID != "" {
		e.Registry.Register(clientID, send)
		defer e.Registry.Unregister(clientID)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wire.DecodeFrame(data)
		if err != nil {
			continue
		}
		items, err := wire.DecodeRequestBatch(frame)
		if err != nil || len(items) == 0 {
			continue
		}

		resp := e.Execute(r.Context(), wire.BatchRequest{Batch: items})
		replyFrame, err := wire.EncodeResponseFrame(e.frameType, resp.Batch)
		if err != nil {
			continue
		}
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.BinaryMessage, replyFrame)
		writeMu.Unlock()
	}
}

// detectClientID extracts "<id>" from a "<Protocol>.clientId.<id>"
// subprotocol offer; the connection is accepted with the base protocol.
func detectClientID(r *http.Request) string {
	const marker = Protocol + ".clientId."
	for _, proto := range websocket.Subprotocols(r) {
		if strings.HasPrefix(proto, marker) {
			return strings.TrimPrefix(proto, marker)
		}
	}
	return ""
}
