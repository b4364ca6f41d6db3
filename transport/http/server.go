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

package http

import (
	"context"
	"io"
	"net/http"

	"github.com/cider/chainrpc/wire"
)

// BatchExecutor is the server-side hook a Handler calls per request; the
// server package's host registry supplies one bound to a specific
// (hostBindingName, hostInstance) dispatcher.
type BatchExecutor func(ctx context.Context, req wire.BatchRequest) wire.BatchResponse

// Handler serves POST {prefix}/{hostBindingName}/{hostInstance}/call.
// Routing from hostBindingName/hostInstance to a
// BatchExecutor is the caller's responsibility (see server.Server.Register);
// Handler itself just decodes, dispatches, and encodes.
type Handler struct {
	Execute BatchExecutor
}

func NewHandler(execute BatchExecutor) *Handler {
	return &Handler{Execute: execute}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeParseError(w, "reading request body: "+err.Error())
		return
	}

	req, err := wire.DecodeRequest(body)
	if err != nil {
		writeParseError(w, "decoding batch request: "+err.Error())
		return
	}

	resp := h.Execute(r.Context(), req)

	status := http.StatusOK
	for _, item := range resp.Batch {
		if !item.Success {
			status = http.StatusInternalServerError
			break
		}
	}

	encoded, err := wire.EncodeResponse(resp)
	if err != nil {
		writeParseError(w, "encoding batch response: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	w.Write(encoded)
}

// writeParseError emits the single synthetic id="parse-error" item used
// when the request envelope itself could not be read or decoded, and also
// when the response envelope could not be encoded.
func writeParseError(w http.ResponseWriter, msg string) {
	resp := wire.BatchResponse{Batch: []wire.Result{{
		ID:      wire.ParseErrorID,
		Success: false,
		Err:     &wire.ErrorValue{Name: "BatchParseError", Message: msg},
	}}}
	encoded, err := wire.EncodeResponse(resp)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusBadRequest)
	if err == nil {
		w.Write(encoded)
	}
}
