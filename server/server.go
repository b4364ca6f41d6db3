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

// Package server wires a dispatcher per host binding to both transports
// (HTTP and WebSocket), sharing one downstream.Registry across all
// bindings so a fire-and-forget push reaches a clientId's WebSocket
// connection whichever binding it dialed; plain HTTP clients register no
// connection and receive no pushes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cider/chainrpc/dispatch"
	"github.com/cider/chainrpc/downstream"
	"github.com/cider/chainrpc/internal/slogx"
	httptransport "github.com/cider/chainrpc/transport/http"
	wstransport "github.com/cider/chainrpc/transport/websocket"
	"github.com/cider/chainrpc/wire"
)

// Binding names one host instance under one hostBindingName; together
// they form the endpoint path
// "{prefix}/{hostBindingName}/{hostInstance}/call".
type Binding struct {
	HostBindingName string
	HostInstance    string
	Host            any
}

// Server multiplexes any number of host bindings behind one prefix.
type Server struct {
	Prefix   string
	Config   dispatch.Config
	Registry *downstream.Registry
	Log      slogx.Logger

	mu    sync.RWMutex
	hosts map[string]*dispatch.Dispatcher
	mux   *http.ServeMux
}

// New builds a Server. prefix defaults to "/__rpc".
func New(prefix string, cfg dispatch.Config) *Server {
	if prefix == "" {
		prefix = "/__rpc"
	}
	s := &Server{
		Prefix:   prefix,
		Config:   cfg,
		Registry: downstream.NewRegistry(),
		Log:      slogx.Default(),
		hosts:    make(map[string]*dispatch.Dispatcher),
		mux:      http.NewServeMux(),
	}
	return s
}

func bindingKey(hostBindingName, hostInstance string) string {
	return hostBindingName + "/" + hostInstance
}

// Register exposes host at {Prefix}/{hostBindingName}/{hostInstance}/call
// over both HTTP and WebSocket.
func (s *Server) Register(b Binding) {
	d := dispatch.New(b.Host, s.Config)
	d.SetLogger(s.Log)

	s.mu.Lock()
	s.hosts[bindingKey(b.HostBindingName, b.HostInstance)] = d
	s.mu.Unlock()

	execute := func(ctx context.Context, req wire.BatchRequest) wire.BatchResponse {
		return d.ExecuteBatch(ctx, req)
	}

	path := fmt.Sprintf("%s/%s/%s/call", strings.TrimRight(s.Prefix, "/"), b.HostBindingName, b.HostInstance)
	httpHandler := &httptransport.Handler{Execute: execute}
	wsEndpoint := wstransport.NewEndpoint(s.Prefix, execute, s.Registry)

	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			wsEndpoint.ServeHTTP(w, r)
			return
		}
		httpHandler.ServeHTTP(w, r)
	})
	s.Log.Info("server: host bound", "hostBindingName", b.HostBindingName, "hostInstance", b.HostInstance, "path", path)
}

// Publish sends a fire-and-forget payload to clientID if it currently
// has a live WebSocket connection registered.
func (s *Server) Publish(clientID string, payload any) bool {
	return s.Registry.Publish(clientID, payload)
}

// ServeHTTP implements http.Handler, dispatching by the registered paths.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
