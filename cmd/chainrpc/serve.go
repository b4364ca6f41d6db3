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

package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tchap/gocli"

	"github.com/cider/chainrpc/config"
	"github.com/cider/chainrpc/server"
)

var (
	serveListen     string
	servePrefix     string
	serveConfigPath string
)

var serveCommand = &gocli.Command{
	UsageLine: `serve [-listen=ADDRESS] [-prefix=PREFIX] [-config=FILE]`,
	Short:     "host the demo counter object over HTTP and WebSocket",
	Long: `
  Start a server exposing the demo Counter object at
  PREFIX/counter/default/call over both HTTP and WebSocket. -config loads
  a YAML file; -prefix overrides its prefix field; -listen sets the
  listen address.`,
	Action: runServe,
}

func init() {
	serveCommand.Flags.StringVar(&serveListen, "listen", "localhost:8765", "network address to listen on")
	serveCommand.Flags.StringVar(&servePrefix, "prefix", "", "URL prefix for the RPC endpoint (overrides -config)")
	serveCommand.Flags.StringVar(&serveConfigPath, "config", "", "optional YAML config file")
}

func runServe(cmd *gocli.Command, args []string) {
	log.SetFlags(0)
	if len(args) != 0 {
		cmd.Usage()
		os.Exit(2)
	}
	data := []byte("{}")
	if serveConfigPath != "" {
		var err error
		data, err = os.ReadFile(serveConfigPath)
		if err != nil {
			log.Fatalf("reading config: %v", err)
		}
	}
	cfg, err := config.ParseConfig(data)
	if err != nil {
		log.Fatalf("parsing config: %v", err)
	}
	if servePrefix != "" {
		if err := cfg.Merge(map[string]any{"server": map[string]any{"prefix": servePrefix}}); err != nil {
			log.Fatalf("applying -prefix override: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	srv := server.New(cfg.Server.Prefix, cfg.DispatchConfig())
	srv.Register(server.Binding{
		HostBindingName: "counter",
		HostInstance:    "default",
		Host:            NewCounter(),
	})

	httpServer := &http.Server{Addr: serveListen, Handler: srv}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Printf("chainrpc serving on %v%v/counter/default/call\n", serveListen, cfg.Server.Prefix)

	select {
	case <-signalCh:
		log.Println("interrupted, shutting down")
		_ = httpServer.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}
}
