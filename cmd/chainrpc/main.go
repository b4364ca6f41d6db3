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

// Command chainrpc is the demo/smoke-test CLI: a "serve" subcommand
// hosting a small demo object over HTTP and WebSocket, a "call"
// subcommand for firing one operation chain from the shell, and a
// "bench" subcommand looping batched calls to measure throughput.
package main

import (
	"os"

	"github.com/tchap/gocli"
)

const version = "0.1.0"

func main() {
	app := gocli.NewApp("chainrpc")
	app.UsageLine = "chainrpc SUBCMD"
	app.Short = "operation-chain RPC demo"
	app.Version = version
	app.Long = `
  chainrpc demonstrates the operation-chain RPC fabric: record member
  access and calls against a remote object as a chain, batch and pipeline
  them, and execute the batch against a live host object in one round
  trip.`

	app.MustRegisterSubcommand(serveCommand)
	app.MustRegisterSubcommand(callCommand)
	app.MustRegisterSubcommand(benchCommand)

	app.Run(os.Args[1:])
}
