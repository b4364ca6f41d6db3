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
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tchap/gocli"

	"github.com/cider/chainrpc/client"
	httptransport "github.com/cider/chainrpc/transport/http"
)

var (
	callBaseURL string
	callPrefix  string
)

var callCommand = &gocli.Command{
	UsageLine: `call [-url=BASEURL] [-prefix=PREFIX] METHOD [ARG...]`,
	Short:     "invoke one method on the demo counter host and print the result",
	Long: `
  Call METHOD on the demo Counter host over HTTP, passing each ARG as an
  int64 argument if it parses as an integer and as a string otherwise,
  and print the awaited result.`,
	Action: runCall,
}

func init() {
	callCommand.Flags.StringVar(&callBaseURL, "url", "http://localhost:8765", "server base URL")
	callCommand.Flags.StringVar(&callPrefix, "prefix", "/__rpc", "URL prefix for the RPC endpoint")
}

func runCall(cmd *gocli.Command, args []string) {
	log.SetFlags(0)
	if len(args) < 1 {
		cmd.Usage()
		os.Exit(2)
	}
	method := args[0]

	callArgs := make([]any, 0, len(args)-1)
	for _, raw := range args[1:] {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			callArgs = append(callArgs, n)
			continue
		}
		callArgs = append(callArgs, raw)
	}

	transport := httptransport.NewClient(callBaseURL, callPrefix, "counter", "default")
	c := client.NewClient(transport)

	val, err := c.Call(method, callArgs...).Await(context.Background())
	if err != nil {
		log.Fatalf("call failed: %v", err)
	}
	fmt.Printf("%v\n", val)
}
