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
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/tchap/gocli"

	"github.com/cider/chainrpc/client"
	httptransport "github.com/cider/chainrpc/transport/http"
)

// benchCommand loops batched Increment calls against a running "serve"
// instance and reports elapsed time and calls/sec.
var (
	benchURL     string
	benchThreads int
	benchN       int
)

var benchCommand = &gocli.Command{
	UsageLine: `bench [-url=BASEURL] [-threads=N] [-n=N]`,
	Short:     "measure batched-call throughput against a running chainrpc server",
	Action:    runBench,
}

func init() {
	benchCommand.Flags.StringVar(&benchURL, "url", "http://localhost:8765", "server base URL")
	benchCommand.Flags.IntVar(&benchThreads, "threads", 1, "number of OS threads to use")
	benchCommand.Flags.IntVar(&benchN, "n", 1000, "number of increment calls per thread")
}

func runBench(cmd *gocli.Command, args []string) {
	log.SetFlags(0)
	if benchThreads < 1 {
		log.Fatalf("invalid -threads value: %v", benchThreads)
	}
	runtime.GOMAXPROCS(benchThreads)
	log.Printf("Using %v thread(s), %v calls each\n", benchThreads, benchN)

	transport := httptransport.NewClient(benchURL, "/__rpc", "counter", "default")
	c := client.NewClient(transport)

	var wg sync.WaitGroup
	start := time.Now()
	for t := 0; t < benchThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < benchN; i++ {
				if _, err := c.Call("increment", int64(1)).Await(context.Background()); err != nil {
					log.Printf("call failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	total := benchThreads * benchN
	log.Printf("Completed %d calls in %v (%.1f calls/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
}
