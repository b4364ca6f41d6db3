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
	"fmt"
	"sync"
)

// Counter is the demo host object bound at hostBindingName "counter":
// plain method calls (Increment/Value), a nested object whose methods
// come back as remote handles (Stats), and a host-thrown error path
// (Reset with a negative floor).
type Counter struct {
	mu    sync.Mutex
	value int64
}

func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Increment(by int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += by
	return c.value
}

func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Counter) Reset(floor int64) (int64, error) {
	if floor < 0 {
		return 0, fmt.Errorf("reset floor must be non-negative, got %d", floor)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = floor
	return c.value, nil
}

// Stats returns a nested object whose methods are themselves reachable
// through a further Get/Apply.
func (c *Counter) Stats() *CounterStats {
	return &CounterStats{counter: c}
}

type CounterStats struct {
	counter *Counter
}

func (s *CounterStats) Double() int64 {
	return s.counter.Value() * 2
}

func (s *CounterStats) IsZero() bool {
	return s.counter.Value() == 0
}
