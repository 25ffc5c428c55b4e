/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package collector keeps every result in memory. It backs tests and embedded use of the engine.
package collector

import (
	"context"
	"sync"

	"github.com/numaproj/numaslice/pkg/isb"
)

// Collector is an in-memory sink.
type Collector struct {
	name    string
	lock    sync.Mutex
	results []isb.Result
	late    []isb.LateRecord
	writes  int
	fail    func(attempt int) error
	closed  bool
}

// New returns an empty Collector.
func New(name string) *Collector {
	return &Collector{name: name}
}

// FailWith installs a function deciding whether the attempt-th write call, starting at 1, fails.
func (c *Collector) FailWith(fail func(attempt int) error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.fail = fail
}

func (c *Collector) GetName() string {
	return c.name
}

func (c *Collector) Write(_ context.Context, results []isb.Result) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.writes++
	if c.fail != nil {
		if err := c.fail(c.writes); err != nil {
			return err
		}
	}
	c.results = append(c.results, results...)
	return nil
}

func (c *Collector) WriteLate(_ context.Context, records []isb.LateRecord) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.late = append(c.late, records...)
	return nil
}

func (c *Collector) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	return nil
}

// Results returns a copy of the results written so far.
func (c *Collector) Results() []isb.Result {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]isb.Result(nil), c.results...)
}

// Late returns a copy of the late records written so far.
func (c *Collector) Late() []isb.LateRecord {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]isb.LateRecord(nil), c.late...)
}

// Writes returns the number of Write calls, failed ones included.
func (c *Collector) Writes() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.writes
}

// Closed reports whether Close was called.
func (c *Collector) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}
