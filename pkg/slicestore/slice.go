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

package slicestore

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/window"
)

// Slice holds the keyed partial state of one [start, end) interval of one partition.
type Slice[V any] struct {
	start time.Time
	end   time.Time
	index uint64
	// lastWindowEnd is the end of the latest window the slice contributes to.
	lastWindowEnd time.Time
	// lock serializes the updates, and the transition to closed.
	lock   sync.Mutex
	state  *hashmap.Map[V]
	closed *atomic.Bool
}

var _ window.TimedWindow = (*Slice[int])(nil)

func newSlice[V any](w window.TimedWindow, index uint64, lastWindowEnd time.Time, init func(*V), mapOpts ...hashmap.Option) *Slice[V] {
	return &Slice[V]{
		start:         w.StartTime(),
		end:           w.EndTime(),
		index:         index,
		lastWindowEnd: lastWindowEnd,
		state:         hashmap.New[V](init, mapOpts...),
		closed:        atomic.NewBool(false),
	}
}

func (s *Slice[V]) StartTime() time.Time {
	return s.start
}

func (s *Slice[V]) EndTime() time.Time {
	return s.end
}

// Index is unique and increasing in creation order across all the partitions of a handler.
func (s *Slice[V]) Index() uint64 {
	return s.index
}

// LastWindowEnd returns the end of the latest window the slice contributes to.
func (s *Slice[V]) LastWindowEnd() time.Time {
	return s.lastWindowEnd
}

func (s *Slice[V]) String() string {
	return fmt.Sprintf("slice-%d[%d, %d)", s.index, s.start.UnixMilli(), s.end.UnixMilli())
}

// Update applies fn to the value of the key, creating the key on first use. Once the slice is closed every update
// fails with ErrSliceClosed.
func (s *Slice[V]) Update(key []byte, fn func(v *V, created bool)) error {
	if s.closed.Load() {
		return ErrSliceClosed
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	// closing happens under the lock, check again
	if s.closed.Load() {
		return ErrSliceClosed
	}
	v, created, err := s.state.FindOrCreate(key)
	if err != nil {
		return fmt.Errorf("failed to update %s, %w", s, err)
	}
	fn(v, created)
	return nil
}

// close waits for the in-flight update, if any, and closes the slice for writing.
func (s *Slice[V]) close() {
	s.lock.Lock()
	s.closed.Store(true)
	s.lock.Unlock()
}

// IsClosed returns true once the slice no longer accepts updates.
func (s *Slice[V]) IsClosed() bool {
	return s.closed.Load()
}

// State returns the keyed state for reading. Reading the state of a slice which is still open is an invariant
// violation.
func (s *Slice[V]) State() (*hashmap.Map[V], error) {
	if !s.closed.Load() {
		return nil, isb.InvariantErr{Name: s.String(), Message: "merge attempted on an open slice"}
	}
	return s.state, nil
}

// Len returns the number of keys.
func (s *Slice[V]) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state.Len()
}
