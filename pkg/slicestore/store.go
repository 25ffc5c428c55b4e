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
	"math"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/window"
)

var minTime = time.UnixMilli(math.MinInt64)

// Store holds the writable slices of one task-local partition, sorted by start time.
type Store[V any] struct {
	partition int
	assigner  *window.Assigner
	init      func(*V)
	mapOpts   []hashmap.Option
	// nextIndex is shared by the stores of a handler.
	nextIndex *atomic.Uint64
	// lock guards slices and sealedUpTo, it is never held while a slice lock is taken.
	lock   sync.Mutex
	slices *window.SortedList[*Slice[V]]
	// sealedUpTo is the highest bound passed to SealUpTo. A slice ending at or before it is never created again.
	sealedUpTo time.Time
	onCreate   func(*Slice[V])
}

func newStore[V any](partition int, assigner *window.Assigner, nextIndex *atomic.Uint64, init func(*V), onCreate func(*Slice[V]), mapOpts ...hashmap.Option) *Store[V] {
	return &Store[V]{
		partition:  partition,
		assigner:   assigner,
		init:       init,
		mapOpts:    mapOpts,
		nextIndex:  nextIndex,
		slices:     window.NewSortedList[*Slice[V]](),
		sealedUpTo: minTime,
		onCreate:   onCreate,
	}
}

// Partition returns the partition of the store.
func (st *Store[V]) Partition() int {
	return st.partition
}

// GetSliceByTs returns the slice containing ts, creating it if needed. ErrLateRecord is returned when that slice
// has already been sealed.
func (st *Store[V]) GetSliceByTs(ts time.Time) (*Slice[V], error) {
	st.lock.Lock()
	defer st.lock.Unlock()

	if s, ok := st.slices.FindWindowForTime(ts); ok {
		return s, nil
	}
	bounds := st.assigner.AssignSlice(ts)
	if !bounds.EndTime().After(st.sealedUpTo) {
		return nil, ErrLateRecord
	}
	s := newSlice[V](bounds, st.nextIndex.Inc(), st.assigner.LastWindowEnd(bounds), st.init, st.mapOpts...)
	if err := st.slices.Insert(s); err != nil {
		return nil, isb.InvariantErr{Name: fmt.Sprintf("store-%d", st.partition), Message: err.Error()}
	}
	if st.onCreate != nil {
		st.onCreate(s)
	}
	return s, nil
}

// SealUpTo removes the slices ending at or before bound from the writable index and closes them. Once it returns
// no writer can reach the returned slices.
func (st *Store[V]) SealUpTo(bound time.Time) []*Slice[V] {
	st.lock.Lock()
	if bound.After(st.sealedUpTo) {
		st.sealedUpTo = bound
	}
	removed := st.slices.RemoveWindows(bound)
	st.lock.Unlock()

	for _, s := range removed {
		s.close()
	}
	return removed
}

// SealedUpTo returns the highest sealed bound.
func (st *Store[V]) SealedUpTo() time.Time {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.sealedUpTo
}

// Len returns the number of writable slices.
func (st *Store[V]) Len() int {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.slices.Len()
}

// Slices returns the writable slices in start time order.
func (st *Store[V]) Slices() []*Slice[V] {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.slices.Items()
}

// Validate checks the writable slices are non empty and do not overlap.
func (st *Store[V]) Validate() error {
	items := st.Slices()
	for i, s := range items {
		if !s.StartTime().Before(s.EndTime()) {
			return isb.InvariantErr{Name: fmt.Sprintf("store-%d", st.partition), Message: fmt.Sprintf("%s has a negative duration", s)}
		}
		if i > 0 && window.Overlaps(items[i-1], s) {
			return isb.InvariantErr{Name: fmt.Sprintf("store-%d", st.partition), Message: fmt.Sprintf("%s overlaps %s", items[i-1], s)}
		}
	}
	return nil
}
