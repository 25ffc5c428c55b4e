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

/*
Package slicestore implements the windowed operator state shared by the tasks of a query.

Every task-local partition owns a Store of slices. Build operators write into the slice of a record's timestamp,
Probe operators are driven by the watermark: the Handler seals every slice ending at or before the trigger
watermark, merges the sealed slices of each completed window across all partitions, hands the merged state to an
emit callback, and retires the slices no later window needs.

A slice is removed from its store, and closed, before it is ever read by the merge path. A writer that raced the
seal finds the slice closed and retries, at which point the store reports the record as late.
*/
package slicestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
	"github.com/numaproj/numaslice/pkg/window"
)

// State is the lifecycle state of a Handler.
type State uint8

const (
	NoSlices State = iota
	HasActiveSlices
	Terminated
)

func (s State) String() string {
	switch s {
	case NoSlices:
		return "NoSlices"
	case HasActiveSlices:
		return "HasActiveSlices"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// MergeFunc combines src into dst, both belong to the same key.
type MergeFunc[V any] func(dst *V, src *V)

// EmitFunc receives the merged state of a triggered window. The state must not be retained after it returns.
type EmitFunc[V any] func(ctx context.Context, w window.TimedWindow, state *hashmap.Map[V]) error

// Handler is the window based operator handler of one windowed operator.
type Handler[V any] struct {
	name      string
	assigner  *window.Assigner
	stores    []*Store[V]
	init      func(*V)
	merge     MergeFunc[V]
	opts      *options
	nextIndex *atomic.Uint64

	// lifecycle is held shared by updates and triggers and exclusively by Terminate, so in-flight updates
	// finish before the handler terminates.
	lifecycle  sync.RWMutex
	terminated bool

	// triggerMu serializes the triggers, it guards sealed and triggeredUpTo.
	triggerMu sync.Mutex
	// sealed holds the closed slices which are still needed, by start time.
	sealed        map[int64][]*Slice[V]
	triggeredUpTo int64

	triggerWatermark *atomic.Int64
	activeSlices     *atomic.Int64
	lateRecords      *atomic.Uint64
	log              *zap.SugaredLogger
}

// NewHandler returns a Handler with one Store per partition.
func NewHandler[V any](ctx context.Context, name string, partitions int, assigner *window.Assigner, init func(*V), merge MergeFunc[V], inputOpts ...Option) (*Handler[V], error) {
	if partitions < 1 {
		return nil, fmt.Errorf("at least one partition is required, got %d", partitions)
	}
	if assigner == nil || merge == nil {
		return nil, fmt.Errorf("assigner and merge function are required")
	}
	opts := defaultOptions()
	for _, o := range inputOpts {
		if err := o(opts); err != nil {
			return nil, err
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	h := &Handler[V]{
		name:             name,
		assigner:         assigner,
		init:             init,
		merge:            merge,
		opts:             opts,
		nextIndex:        atomic.NewUint64(0),
		sealed:           make(map[int64][]*Slice[V]),
		triggeredUpTo:    math.MinInt64,
		triggerWatermark: atomic.NewInt64(math.MinInt64),
		activeSlices:     atomic.NewInt64(0),
		lateRecords:      atomic.NewUint64(0),
		log:              logging.FromContext(ctx).With("handler", name),
	}
	h.stores = make([]*Store[V], partitions)
	for p := range h.stores {
		partition := strconv.Itoa(p)
		h.stores[p] = newStore[V](p, assigner, h.nextIndex, init, func(s *Slice[V]) {
			h.activeSlices.Inc()
			metrics.SlicesCreatedCount.WithLabelValues(name, partition).Inc()
			metrics.ActiveSlicesCount.WithLabelValues(name).Inc()
		}, opts.mapOpts...)
	}
	return h, nil
}

// Name returns the name of the handler.
func (h *Handler[V]) Name() string {
	return h.name
}

// Partitions returns the number of task-local partitions.
func (h *Handler[V]) Partitions() int {
	return len(h.stores)
}

// Assigner returns the window assigner.
func (h *Handler[V]) Assigner() *window.Assigner {
	return h.assigner
}

// Store returns the store of a partition.
func (h *Handler[V]) Store(partition int) *Store[V] {
	return h.stores[partition]
}

// SliceFor returns the writable slice of ts in the partition. A late record is handled by the late policy, nil is
// returned for it unless the policy fails the update.
func (h *Handler[V]) SliceFor(ctx context.Context, partition int, ts time.Time, rec isb.Record) (*Slice[V], error) {
	if partition < 0 || partition >= len(h.stores) {
		return nil, fmt.Errorf("partition %d out of range [0, %d)", partition, len(h.stores))
	}
	st := h.stores[partition]
	s, err := st.GetSliceByTs(ts)
	if errors.Is(err, ErrLateRecord) {
		return nil, h.late(ctx, partition, ts, st.SealedUpTo(), rec)
	}
	return s, err
}

// Update applies fn to the key in the slice of ts. The record is only used for the late side output.
func (h *Handler[V]) Update(ctx context.Context, partition int, ts time.Time, key []byte, rec isb.Record, fn func(v *V, created bool)) error {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if h.terminated {
		return ErrHandlerTerminated
	}
	for {
		s, err := h.SliceFor(ctx, partition, ts, rec)
		if err != nil || s == nil {
			return err
		}
		err = s.Update(key, fn)
		if errors.Is(err, ErrSliceClosed) {
			// sealed after the lookup, the next lookup reports the record as late
			continue
		}
		return err
	}
}

func (h *Handler[V]) late(ctx context.Context, partition int, ts time.Time, bound time.Time, rec isb.Record) error {
	h.lateRecords.Inc()
	metrics.LateRecordsCount.WithLabelValues(h.name, strconv.Itoa(partition), h.opts.latePolicy.String()).Inc()
	switch h.opts.latePolicy {
	case LatePolicySideOutput:
		lr := isb.LateRecord{Timestamp: ts, Partition: partition, Bound: bound, Record: rec}
		if err := h.opts.lateSink.WriteLate(ctx, []isb.LateRecord{lr}); err != nil {
			return fmt.Errorf("failed to write late record to the side output, %w", err)
		}
		return nil
	case LatePolicyFail:
		return fmt.Errorf("%w: timestamp %d, partition %d sealed up to %d", ErrLateRecord, ts.UnixMilli(), partition, bound.UnixMilli())
	default:
		h.log.Debugw("Dropping late record", zap.Int("partition", partition), zap.Int64("timestamp", ts.UnixMilli()), zap.Int64("bound", bound.UnixMilli()))
		return nil
	}
}

// OnWatermark triggers every window ending at or before the watermark minus the allowed lateness, once, in end
// time order. It returns the number of windows triggered.
func (h *Handler[V]) OnWatermark(ctx context.Context, wm wmb.Watermark, emit EmitFunc[V]) (int, error) {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if h.terminated {
		return 0, ErrHandlerTerminated
	}
	bound := wm.UnixMilli() - h.opts.allowedLateness.Milliseconds()
	h.triggerMu.Lock()
	defer h.triggerMu.Unlock()
	if bound <= h.triggeredUpTo {
		return 0, nil
	}
	return h.trigger(ctx, bound, emit)
}

// trigger must be called with triggerMu held.
func (h *Handler[V]) trigger(ctx context.Context, bound int64, emit EmitFunc[V]) (int, error) {
	start := time.Now()
	defer func() {
		metrics.TriggerProcessingTime.WithLabelValues(h.name).Observe(float64(time.Since(start).Microseconds()))
	}()

	boundTime := time.UnixMilli(bound)
	for _, st := range h.stores {
		for _, s := range st.SealUpTo(boundTime) {
			key := s.StartTime().UnixMilli()
			h.sealed[key] = append(h.sealed[key], s)
		}
	}

	triggered := 0
	for _, w := range h.pendingWindows(bound) {
		merged, err := h.mergeWindow(w)
		if err != nil {
			return triggered, err
		}
		if merged.Len() > 0 {
			if err = emit(ctx, w, merged); err != nil {
				return triggered, fmt.Errorf("failed to emit window %s, %w", w, err)
			}
		}
		h.triggeredUpTo = w.EndTime().UnixMilli()
		triggered++
		metrics.WindowsTriggeredCount.WithLabelValues(h.name).Inc()
	}
	h.triggeredUpTo = bound
	h.triggerWatermark.Store(bound)
	retired := h.retire(bound)
	if triggered > 0 || retired > 0 {
		h.log.Debugw("Triggered windows", zap.Int64("bound", bound), zap.Int("windows", triggered), zap.Int("retired", retired))
	}
	return triggered, nil
}

// pendingWindows returns the windows of the sealed slices which end in (triggeredUpTo, bound], in end time order.
func (h *Handler[V]) pendingWindows(bound int64) []*window.IntervalWindow {
	byStart := make(map[int64]*window.IntervalWindow)
	for start := range h.sealed {
		for _, w := range h.assigner.AssignWindows(time.UnixMilli(start)) {
			end := w.EndTime().UnixMilli()
			if end > h.triggeredUpTo && end <= bound {
				byStart[w.StartTime().UnixMilli()] = w
			}
		}
	}
	windows := make([]*window.IntervalWindow, 0, len(byStart))
	for _, w := range byStart {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].EndTime().Before(windows[j].EndTime())
	})
	return windows
}

// mergeWindow combines the slices of the window from all the partitions into a new map.
func (h *Handler[V]) mergeWindow(w window.TimedWindow) (*hashmap.Map[V], error) {
	merged := hashmap.New[V](h.init, h.opts.mapOpts...)
	for _, sliceStart := range h.assigner.SlicesOf(w) {
		for _, s := range h.sealed[sliceStart.UnixMilli()] {
			state, err := s.State()
			if err != nil {
				return nil, err
			}
			it := state.Iterator()
			for it.Next() {
				dst, _, err := merged.FindOrCreate(it.Key())
				if err != nil {
					return nil, fmt.Errorf("failed to merge %s into window %d, %w", s, w.StartTime().UnixMilli(), err)
				}
				h.merge(dst, it.Value())
			}
		}
	}
	return merged, nil
}

// retire drops the sealed slices whose last window has been triggered.
func (h *Handler[V]) retire(bound int64) int {
	retired := 0
	for start, slices := range h.sealed {
		// slices with the same start share the last window
		if len(slices) == 0 || slices[0].LastWindowEnd().UnixMilli() <= bound {
			retired += len(slices)
			delete(h.sealed, start)
		}
	}
	if retired > 0 {
		h.activeSlices.Sub(int64(retired))
		metrics.SlicesRetiredCount.WithLabelValues(h.name).Add(float64(retired))
		metrics.ActiveSlicesCount.WithLabelValues(h.name).Sub(float64(retired))
	}
	return retired
}

// Terminate stops the handler once the in-flight updates have finished. With flush the windows which have not
// been triggered are emitted as partial windows, otherwise the remaining slices are discarded.
func (h *Handler[V]) Terminate(ctx context.Context, flush bool, emit EmitFunc[V]) (int, error) {
	h.lifecycle.Lock()
	if h.terminated {
		h.lifecycle.Unlock()
		return 0, ErrHandlerTerminated
	}
	h.terminated = true
	h.lifecycle.Unlock()

	h.triggerMu.Lock()
	defer h.triggerMu.Unlock()

	var (
		triggered int
		err       error
	)
	if flush {
		triggered, err = h.trigger(ctx, math.MaxInt64, emit)
	}
	discarded := 0
	for _, st := range h.stores {
		discarded += len(st.SealUpTo(time.UnixMilli(math.MaxInt64)))
	}
	for start, slices := range h.sealed {
		discarded += len(slices)
		delete(h.sealed, start)
	}
	h.activeSlices.Store(0)
	metrics.ActiveSlicesCount.DeleteLabelValues(h.name)
	h.log.Infow("Terminated operator handler", zap.Bool("flush", flush), zap.Int("flushedWindows", triggered), zap.Int("discardedSlices", discarded))
	return triggered, err
}

// State returns the lifecycle state.
func (h *Handler[V]) State() State {
	h.lifecycle.RLock()
	defer h.lifecycle.RUnlock()
	if h.terminated {
		return Terminated
	}
	if h.activeSlices.Load() > 0 {
		return HasActiveSlices
	}
	return NoSlices
}

// ActiveSlices returns the number of slices which are not retired, sealed or not.
func (h *Handler[V]) ActiveSlices() int64 {
	return h.activeSlices.Load()
}

// LateRecords returns the number of late records seen.
func (h *Handler[V]) LateRecords() uint64 {
	return h.lateRecords.Load()
}

// TriggeredUpTo returns the bound of the last trigger, ok is false before the first trigger.
func (h *Handler[V]) TriggeredUpTo() (time.Time, bool) {
	v := h.triggerWatermark.Load()
	if v == math.MinInt64 {
		return time.Time{}, false
	}
	return time.UnixMilli(v), true
}

// Validate checks the invariants of every store.
func (h *Handler[V]) Validate() error {
	for _, st := range h.stores {
		if err := st.Validate(); err != nil {
			return err
		}
	}
	return nil
}
