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
Package processor combines the watermarks reported by multiple origins (parallel source instances) into a single
global watermark. Every origin owns a sequence.Queue, the global watermark is the smallest of the origins'
contiguous watermarks and never decreases.
*/
package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/watermark/sequence"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// ErrUnknownOrigin is returned when a closed-membership processor receives an update from an origin it does not know.
var ErrUnknownOrigin = errors.New("unknown origin")

// MultiOriginProcessor computes the global watermark over a set of origins.
type MultiOriginProcessor struct {
	// origins are only added, never removed, lock guards the membership and not the queues.
	origins map[wmb.OriginID]*sequence.Queue
	lock    sync.RWMutex
	global  *atomic.Int64
	opts    *processorOptions
	log     *zap.SugaredLogger
}

// NewMultiOriginProcessor returns a MultiOriginProcessor for the statically known origins.
// Origins which have not reported anything yet hold the global watermark at wmb.InitialWatermark.
func NewMultiOriginProcessor(ctx context.Context, origins []wmb.OriginID, inputOpts ...Option) (*MultiOriginProcessor, error) {
	opts := &processorOptions{name: "default"}
	for _, opt := range inputOpts {
		opt(opts)
	}
	if len(origins) == 0 && !opts.dynamicOrigins {
		return nil, fmt.Errorf("at least one origin is required when origins can not join dynamically")
	}
	p := &MultiOriginProcessor{
		origins: make(map[wmb.OriginID]*sequence.Queue, len(origins)),
		global:  atomic.NewInt64(wmb.InitialWatermark.UnixMilli()),
		opts:    opts,
		log:     logging.FromContext(ctx).With("watermarkProcessor", opts.name),
	}
	for _, o := range origins {
		if _, ok := p.origins[o]; ok {
			return nil, fmt.Errorf("duplicate origin %s", o)
		}
		p.origins[o] = sequence.NewQueue(wmb.InitialWatermark)
	}
	return p, nil
}

// UpdateWatermark records the watermark of the given sequence for the origin and returns the global watermark.
func (p *MultiOriginProcessor) UpdateWatermark(ts wmb.Watermark, seq wmb.SequenceData, origin wmb.OriginID) (wmb.Watermark, error) {
	q, err := p.queue(origin)
	if err != nil {
		return p.GetWatermark(), err
	}
	// the queue may advance even when it reports dropped chunks
	_, err = q.Emplace(seq, ts.UnixMilli())
	global := p.recompute()
	if err != nil {
		return global, fmt.Errorf("failed to record watermark %s for origin %s, %w", ts, origin, err)
	}
	return global, nil
}

// RegisterOrigin adds an origin. The origin starts at the current global watermark.
func (p *MultiOriginProcessor) RegisterOrigin(origin wmb.OriginID) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.origins[origin]; ok {
		return fmt.Errorf("origin %s is already registered", origin)
	}
	p.origins[origin] = sequence.NewQueue(wmb.FromUnixMilli(p.global.Load()))
	p.log.Infow("Registered origin", zap.String("origin", origin.String()), zap.Int64("floor", p.global.Load()))
	return nil
}

// GetWatermark returns the last computed global watermark.
func (p *MultiOriginProcessor) GetWatermark() wmb.Watermark {
	return wmb.FromUnixMilli(p.global.Load())
}

// GetOriginWatermark returns the contiguous watermark of a single origin.
func (p *MultiOriginProcessor) GetOriginWatermark(origin wmb.OriginID) (wmb.Watermark, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	q, ok := p.origins[origin]
	if !ok {
		return wmb.InitialWatermark, fmt.Errorf("%w: %s", ErrUnknownOrigin, origin)
	}
	return q.Watermark(), nil
}

// Origins returns the known origins in ascending order.
func (p *MultiOriginProcessor) Origins() []wmb.OriginID {
	p.lock.RLock()
	defer p.lock.RUnlock()
	origins := make([]wmb.OriginID, 0, len(p.origins))
	for o := range p.origins {
		origins = append(origins, o)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })
	return origins
}

func (p *MultiOriginProcessor) queue(origin wmb.OriginID) (*sequence.Queue, error) {
	p.lock.RLock()
	q, ok := p.origins[origin]
	p.lock.RUnlock()
	if ok {
		return q, nil
	}
	if !p.opts.dynamicOrigins {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrigin, origin)
	}
	if err := p.RegisterOrigin(origin); err != nil {
		// lost the race against another registration of the same origin
		p.log.Debugw("Origin registered concurrently", zap.String("origin", origin.String()))
	}
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.origins[origin], nil
}

// recompute raises the global watermark to the minimum of all the origins. Concurrent recomputations may
// observe different minimums, the compare-and-swap only ever moves the global watermark forward.
func (p *MultiOriginProcessor) recompute() wmb.Watermark {
	var minWm int64 = math.MaxInt64
	p.lock.RLock()
	for _, q := range p.origins {
		if wm := q.Watermark().UnixMilli(); wm < minWm {
			minWm = wm
		}
	}
	p.lock.RUnlock()
	if minWm == math.MaxInt64 {
		return p.GetWatermark()
	}
	for {
		current := p.global.Load()
		if minWm <= current {
			return wmb.FromUnixMilli(current)
		}
		if p.global.CompareAndSwap(current, minWm) {
			p.log.Debugw("Global watermark advanced", zap.Int64("from", current), zap.Int64("to", minWm))
			return wmb.FromUnixMilli(minWm)
		}
	}
}

// Dump returns the per origin state, used in logs and tests.
func (p *MultiOriginProcessor) Dump() string {
	var builder strings.Builder
	for _, o := range p.Origins() {
		p.lock.RLock()
		q := p.origins[o]
		p.lock.RUnlock()
		builder.WriteString(fmt.Sprintf("[origin %s] %s\n", o, q.Dump()))
	}
	return builder.String()
}
