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

// Package generator implements a source producing keyed records on a fixed tick, for tests and demos.
package generator

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// Schema returns the schema of the generated records: the event time in milliseconds, the key and a value.
func Schema() *isb.Schema {
	s, _ := isb.NewSchema(
		isb.Field{Name: "ts", Type: isb.Int64},
		isb.Field{Name: "key", Type: isb.String},
		isb.Field{Name: "value", Type: isb.Int64},
	)
	return s
}

// Generator emits one buffer per origin on every tick. The records of a tick have event times in
// (tick - duration, tick] and the buffer carries the watermark tick - duration.
type Generator struct {
	name    string
	query   string
	origins []wmb.OriginID
	opts    *options

	lock sync.Mutex
	// pending holds the buffers of the current tick not read yet
	pending  []*isb.RecordBuffer
	nextTick time.Time
	ticks    int64
	sequence map[wmb.OriginID]uint64
	rng      *rand.Rand
	log      *zap.SugaredLogger
}

// NewGenerator returns a Generator producing buffers for the given origins.
func NewGenerator(ctx context.Context, query string, name string, origins []wmb.OriginID, inputOpts ...Option) (*Generator, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("generator requires at least one origin")
	}
	opts := defaultOptions()
	for _, o := range inputOpts {
		if err := o(opts); err != nil {
			return nil, err
		}
	}
	return &Generator{
		name:     name,
		query:    query,
		origins:  origins,
		opts:     opts,
		nextTick: opts.clock.Now().Truncate(time.Millisecond),
		sequence: make(map[wmb.OriginID]uint64, len(origins)),
		rng:      rand.New(rand.NewPCG(opts.seed, uint64(len(origins)))),
		log:      logging.FromContext(ctx).With("source", name),
	}, nil
}

// GetName returns the name.
func (g *Generator) GetName() string {
	return g.name
}

// Read returns the next buffer, waiting for the next tick when the buffers of the current one have all been read.
func (g *Generator) Read(ctx context.Context) (*isb.RecordBuffer, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if len(g.pending) == 0 {
		if g.opts.limit > 0 && g.ticks >= g.opts.limit {
			return nil, io.EOF
		}
		if wait := g.nextTick.Sub(g.opts.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-g.opts.clock.After(wait):
			}
		}
		g.tick(g.nextTick)
		g.nextTick = g.nextTick.Add(g.opts.duration)
	}
	buf := g.pending[0]
	g.pending = g.pending[1:]
	return buf, nil
}

func (g *Generator) tick(at time.Time) {
	g.ticks++
	generatorSourceTickCount.WithLabelValues(g.query).Inc()
	tickMs := at.UnixMilli()
	span := g.opts.duration.Milliseconds()
	for _, origin := range g.origins {
		g.sequence[origin]++
		records := make([]isb.Record, g.opts.rpu)
		for i := range records {
			records[i] = isb.Record{Values: []any{
				tickMs - g.rng.Int64N(span),
				fmt.Sprintf("key-%d", g.rng.IntN(g.opts.keyCount)),
				g.rng.Int64N(100),
			}}
		}
		g.pending = append(g.pending, &isb.RecordBuffer{
			Origin:    origin,
			Sequence:  wmb.NewSequenceData(g.sequence[origin]),
			Watermark: wmb.FromUnixMilli(tickMs - span),
			Records:   records,
		})
		generatorSourceReadCount.WithLabelValues(g.query, origin.String()).Add(float64(len(records)))
	}
}

func (g *Generator) Close() error {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.log.Infow("Closing generator", zap.Int64("ticks", g.ticks))
	return nil
}
