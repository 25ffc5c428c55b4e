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

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shuffle"
	"github.com/numaproj/numaslice/pkg/sources"
)

// Run reads the source until it is exhausted or ctx is cancelled and runs every buffer as a task on the worker
// pool. Once the workers are done the handlers are terminated, flushing the remaining windows when the query is
// configured to flush on close and stopped without an error.
func (q *Query) Run(ctx context.Context, source sources.Sourcer) error {
	if !q.running.CompareAndSwap(false, true) {
		return fmt.Errorf("query %s is already running", q.spec.Name)
	}
	defer q.running.Store(false)
	metrics.QueryInfo.WithLabelValues(q.spec.Name, q.id).Set(1)
	defer metrics.QueryInfo.DeleteLabelValues(q.spec.Name, q.id)

	parallelism := q.spec.GetParallelism()
	queues := make([]chan *isb.RecordBuffer, 1)
	if q.spec.GetRouting() == v1alpha1.OriginAffinity {
		queues = make([]chan *isb.RecordBuffer, parallelism)
	}
	for i := range queues {
		queues[i] = make(chan *isb.RecordBuffer, q.opts.queueSize)
	}
	q.log.Infow("Starting query", zap.String("source", source.GetName()), zap.Int("parallelism", parallelism), zap.String("routing", string(q.spec.GetRouting())))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			for _, queue := range queues {
				close(queue)
			}
		}()
		return q.readLoop(gCtx, source, queues, shuffle.NewShuffle(len(queues)))
	})
	for i := 0; i < parallelism; i++ {
		partition := i
		queue := queues[0]
		if len(queues) > 1 {
			queue = queues[i]
		}
		g.Go(func() error {
			for buf := range queue {
				// drain without executing once the query is stopping
				if gCtx.Err() != nil {
					continue
				}
				if err := q.Execute(gCtx, partition, buf); err != nil {
					return err
				}
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		runErr = nil
	}
	if runErr != nil {
		q.failure.Store(runErr)
		q.log.Errorw("Query failed", zap.Error(runErr))
	}
	if err := q.teardown(ctx, source, runErr == nil && q.spec.FlushOnClose); err != nil {
		q.failure.Store(multierr.Append(runErr, err))
		return multierr.Append(runErr, err)
	}
	q.log.Infow("Stopped query", zap.String("watermark", q.watermarks.GetWatermark().String()))
	return runErr
}

func (q *Query) readLoop(ctx context.Context, source sources.Sourcer, queues []chan *isb.RecordBuffer, shuffler *shuffle.Shuffle) error {
	name := source.GetName()
	for {
		buf, err := source.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				q.log.Infow("Source is exhausted", zap.String("source", name))
				return nil
			case ctx.Err() != nil:
				return nil
			case isb.IsDataErr(err):
				metrics.ReadErrorCount.WithLabelValues(q.spec.Name, name).Inc()
				q.log.Warnw("Skipping unreadable buffer", zap.String("source", name), zap.Error(err))
				continue
			default:
				metrics.ReadErrorCount.WithLabelValues(q.spec.Name, name).Inc()
				return fmt.Errorf("failed to read from source %s, %w", name, err)
			}
		}
		metrics.ReadBuffersCount.WithLabelValues(q.spec.Name, name).Inc()
		metrics.ReadRecordsCount.WithLabelValues(q.spec.Name, name).Add(float64(len(buf.Records)))
		select {
		case queues[shuffler.Partition(buf.Origin)] <- buf:
		case <-ctx.Done():
			return nil
		}
	}
}

// teardown runs after every task has finished, on a context which is no longer cancelled.
func (q *Query) teardown(ctx context.Context, source sources.Sourcer, flush bool) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for _, h := range q.execCtx.Handlers() {
		// a handler whose slices overlap is terminated without emitting its partial windows
		hFlush := flush
		if vErr := h.Validate(); vErr != nil {
			q.log.Errorw("Handler state is inconsistent", zap.String("handler", h.Name()), zap.Error(vErr))
			err = multierr.Append(err, fmt.Errorf("failed to validate handler %s, %w", h.Name(), vErr))
			hFlush = false
		}
		if _, tErr := h.Terminate(ctx, hFlush); tErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to terminate handler %s, %w", h.Name(), tErr))
		}
	}
	if cErr := source.Close(); cErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close source %s, %w", source.GetName(), cErr))
	}
	return err
}

// Close closes the sinks of the query. It is called once Run has returned.
func (q *Query) Close() error {
	var err error
	if cErr := q.emitter.Sink().Close(); cErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close sink %s, %w", q.emitter.Sink().GetName(), cErr))
	}
	if c, ok := q.opts.lateSink.(io.Closer); ok && any(q.opts.lateSink) != any(q.emitter.Sink()) {
		if cErr := c.Close(); cErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close late sink, %w", cErr))
		}
	}
	return err
}
