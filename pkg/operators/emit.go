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

package operators

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/sinks"
)

// Emitter writes window results to a sink, retrying with an exponential backoff.
type Emitter struct {
	query     string
	sink      sinks.Sink
	backoff   wait.Backoff
	onFailure v1alpha1.OnFailureRetryStrategy
	log       *zap.SugaredLogger
}

// NewEmitter returns an Emitter for the sink.
func NewEmitter(ctx context.Context, query string, sink sinks.Sink, strategy v1alpha1.RetryStrategy) *Emitter {
	return &Emitter{
		query:     query,
		sink:      sink,
		backoff:   strategy.GetBackoff(),
		onFailure: strategy.GetOnFailureRetryStrategy(),
		log:       logging.FromContext(ctx).With(metrics.LabelOperator, OperatorEmit, metrics.LabelSink, sink.GetName()),
	}
}

// Sink returns the sink written to.
func (e *Emitter) Sink() sinks.Sink {
	return e.sink
}

// Write writes the results. Once the backoff is exhausted the results are retried again, dropped or the error is
// returned, depending on the on failure strategy.
func (e *Emitter) Write(ctx context.Context, results []isb.Result) error {
	if len(results) == 0 {
		return nil
	}
	name := e.sink.GetName()
	start := time.Now()
	defer func() {
		metrics.SinkWriteProcessingTime.WithLabelValues(e.query, name).Observe(float64(time.Since(start).Microseconds()))
	}()
	for {
		var lastErr error
		attempt := 0
		err := wait.ExponentialBackoffWithContext(ctx, e.backoff, func(ctx context.Context) (bool, error) {
			attempt++
			if lastErr = e.sink.Write(ctx, results); lastErr != nil {
				metrics.SinkWriteErrorCount.WithLabelValues(e.query, name).Inc()
				e.log.Warnw("Failed to write results, retrying", zap.Int("attempt", attempt), zap.Error(lastErr))
				return false, nil
			}
			return true, nil
		})
		if err == nil {
			metrics.ResultsEmittedCount.WithLabelValues(e.query, name).Add(float64(len(results)))
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("stopped writing %d results to %s, %w", len(results), name, ctx.Err())
		}
		if !wait.Interrupted(err) {
			return err
		}
		switch e.onFailure {
		case v1alpha1.OnFailureRetry:
			e.log.Warnw("Backoff exhausted, retrying again", zap.Int("attempts", attempt))
			continue
		case v1alpha1.OnFailureDrop:
			metrics.ResultsDroppedCount.WithLabelValues(e.query, name).Add(float64(len(results)))
			e.log.Errorw("Backoff exhausted, dropping results", zap.Int("results", len(results)), zap.Error(lastErr))
			return nil
		default:
			return fmt.Errorf("failed to write %d results to %s after %d attempts, %w", len(results), name, attempt, multierr.Append(ErrEmitFailed, lastErr))
		}
	}
}
