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
Package engine deploys a query and runs it over a source.

A Query is planned once from its configuration: every plan error surfaces from NewQuery, before any record is
read. A query either aggregates its records or joins two groups of its origins. The slice store of the query is
registered in the query's ExecutionContext and shared by all the tasks.
A task runs one buffer through the filter, the build operator, the watermark processor and, when the global
watermark advances, the probe of every registered handler.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/operators"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/sinks"
	"github.com/numaproj/numaslice/pkg/slicestore"
	"github.com/numaproj/numaslice/pkg/timefunction"
	"github.com/numaproj/numaslice/pkg/watermark/processor"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
	"github.com/numaproj/numaslice/pkg/window"
)

// Query is a planned aggregation or join query.
type Query struct {
	id         string
	spec       v1alpha1.QuerySpec
	schema     *isb.Schema
	opts       *options
	filter     *operators.Filter
	build      operators.Build
	emitter    *operators.Emitter
	handlerIdx OperatorHandlerIndex
	execCtx    *ExecutionContext
	watermarks *processor.MultiOriginProcessor
	// failure is the error the query stopped with, nil while healthy.
	failure *atomic.Error
	running *atomic.Bool
	log     *zap.SugaredLogger
}

var _ metrics.HealthChecker = (*Query)(nil)

// NewQuery plans the query over the schema. Results are written to the sink.
func NewQuery(ctx context.Context, spec v1alpha1.QuerySpec, schema *isb.Schema, sink sinks.Sink, inputOpts ...Option) (*Query, error) {
	opts := DefaultOptions()
	for _, o := range inputOpts {
		if err := o(opts); err != nil {
			return nil, err
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, isb.PlanErr{Name: spec.Name, Message: err.Error()}
	}
	if schema == nil || schema.Len() == 0 {
		return nil, isb.PlanErr{Name: spec.Name, Message: "a schema is required"}
	}
	if sink == nil {
		return nil, isb.PlanErr{Name: spec.Name, Message: "a sink is required"}
	}

	q := &Query{
		id:      uuid.New().String(),
		spec:    spec,
		schema:  schema,
		opts:    opts,
		failure: atomic.NewError(nil),
		running: atomic.NewBool(false),
	}
	q.log = logging.FromContext(ctx).With("query", spec.Name, "queryID", q.id)
	ctx = logging.WithLogger(ctx, q.log)
	q.execCtx = NewExecutionContext(q.id)

	var err error
	if spec.Filter != "" {
		if q.filter, err = operators.NewFilter(ctx, spec.Name, spec.Filter, schema); err != nil {
			return nil, err
		}
	}
	timeFn, err := q.timeFunction()
	if err != nil {
		return nil, err
	}
	assigner, err := window.NewAssigner(spec.Window.GetLength(), spec.Window.GetSlide())
	if err != nil {
		return nil, isb.PlanErr{Name: spec.Name, Message: err.Error()}
	}
	handlerOpts, err := q.handlerOptions()
	if err != nil {
		return nil, err
	}

	var wmOpts = []processor.Option{processor.WithName(spec.Name)}
	if spec.DynamicOrigins {
		wmOpts = append(wmOpts, processor.WithDynamicOrigins())
	}
	if q.watermarks, err = processor.NewMultiOriginProcessor(ctx, originIDs(spec.Origins), wmOpts...); err != nil {
		return nil, isb.PlanErr{Name: spec.Name, Message: err.Error()}
	}
	q.emitter = operators.NewEmitter(ctx, spec.Name, sink, spec.Emit)

	var keyNames, valueNames []string
	if spec.Join != nil {
		keyNames, valueNames, err = q.planJoin(ctx, assigner, timeFn, handlerOpts)
	} else {
		keyNames, valueNames, err = q.planAggregation(ctx, assigner, timeFn, handlerOpts)
	}
	if err != nil {
		return nil, err
	}

	q.log.Infow("Planned query",
		zap.Duration("windowLength", assigner.Length()),
		zap.Duration("windowSlide", assigner.Slide()),
		zap.Duration("sliceLength", assigner.SliceLength()),
		zap.Int("parallelism", spec.GetParallelism()),
		zap.Bool("join", spec.Join != nil),
		zap.Strings("keys", keyNames),
		zap.Strings("values", valueNames),
		zap.String("latePolicy", string(spec.LatePolicy)))
	return q, nil
}

func originIDs(origins []uint64) []wmb.OriginID {
	out := make([]wmb.OriginID, len(origins))
	for i, o := range origins {
		out[i] = wmb.OriginID(o)
	}
	return out
}

func (q *Query) planAggregation(ctx context.Context, assigner *window.Assigner, timeFn timefunction.TimeFunction, handlerOpts []slicestore.Option) ([]string, []string, error) {
	aggregates, err := q.aggregates()
	if err != nil {
		return nil, nil, err
	}
	agg, err := operators.NewAggregation(q.spec.Name, q.schema, q.spec.Keys, aggregates)
	if err != nil {
		return nil, nil, err
	}
	handler, err := slicestore.NewHandler[operators.Cells](ctx, q.spec.Name, q.spec.GetParallelism(), assigner, agg.InitCells, agg.MergeCells, handlerOpts...)
	if err != nil {
		return nil, nil, isb.PlanErr{Name: q.spec.Name, Message: err.Error()}
	}
	q.build = operators.NewAggregationBuild(ctx, agg, handler, timeFn)
	probe := operators.NewAggregationProbe(ctx, agg, q.emitter)
	q.handlerIdx = q.execCtx.Register(BindHandler(handler, probe.Emit))
	return agg.KeyNames(), agg.ValueNames(), nil
}

// planJoin joins the left origins with every other origin, both sides share the schema of the query.
func (q *Query) planJoin(ctx context.Context, assigner *window.Assigner, timeFn timefunction.TimeFunction, handlerOpts []slicestore.Option) ([]string, []string, error) {
	join, err := operators.NewJoin(q.spec.Name, q.schema, q.spec.Keys, q.schema, q.spec.Join.GetRightKeys(q.spec.Keys))
	if err != nil {
		return nil, nil, err
	}
	handler, err := slicestore.NewHandler[operators.JoinState](ctx, q.spec.Name, q.spec.GetParallelism(), assigner, nil, join.Merge, handlerOpts...)
	if err != nil {
		return nil, nil, isb.PlanErr{Name: q.spec.Name, Message: err.Error()}
	}
	q.build = operators.NewOriginJoinBuild(
		operators.NewJoinBuild(ctx, join, operators.LeftSide, handler, timeFn),
		operators.NewJoinBuild(ctx, join, operators.RightSide, handler, timeFn),
		originIDs(q.spec.Join.LeftOrigins))
	probe := operators.NewJoinProbe(ctx, join, q.emitter)
	q.handlerIdx = q.execCtx.Register(BindHandler(handler, probe.Emit))
	return join.KeyNames(), join.ValueNames(), nil
}

func (q *Query) timeFunction() (timefunction.TimeFunction, error) {
	switch q.spec.GetTimeCharacteristic() {
	case v1alpha1.IngestionTime:
		return timefunction.NewIngestionTime(q.opts.clock), nil
	default:
		return timefunction.NewEventTime(q.schema, q.spec.Timestamp.Field, q.spec.Timestamp.GetUnit().Multiplier())
	}
}

func (q *Query) aggregates() ([]operators.Aggregate, error) {
	emptyAverage := aggregation.EmptyAverageError
	if q.spec.GetEmptyAverage() == v1alpha1.EmptyAverageNaN {
		emptyAverage = aggregation.EmptyAverageNaN
	}
	out := make([]operators.Aggregate, 0, len(q.spec.Aggregations))
	for _, a := range q.spec.Aggregations {
		kind, err := aggregation.ParseKind(string(a.Type))
		if err != nil {
			return nil, isb.PlanErr{Name: q.spec.Name, Message: err.Error()}
		}
		field, input := -1, isb.Int64
		if a.Field != "" {
			idx, ok := q.schema.IndexOf(a.Field)
			if !ok {
				return nil, isb.PlanErr{Name: q.spec.Name, Message: fmt.Sprintf("aggregation field %q is not in the schema", a.Field)}
			}
			field, input = idx, q.schema.Field(idx).Type
		}
		fn, err := aggregation.New(kind, input, aggregation.WithSampleSize(a.GetSampleSize()), aggregation.WithEmptyAverage(emptyAverage))
		if err != nil {
			return nil, isb.PlanErr{Name: q.spec.Name, Message: fmt.Sprintf("aggregation %s, %s", a.OutputName(), err)}
		}
		out = append(out, operators.Aggregate{Name: a.OutputName(), Field: field, Function: fn})
	}
	return out, nil
}

func (q *Query) handlerOptions() ([]slicestore.Option, error) {
	opts := []slicestore.Option{slicestore.WithAllowedLateness(q.spec.GetAllowedLateness())}
	switch q.spec.LatePolicy {
	case v1alpha1.LatePolicyDrop:
		opts = append(opts, slicestore.WithLatePolicy(slicestore.LatePolicyDrop))
	case v1alpha1.LatePolicyFail:
		opts = append(opts, slicestore.WithLatePolicy(slicestore.LatePolicyFail))
	case v1alpha1.LatePolicySideOutput:
		if q.opts.lateSink == nil {
			return nil, isb.PlanErr{Name: q.spec.Name, Message: fmt.Sprintf("late policy %s requires a late sink", q.spec.LatePolicy)}
		}
		opts = append(opts, slicestore.WithLatePolicy(slicestore.LatePolicySideOutput), slicestore.WithLateSink(q.opts.lateSink))
	}
	return opts, nil
}

// ID returns the id generated for this deployment of the query.
func (q *Query) ID() string {
	return q.id
}

func (q *Query) Name() string {
	return q.spec.Name
}

// ExecutionContext returns the operator handlers of the query.
func (q *Query) ExecutionContext() *ExecutionContext {
	return q.execCtx
}

// Watermark returns the global watermark of the query.
func (q *Query) Watermark() wmb.Watermark {
	return q.watermarks.GetWatermark()
}

// Sink returns the sink the results are written to.
func (q *Query) Sink() sinks.Sink {
	return q.emitter.Sink()
}

// IsHealthy returns the error the query failed with, if any.
func (q *Query) IsHealthy(_ context.Context) error {
	return q.failure.Load()
}

// Execute runs one buffer through the pipeline on the task-local partition.
func (q *Query) Execute(ctx context.Context, partition int, buf *isb.RecordBuffer) error {
	start := time.Now()
	defer func() {
		metrics.TaskProcessingTime.WithLabelValues(q.spec.Name, strconv.Itoa(partition)).Observe(float64(time.Since(start).Microseconds()))
	}()

	if q.filter != nil {
		buf.Records = q.filter.Apply(buf.Records)
	}
	if _, err := q.build.Execute(ctx, partition, buf); err != nil {
		return fmt.Errorf("task on partition %d failed to build %s, %w", partition, buf, err)
	}

	before := q.watermarks.GetWatermark()
	wm, err := q.watermarks.UpdateWatermark(buf.Watermark, buf.Sequence, buf.Origin)
	if err != nil {
		// the records have been built, only the watermark of the buffer is ignored, the global watermark may
		// still have moved if the origin's queue dropped stray chunks
		metrics.WatermarkErrorCount.WithLabelValues(q.spec.Name, buf.Origin.String()).Inc()
		q.log.Warnw("Ignoring the watermark of a buffer", zap.String("buffer", buf.String()), zap.Error(err))
	}
	if !wm.AfterWatermark(before) || !wm.AfterWatermark(wmb.InitialWatermark) {
		return nil
	}
	metrics.GlobalWatermark.WithLabelValues(q.spec.Name).Set(float64(wm.UnixMilli()))
	return q.trigger(ctx, wm)
}

// trigger hands the watermark to every registered handler.
func (q *Query) trigger(ctx context.Context, wm wmb.Watermark) error {
	for _, h := range q.execCtx.Handlers() {
		if _, err := h.OnWatermark(ctx, wm); err != nil {
			if errors.Is(err, slicestore.ErrHandlerTerminated) {
				return nil
			}
			return fmt.Errorf("handler %s failed to trigger watermark %s, %w", h.Name(), wm, err)
		}
	}
	return nil
}
