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
	"bytes"
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/aggregation"
	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/slicestore"
	"github.com/numaproj/numaslice/pkg/timefunction"
	"github.com/numaproj/numaslice/pkg/window"
)

// Cells is the per key state of an aggregation, one cell per aggregate.
type Cells = []aggregation.Cell

// Aggregate is one output column of an aggregation.
type Aggregate struct {
	Name string
	// Field is the schema index of the input, -1 when the function takes none.
	Field    int
	Function *aggregation.Function
}

// Aggregation describes a grouped aggregation, it is shared by its build and probe operators.
type Aggregation struct {
	query      string
	keyFields  []int
	keyNames   []string
	keyTypes   []isb.FieldType
	aggregates []Aggregate
	valueNames []string
}

// NewAggregation resolves the key fields against the schema.
func NewAggregation(query string, schema *isb.Schema, keys []string, aggregates []Aggregate) (*Aggregation, error) {
	if len(aggregates) == 0 {
		return nil, isb.PlanErr{Name: query, Message: "at least one aggregate is required"}
	}
	a := &Aggregation{query: query, keyNames: keys, aggregates: aggregates}
	for _, k := range keys {
		idx, ok := schema.IndexOf(k)
		if !ok {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("key field %q is not in the schema", k)}
		}
		a.keyFields = append(a.keyFields, idx)
		a.keyTypes = append(a.keyTypes, schema.Field(idx).Type)
	}
	for _, agg := range aggregates {
		if agg.Function == nil {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("aggregate %q has no function", agg.Name)}
		}
		if agg.Field >= schema.Len() {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("aggregate %q reads field %d of %d", agg.Name, agg.Field, schema.Len())}
		}
		a.valueNames = append(a.valueNames, agg.Name)
	}
	return a, nil
}

// KeyNames returns the names of the group-by fields.
func (a *Aggregation) KeyNames() []string {
	return a.keyNames
}

// ValueNames returns the names of the aggregates.
func (a *Aggregation) ValueNames() []string {
	return a.valueNames
}

// InitCells initializes the state of a new key.
func (a *Aggregation) InitCells(v *Cells) {
	cells := make(Cells, len(a.aggregates))
	for i, agg := range a.aggregates {
		agg.Function.Init(&cells[i])
	}
	*v = cells
}

// MergeCells combines src into dst aggregate by aggregate.
func (a *Aggregation) MergeCells(dst *Cells, src *Cells) {
	for i, agg := range a.aggregates {
		agg.Function.Combine(&(*dst)[i], &(*src)[i])
	}
}

// AggregationBuild lifts records into the slices of their timestamps.
type AggregationBuild struct {
	agg     *Aggregation
	handler *slicestore.Handler[Cells]
	timeFn  timefunction.TimeFunction
	log     *zap.SugaredLogger
}

func NewAggregationBuild(ctx context.Context, agg *Aggregation, handler *slicestore.Handler[Cells], timeFn timefunction.TimeFunction) *AggregationBuild {
	return &AggregationBuild{
		agg:     agg,
		handler: handler,
		timeFn:  timeFn,
		log:     logging.FromContext(ctx).With(metrics.LabelOperator, OperatorBuild, metrics.LabelQuery, agg.query),
	}
}

// Execute lifts the records of the buffer into the partition and returns the number of records applied, late
// records included. A record whose key or input values are malformed is skipped and counted. A timestamp error
// fails the task.
func (b *AggregationBuild) Execute(ctx context.Context, partition int, buf *isb.RecordBuffer) (int, error) {
	ctx = b.timeFn.Open(ctx, buf)
	var (
		key     = make([]byte, 0, 64)
		keyVals = make([]any, len(b.agg.keyFields))
		inputs  = make([]aggregation.Value, len(b.agg.aggregates))
		applied int
	)
	lift := func(cells *Cells, _ bool) {
		for i, agg := range b.agg.aggregates {
			agg.Function.Lift(&(*cells)[i], inputs[i])
		}
	}
	for _, rec := range buf.Records {
		ts, err := b.timeFn.GetTs(ctx, rec)
		if err != nil {
			return applied, fmt.Errorf("failed to get the timestamp of a record of %s, %w", buf, err)
		}
		if !b.prepare(rec, keyVals, inputs) {
			continue
		}
		if key, err = EncodeKey(key[:0], keyVals, b.agg.keyTypes); err != nil {
			b.dataError("malformedKey", err)
			continue
		}
		if err = b.handler.Update(ctx, partition, ts, key, rec, lift); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// prepare converts the inputs before any state is touched, so a bad record never leaves a key half updated.
func (b *AggregationBuild) prepare(rec isb.Record, keyVals []any, inputs []aggregation.Value) bool {
	for i, idx := range b.agg.keyFields {
		if idx >= len(rec.Values) {
			b.dataError("malformedKey", fmt.Errorf("record has %d values, key field %d is missing", len(rec.Values), idx))
			return false
		}
		keyVals[i] = rec.Values[idx]
	}
	for i, agg := range b.agg.aggregates {
		var in any
		if agg.Field >= 0 {
			if agg.Field >= len(rec.Values) {
				b.dataError("badValue", fmt.Errorf("record has %d values, input field %d is missing", len(rec.Values), agg.Field))
				return false
			}
			in = rec.Values[agg.Field]
		}
		v, err := agg.Function.Prepare(in)
		if err != nil {
			b.dataError("badValue", err)
			return false
		}
		inputs[i] = v
	}
	return true
}

func (b *AggregationBuild) dataError(reason string, err error) {
	metrics.DataErrorCount.WithLabelValues(b.agg.query, OperatorBuild, reason).Inc()
	b.log.Debugw("Skipping record", zap.String("reason", reason), zap.Error(err))
}

// AggregationProbe turns the merged state of a window into one result per key.
type AggregationProbe struct {
	agg     *Aggregation
	emitter *Emitter
	log     *zap.SugaredLogger
}

func NewAggregationProbe(ctx context.Context, agg *Aggregation, emitter *Emitter) *AggregationProbe {
	return &AggregationProbe{
		agg:     agg,
		emitter: emitter,
		log:     logging.FromContext(ctx).With(metrics.LabelOperator, OperatorProbe, metrics.LabelQuery, agg.query),
	}
}

type keyedResult struct {
	key    []byte
	result isb.Result
}

// Emit lowers every key of the window and writes the results ordered by key. It is a slicestore.EmitFunc.
func (p *AggregationProbe) Emit(ctx context.Context, w window.TimedWindow, state *hashmap.Map[Cells]) error {
	out := make([]keyedResult, 0, state.Len())
	it := state.Iterator()
	for it.Next() {
		keys, err := DecodeKey(it.Key(), p.agg.keyTypes)
		if err != nil {
			metrics.DataErrorCount.WithLabelValues(p.agg.query, OperatorProbe, "malformedKey").Inc()
			p.log.Warnw("Skipping malformed key", zap.Binary("key", it.Key()), zap.Error(err))
			continue
		}
		cells := *it.Value()
		values := make([]any, len(p.agg.aggregates))
		for i, agg := range p.agg.aggregates {
			if values[i], err = agg.Function.Lower(&cells[i]); err != nil {
				return fmt.Errorf("failed to lower %s of window %s, %w", agg.Name, window.NewIntervalWindow(w.StartTime(), w.EndTime()), err)
			}
		}
		out = append(out, keyedResult{key: it.Key(), result: isb.Result{
			WindowStart: w.StartTime(),
			WindowEnd:   w.EndTime(),
			KeyNames:    p.agg.keyNames,
			Keys:        keys,
			ValueNames:  p.agg.valueNames,
			Values:      values,
		}})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].key, out[j].key) < 0
	})
	results := make([]isb.Result, len(out))
	for i := range out {
		results[i] = out[i].result
	}
	return p.emitter.Write(ctx, results)
}
