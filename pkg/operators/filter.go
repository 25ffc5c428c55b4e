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

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/expr"
	"github.com/numaproj/numaslice/pkg/shared/logging"
)

// Filter keeps the records a boolean expression over their fields holds for.
type Filter struct {
	query     string
	predicate *expr.Predicate
	schema    *isb.Schema
	log       *zap.SugaredLogger
}

// NewFilter compiles the expression against the schema, a bad expression is a plan error.
func NewFilter(ctx context.Context, query string, expression string, schema *isb.Schema) (*Filter, error) {
	sample := make(map[string]any, schema.Len())
	for _, f := range schema.Fields() {
		sample[f.Name] = zeroValue(f.Type)
	}
	p, err := expr.CompileBool(expression, sample)
	if err != nil {
		return nil, isb.PlanErr{Name: "filter", Message: err.Error()}
	}
	return &Filter{
		query:     query,
		predicate: p,
		schema:    schema,
		log:       logging.FromContext(ctx).With(metrics.LabelOperator, OperatorFilter),
	}, nil
}

// Apply filters the records in place and returns the kept ones. A record the expression fails on is dropped and
// counted as a data error.
func (f *Filter) Apply(records []isb.Record) []isb.Record {
	kept := records[:0]
	env := make(map[string]any, f.schema.Len())
	for _, rec := range records {
		for i, field := range f.schema.Fields() {
			if i < len(rec.Values) {
				env[field.Name] = rec.Values[i]
			} else {
				env[field.Name] = nil
			}
		}
		ok, err := f.predicate.Eval(env)
		if err != nil {
			metrics.DataErrorCount.WithLabelValues(f.query, OperatorFilter, "evalError").Inc()
			f.log.Debugw("Dropping record the filter failed on", zap.Error(err))
			continue
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	if dropped := len(records) - len(kept); dropped > 0 {
		metrics.FilteredRecordsCount.WithLabelValues(f.query).Add(float64(dropped))
	}
	return kept
}

func (f *Filter) String() string {
	return fmt.Sprintf("filter(%s)", f.predicate)
}

func zeroValue(ft isb.FieldType) any {
	switch ft {
	case isb.Int64:
		return int64(0)
	case isb.UInt64:
		return uint64(0)
	case isb.Float64:
		return float64(0)
	case isb.String:
		return ""
	case isb.Bool:
		return false
	default:
		return []byte{}
	}
}
