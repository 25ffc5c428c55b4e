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

package timefunction

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/numaproj/numaslice/pkg/isb"
)

// EventTime reads the timestamp from a numeric field of the record and converts it into milliseconds.
type EventTime struct {
	field      string
	index      int
	multiplier int64
}

var _ TimeFunction = (*EventTime)(nil)

// NewEventTime resolves the field once. multiplier converts a field value into milliseconds.
func NewEventTime(schema *isb.Schema, field string, multiplier int64) (*EventTime, error) {
	idx, ok := schema.IndexOf(field)
	if !ok {
		return nil, isb.PlanErr{Name: "eventTime", Message: fmt.Sprintf("timestamp field %q is not in the schema", field)}
	}
	if ft := schema.Field(idx).Type; !ft.IsNumeric() {
		return nil, isb.PlanErr{Name: "eventTime", Message: fmt.Sprintf("timestamp field %q has non numeric type %s", field, ft)}
	}
	if multiplier <= 0 {
		return nil, isb.PlanErr{Name: "eventTime", Message: fmt.Sprintf("invalid unit multiplier %d", multiplier)}
	}
	return &EventTime{field: field, index: idx, multiplier: multiplier}, nil
}

// Open is a no-op.
func (e *EventTime) Open(ctx context.Context, _ *isb.RecordBuffer) context.Context {
	return ctx
}

func (e *EventTime) GetTs(_ context.Context, rec isb.Record) (time.Time, error) {
	if e.index >= len(rec.Values) {
		return time.Time{}, isb.DataErr{Name: "eventTime", Message: fmt.Sprintf("record has no value for timestamp field %q", e.field)}
	}
	switch v := rec.Values[e.index].(type) {
	case float64:
		return time.UnixMilli(int64(v * float64(e.multiplier))), nil
	case float32:
		return time.UnixMilli(int64(float64(v) * float64(e.multiplier))), nil
	default:
		ms, err := cast.ToInt64E(v)
		if err != nil {
			return time.Time{}, isb.DataErr{Name: "eventTime", Message: fmt.Sprintf("timestamp field %q: %s", e.field, err)}
		}
		return time.UnixMilli(ms * e.multiplier), nil
	}
}
