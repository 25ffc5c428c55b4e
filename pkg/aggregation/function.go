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

// Package aggregation implements the partial aggregates kept per key and slice. A Function is resolved once when the
// query is planned and switches over its Kind, there is no per record dynamic dispatch.
package aggregation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cast"

	"github.com/numaproj/numaslice/pkg/isb"
)

// ErrEmptyWindowAggregate is returned when a result is requested from a cell no value was lifted into.
var ErrEmptyWindowAggregate = errors.New("empty window aggregate")

// Function is one aggregation over one input type.
type Function struct {
	kind  Kind
	input isb.FieldType
	opts  *options
}

// New returns a Function. The input type has to be numeric except for Count, which ignores its input.
func New(kind Kind, input isb.FieldType, inputOpts ...Option) (*Function, error) {
	if kind < Sum || kind > SampleWithoutReplacement {
		return nil, isb.PlanErr{Name: "aggregation", Message: fmt.Sprintf("unknown aggregation %d", kind)}
	}
	if kind.needsInput() && !input.IsNumeric() {
		return nil, isb.PlanErr{Name: "aggregation", Message: fmt.Sprintf("%s requires a numeric input, got %s", kind, input)}
	}
	opts := defaultOptions()
	for _, o := range inputOpts {
		if err := o(opts); err != nil {
			return nil, isb.PlanErr{Name: "aggregation", Message: err.Error()}
		}
	}
	return &Function{kind: kind, input: input, opts: opts}, nil
}

// Kind returns the aggregation kind.
func (f *Function) Kind() Kind {
	return f.kind
}

// OutputType returns the type of the value returned by Lower, samples lower into a []float64 and report Bytes.
func (f *Function) OutputType() isb.FieldType {
	switch f.kind {
	case Sum, Min, Max:
		return f.input
	case Count:
		return isb.UInt64
	case Avg, Median:
		return isb.Float64
	default:
		return isb.Bytes
	}
}

// Init resets the cell to the identity of the aggregation.
func (f *Function) Init(c *Cell) {
	*c = Cell{}
	switch f.kind {
	case SampleWithReplacement:
		c.Values = make([]float64, 0, f.opts.sampleSize)
	case SampleWithoutReplacement:
		c.Values = make([]float64, 0, f.opts.sampleSize)
		c.Priorities = make([]float64, 0, f.opts.sampleSize)
	}
}

// Prepare converts an input value to the input type. Values are prepared before any cell is touched, so a bad value
// never leaves a record half applied.
func (f *Function) Prepare(v any) (Value, error) {
	if !f.kind.needsInput() {
		return Value{}, nil
	}
	var (
		val Value
		err error
	)
	switch f.input {
	case isb.Int64:
		val.Int, err = cast.ToInt64E(v)
	case isb.UInt64:
		val.UInt, err = cast.ToUint64E(v)
	case isb.Float64:
		val.Float, err = cast.ToFloat64E(v)
	}
	if err != nil {
		return Value{}, isb.DataErr{Name: f.kind.String(), Message: err.Error()}
	}
	return val, nil
}

func (f *Function) float(v Value) float64 {
	switch f.input {
	case isb.Int64:
		return float64(v.Int)
	case isb.UInt64:
		return float64(v.UInt)
	default:
		return v.Float
	}
}

// Lift folds a prepared value into the cell.
func (f *Function) Lift(c *Cell, v Value) {
	c.Count++
	switch f.kind {
	case Sum, Avg:
		c.Int += v.Int
		c.UInt += v.UInt
		c.Float += v.Float
	case Min:
		if !c.Valid || f.less(v, c) {
			f.store(c, v)
		}
	case Max:
		if !c.Valid || f.greater(v, c) {
			f.store(c, v)
		}
	case Median:
		c.Values = append(c.Values, f.float(v))
	case SampleWithReplacement:
		f.reservoirAdd(c, f.float(v))
	case SampleWithoutReplacement:
		f.priorityAdd(c, f.float(v), randomPriority())
	}
}

func (f *Function) store(c *Cell, v Value) {
	c.Int, c.UInt, c.Float = v.Int, v.UInt, v.Float
	c.Valid = true
}

func (f *Function) less(v Value, c *Cell) bool {
	switch f.input {
	case isb.Int64:
		return v.Int < c.Int
	case isb.UInt64:
		return v.UInt < c.UInt
	default:
		return v.Float < c.Float
	}
}

func (f *Function) greater(v Value, c *Cell) bool {
	switch f.input {
	case isb.Int64:
		return v.Int > c.Int
	case isb.UInt64:
		return v.UInt > c.UInt
	default:
		return v.Float > c.Float
	}
}

// Combine merges other into c. other is left unchanged.
func (f *Function) Combine(c *Cell, other *Cell) {
	switch f.kind {
	case Sum, Avg:
		c.Int += other.Int
		c.UInt += other.UInt
		c.Float += other.Float
	case Min:
		if other.Valid && (!c.Valid || f.less(Value{Int: other.Int, UInt: other.UInt, Float: other.Float}, c)) {
			f.store(c, Value{Int: other.Int, UInt: other.UInt, Float: other.Float})
		}
	case Max:
		if other.Valid && (!c.Valid || f.greater(Value{Int: other.Int, UInt: other.UInt, Float: other.Float}, c)) {
			f.store(c, Value{Int: other.Int, UInt: other.UInt, Float: other.Float})
		}
	case Median:
		c.Values = append(c.Values, other.Values...)
	case SampleWithReplacement:
		f.reservoirMerge(c, other)
	case SampleWithoutReplacement:
		for i := range other.Values {
			f.priorityAdd(c, other.Values[i], other.Priorities[i])
		}
	}
	if f.kind != SampleWithReplacement {
		c.Count += other.Count
	}
}

// Lower returns the result of the cell. It does not modify the cell, calling it twice returns the same value.
func (f *Function) Lower(c *Cell) (any, error) {
	switch f.kind {
	case Sum:
		return f.typed(c), nil
	case Min, Max:
		if !c.Valid {
			return nil, ErrEmptyWindowAggregate
		}
		return f.typed(c), nil
	case Count:
		return c.Count, nil
	case Avg:
		if c.Count == 0 {
			if f.opts.emptyAverage == EmptyAverageNaN {
				return math.NaN(), nil
			}
			return nil, ErrEmptyWindowAggregate
		}
		var sum float64
		switch f.input {
		case isb.Int64:
			sum = float64(c.Int)
		case isb.UInt64:
			sum = float64(c.UInt)
		default:
			sum = c.Float
		}
		return sum / float64(c.Count), nil
	case Median:
		if len(c.Values) == 0 {
			return nil, ErrEmptyWindowAggregate
		}
		// stats sorts a copy, the cell keeps its order
		m, err := stats.Median(c.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to compute the median, %w", err)
		}
		return m, nil
	case SampleWithReplacement, SampleWithoutReplacement:
		sample := slices.Clone(c.Values)
		slices.Sort(sample)
		return sample, nil
	default:
		return nil, fmt.Errorf("unknown aggregation %d", f.kind)
	}
}

func (f *Function) typed(c *Cell) any {
	switch f.input {
	case isb.Int64:
		return c.Int
	case isb.UInt64:
		return c.UInt
	default:
		return c.Float
	}
}

// Clone returns a deep copy of the cell. Values are only carried over for the aggregations which materialize them.
func (f *Function) Clone(c *Cell) Cell {
	cp := *c
	if !f.kind.materializes() {
		cp.Values, cp.Priorities = nil, nil
		return cp
	}
	if c.Values != nil {
		cp.Values = make([]float64, len(c.Values), max(cap(c.Values), len(c.Values)))
		copy(cp.Values, c.Values)
	}
	if c.Priorities != nil {
		cp.Priorities = make([]float64, len(c.Priorities), max(cap(c.Priorities), len(c.Priorities)))
		copy(cp.Priorities, c.Priorities)
	}
	return cp
}
