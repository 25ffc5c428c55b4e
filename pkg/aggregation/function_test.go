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

package aggregation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/isb"
)

func liftAll(t *testing.T, f *Function, values ...any) *Cell {
	t.Helper()
	c := &Cell{}
	f.Init(c)
	for _, v := range values {
		p, err := f.Prepare(v)
		require.NoError(t, err)
		f.Lift(c, p)
	}
	return c
}

func TestParseKind(t *testing.T) {
	for k := Sum; k <= SampleWithoutReplacement; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("mode")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestNew(t *testing.T) {
	_, err := New(Sum, isb.String)
	assert.True(t, isb.IsPlanErr(err))
	_, err = New(Kind(42), isb.Int64)
	assert.True(t, isb.IsPlanErr(err))
	_, err = New(SampleWithReplacement, isb.Float64, WithSampleSize(0))
	assert.True(t, isb.IsPlanErr(err))

	f, err := New(Count, isb.String)
	require.NoError(t, err)
	assert.Equal(t, Count, f.Kind())
	assert.Equal(t, isb.UInt64, f.OutputType())

	f, err = New(Avg, isb.Int64)
	require.NoError(t, err)
	assert.Equal(t, isb.Float64, f.OutputType())
	f, err = New(Max, isb.UInt64)
	require.NoError(t, err)
	assert.Equal(t, isb.UInt64, f.OutputType())
}

func TestFunction_Lower(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		input    isb.FieldType
		values   []any
		expected any
	}{
		{name: "sum int", kind: Sum, input: isb.Int64, values: []any{5, 7, 1}, expected: int64(13)},
		{name: "sum int widened", kind: Sum, input: isb.Int64, values: []any{int32(math.MaxInt32), int32(math.MaxInt32)}, expected: int64(2 * math.MaxInt32)},
		{name: "sum uint", kind: Sum, input: isb.UInt64, values: []any{uint8(200), uint8(100)}, expected: uint64(300)},
		{name: "sum float from float32", kind: Sum, input: isb.Float64, values: []any{float32(0.5), 0.25}, expected: 0.75},
		{name: "min int", kind: Min, input: isb.Int64, values: []any{5, -7, 1}, expected: int64(-7)},
		{name: "min float", kind: Min, input: isb.Float64, values: []any{2.5, 1.5}, expected: 1.5},
		{name: "max uint", kind: Max, input: isb.UInt64, values: []any{5, 7, 1}, expected: uint64(7)},
		{name: "max float strings", kind: Max, input: isb.Float64, values: []any{"2.5", "10"}, expected: 10.0},
		{name: "avg int", kind: Avg, input: isb.Int64, values: []any{1, 2}, expected: 1.5},
		{name: "avg float", kind: Avg, input: isb.Float64, values: []any{1.0, 2.0, 6.0}, expected: 3.0},
		{name: "count", kind: Count, input: isb.String, values: []any{"a", "b", "c"}, expected: uint64(3)},
		{name: "median odd", kind: Median, input: isb.Int64, values: []any{9, 1, 5}, expected: 5.0},
		{name: "median even", kind: Median, input: isb.Float64, values: []any{4.0, 1.0, 3.0, 2.0}, expected: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.kind, tt.input)
			require.NoError(t, err)
			c := liftAll(t, f, tt.values...)
			got, err := f.Lower(c)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFunction_Prepare(t *testing.T) {
	f, err := New(Sum, isb.Int64)
	require.NoError(t, err)
	_, err = f.Prepare("abc")
	assert.True(t, isb.IsDataErr(err))

	f, err = New(Sum, isb.UInt64)
	require.NoError(t, err)
	_, err = f.Prepare(-1)
	assert.True(t, isb.IsDataErr(err))

	f, err = New(Count, isb.Bytes)
	require.NoError(t, err)
	v, err := f.Prepare([]byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, Value{}, v)
}

func TestFunction_EmptyWindow(t *testing.T) {
	f, err := New(Avg, isb.Float64)
	require.NoError(t, err)
	c := liftAll(t, f)
	_, err = f.Lower(c)
	assert.ErrorIs(t, err, ErrEmptyWindowAggregate)

	f, err = New(Avg, isb.Float64, WithEmptyAverage(EmptyAverageNaN))
	require.NoError(t, err)
	got, err := f.Lower(liftAll(t, f))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got.(float64)))

	for _, k := range []Kind{Min, Max, Median} {
		f, err = New(k, isb.Int64)
		require.NoError(t, err)
		_, err = f.Lower(liftAll(t, f))
		assert.ErrorIs(t, err, ErrEmptyWindowAggregate, k.String())
	}

	f, err = New(Count, isb.Int64)
	require.NoError(t, err)
	got, err = f.Lower(liftAll(t, f))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestFunction_IdempotentLower(t *testing.T) {
	for k := Sum; k <= SampleWithoutReplacement; k++ {
		t.Run(k.String(), func(t *testing.T) {
			f, err := New(k, isb.Float64, WithSampleSize(4))
			require.NoError(t, err)
			c := liftAll(t, f, 3.0, 1.0, 4.0, 1.0, 5.0, 9.0, 2.0, 6.0)
			before := f.Clone(c)
			first, err := f.Lower(c)
			require.NoError(t, err)
			second, err := f.Lower(c)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, before, *c)
		})
	}
}

func TestFunction_CombineProperties(t *testing.T) {
	kinds := []Kind{Sum, Min, Max, Avg, Count, Median, SampleWithoutReplacement}
	inputs := []isb.FieldType{isb.Int64, isb.UInt64, isb.Float64}
	r := rand.New(rand.NewSource(42))
	randomCell := func(f *Function) *Cell {
		values := make([]any, r.Intn(20))
		for i := range values {
			values[i] = r.Intn(1000)
		}
		return liftAll(t, f, values...)
	}
	lower := func(f *Function, c *Cell) any {
		v, err := f.Lower(c)
		if err != nil {
			return err
		}
		return v
	}
	combined := func(f *Function, cells ...*Cell) *Cell {
		out := &Cell{}
		f.Init(out)
		for _, c := range cells {
			f.Combine(out, c)
		}
		return out
	}
	for _, k := range kinds {
		for _, in := range inputs {
			f, err := New(k, in, WithSampleSize(8))
			require.NoError(t, err)
			for i := 0; i < 50; i++ {
				a, b, c := randomCell(f), randomCell(f), randomCell(f)

				ab := combined(f, a, b)
				ba := combined(f, b, a)
				left := combined(f, ab, c)
				right := combined(f, a, combined(f, b, c))

				for _, pair := range [][2]any{{lower(f, ab), lower(f, ba)}, {lower(f, left), lower(f, right)}} {
					if fl, ok := pair[0].(float64); ok {
						assert.InDelta(t, fl, pair[1].(float64), 1e-9, "%s %s", k, in)
						continue
					}
					assert.Equal(t, pair[0], pair[1], "%s %s", k, in)
				}
				assert.Equal(t, a.Count+b.Count+c.Count, left.Count)
			}
		}
	}
}

func TestFunction_CombineLeavesOtherUnchanged(t *testing.T) {
	f, err := New(Median, isb.Int64)
	require.NoError(t, err)
	a := liftAll(t, f, 1, 2)
	b := liftAll(t, f, 3)
	bBefore := f.Clone(b)
	f.Combine(a, b)
	assert.Equal(t, bBefore, *b)
	got, err := f.Lower(a)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestFunction_Clone(t *testing.T) {
	f, err := New(SampleWithoutReplacement, isb.Float64, WithSampleSize(2))
	require.NoError(t, err)
	c := liftAll(t, f, 1.0, 2.0)
	cp := f.Clone(c)
	cp.Values[0] = 100
	cp.Priorities[0] = -1
	assert.NotEqual(t, 100.0, c.Values[0])
	assert.NotEqual(t, -1.0, c.Priorities[0])

	f, err = New(Median, isb.Int64)
	require.NoError(t, err)
	c = liftAll(t, f, 3, 1, 2)
	cp = f.Clone(c)
	cp.Values[0] = 100
	assert.NotEqual(t, 100.0, c.Values[0])

	// scalar aggregates carry no values
	f, err = New(Sum, isb.Int64)
	require.NoError(t, err)
	c = liftAll(t, f, 1, 2)
	c.Values = []float64{7}
	cp = f.Clone(c)
	assert.Equal(t, int64(3), cp.Int)
	assert.Nil(t, cp.Values)
	assert.Nil(t, cp.Priorities)
}
