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
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	testingclock "k8s.io/utils/clock/testing"
	"k8s.io/utils/ptr"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/sinks/collector"
	"github.com/numaproj/numaslice/pkg/slicestore"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// bufferSource replays buffers, then either ends with io.EOF or blocks until cancelled.
type bufferSource struct {
	lock    sync.Mutex
	buffers []*isb.RecordBuffer
	block   bool
	drained chan struct{}
	closed  bool
}

func newBufferSource(block bool, buffers ...*isb.RecordBuffer) *bufferSource {
	return &bufferSource{buffers: buffers, block: block, drained: make(chan struct{})}
}

func (s *bufferSource) GetName() string {
	return "buffers"
}

func (s *bufferSource) Read(ctx context.Context) (*isb.RecordBuffer, error) {
	s.lock.Lock()
	if len(s.buffers) > 0 {
		buf := s.buffers[0]
		s.buffers = s.buffers[1:]
		s.lock.Unlock()
		return buf, nil
	}
	s.lock.Unlock()
	select {
	case <-s.drained:
	default:
		close(s.drained)
	}
	if !s.block {
		return nil, io.EOF
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *bufferSource) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}

func testSchema(t *testing.T) *isb.Schema {
	t.Helper()
	schema, err := SchemaFromSpec(v1alpha1.SchemaSpec{Fields: []v1alpha1.FieldSpec{
		{Name: "ts", Type: v1alpha1.FieldTypeInt64},
		{Name: "key", Type: v1alpha1.FieldTypeString},
		{Name: "v", Type: v1alpha1.FieldTypeInt64},
	}})
	require.NoError(t, err)
	return schema
}

func testSpec() v1alpha1.QuerySpec {
	return v1alpha1.QuerySpec{
		Name:      "sums",
		Window:    v1alpha1.Window{Fixed: &v1alpha1.FixedWindow{Length: &metav1.Duration{Duration: 10 * time.Second}}},
		Timestamp: &v1alpha1.TimestampSpec{Field: "ts"},
		Keys:      []string{"key"},
		Aggregations: []v1alpha1.AggregationSpec{
			{Type: v1alpha1.AggregationSum, Field: "v"},
			{Type: v1alpha1.AggregationCount},
		},
		LatePolicy: v1alpha1.LatePolicyDrop,
		Origins:    []uint64{1, 2},
	}
}

func buffer(origin uint64, seq uint64, wmMs int64, records ...isb.Record) *isb.RecordBuffer {
	return &isb.RecordBuffer{
		Origin:    wmb.OriginID(origin),
		Sequence:  wmb.NewSequenceData(seq),
		Watermark: wmb.FromUnixMilli(wmMs),
		Records:   records,
	}
}

func rec(tsMs int64, key string, v int64) isb.Record {
	return isb.Record{Values: []any{tsMs, key, v}}
}

type row struct {
	start, end int64
	key        string
	sum        int64
	count      uint64
}

func rows(results []isb.Result) []row {
	out := make([]row, 0, len(results))
	for _, r := range results {
		m := r.Map()
		out = append(out, row{
			start: r.WindowStart.UnixMilli(),
			end:   r.WindowEnd.UnixMilli(),
			key:   m["key"].(string),
			sum:   m["sum_v"].(int64),
			count: m["count"].(uint64),
		})
	}
	return out
}

func twoOriginBuffers() []*isb.RecordBuffer {
	return []*isb.RecordBuffer{
		buffer(1, 1, 0, rec(1000, "a", 5), rec(3000, "a", 7)),
		buffer(2, 1, 0, rec(2000, "b", 1)),
		buffer(1, 2, 10000, rec(11000, "a", 2)),
		buffer(2, 2, 12000, rec(9000, "a", 1)),
	}
}

func TestSchemaFromSpec(t *testing.T) {
	schema := testSchema(t)
	assert.Equal(t, 3, schema.Len())
	assert.Equal(t, isb.String, schema.Field(1).Type)

	_, err := SchemaFromSpec(v1alpha1.SchemaSpec{})
	assert.True(t, isb.IsPlanErr(err))
	_, err = SchemaFromSpec(v1alpha1.SchemaSpec{Fields: []v1alpha1.FieldSpec{{Name: "x", Type: "decimal"}}})
	assert.True(t, isb.IsPlanErr(err))
}

func TestNewQuery(t *testing.T) {
	ctx := context.Background()
	schema := testSchema(t)
	sink := collector.New("out")

	q, err := NewQuery(ctx, testSpec(), schema, sink)
	require.NoError(t, err)
	assert.Equal(t, "sums", q.Name())
	assert.NotEmpty(t, q.ID())
	assert.Len(t, q.ExecutionContext().Handlers(), 1)
	assert.Equal(t, q.ID(), q.ExecutionContext().QueryID())
	assert.Equal(t, wmb.InitialWatermark, q.Watermark())
	assert.NoError(t, q.IsHealthy(ctx))

	other, err := NewQuery(ctx, testSpec(), schema, sink)
	require.NoError(t, err)
	assert.NotEqual(t, q.ID(), other.ID())

	tests := []struct {
		name   string
		mutate func(*v1alpha1.QuerySpec)
		opts   []Option
	}{
		{name: "missing timestamp field", mutate: func(s *v1alpha1.QuerySpec) { s.Timestamp.Field = "missing" }},
		{name: "string timestamp field", mutate: func(s *v1alpha1.QuerySpec) { s.Timestamp.Field = "key" }},
		{name: "unknown key", mutate: func(s *v1alpha1.QuerySpec) { s.Keys = []string{"region"} }},
		{name: "unknown aggregation field", mutate: func(s *v1alpha1.QuerySpec) { s.Aggregations[0].Field = "w" }},
		{name: "non numeric sum", mutate: func(s *v1alpha1.QuerySpec) { s.Aggregations[0].Field = "key" }},
		{name: "unknown aggregation", mutate: func(s *v1alpha1.QuerySpec) { s.Aggregations[0].Type = "mode" }},
		{name: "missing late policy", mutate: func(s *v1alpha1.QuerySpec) { s.LatePolicy = "" }},
		{name: "side output without late sink", mutate: func(s *v1alpha1.QuerySpec) { s.LatePolicy = v1alpha1.LatePolicySideOutput }},
		{name: "bad filter", mutate: func(s *v1alpha1.QuerySpec) { s.Filter = "v >" }},
		{name: "no origins", mutate: func(s *v1alpha1.QuerySpec) { s.Origins = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			spec.Timestamp = &v1alpha1.TimestampSpec{Field: "ts"}
			spec.Aggregations = append([]v1alpha1.AggregationSpec(nil), spec.Aggregations...)
			tt.mutate(&spec)
			_, err := NewQuery(ctx, spec, schema, sink, tt.opts...)
			require.Error(t, err)
			assert.True(t, isb.IsPlanErr(err), err.Error())
		})
	}
}

func TestQuery_Run(t *testing.T) {
	tests := []struct {
		name     string
		routing  v1alpha1.RoutingStrategy
		parallel int32
		flush    bool
		expected []row
	}{
		{
			name:     "single worker",
			routing:  v1alpha1.RoundRobin,
			parallel: 1,
			expected: []row{{0, 10000, "a", 13, 3}, {0, 10000, "b", 1, 1}},
		},
		{
			name:     "round robin",
			routing:  v1alpha1.RoundRobin,
			parallel: 2,
			expected: []row{{0, 10000, "a", 13, 3}, {0, 10000, "b", 1, 1}},
		},
		{
			name:     "origin affinity with flush",
			routing:  v1alpha1.OriginAffinity,
			parallel: 3,
			flush:    true,
			expected: []row{{0, 10000, "a", 13, 3}, {0, 10000, "b", 1, 1}, {10000, 20000, "a", 2, 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			spec := testSpec()
			spec.Routing = tt.routing
			spec.Parallelism = ptr.To(tt.parallel)
			spec.FlushOnClose = tt.flush
			sink := collector.New("out")
			q, err := NewQuery(ctx, spec, testSchema(t), sink)
			require.NoError(t, err)

			source := newBufferSource(false, twoOriginBuffers()...)
			require.NoError(t, q.Run(ctx, source))
			assert.Equal(t, tt.expected, rows(sink.Results()))
			assert.Equal(t, int64(10000), q.Watermark().UnixMilli())
			assert.True(t, source.closed)

			h, err := q.ExecutionContext().Handler(0)
			require.NoError(t, err)
			assert.Equal(t, slicestore.Terminated, h.State())
			assert.NoError(t, q.IsHealthy(ctx))

			require.NoError(t, q.Close())
			assert.True(t, sink.Closed())
		})
	}
}

func TestQuery_Filter(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.Filter = "v > 2"
	spec.FlushOnClose = true
	sink := collector.New("out")
	q, err := NewQuery(ctx, spec, testSchema(t), sink)
	require.NoError(t, err)

	require.NoError(t, q.Run(ctx, newBufferSource(false, twoOriginBuffers()...)))
	assert.Equal(t, []row{{0, 10000, "a", 12, 2}}, rows(sink.Results()))
}

func TestQuery_LateRecords(t *testing.T) {
	buffers := func() []*isb.RecordBuffer {
		return []*isb.RecordBuffer{
			buffer(1, 1, 10000, rec(1000, "a", 1)),
			buffer(1, 2, 10000, rec(2000, "a", 1), rec(12000, "a", 4)),
		}
	}

	t.Run("fail", func(t *testing.T) {
		ctx := context.Background()
		spec := testSpec()
		spec.Origins = []uint64{1}
		spec.LatePolicy = v1alpha1.LatePolicyFail
		q, err := NewQuery(ctx, spec, testSchema(t), collector.New("out"))
		require.NoError(t, err)

		err = q.Run(ctx, newBufferSource(false, buffers()...))
		require.Error(t, err)
		assert.True(t, errors.Is(err, slicestore.ErrLateRecord))
		assert.Error(t, q.IsHealthy(ctx))
	})

	t.Run("side output", func(t *testing.T) {
		ctx := context.Background()
		spec := testSpec()
		spec.Origins = []uint64{1}
		spec.LatePolicy = v1alpha1.LatePolicySideOutput
		spec.FlushOnClose = true
		sink, late := collector.New("out"), collector.New("late")
		q, err := NewQuery(ctx, spec, testSchema(t), sink, WithLateSink(late))
		require.NoError(t, err)

		require.NoError(t, q.Run(ctx, newBufferSource(false, buffers()...)))
		assert.Equal(t, []row{{0, 10000, "a", 1, 1}, {10000, 20000, "a", 4, 1}}, rows(sink.Results()))
		require.Len(t, late.Late(), 1)
		assert.Equal(t, int64(2000), late.Late()[0].Timestamp.UnixMilli())
		assert.Equal(t, int64(10000), late.Late()[0].Bound.UnixMilli())

		require.NoError(t, q.Close())
		assert.True(t, late.Closed())
	})

	t.Run("allowed lateness", func(t *testing.T) {
		ctx := context.Background()
		spec := testSpec()
		spec.Origins = []uint64{1}
		spec.AllowedLateness = &metav1.Duration{Duration: time.Second}
		sink := collector.New("out")
		q, err := NewQuery(ctx, spec, testSchema(t), sink)
		require.NoError(t, err)

		require.NoError(t, q.Run(ctx, newBufferSource(false, buffers()...)))
		assert.Empty(t, sink.Results())
	})
}

func TestQuery_UnknownOrigin(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.Origins = []uint64{1}
	spec.FlushOnClose = true
	sink := collector.New("out")
	q, err := NewQuery(ctx, spec, testSchema(t), sink)
	require.NoError(t, err)

	require.NoError(t, q.Run(ctx, newBufferSource(false,
		buffer(1, 1, 5000, rec(1000, "a", 1)),
		buffer(7, 1, 9000, rec(2000, "a", 2)),
	)))
	assert.Equal(t, int64(5000), q.Watermark().UnixMilli())
	assert.Equal(t, []row{{0, 10000, "a", 3, 2}}, rows(sink.Results()))
}

func TestQuery_DynamicOrigins(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.Origins = nil
	spec.DynamicOrigins = true
	sink := collector.New("out")
	q, err := NewQuery(ctx, spec, testSchema(t), sink)
	require.NoError(t, err)

	require.NoError(t, q.Run(ctx, newBufferSource(false,
		buffer(3, 1, 10000, rec(1000, "a", 1)),
		buffer(3, 2, 20000, rec(11000, "a", 2)),
	)))
	assert.Equal(t, int64(20000), q.Watermark().UnixMilli())
	assert.Equal(t, []row{{0, 10000, "a", 1, 1}, {10000, 20000, "a", 2, 1}}, rows(sink.Results()))
}

func TestQuery_IngestionTime(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.Origins = []uint64{1}
	spec.TimeCharacteristic = v1alpha1.IngestionTime
	spec.Timestamp = nil
	sink := collector.New("out")
	clk := testingclock.NewFakePassiveClock(time.UnixMilli(15000))
	q, err := NewQuery(ctx, spec, testSchema(t), sink, WithClock(clk))
	require.NoError(t, err)

	require.NoError(t, q.Run(ctx, newBufferSource(false,
		buffer(1, 1, 0, rec(1000, "a", 1), rec(2000, "a", 2)),
		buffer(1, 2, 20000),
	)))
	assert.Equal(t, []row{{10000, 20000, "a", 3, 2}}, rows(sink.Results()))
}

func TestQuery_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	spec := testSpec()
	spec.Parallelism = ptr.To(int32(2))
	spec.FlushOnClose = true
	q, err := NewQuery(ctx, spec, testSchema(t), collector.New("out"))
	require.NoError(t, err)

	source := newBufferSource(true, twoOriginBuffers()...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Run(ctx, source)
	}()
	<-source.drained
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("query did not stop")
	}
	h, err := q.ExecutionContext().Handler(0)
	require.NoError(t, err)
	assert.Equal(t, slicestore.Terminated, h.State())
	assert.True(t, source.closed)
}

func TestQuery_RunTwice(t *testing.T) {
	ctx := context.Background()
	q, err := NewQuery(ctx, testSpec(), testSchema(t), collector.New("out"))
	require.NoError(t, err)
	require.NoError(t, q.Run(ctx, newBufferSource(false)))
	// the handlers are terminated by the first run
	err = q.Run(ctx, newBufferSource(false, twoOriginBuffers()...))
	assert.Error(t, err)
}

func TestExecutionContext(t *testing.T) {
	ec := NewExecutionContext("q")
	_, err := ec.Handler(0)
	assert.Error(t, err)
	assert.Empty(t, ec.Handlers())
}

// brokenHandler reports inconsistent state and records how it was terminated.
type brokenHandler struct {
	terminated bool
	flushed    bool
}

func (b *brokenHandler) Name() string { return "broken" }

func (b *brokenHandler) OnWatermark(context.Context, wmb.Watermark) (int, error) { return 0, nil }

func (b *brokenHandler) Terminate(_ context.Context, flush bool) (int, error) {
	b.terminated, b.flushed = true, flush
	return 0, nil
}

func (b *brokenHandler) State() slicestore.State { return slicestore.HasActiveSlices }

func (b *brokenHandler) ActiveSlices() int64 { return 2 }

func (b *brokenHandler) Validate() error {
	return isb.InvariantErr{Name: "store-0", Message: "[0, 10000) overlaps [5000, 15000)"}
}

func TestQuery_TeardownValidatesHandlers(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.FlushOnClose = true
	sink := collector.New("out")
	q, err := NewQuery(ctx, spec, testSchema(t), sink)
	require.NoError(t, err)
	broken := &brokenHandler{}
	idx := q.ExecutionContext().Register(broken)
	h, err := q.ExecutionContext().Handler(idx)
	require.NoError(t, err)
	assert.Equal(t, "broken", h.Name())

	err = q.Run(ctx, newBufferSource(false, twoOriginBuffers()...))
	require.Error(t, err)
	assert.True(t, isb.IsInvariantErr(err))
	assert.Error(t, q.IsHealthy(ctx))
	assert.True(t, broken.terminated)
	assert.False(t, broken.flushed)
	// the consistent handler still flushes its partial window
	assert.Contains(t, rows(sink.Results()), row{10000, 20000, "a", 2, 1})
}

func TestQuery_Join(t *testing.T) {
	ctx := context.Background()
	spec := testSpec()
	spec.Name = "joined"
	spec.Aggregations = nil
	spec.Join = &v1alpha1.JoinSpec{LeftOrigins: []uint64{1}}
	spec.FlushOnClose = true
	spec.Parallelism = ptr.To[int32](2)
	sink := collector.New("out")
	q, err := NewQuery(ctx, spec, testSchema(t), sink)
	require.NoError(t, err)

	err = q.Run(ctx, newBufferSource(false,
		buffer(1, 1, 0, rec(1000, "a", 5), rec(3000, "b", 7)),
		buffer(2, 1, 0, rec(2000, "a", 100), rec(4000, "c", 1)),
		buffer(1, 2, 10000, rec(11000, "a", 2)),
		buffer(2, 2, 12000, rec(12000, "a", 200)),
	))
	require.NoError(t, err)
	require.NoError(t, q.Close())

	results := sink.Results()
	require.Len(t, results, 2)
	first, second := results[0].Map(), results[1].Map()
	assert.Equal(t, int64(0), results[0].WindowStart.UnixMilli())
	assert.Equal(t, "a", first["key"])
	assert.Equal(t, int64(5), first["left.v"])
	assert.Equal(t, int64(100), first["right.v"])
	// flushed on close
	assert.Equal(t, int64(10000), results[1].WindowStart.UnixMilli())
	assert.Equal(t, int64(2), second["left.v"])
	assert.Equal(t, int64(200), second["right.v"])

	spec.Join.RightKeys = []string{"missing"}
	_, err = NewQuery(ctx, spec, testSchema(t), sink)
	assert.True(t, isb.IsPlanErr(err))
}
