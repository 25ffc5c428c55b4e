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

package generator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func TestGenerator_Read(t *testing.T) {
	start := time.UnixMilli(1_000_000)
	fake := testingclock.NewFakeClock(start)
	g, err := NewGenerator(context.Background(), "q", "gen", []wmb.OriginID{1, 2},
		WithClock(fake), WithRPU(4), WithDuration(100*time.Millisecond), WithKeyCount(2), WithLimit(2), WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, "gen", g.GetName())
	schema := Schema()

	ctx := context.Background()
	var prevWm = map[wmb.OriginID]int64{}
	for tick := 0; tick < 2; tick++ {
		if tick > 0 {
			fake.Step(100 * time.Millisecond)
		}
		for _, origin := range []wmb.OriginID{1, 2} {
			buf, err := g.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, origin, buf.Origin)
			assert.Equal(t, uint64(tick+1), buf.Sequence.SequenceNumber)
			require.Len(t, buf.Records, 4)
			tickMs := start.UnixMilli() + int64(tick)*100
			assert.Equal(t, tickMs-100, buf.Watermark.UnixMilli())
			assert.Greater(t, buf.Watermark.UnixMilli(), prevWm[origin]-1)
			prevWm[origin] = buf.Watermark.UnixMilli()
			for _, r := range buf.Records {
				require.NoError(t, schema.Conform(&r))
				ts := r.Values[0].(int64)
				assert.True(t, ts > tickMs-100 && ts <= tickMs)
				assert.Contains(t, []string{"key-0", "key-1"}, r.Values[1])
			}
		}
	}
	_, err = g.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, g.Close())
}

func TestGenerator_WaitsForTick(t *testing.T) {
	fake := testingclock.NewFakeClock(time.UnixMilli(0))
	g, err := NewGenerator(context.Background(), "q", "gen", []wmb.OriginID{1}, WithClock(fake), WithDuration(time.Second))
	require.NoError(t, err)
	_, err = g.Read(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := g.Read(ctx)
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	go func() {
		_, err := g.Read(context.Background())
		done <- err
	}()
	require.Eventually(t, fake.HasWaiters, time.Second, time.Millisecond)
	fake.Step(time.Second)
	assert.NoError(t, <-done)
}

func TestNewGenerator_Errors(t *testing.T) {
	_, err := NewGenerator(context.Background(), "q", "gen", nil)
	assert.Error(t, err)
	_, err = NewGenerator(context.Background(), "q", "gen", []wmb.OriginID{1}, WithRPU(0))
	assert.Error(t, err)
	_, err = NewGenerator(context.Background(), "q", "gen", []wmb.OriginID{1}, WithDuration(0))
	assert.Error(t, err)
	_, err = NewGenerator(context.Background(), "q", "gen", []wmb.OriginID{1}, WithLimit(-1))
	assert.Error(t, err)
}
