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

package processor

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func seqOf(n uint64) wmb.SequenceData {
	return wmb.NewSequenceData(n)
}

func TestMultiOriginProcessor_MinAcrossOrigins(t *testing.T) {
	p, err := NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1, 2})
	require.NoError(t, err)

	wm, err := p.UpdateWatermark(wmb.FromUnixMilli(20), seqOf(1), 1)
	require.NoError(t, err)
	// origin 2 has not reported yet
	assert.Equal(t, wmb.InitialWatermark, wm)

	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(5), seqOf(1), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), wm.UnixMilli())
	assert.Equal(t, int64(5), p.GetWatermark().UnixMilli())

	owm, err := p.GetOriginWatermark(1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), owm.UnixMilli())

	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(30), seqOf(2), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), wm.UnixMilli())
}

func TestMultiOriginProcessor_OutOfOrderSequences(t *testing.T) {
	p, err := NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1})
	require.NoError(t, err)

	wm, err := p.UpdateWatermark(wmb.FromUnixMilli(30), seqOf(2), 1)
	require.NoError(t, err)
	assert.Equal(t, wmb.InitialWatermark, wm)

	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(10), seqOf(1), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), wm.UnixMilli())
}

func TestMultiOriginProcessor_StrayChunks(t *testing.T) {
	p, err := NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1})
	require.NoError(t, err)

	_, err = p.UpdateWatermark(wmb.FromUnixMilli(10), wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 1}, 1)
	require.NoError(t, err)
	_, err = p.UpdateWatermark(wmb.FromUnixMilli(50), wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 3}, 1)
	require.NoError(t, err)
	assert.Equal(t, wmb.InitialWatermark, p.GetWatermark())

	// chunk 3 is dropped, the sequence completes with chunks 1 and 2
	wm, err := p.UpdateWatermark(wmb.FromUnixMilli(20), wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 2, LastChunk: true}, 1)
	assert.Error(t, err)
	assert.Equal(t, int64(20), wm.UnixMilli())
	assert.Equal(t, int64(20), p.GetWatermark().UnixMilli())
}

func TestMultiOriginProcessor_ClosedMembership(t *testing.T) {
	_, err := NewMultiOriginProcessor(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1, 1})
	assert.Error(t, err)

	p, err := NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1})
	require.NoError(t, err)
	_, err = p.UpdateWatermark(wmb.FromUnixMilli(10), seqOf(1), 9)
	assert.ErrorIs(t, err, ErrUnknownOrigin)
	_, err = p.GetOriginWatermark(9)
	assert.ErrorIs(t, err, ErrUnknownOrigin)
	assert.Equal(t, []wmb.OriginID{1}, p.Origins())
}

func TestMultiOriginProcessor_DynamicOrigins(t *testing.T) {
	p, err := NewMultiOriginProcessor(context.Background(), nil, WithDynamicOrigins(), WithName("test"))
	require.NoError(t, err)

	wm, err := p.UpdateWatermark(wmb.FromUnixMilli(50), seqOf(1), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wm.UnixMilli())

	// a late joiner reporting an older watermark is floored at the global watermark
	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(10), seqOf(1), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wm.UnixMilli())
	owm, err := p.GetOriginWatermark(2)
	require.NoError(t, err)
	assert.Equal(t, int64(50), owm.UnixMilli())

	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(70), seqOf(2), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wm.UnixMilli())
	wm, err = p.UpdateWatermark(wmb.FromUnixMilli(60), seqOf(2), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(60), wm.UnixMilli())
	assert.Equal(t, []wmb.OriginID{1, 2}, p.Origins())
}

func TestMultiOriginProcessor_RegisterOrigin(t *testing.T) {
	p, err := NewMultiOriginProcessor(context.Background(), []wmb.OriginID{1})
	require.NoError(t, err)
	_, err = p.UpdateWatermark(wmb.FromUnixMilli(40), seqOf(1), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40), p.GetWatermark().UnixMilli())

	require.NoError(t, p.RegisterOrigin(2))
	assert.Error(t, p.RegisterOrigin(2))
	// the new origin starts at the current global watermark
	assert.Equal(t, int64(40), p.GetWatermark().UnixMilli())
	wm, err := p.UpdateWatermark(wmb.FromUnixMilli(45), seqOf(2), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40), wm.UnixMilli())
	assert.Contains(t, p.Dump(), "[origin 2]")
}

func TestMultiOriginProcessor_Monotonic(t *testing.T) {
	const origins = 4
	const updates = 200
	ids := make([]wmb.OriginID, origins)
	for i := range ids {
		ids[i] = wmb.OriginID(i)
	}
	p, err := NewMultiOriginProcessor(context.Background(), ids)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]int64, origins)
	for o := 0; o < origins; o++ {
		wg.Add(1)
		go func(o int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(o)))
			order := r.Perm(updates)
			for _, i := range order {
				seq := uint64(i + 1)
				wm, err := p.UpdateWatermark(wmb.FromUnixMilli(int64(seq)*10+int64(r.Intn(5))), seqOf(seq), wmb.OriginID(o))
				assert.NoError(t, err)
				results[o] = append(results[o], wm.UnixMilli())
			}
		}(o)
	}
	wg.Wait()

	// every caller observes a non-decreasing global watermark
	for o := 0; o < origins; o++ {
		for i := 1; i < len(results[o]); i++ {
			assert.LessOrEqual(t, results[o][i-1], results[o][i])
		}
	}
	assert.GreaterOrEqual(t, p.GetWatermark().UnixMilli(), int64(updates*10))
}
