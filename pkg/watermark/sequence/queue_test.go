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

package sequence

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func TestQueue_InOrder(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	wm, err := q.Emplace(wmb.NewSequenceData(1), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), wm.UnixMilli())
	wm, err = q.Emplace(wmb.NewSequenceData(2), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), wm.UnixMilli())
	assert.Equal(t, uint64(2), q.LastSequence())
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_OutOfOrder(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	wm, err := q.Emplace(wmb.NewSequenceData(2), 20)
	require.NoError(t, err)
	// sequence 1 is missing, nothing can advance
	assert.Equal(t, wmb.InitialWatermark.UnixMilli(), wm.UnixMilli())
	wm, err = q.Emplace(wmb.NewSequenceData(3), 30)
	require.NoError(t, err)
	assert.Equal(t, wmb.InitialWatermark.UnixMilli(), wm.UnixMilli())
	assert.Equal(t, 2, q.PendingCount())

	wm, err = q.Emplace(wmb.NewSequenceData(1), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(30), wm.UnixMilli())
	assert.Equal(t, uint64(3), q.LastSequence())
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_Chunks(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	wm, err := q.Emplace(wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 2, LastChunk: true}, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), wm.UnixMilli())

	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 1}, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(15), wm.UnixMilli())

	_, err = q.Emplace(wmb.SequenceData{SequenceNumber: 2, ChunkNumber: 1, LastChunk: true}, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(20), q.Watermark().UnixMilli())

	_, err = q.Emplace(wmb.SequenceData{SequenceNumber: 4, ChunkNumber: 3, LastChunk: true}, 40)
	require.NoError(t, err)
	// conflicting last chunk
	_, err = q.Emplace(wmb.SequenceData{SequenceNumber: 4, ChunkNumber: 2, LastChunk: true}, 40)
	assert.Error(t, err)
	// beyond the last chunk
	_, err = q.Emplace(wmb.SequenceData{SequenceNumber: 4, ChunkNumber: 5}, 40)
	assert.Error(t, err)
	_, err = q.Emplace(wmb.SequenceData{SequenceNumber: 4, ChunkNumber: 0}, 40)
	assert.Error(t, err)
	assert.Equal(t, int64(20), q.Watermark().UnixMilli())
}

func TestQueue_ChunksMustBeContiguous(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	wm, err := q.Emplace(wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 3}, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), wm.UnixMilli())

	// chunk 3 is beyond the last chunk and is dropped, chunk 1 is still missing
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 2, LastChunk: true}, 90)
	assert.Error(t, err)
	assert.Equal(t, int64(-1), wm.UnixMilli())
	assert.Equal(t, uint64(0), q.LastSequence())
	assert.Equal(t, 1, q.PendingCount())

	// the watermark of the dropped chunk does not count
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 1, ChunkNumber: 1}, 80)
	require.NoError(t, err)
	assert.Equal(t, int64(90), wm.UnixMilli())
	assert.Equal(t, uint64(1), q.LastSequence())

	// the last chunk marker arrives after a chunk beyond it
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 2, ChunkNumber: 2}, 120)
	require.NoError(t, err)
	assert.Equal(t, int64(90), wm.UnixMilli())
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 2, ChunkNumber: 3}, 130)
	require.NoError(t, err)
	assert.Equal(t, int64(90), wm.UnixMilli())
	// two chunks seen and the last chunk is 2, chunk 1 never arrived
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 2, ChunkNumber: 2, LastChunk: true}, 120)
	assert.Error(t, err)
	assert.Equal(t, int64(90), wm.UnixMilli())
	wm, err = q.Emplace(wmb.SequenceData{SequenceNumber: 2, ChunkNumber: 1}, 110)
	require.NoError(t, err)
	assert.Equal(t, int64(120), wm.UnixMilli())
}

func TestQueue_IgnoresStale(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	_, _ = q.Emplace(wmb.NewSequenceData(1), 50)
	// a duplicate of an already completed sequence must not move the watermark
	wm, err := q.Emplace(wmb.NewSequenceData(1), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wm.UnixMilli())
	// a smaller watermark on a later sequence never regresses
	wm, err = q.Emplace(wmb.NewSequenceData(2), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wm.UnixMilli())
}

func TestQueue_Floor(t *testing.T) {
	q := NewQueue(wmb.FromUnixMilli(100))
	wm, err := q.Emplace(wmb.NewSequenceData(1), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wm.UnixMilli())
}

func TestQueue_ConcurrentMonotonic(t *testing.T) {
	q := NewQueue(wmb.InitialWatermark)
	const total = 500
	seqs := rand.New(rand.NewSource(7)).Perm(total)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var observed []int64
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < total; i += 4 {
				s := uint64(seqs[i] + 1)
				wm, err := q.Emplace(wmb.NewSequenceData(s), int64(s*10))
				assert.NoError(t, err)
				mu.Lock()
				observed = append(observed, wm.UnixMilli())
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, int64(total*10), q.Watermark().UnixMilli())
	assert.Equal(t, uint64(total), q.LastSequence())
	assert.NotEmpty(t, q.Dump())
	assert.Len(t, observed, total)
}
