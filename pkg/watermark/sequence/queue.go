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

// Package sequence implements the per-origin monotonic sequence queue. Buffers of one origin may finish out of
// order, the queue only advances its watermark once every sequence number up to that point, and every chunk of
// those sequence numbers, has been recorded.
package sequence

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// pending tracks the chunks seen so far for a sequence number that is not yet part of the contiguous prefix.
type pending struct {
	// seen maps a chunk number to the watermark reported with it.
	seen map[uint64]int64
	// lastChunk is the chunk number flagged as last, 0 while unknown.
	lastChunk uint64
}

// complete returns true once the last chunk is known and every chunk from 1 up to it has been seen.
func (p *pending) complete() bool {
	if p.lastChunk == 0 || uint64(len(p.seen)) != p.lastChunk {
		return false
	}
	for c := uint64(1); c <= p.lastChunk; c++ {
		if _, ok := p.seen[c]; !ok {
			return false
		}
	}
	return true
}

func (p *pending) watermark() int64 {
	wm := int64(math.MinInt64)
	for _, w := range p.seen {
		if w > wm {
			wm = w
		}
	}
	return wm
}

// Queue is the monotonic sequence queue of a single origin.
// Writers serialize on a short-held lock, readers load the published watermark without locking.
type Queue struct {
	// next is the next sequence number needed to extend the contiguous prefix.
	next    uint64
	pending map[uint64]*pending
	lock    sync.Mutex
	// current is the watermark of the highest contiguous sequence number.
	current *atomic.Int64
	// lastSequence is the highest contiguous sequence number.
	lastSequence *atomic.Uint64
}

// NewQueue returns a Queue whose watermark starts at the given floor.
func NewQueue(floor wmb.Watermark) *Queue {
	return &Queue{
		next:         1,
		pending:      make(map[uint64]*pending),
		current:      atomic.NewInt64(floor.UnixMilli()),
		lastSequence: atomic.NewUint64(0),
	}
}

// Emplace records the watermark of the given sequence and returns the watermark of the contiguous prefix.
// Sequences which are already part of the prefix, and chunks recorded twice, are ignored.
func (q *Queue) Emplace(seq wmb.SequenceData, watermark int64) (wmb.Watermark, error) {
	if err := seq.Validate(); err != nil {
		return q.Watermark(), err
	}
	q.lock.Lock()
	defer q.lock.Unlock()

	if seq.SequenceNumber < q.next {
		return q.Watermark(), nil
	}

	p, ok := q.pending[seq.SequenceNumber]
	if !ok {
		p = &pending{seen: make(map[uint64]int64, 1)}
		q.pending[seq.SequenceNumber] = p
	}
	if p.lastChunk != 0 && seq.ChunkNumber > p.lastChunk {
		return q.Watermark(), fmt.Errorf("chunk %d of sequence %d is beyond the last chunk %d", seq.ChunkNumber, seq.SequenceNumber, p.lastChunk)
	}
	if seq.LastChunk && p.lastChunk != 0 && p.lastChunk != seq.ChunkNumber {
		return q.Watermark(), fmt.Errorf("sequence %d reported last chunk %d, already had %d", seq.SequenceNumber, seq.ChunkNumber, p.lastChunk)
	}
	if w, ok := p.seen[seq.ChunkNumber]; !ok || watermark > w {
		p.seen[seq.ChunkNumber] = watermark
	}
	var err error
	if seq.LastChunk {
		p.lastChunk = seq.ChunkNumber
		// chunks recorded beyond the last one are dropped with their watermarks
		var stray []uint64
		for c := range p.seen {
			if c > p.lastChunk {
				stray = append(stray, c)
			}
		}
		for _, c := range stray {
			delete(p.seen, c)
		}
		if len(stray) > 0 {
			slices.Sort(stray)
			err = fmt.Errorf("sequence %d dropped chunks %v beyond the last chunk %d", seq.SequenceNumber, stray, p.lastChunk)
		}
	}

	// extend the contiguous prefix as far as possible
	advanced := q.current.Load()
	for {
		head, ok := q.pending[q.next]
		if !ok || !head.complete() {
			break
		}
		if w := head.watermark(); w > advanced {
			advanced = w
		}
		q.lastSequence.Store(q.next)
		delete(q.pending, q.next)
		q.next++
	}
	q.current.Store(advanced)
	return wmb.FromUnixMilli(advanced), err
}

// Watermark returns the watermark of the highest contiguous sequence number.
func (q *Queue) Watermark() wmb.Watermark {
	return wmb.FromUnixMilli(q.current.Load())
}

// LastSequence returns the highest contiguous sequence number, 0 if none.
func (q *Queue) LastSequence() uint64 {
	return q.lastSequence.Load()
}

// PendingCount returns the number of sequence numbers waiting for a gap to be filled.
func (q *Queue) PendingCount() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.pending)
}

// Dump dumps the in-memory representation of the pending sequences.
func (q *Queue) Dump() string {
	var builder strings.Builder
	q.lock.Lock()
	defer q.lock.Unlock()
	builder.WriteString(fmt.Sprintf("[next:%d wm:%d]", q.next, q.current.Load()))
	for seq, p := range q.pending {
		builder.WriteString(fmt.Sprintf(" -> [%d:%d/%d:%d]", seq, len(p.seen), p.lastChunk, p.watermark()))
	}
	return builder.String()
}
