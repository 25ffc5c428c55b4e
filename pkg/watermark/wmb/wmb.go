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

// Package wmb represents the origin, sequence and watermark triple reported by every upstream origin along with
// each buffer it produces.
package wmb

import (
	"fmt"
	"strconv"
)

// OriginID identifies one parallel instance of a source. Each origin produces its own sequence of buffers and
// its own watermark stream.
type OriginID uint64

func (o OriginID) String() string {
	return strconv.FormatUint(uint64(o), 10)
}

// SequenceData identifies the position of a buffer in the stream of its origin. A buffer may be split into
// several chunks; a sequence number is complete once the chunk flagged LastChunk and all the chunks before it
// have been seen.
type SequenceData struct {
	// SequenceNumber is monotonically increasing per origin, starting at 1.
	SequenceNumber uint64
	// ChunkNumber is the position of the chunk within the sequence number, starting at 1.
	ChunkNumber uint64
	// LastChunk is set on the final chunk of the sequence number.
	LastChunk bool
}

// NewSequenceData returns the SequenceData of an unchunked buffer.
func NewSequenceData(sequenceNumber uint64) SequenceData {
	return SequenceData{
		SequenceNumber: sequenceNumber,
		ChunkNumber:    1,
		LastChunk:      true,
	}
}

// Validate checks that both the sequence and the chunk numbers are set.
func (s SequenceData) Validate() error {
	if s.SequenceNumber == 0 {
		return fmt.Errorf("invalid sequence number 0, sequence numbers start at 1")
	}
	if s.ChunkNumber == 0 {
		return fmt.Errorf("invalid chunk number 0 for sequence %d, chunk numbers start at 1", s.SequenceNumber)
	}
	return nil
}

func (s SequenceData) String() string {
	return fmt.Sprintf("{seq:%d chunk:%d last:%t}", s.SequenceNumber, s.ChunkNumber, s.LastChunk)
}

// WMB is the watermark barrier reported by an origin for one sequence.
type WMB struct {
	// Origin is the origin that reported the watermark.
	Origin OriginID
	// Sequence is the sequence the watermark belongs to.
	Sequence SequenceData
	// Watermark is the epoch milliseconds of the watermark.
	Watermark int64
}

func (w WMB) String() string {
	return fmt.Sprintf("[origin:%s %s wm:%d]", w.Origin, w.Sequence, w.Watermark)
}
