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

// Package shuffle pins every origin to one task-local partition, so the buffers of an origin are built in order.
package shuffle

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// Shuffle maps origins to partitions, it is safe for concurrent use.
type Shuffle struct {
	partitions uint32
}

// NewShuffle returns a Shuffle over the given number of partitions, at least one.
func NewShuffle(partitions int) *Shuffle {
	if partitions < 1 {
		partitions = 1
	}
	return &Shuffle{partitions: uint32(partitions)}
}

// Partition returns the partition of the origin.
func (s *Shuffle) Partition(origin wmb.OriginID) int {
	if s.partitions == 1 {
		return 0
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(origin))
	// hash of the origin mod the partition count decides the partition
	return int(murmur3.Sum32(key[:]) % s.partitions)
}

// ShuffleBuffers groups the buffers by partition, keeping their order within each partition.
func (s *Shuffle) ShuffleBuffers(buffers []*isb.RecordBuffer) map[int][]*isb.RecordBuffer {
	out := make(map[int][]*isb.RecordBuffer)
	for _, buf := range buffers {
		p := s.Partition(buf.Origin)
		out[p] = append(out[p], buf)
	}
	return out
}
