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

// Package hashmap implements the keyed state of a slice: a chained hash map from byte keys to values.
//
// Entries live in an append-only arena of fixed size chunks, separate from the bucket index. Growing the index
// relinks entries but never moves them, so a pointer returned by FindOrCreate stays valid for the lifetime of the map.
// The map is not safe for concurrent use, the owning slice serializes access.
package hashmap

import (
	"bytes"
	"errors"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	chunkBits = 8
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1

	maxLoadFactor = 0.75
	endOfChain    = -1
)

// ErrMapFull is returned when the map would exceed its configured maximum number of entries.
var ErrMapFull = errors.New("hash map is full")

type entry[V any] struct {
	key  []byte
	hash uint64
	// next is the arena index of the next entry in the same bucket.
	next  int32
	value V
}

// Map maps byte keys to values of type V.
type Map[V any] struct {
	// buckets hold the arena index of the first entry of each chain.
	buckets []int32
	chunks  [][]entry[V]
	size    int
	init    func(*V)
	opts    *options
}

// New returns an empty Map. init, when not nil, initializes the value of every new key.
func New[V any](init func(*V), inputOpts ...Option) *Map[V] {
	opts := defaultOptions()
	for _, o := range inputOpts {
		o(opts)
	}
	buckets := nextPowerOfTwo(int(float64(opts.capacity)/maxLoadFactor) + 1)
	m := &Map[V]{
		buckets: make([]int32, buckets),
		init:    init,
		opts:    opts,
	}
	for i := range m.buckets {
		m.buckets[i] = endOfChain
	}
	return m
}

func (m *Map[V]) at(i int32) *entry[V] {
	return &m.chunks[i>>chunkBits][i&chunkMask]
}

func (m *Map[V]) bucket(hash uint64) int {
	return int(hash & uint64(len(m.buckets)-1))
}

func (m *Map[V]) find(key []byte, hash uint64) *entry[V] {
	for i := m.buckets[m.bucket(hash)]; i != endOfChain; {
		e := m.at(i)
		if e.hash == hash && bytes.Equal(e.key, key) {
			return e
		}
		i = e.next
	}
	return nil
}

// Find returns the value of the key.
func (m *Map[V]) Find(key []byte) (*V, bool) {
	if e := m.find(key, xxhash.Sum64(key)); e != nil {
		return &e.value, true
	}
	return nil, false
}

// FindOrCreate returns the value of the key, creating and initializing it on first use. The bool is true if the
// key was created. The key is copied, the caller may reuse its buffer.
func (m *Map[V]) FindOrCreate(key []byte) (*V, bool, error) {
	hash := xxhash.Sum64(key)
	if e := m.find(key, hash); e != nil {
		return &e.value, false, nil
	}
	if m.size >= m.opts.maxEntries {
		return nil, false, ErrMapFull
	}
	if float64(m.size+1) > float64(len(m.buckets))*maxLoadFactor {
		m.grow()
	}

	idx := int32(m.size)
	if m.size&chunkMask == 0 {
		m.chunks = append(m.chunks, make([]entry[V], chunkSize))
	}
	e := m.at(idx)
	e.key = append(make([]byte, 0, len(key)), key...)
	e.hash = hash
	b := m.bucket(hash)
	e.next = m.buckets[b]
	m.buckets[b] = idx
	m.size++
	if m.init != nil {
		m.init(&e.value)
	}
	return &e.value, true, nil
}

// grow doubles the bucket index and relinks every entry, entries do not move.
func (m *Map[V]) grow() {
	m.buckets = make([]int32, len(m.buckets)*2)
	for i := range m.buckets {
		m.buckets[i] = endOfChain
	}
	for i := 0; i < m.size; i++ {
		e := m.at(int32(i))
		b := m.bucket(e.hash)
		e.next = m.buckets[b]
		m.buckets[b] = int32(i)
	}
}

// Len returns the number of keys.
func (m *Map[V]) Len() int {
	return m.size
}

// Buckets returns the size of the bucket index.
func (m *Map[V]) Buckets() int {
	return len(m.buckets)
}

// Iterator returns a new iterator over the entries in insertion order. Iterators are independent of each other.
// The map must not be modified while it is iterated.
func (m *Map[V]) Iterator() *Iterator[V] {
	return &Iterator[V]{m: m, pos: -1}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n && p < math.MaxInt32 {
		p <<= 1
	}
	return p
}
