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

package hashmap

// Iterator is a single pass iterator over the entries of a Map.
type Iterator[V any] struct {
	m   *Map[V]
	pos int
}

// Next advances to the next entry and returns false once all the entries have been visited.
func (it *Iterator[V]) Next() bool {
	if it.pos+1 >= it.m.size {
		it.pos = it.m.size
		return false
	}
	it.pos++
	return true
}

// Key returns the key of the current entry. It must not be modified.
func (it *Iterator[V]) Key() []byte {
	return it.m.at(int32(it.pos)).key
}

// Value returns the value of the current entry.
func (it *Iterator[V]) Value() *V {
	return &it.m.at(int32(it.pos)).value
}
