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

package isb

import (
	"fmt"
	"time"

	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// Record is a tuple whose values follow the order of the schema fields.
type Record struct {
	Values []any
}

// RecordBuffer is a batch of records read from one origin.
type RecordBuffer struct {
	Origin wmb.OriginID
	// Sequence is monotonically increasing per origin.
	Sequence wmb.SequenceData
	// Watermark promises no record of the origin, in later sequences, is older than this.
	Watermark wmb.Watermark
	Records   []Record
}

func (b *RecordBuffer) String() string {
	return fmt.Sprintf("[origin:%s %s wm:%s records:%d]", b.Origin, b.Sequence, b.Watermark, len(b.Records))
}

// Result is the output of one key of one window.
type Result struct {
	WindowStart time.Time
	WindowEnd   time.Time
	// KeyNames and ValueNames are shared by all the results of a query.
	KeyNames   []string
	Keys       []any
	ValueNames []string
	Values     []any
}

// Map returns the key and value fields by name.
func (r Result) Map() map[string]any {
	m := make(map[string]any, len(r.Keys)+len(r.Values))
	for i, k := range r.Keys {
		if i < len(r.KeyNames) {
			m[r.KeyNames[i]] = k
		}
	}
	for i, v := range r.Values {
		if i < len(r.ValueNames) {
			m[r.ValueNames[i]] = v
		}
	}
	return m
}

// LateRecord is a record which arrived after the slice it belongs to was sealed.
type LateRecord struct {
	// Timestamp is the time assigned to the record.
	Timestamp time.Time
	// Partition is the task-local partition the record was read by.
	Partition int
	// Bound is the time the partition was sealed up to.
	Bound  time.Time
	Record Record
}
