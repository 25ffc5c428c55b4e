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

package aggregation

// Cell is the partial aggregate of one key in one slice. Which fields are meaningful depends on the Function that
// owns the cell, a cell is only ever handled by the Function that initialized it.
type Cell struct {
	// Int, UInt and Float hold sum, min or max of the matching input type.
	Int   int64
	UInt  uint64
	Float float64
	// Count is the number of lifted values.
	Count uint64
	// Valid is set once min or max has seen a value.
	Valid bool
	// Values holds the materialized or sampled values.
	Values []float64
	// Priorities are the random priorities of the sampled values, sampling without replacement only.
	Priorities []float64
}

// Value is a prepared input value, converted to the input type of the Function.
type Value struct {
	Int   int64
	UInt  uint64
	Float float64
}
