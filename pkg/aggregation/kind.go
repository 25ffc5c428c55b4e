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

import (
	"fmt"
)

// Kind is the closed set of supported aggregations.
type Kind uint8

const (
	Sum Kind = iota + 1
	Min
	Max
	Avg
	Count
	Median
	SampleWithReplacement
	SampleWithoutReplacement
)

func (k Kind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	case Avg:
		return "avg"
	case Count:
		return "count"
	case Median:
		return "median"
	case SampleWithReplacement:
		return "sampleWithReplacement"
	case SampleWithoutReplacement:
		return "sampleWithoutReplacement"
	default:
		return "unknown"
	}
}

// ParseKind parses the name of an aggregation.
func ParseKind(s string) (Kind, error) {
	for k := Sum; k <= SampleWithoutReplacement; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregation %q", s)
}

// needsInput returns false for the aggregations that do not read the input value.
func (k Kind) needsInput() bool {
	return k != Count
}

// materializes returns true for the aggregations which keep the input values in the cell.
func (k Kind) materializes() bool {
	return k == Median || k == SampleWithReplacement || k == SampleWithoutReplacement
}
