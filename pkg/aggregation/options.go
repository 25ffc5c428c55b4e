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

// EmptyAveragePolicy decides what Lower returns for an average over no values.
type EmptyAveragePolicy uint8

const (
	// EmptyAverageError returns ErrEmptyWindowAggregate.
	EmptyAverageError EmptyAveragePolicy = iota
	// EmptyAverageNaN returns math.NaN().
	EmptyAverageNaN
)

type options struct {
	sampleSize   int
	emptyAverage EmptyAveragePolicy
}

// defaultOptions returns the default options.
func defaultOptions() *options {
	return &options{
		sampleSize:   16,
		emptyAverage: EmptyAverageError,
	}
}

// Option to configure a Function.
type Option func(*options) error

// WithSampleSize sets the number of values kept by the sample aggregations.
func WithSampleSize(size int) Option {
	return func(o *options) error {
		if size < 1 {
			return fmt.Errorf("sample size must be positive, got %d", size)
		}
		o.sampleSize = size
		return nil
	}
}

// WithEmptyAverage sets the empty average policy.
func WithEmptyAverage(p EmptyAveragePolicy) Option {
	return func(o *options) error {
		o.emptyAverage = p
		return nil
	}
}
