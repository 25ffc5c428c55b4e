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

import (
	"math"
)

type options struct {
	capacity   int
	maxEntries int
}

func defaultOptions() *options {
	return &options{
		capacity:   8,
		maxEntries: math.MaxInt32,
	}
}

// Option to configure a Map.
type Option func(*options)

// WithCapacity sizes the bucket index for the expected number of keys.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithMaxEntries bounds the number of keys, FindOrCreate fails with ErrMapFull beyond it.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 && n <= math.MaxInt32 {
			o.maxEntries = n
		}
	}
}
