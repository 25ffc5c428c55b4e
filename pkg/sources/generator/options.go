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

package generator

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

type options struct {
	rpu      int
	duration time.Duration
	keyCount int
	limit    int64
	clock    clock.Clock
	seed     uint64
}

func defaultOptions() *options {
	return &options{
		rpu:      5,
		duration: time.Second,
		keyCount: 3,
		clock:    clock.RealClock{},
		seed:     uint64(time.Now().UnixNano()),
	}
}

type Option func(*options) error

// WithRPU sets the number of records per origin generated on every tick.
func WithRPU(rpu int) Option {
	return func(o *options) error {
		if rpu < 1 {
			return fmt.Errorf("rpu must be positive, got %d", rpu)
		}
		o.rpu = rpu
		return nil
	}
}

// WithDuration sets the tick interval.
func WithDuration(d time.Duration) Option {
	return func(o *options) error {
		if d < time.Millisecond {
			return fmt.Errorf("duration must be at least 1ms, got %s", d)
		}
		o.duration = d
		return nil
	}
}

// WithKeyCount sets the number of distinct keys.
func WithKeyCount(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("key count must be positive, got %d", n)
		}
		o.keyCount = n
		return nil
	}
}

// WithLimit stops the generator after the given number of ticks, 0 means no limit.
func WithLimit(n int64) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("limit can not be negative, got %d", n)
		}
		o.limit = n
		return nil
	}
}

// WithClock sets the clock ticks are read from.
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithSeed makes the generated values reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) error {
		o.seed = seed
		return nil
	}
}
