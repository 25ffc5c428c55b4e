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

package engine

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/numaproj/numaslice/pkg/slicestore"
)

type options struct {
	// lateSink receives the late records of the sideOutput late policy.
	lateSink slicestore.LateSink
	// clock is read by the ingestion time function.
	clock clock.PassiveClock
	// queueSize is the number of buffers waiting for a worker.
	queueSize int
}

// Option to configure a Query.
type Option func(*options) error

func DefaultOptions() *options {
	return &options{
		clock:     clock.RealClock{},
		queueSize: 1,
	}
}

// WithLateSink sets the side output of the late records.
func WithLateSink(s slicestore.LateSink) Option {
	return func(o *options) error {
		o.lateSink = s
		return nil
	}
}

// WithClock sets the clock of the ingestion time function.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithQueueSize sets the number of buffers queued per worker.
func WithQueueSize(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("queue size can not be negative, got %d", n)
		}
		o.queueSize = n
		return nil
	}
}
