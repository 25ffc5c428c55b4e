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

package timefunction

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/numaproj/numaslice/pkg/isb"
)

type ingestionKey struct{}

// IngestionTime stamps every record of a buffer with the time the buffer was opened.
type IngestionTime struct {
	clock clock.PassiveClock
}

var _ TimeFunction = (*IngestionTime)(nil)

// NewIngestionTime returns an IngestionTime reading the given clock, the real clock when nil.
func NewIngestionTime(c clock.PassiveClock) *IngestionTime {
	if c == nil {
		c = clock.RealClock{}
	}
	return &IngestionTime{clock: c}
}

// Open captures the current time once for the buffer.
func (i *IngestionTime) Open(ctx context.Context, _ *isb.RecordBuffer) context.Context {
	return context.WithValue(ctx, ingestionKey{}, i.clock.Now().Truncate(time.Millisecond))
}

// GetTs returns the time captured by Open. It reads the clock when the context was not opened.
func (i *IngestionTime) GetTs(ctx context.Context, _ isb.Record) (time.Time, error) {
	if ts, ok := ctx.Value(ingestionKey{}).(time.Time); ok {
		return ts, nil
	}
	return i.clock.Now().Truncate(time.Millisecond), nil
}
