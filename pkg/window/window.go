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

package window

import (
	"fmt"
	"time"
)

// TimedWindow is an interval of event time.
type TimedWindow interface {
	// StartTime returns the start time of the window, inclusive.
	StartTime() time.Time
	// EndTime returns the end time of the window, exclusive.
	EndTime() time.Time
}

// IntervalWindow is a plain [Start, End) interval.
type IntervalWindow struct {
	Start time.Time
	End   time.Time
}

var _ TimedWindow = (*IntervalWindow)(nil)

// NewIntervalWindow returns a new IntervalWindow.
func NewIntervalWindow(start, end time.Time) *IntervalWindow {
	return &IntervalWindow{Start: start, End: end}
}

func (w *IntervalWindow) StartTime() time.Time {
	return w.Start
}

func (w *IntervalWindow) EndTime() time.Time {
	return w.End
}

// Contains returns true if t falls in [Start, End).
func (w *IntervalWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w *IntervalWindow) String() string {
	return fmt.Sprintf("[%d, %d)", w.Start.UnixMilli(), w.End.UnixMilli())
}

// Overlaps returns true if the two windows share at least one instant.
func Overlaps(a, b TimedWindow) bool {
	return a.StartTime().Before(b.EndTime()) && b.StartTime().Before(a.EndTime())
}
