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

// Assigner maps event times to slices and windows. It works in whole milliseconds.
type Assigner struct {
	length int64
	slide  int64
	slice  int64
}

// NewAssigner returns an Assigner for windows of the given length and slide, slide == length is a fixed window.
func NewAssigner(length, slide time.Duration) (*Assigner, error) {
	l, s := length.Milliseconds(), slide.Milliseconds()
	if l <= 0 || s <= 0 {
		return nil, fmt.Errorf("window length %s and slide %s must be at least a millisecond", length, slide)
	}
	if s > l {
		return nil, fmt.Errorf("window slide %s can not exceed the length %s", slide, length)
	}
	return &Assigner{length: l, slide: s, slice: gcd(l, s)}, nil
}

// Length returns the window length.
func (a *Assigner) Length() time.Duration {
	return time.Duration(a.length) * time.Millisecond
}

// Slide returns the window slide.
func (a *Assigner) Slide() time.Duration {
	return time.Duration(a.slide) * time.Millisecond
}

// SliceLength returns the length of a slice.
func (a *Assigner) SliceLength() time.Duration {
	return time.Duration(a.slice) * time.Millisecond
}

// IsFixed returns true for tumbling windows.
func (a *Assigner) IsFixed() bool {
	return a.length == a.slide
}

// AssignSlice returns the slice containing the event time.
func (a *Assigner) AssignSlice(eventTime time.Time) *IntervalWindow {
	start := floorMultiple(eventTime.UnixMilli(), a.slice)
	return NewIntervalWindow(time.UnixMilli(start), time.UnixMilli(start+a.slice))
}

// AssignWindows returns the windows containing the event time, latest first.
func (a *Assigner) AssignWindows(eventTime time.Time) []*IntervalWindow {
	ts := eventTime.UnixMilli()
	windows := make([]*IntervalWindow, 0, a.length/a.slide+1)
	// the latest window starts at the highest multiple of slide not after the event time
	start := floorMultiple(ts, a.slide)
	for end := start + a.length; start <= ts && end > ts; start, end = start-a.slide, end-a.slide {
		windows = append(windows, NewIntervalWindow(time.UnixMilli(start), time.UnixMilli(end)))
	}
	return windows
}

// LastWindowEnd returns the end of the latest window a slice contributes to. Once that window has been triggered
// the slice is no longer needed.
func (a *Assigner) LastWindowEnd(slice TimedWindow) time.Time {
	return time.UnixMilli(floorMultiple(slice.StartTime().UnixMilli(), a.slide) + a.length)
}

// SlicesOf returns the start times of the slices making up the window.
func (a *Assigner) SlicesOf(w TimedWindow) []time.Time {
	starts := make([]time.Time, 0, a.length/a.slice)
	for s := w.StartTime().UnixMilli(); s < w.EndTime().UnixMilli(); s += a.slice {
		starts = append(starts, time.UnixMilli(s))
	}
	return starts
}

// floorMultiple returns the highest multiple of m which is <= v, also for negative v.
func floorMultiple(v, m int64) int64 {
	q := v / m
	if v%m != 0 && v < 0 {
		q--
	}
	return q * m
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
