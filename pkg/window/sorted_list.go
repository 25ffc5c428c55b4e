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
	"sort"
	"time"
)

// SortedList is a list of non overlapping windows, sorted by start time from lowest to highest.
// It is not thread safe, the owner synchronizes access.
type SortedList[W TimedWindow] struct {
	windows []W
}

// NewSortedList returns an empty SortedList. The Front/Head of the list will always have the smallest element
// while the End/Tail will have the largest element (start time).
func NewSortedList[W TimedWindow]() *SortedList[W] {
	return &SortedList[W]{
		windows: make([]W, 0),
	}
}

// search returns the index of the first window starting at or after t.
func (s *SortedList[W]) search(t time.Time) int {
	return sort.Search(len(s.windows), func(i int) bool {
		return !s.windows[i].StartTime().Before(t)
	})
}

// Insert inserts a window at its sorted position. Inserting a window that overlaps a neighbour is an error and
// leaves the list unchanged.
func (s *SortedList[W]) Insert(window W) error {
	if !window.StartTime().Before(window.EndTime()) {
		return fmt.Errorf("window [%d, %d) is empty or negative", window.StartTime().UnixMilli(), window.EndTime().UnixMilli())
	}
	index := s.search(window.StartTime())
	if index > 0 && Overlaps(s.windows[index-1], window) {
		return fmt.Errorf("window [%d, %d) overlaps [%d, %d)", window.StartTime().UnixMilli(), window.EndTime().UnixMilli(),
			s.windows[index-1].StartTime().UnixMilli(), s.windows[index-1].EndTime().UnixMilli())
	}
	if index < len(s.windows) && Overlaps(s.windows[index], window) {
		return fmt.Errorf("window [%d, %d) overlaps [%d, %d)", window.StartTime().UnixMilli(), window.EndTime().UnixMilli(),
			s.windows[index].StartTime().UnixMilli(), s.windows[index].EndTime().UnixMilli())
	}

	// Insert the window at the end of the list, since it is the largest
	if index == len(s.windows) {
		s.windows = append(s.windows, window)
		return nil
	}
	s.windows = append(s.windows[:index+1], s.windows[index:]...)
	s.windows[index] = window
	return nil
}

// FindWindowForTime finds the window containing t.
func (s *SortedList[W]) FindWindowForTime(t time.Time) (W, bool) {
	// the first window starting after t, the candidate is the one before it
	index := sort.Search(len(s.windows), func(i int) bool {
		return s.windows[i].StartTime().After(t)
	})
	if index > 0 && s.windows[index-1].EndTime().After(t) {
		return s.windows[index-1], true
	}
	var empty W
	return empty, false
}

// Delete deletes the window starting at the same time as the given window.
func (s *SortedList[W]) Delete(window W) bool {
	index := s.search(window.StartTime())
	if index < len(s.windows) && s.windows[index].StartTime().Equal(window.StartTime()) {
		s.windows = append(s.windows[:index], s.windows[index+1:]...)
		return true
	}
	return false
}

// RemoveWindows removes the windows ending at or before the given time.
func (s *SortedList[W]) RemoveWindows(t time.Time) []W {
	// windows do not overlap, so the end times are sorted too
	index := sort.Search(len(s.windows), func(i int) bool {
		return s.windows[i].EndTime().After(t)
	})

	removed := make([]W, index)
	copy(removed, s.windows[:index])
	s.windows = s.windows[index:]
	return removed
}

// Len returns the number of windows.
func (s *SortedList[W]) Len() int {
	return len(s.windows)
}

// Front returns the smallest element from the list.
func (s *SortedList[W]) Front() W {
	var front W
	if len(s.windows) == 0 {
		return front
	}
	return s.windows[0]
}

// Back returns the largest element from the list.
func (s *SortedList[W]) Back() W {
	var back W
	if len(s.windows) == 0 {
		return back
	}
	return s.windows[len(s.windows)-1]
}

// Items returns a copy of the windows.
func (s *SortedList[W]) Items() []W {
	items := make([]W, len(s.windows))
	copy(items, s.windows)
	return items
}
