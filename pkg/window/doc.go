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

// Package window implements the windowing arithmetic of the slice store. Windows are either Fixed (tumbling) or
// Sliding, and are aligned to the epoch: every window starts at an integer multiple of its slide.
//
// A window is never materialized while records stream in. Records are written into slices, the finest intervals that
// never straddle a window boundary, and a window is the union of the contiguous slices it covers. For a window of
// length L and slide S a slice is gcd(L, S) long, so a fixed window is exactly one slice and a sliding window of 10s
// sliding by 5s is two slices.
//
// Boundaries are half open, [start, end). A record at a boundary belongs to the window starting at that boundary.
package window
