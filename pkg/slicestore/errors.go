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

package slicestore

import (
	"errors"
)

var (
	// ErrLateRecord is returned for a record whose slice is already sealed when the late policy is LatePolicyFail.
	ErrLateRecord = errors.New("late record")
	// ErrSliceClosed is returned when a closed slice is updated.
	ErrSliceClosed = errors.New("slice is closed")
	// ErrHandlerTerminated is returned by a handler which has been terminated.
	ErrHandlerTerminated = errors.New("operator handler is terminated")
)
