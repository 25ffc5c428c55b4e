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

// Package operators implements the physical operators of a windowed query. Build operators write records into the
// slice store of a handler, probe operators turn the merged state of a triggered window into results.
package operators

import (
	"context"
	"errors"

	"github.com/numaproj/numaslice/pkg/isb"
)

const (
	OperatorFilter = "filter"
	OperatorBuild  = "build"
	OperatorProbe  = "probe"
	OperatorEmit   = "emit"
)

// ErrEmitFailed is returned when results could not be written and the on failure strategy is to fail.
var ErrEmitFailed = errors.New("failed to emit results")

// Build writes the records of a buffer into the slice store of the task-local partition and returns the number of
// records applied.
type Build interface {
	Execute(ctx context.Context, partition int, buf *isb.RecordBuffer) (int, error)
}

var (
	_ Build = (*AggregationBuild)(nil)
	_ Build = (*JoinBuild)(nil)
	_ Build = (*OriginJoinBuild)(nil)
)
