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

// Package timefunction assigns the timestamp windows are computed from to every record.
package timefunction

import (
	"context"
	"time"

	"github.com/numaproj/numaslice/pkg/isb"
)

// TimeFunction extracts the timestamp of a record.
type TimeFunction interface {
	// Open is called once per buffer before any GetTs call for its records. The returned context is the one
	// passed to GetTs.
	Open(ctx context.Context, buf *isb.RecordBuffer) context.Context
	// GetTs returns the timestamp of the record.
	GetTs(ctx context.Context, rec isb.Record) (time.Time, error)
}
