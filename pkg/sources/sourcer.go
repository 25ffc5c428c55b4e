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

// Package sources produces the record buffers a query runs over.
package sources

import (
	"context"
	"fmt"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/sources/generator"
	"github.com/numaproj/numaslice/pkg/sources/jsonfile"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// Sourcer reads record buffers. Every buffer carries its origin, its sequence within that origin and the
// watermark of the origin.
type Sourcer interface {
	// GetName returns the name of the source.
	GetName() string
	// Read blocks until the next buffer is available. It returns io.EOF once the source is exhausted.
	// Read is called by one goroutine at a time.
	Read(ctx context.Context) (*isb.RecordBuffer, error)
	// Close releases the resources of the source.
	Close() error
}

// NewSource builds the configured source. The generator source ignores schema and produces one origin per
// entry of origins.
func NewSource(ctx context.Context, query string, spec v1alpha1.SourceSpec, schema *isb.Schema, origins []wmb.OriginID) (Sourcer, error) {
	switch {
	case spec.Generator != nil:
		g := spec.Generator
		return generator.NewGenerator(ctx, query, "generator", origins,
			generator.WithRPU(int(g.GetRPU())),
			generator.WithDuration(g.GetDuration().Duration),
			generator.WithKeyCount(g.GetKeyCount()),
			generator.WithLimit(g.GetLimit()),
		)
	case spec.JSONFile != nil:
		return jsonfile.New(ctx, query, "jsonFile", spec.JSONFile.Path, schema)
	default:
		return nil, fmt.Errorf("no source configured")
	}
}
