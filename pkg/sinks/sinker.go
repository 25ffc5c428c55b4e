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

// Package sinks holds the downstream destinations of window results.
package sinks

import (
	"context"
	"fmt"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/sinks/blackhole"
	logsink "github.com/numaproj/numaslice/pkg/sinks/logger"
)

// Sink receives the results of triggered windows.
type Sink interface {
	// GetName returns the name of the sink.
	GetName() string
	// Write writes the results of one window. Write is retried by the caller, it must be safe to call again with
	// the same results after a failure.
	Write(ctx context.Context, results []isb.Result) error
	// Close releases the resources of the sink.
	Close() error
}

// LateWriter receives the records which arrived after their window was triggered.
type LateWriter interface {
	WriteLate(ctx context.Context, records []isb.LateRecord) error
}

// LateSink is a sink which also accepts late records.
type LateSink interface {
	Sink
	LateWriter
}

// NewSink builds the sink described by the given configuration.
func NewSink(ctx context.Context, query string, name string, spec *v1alpha1.SinkSpec) (LateSink, error) {
	if spec == nil {
		return nil, fmt.Errorf("no sink configured for %q", name)
	}
	log := logging.FromContext(ctx).With("sink", name)
	switch {
	case spec.Log != nil:
		return logsink.NewToLog(query, name, logsink.WithLogger(log))
	case spec.Blackhole != nil:
		return blackhole.NewBlackhole(ctx, query, name), nil
	default:
		return nil, fmt.Errorf("invalid sink spec %q", name)
	}
}
