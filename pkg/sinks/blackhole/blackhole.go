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

package blackhole

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
)

var sinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "blackhole_sink",
	Name:      "write_total",
	Help:      "Total number of results and late records written to blackhole sink",
}, []string{metrics.LabelQuery, metrics.LabelSink})

// Blackhole is a sink to emulate /dev/null
type Blackhole struct {
	name   string
	query  string
	logger *zap.SugaredLogger
}

// NewBlackhole returns a new Blackhole sink.
func NewBlackhole(ctx context.Context, query string, name string) *Blackhole {
	return &Blackhole{
		name:   name,
		query:  query,
		logger: logging.FromContext(ctx),
	}
}

// GetName returns the name.
func (b *Blackhole) GetName() string {
	return b.name
}

// Write writes to the blackhole.
func (b *Blackhole) Write(_ context.Context, results []isb.Result) error {
	sinkWriteCount.WithLabelValues(b.query, b.name).Add(float64(len(results)))
	return nil
}

// WriteLate writes late records to the blackhole.
func (b *Blackhole) WriteLate(_ context.Context, records []isb.LateRecord) error {
	sinkWriteCount.WithLabelValues(b.query, b.name).Add(float64(len(records)))
	return nil
}

func (b *Blackhole) Close() error {
	return nil
}
