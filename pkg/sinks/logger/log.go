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

package logger

import (
	"context"
	"io"
	"log"
	"math"
	"os"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
)

// ToLog prints the results as JSON lines.
type ToLog struct {
	name   string
	query  string
	out    *log.Logger
	logger *zap.SugaredLogger
}

type Option func(*ToLog) error

func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *ToLog) error {
		t.logger = log
		return nil
	}
}

// WithWriter sets where the results are printed, stdout by default.
func WithWriter(w io.Writer) Option {
	return func(t *ToLog) error {
		t.out = log.New(w, "", 0)
		return nil
	}
}

// NewToLog returns ToLog type.
func NewToLog(query string, name string, opts ...Option) (*ToLog, error) {
	toLog := &ToLog{name: name, query: query}
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}
	if toLog.out == nil {
		toLog.out = log.New(os.Stdout, "", log.LstdFlags)
	}
	return toLog, nil
}

// GetName returns the name.
func (t *ToLog) GetName() string {
	return t.name
}

type resultLine struct {
	WindowStart int64          `json:"windowStart"`
	WindowEnd   int64          `json:"windowEnd"`
	Keys        map[string]any `json:"keys"`
	Values      map[string]any `json:"values"`
}

type lateLine struct {
	Timestamp int64 `json:"timestamp"`
	Partition int   `json:"partition"`
	Bound     int64 `json:"bound"`
	Values    []any `json:"values"`
}

// Write writes to the log.
func (t *ToLog) Write(_ context.Context, results []isb.Result) error {
	prefix := "(" + t.GetName() + ")"
	for _, r := range results {
		line := resultLine{
			WindowStart: r.WindowStart.UnixMilli(),
			WindowEnd:   r.WindowEnd.UnixMilli(),
			Keys:        named(r.KeyNames, r.Keys),
			Values:      named(r.ValueNames, r.Values),
		}
		payload, err := json.Marshal(line)
		if err != nil {
			return err
		}
		t.out.Println(prefix, "Result -", string(payload))
		logSinkWriteCount.WithLabelValues(t.query, t.name).Inc()
	}
	return nil
}

// WriteLate writes late records to the log.
func (t *ToLog) WriteLate(_ context.Context, records []isb.LateRecord) error {
	prefix := "(" + t.GetName() + ")"
	for _, r := range records {
		values := make([]any, len(r.Record.Values))
		for i, v := range r.Record.Values {
			values[i] = printable(v)
		}
		payload, err := json.Marshal(lateLine{
			Timestamp: r.Timestamp.UnixMilli(),
			Partition: r.Partition,
			Bound:     r.Bound.UnixMilli(),
			Values:    values,
		})
		if err != nil {
			return err
		}
		t.out.Println(prefix, "Late -", string(payload))
		logSinkLateCount.WithLabelValues(t.query, t.name).Inc()
	}
	return nil
}

func (t *ToLog) Close() error {
	t.logger.Infow("Closing log sink", zap.String(metrics.LabelSink, t.name))
	return nil
}

func named(names []string, values []any) map[string]any {
	m := make(map[string]any, len(values))
	for i, v := range values {
		if i < len(names) {
			m[names[i]] = printable(v)
		}
	}
	return m
}

// printable replaces the floats JSON can not represent with their string form.
func printable(v any) any {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return floatString(f)
		}
	case []float64:
		out := make([]any, len(f))
		for i := range f {
			out[i] = printable(f[i])
		}
		return out
	}
	return v
}

func floatString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	default:
		return "-Inf"
	}
}
