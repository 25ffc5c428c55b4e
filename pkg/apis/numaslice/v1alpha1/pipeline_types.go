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

package v1alpha1

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FieldSpec is a schema field.
type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// SchemaSpec is the schema of the source records.
type SchemaSpec struct {
	Fields []FieldSpec `json:"fields"`
}

func (s SchemaSpec) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema requires at least one field")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field name is required")
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case FieldTypeInt64, FieldTypeUInt64, FieldTypeFloat64, FieldTypeString, FieldTypeBool, FieldTypeBytes:
		default:
			return fmt.Errorf("unsupported type %q of field %q", f.Type, f.Name)
		}
	}
	return nil
}

// GeneratorSource generates keyed records with an event time and an int64 value.
type GeneratorSource struct {
	// RPU is the number of records per origin generated every Duration.
	// +optional
	RPU *int64 `json:"rpu,omitempty"`
	// +optional
	Duration *metav1.Duration `json:"duration,omitempty"`
	// KeyCount is the number of distinct keys.
	// +optional
	KeyCount *int32 `json:"keyCount,omitempty"`
	// Limit stops the generator after the given number of buffers per origin, 0 runs until cancelled.
	// +optional
	Limit *int64 `json:"limit,omitempty"`
}

func (g GeneratorSource) GetRPU() int64 {
	if g.RPU == nil || *g.RPU < 1 {
		return DefaultGeneratorRPU
	}
	return *g.RPU
}

func (g GeneratorSource) GetDuration() metav1.Duration {
	if g.Duration == nil || g.Duration.Duration <= 0 {
		return metav1.Duration{Duration: DefaultGeneratorDuration}
	}
	return *g.Duration
}

func (g GeneratorSource) GetKeyCount() int {
	if g.KeyCount == nil || *g.KeyCount < 1 {
		return DefaultGeneratorKeyCount
	}
	return int(*g.KeyCount)
}

func (g GeneratorSource) GetLimit() int64 {
	if g.Limit == nil {
		return 0
	}
	return *g.Limit
}

// JSONFileSource reads record buffers from a JSON lines file.
type JSONFileSource struct {
	Path string `json:"path"`
}

type SourceSpec struct {
	// +optional
	Generator *GeneratorSource `json:"generator,omitempty"`
	// +optional
	JSONFile *JSONFileSource `json:"jsonFile,omitempty"`
}

type Log struct{}

type Blackhole struct{}

type SinkSpec struct {
	// +optional
	Log *Log `json:"log,omitempty"`
	// +optional
	Blackhole *Blackhole `json:"blackhole,omitempty"`
}

func (s SinkSpec) Validate() error {
	if (s.Log == nil) == (s.Blackhole == nil) {
		return fmt.Errorf("exactly one of log or blackhole sink is required")
	}
	return nil
}

// Pipeline is a query with its source and sinks.
type Pipeline struct {
	Query QuerySpec `json:"query"`
	// Schema of the source records, the generator source brings its own.
	// +optional
	Schema SchemaSpec `json:"schema,omitempty"`
	Source SourceSpec `json:"source"`
	Sink   SinkSpec   `json:"sink"`
	// LateSink receives late records when the late policy is sideOutput.
	// +optional
	LateSink *SinkSpec `json:"lateSink,omitempty"`
	// +optional
	MetricsPort *int32 `json:"metricsPort,omitempty"`
}

func (p Pipeline) GetMetricsPort() int {
	if p.MetricsPort == nil {
		return DefaultMetricsPort
	}
	return int(*p.MetricsPort)
}

func (p Pipeline) Validate() error {
	if err := p.Query.Validate(); err != nil {
		return fmt.Errorf("invalid query, %w", err)
	}
	switch {
	case p.Source.Generator != nil && p.Source.JSONFile != nil:
		return fmt.Errorf("only one source can be set")
	case p.Source.Generator != nil:
	case p.Source.JSONFile != nil:
		if p.Source.JSONFile.Path == "" {
			return fmt.Errorf("json file source requires a path")
		}
		if err := p.Schema.Validate(); err != nil {
			return fmt.Errorf("invalid schema, %w", err)
		}
	default:
		return fmt.Errorf("a source is required")
	}
	if err := p.Sink.Validate(); err != nil {
		return fmt.Errorf("invalid sink, %w", err)
	}
	if p.Query.LatePolicy == LatePolicySideOutput {
		if p.LateSink == nil {
			return fmt.Errorf("late sink is required for late policy %s", LatePolicySideOutput)
		}
		if err := p.LateSink.Validate(); err != nil {
			return fmt.Errorf("invalid late sink, %w", err)
		}
	}
	return nil
}
