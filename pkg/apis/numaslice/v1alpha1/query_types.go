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
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Window describes the windows of a query, exactly one of Fixed or Sliding is set.
type Window struct {
	// +optional
	Fixed *FixedWindow `json:"fixed,omitempty"`
	// +optional
	Sliding *SlidingWindow `json:"sliding,omitempty"`
}

// FixedWindow describes a fixed (tumbling) window.
type FixedWindow struct {
	// Length is the duration of the fixed window.
	Length *metav1.Duration `json:"length,omitempty"`
}

// SlidingWindow describes a sliding window.
type SlidingWindow struct {
	// Length is the duration of the sliding window.
	Length *metav1.Duration `json:"length,omitempty"`
	// Slide is the slide parameter that controls the frequency at which the sliding window is created.
	Slide *metav1.Duration `json:"slide,omitempty"`
}

// Type returns the window type, empty if no window is configured.
func (w Window) Type() WindowType {
	switch {
	case w.Fixed != nil:
		return FixedType
	case w.Sliding != nil:
		return SlidingType
	default:
		return ""
	}
}

// GetLength returns the window length.
func (w Window) GetLength() time.Duration {
	switch {
	case w.Fixed != nil && w.Fixed.Length != nil:
		return w.Fixed.Length.Duration
	case w.Sliding != nil && w.Sliding.Length != nil:
		return w.Sliding.Length.Duration
	default:
		return 0
	}
}

// GetSlide returns the window slide, which is the length for fixed windows.
func (w Window) GetSlide() time.Duration {
	if w.Sliding != nil && w.Sliding.Slide != nil {
		return w.Sliding.Slide.Duration
	}
	return w.GetLength()
}

// TimestampSpec locates the event time of a record.
type TimestampSpec struct {
	// Field is the numeric record field holding the event time.
	Field string `json:"field"`
	// Unit of the field, defaults to milliseconds.
	// +optional
	Unit TimeUnit `json:"unit,omitempty"`
}

// GetUnit returns the configured time unit.
func (ts TimestampSpec) GetUnit() TimeUnit {
	if ts.Unit == "" {
		return DefaultTimeUnit
	}
	return ts.Unit
}

// AggregationSpec describes one aggregate output field.
type AggregationSpec struct {
	Type AggregationType `json:"type"`
	// Field is the input field, optional for count.
	// +optional
	Field string `json:"field,omitempty"`
	// As is the output field name, defaults to <type>_<field>.
	// +optional
	As string `json:"as,omitempty"`
	// SampleSize is the number of values kept by the sample aggregations.
	// +optional
	SampleSize *int32 `json:"sampleSize,omitempty"`
}

// OutputName returns the name of the output field.
func (a AggregationSpec) OutputName() string {
	if a.As != "" {
		return a.As
	}
	if a.Field == "" {
		return string(a.Type)
	}
	return fmt.Sprintf("%s_%s", a.Type, a.Field)
}

// GetSampleSize returns the configured sample size.
func (a AggregationSpec) GetSampleSize() int {
	if a.SampleSize == nil {
		return DefaultSampleSize
	}
	return int(*a.SampleSize)
}

// JoinSpec turns the query into a windowed equi-join of two groups of origins of the same input. The query keys are
// the keys of the left side.
type JoinSpec struct {
	// LeftOrigins feed the left side of the join, every other origin feeds the right side.
	LeftOrigins []uint64 `json:"leftOrigins"`
	// RightKeys are the keys of the right side, defaults to the query keys.
	// +optional
	RightKeys []string `json:"rightKeys,omitempty"`
}

// GetRightKeys returns the keys of the right side.
func (j JoinSpec) GetRightKeys(leftKeys []string) []string {
	if len(j.RightKeys) == 0 {
		return leftKeys
	}
	return j.RightKeys
}

// QuerySpec is the windowed aggregation or join query.
type QuerySpec struct {
	// Name of the query, used in logs and metrics.
	Name   string `json:"name"`
	Window Window `json:"window"`
	// +optional
	TimeCharacteristic TimeCharacteristic `json:"timeCharacteristic,omitempty"`
	// Timestamp is required for event time queries.
	// +optional
	Timestamp *TimestampSpec `json:"timestamp,omitempty"`
	// Keys are the group-by fields.
	// +optional
	Keys []string `json:"keys,omitempty"`
	// Aggregations are required unless the query is a join.
	// +optional
	Aggregations []AggregationSpec `json:"aggregations,omitempty"`
	// Join replaces the aggregations with a windowed join.
	// +optional
	Join *JoinSpec `json:"join,omitempty"`
	// Filter is a boolean expression evaluated against the record fields.
	// +optional
	Filter string `json:"filter,omitempty"`
	// AllowedLateness is tolerated past the watermark before a record is considered late.
	// +optional
	AllowedLateness *metav1.Duration `json:"allowedLateness,omitempty"`
	// LatePolicy has no default, it has to be chosen explicitly.
	LatePolicy LatePolicy `json:"latePolicy"`
	// FlushOnClose emits the windows which have not triggered when the query stops.
	// +optional
	FlushOnClose bool `json:"flushOnClose,omitempty"`
	// +optional
	EmptyAverage EmptyAveragePolicy `json:"emptyAverage,omitempty"`
	// Parallelism is the number of workers, each worker owns a task-local partition.
	// +optional
	Parallelism *int32 `json:"parallelism,omitempty"`
	// +optional
	Routing RoutingStrategy `json:"routing,omitempty"`
	// Origins are the statically known origins.
	// +optional
	Origins []uint64 `json:"origins,omitempty"`
	// DynamicOrigins lets origins join while the query runs.
	// +optional
	DynamicOrigins bool `json:"dynamicOrigins,omitempty"`
	// +optional
	Emit RetryStrategy `json:"emit,omitempty"`
}

func (q QuerySpec) GetTimeCharacteristic() TimeCharacteristic {
	if q.TimeCharacteristic == "" {
		return EventTime
	}
	return q.TimeCharacteristic
}

func (q QuerySpec) GetAllowedLateness() time.Duration {
	if q.AllowedLateness == nil {
		return 0
	}
	return q.AllowedLateness.Duration
}

func (q QuerySpec) GetParallelism() int {
	if q.Parallelism == nil || *q.Parallelism < 1 {
		return DefaultParallelism
	}
	return int(*q.Parallelism)
}

func (q QuerySpec) GetEmptyAverage() EmptyAveragePolicy {
	if q.EmptyAverage == "" {
		return DefaultEmptyAverage
	}
	return q.EmptyAverage
}

func (q QuerySpec) GetRouting() RoutingStrategy {
	if q.Routing == "" {
		return DefaultRouting
	}
	return q.Routing
}

// Validate checks the query is well formed. Schema related checks happen when the query is planned.
func (q QuerySpec) Validate() error {
	if strings.TrimSpace(q.Name) == "" {
		return fmt.Errorf("query name is required")
	}
	if err := q.validateWindow(); err != nil {
		return err
	}
	switch q.GetTimeCharacteristic() {
	case EventTime:
		if q.Timestamp == nil || q.Timestamp.Field == "" {
			return fmt.Errorf("timestamp field is required for %s", EventTime)
		}
		if q.Timestamp.GetUnit().Multiplier() == 0 {
			return fmt.Errorf("unsupported time unit %q", q.Timestamp.Unit)
		}
	case IngestionTime:
	default:
		return fmt.Errorf("unsupported time characteristic %q", q.TimeCharacteristic)
	}
	if q.Join != nil {
		if err := q.validateJoin(); err != nil {
			return err
		}
	} else if len(q.Aggregations) == 0 {
		return fmt.Errorf("at least one aggregation is required")
	}
	names := make(map[string]struct{}, len(q.Aggregations)+len(q.Keys))
	for _, k := range q.Keys {
		if _, ok := names[k]; ok {
			return fmt.Errorf("duplicate key field %q", k)
		}
		names[k] = struct{}{}
	}
	for i, a := range q.Aggregations {
		switch a.Type {
		case AggregationCount:
		case AggregationSum, AggregationMin, AggregationMax, AggregationAvg, AggregationMedian:
			if a.Field == "" {
				return fmt.Errorf("aggregation %d (%s) requires a field", i, a.Type)
			}
		case AggregationSampleWithReplacement, AggregationSampleWithoutReplacement:
			if a.Field == "" {
				return fmt.Errorf("aggregation %d (%s) requires a field", i, a.Type)
			}
			if a.GetSampleSize() < 1 {
				return fmt.Errorf("aggregation %d (%s) requires a positive sample size", i, a.Type)
			}
		default:
			return fmt.Errorf("unknown aggregation type %q", a.Type)
		}
		if _, ok := names[a.OutputName()]; ok {
			return fmt.Errorf("duplicate output field %q", a.OutputName())
		}
		names[a.OutputName()] = struct{}{}
	}
	if q.GetAllowedLateness() < 0 {
		return fmt.Errorf("allowed lateness can not be negative")
	}
	switch q.LatePolicy {
	case LatePolicyDrop, LatePolicySideOutput, LatePolicyFail:
	case "":
		return fmt.Errorf("late policy must be set explicitly to one of %s, %s, %s", LatePolicyDrop, LatePolicySideOutput, LatePolicyFail)
	default:
		return fmt.Errorf("unsupported late policy %q", q.LatePolicy)
	}
	switch q.GetEmptyAverage() {
	case EmptyAverageError, EmptyAverageNaN:
	default:
		return fmt.Errorf("unsupported empty average policy %q", q.EmptyAverage)
	}
	switch q.GetRouting() {
	case RoundRobin, OriginAffinity:
	default:
		return fmt.Errorf("unsupported routing %q", q.Routing)
	}
	if q.Parallelism != nil && *q.Parallelism < 1 {
		return fmt.Errorf("parallelism must be positive")
	}
	if len(q.Origins) == 0 && !q.DynamicOrigins {
		return fmt.Errorf("origins are required unless dynamic origins are enabled")
	}
	return nil
}

func (q QuerySpec) validateJoin() error {
	if len(q.Aggregations) > 0 {
		return fmt.Errorf("a join query can not have aggregations")
	}
	if len(q.Keys) == 0 {
		return fmt.Errorf("a join query requires keys")
	}
	if len(q.Join.GetRightKeys(q.Keys)) != len(q.Keys) {
		return fmt.Errorf("join has %d keys on the left and %d on the right", len(q.Keys), len(q.Join.RightKeys))
	}
	if len(q.Join.LeftOrigins) == 0 {
		return fmt.Errorf("a join query requires left origins")
	}
	if q.DynamicOrigins {
		return nil
	}
	known := make(map[uint64]struct{}, len(q.Origins))
	for _, o := range q.Origins {
		known[o] = struct{}{}
	}
	for _, o := range q.Join.LeftOrigins {
		if _, ok := known[o]; !ok {
			return fmt.Errorf("left origin %d is not one of the query origins", o)
		}
		delete(known, o)
	}
	if len(known) == 0 {
		return fmt.Errorf("a join query requires at least one right origin")
	}
	return nil
}

func (q QuerySpec) validateWindow() error {
	if q.Window.Fixed != nil && q.Window.Sliding != nil {
		return fmt.Errorf("only one of fixed or sliding window can be set")
	}
	switch q.Window.Type() {
	case FixedType:
		if q.Window.GetLength() <= 0 {
			return fmt.Errorf("fixed window length must be positive")
		}
	case SlidingType:
		if q.Window.GetLength() <= 0 || q.Window.GetSlide() <= 0 {
			return fmt.Errorf("sliding window length and slide must be positive")
		}
		if q.Window.GetSlide() > q.Window.GetLength() {
			return fmt.Errorf("sliding window slide %s can not exceed the length %s", q.Window.GetSlide(), q.Window.GetLength())
		}
	default:
		return fmt.Errorf("a window is required")
	}
	if q.Window.GetLength()%time.Millisecond != 0 || q.Window.GetSlide()%time.Millisecond != 0 {
		return fmt.Errorf("window length and slide must be whole milliseconds")
	}
	return nil
}
