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
	"time"
)

type WindowType string

const (
	FixedType   WindowType = "fixed"
	SlidingType WindowType = "sliding"
)

func (wt WindowType) String() string {
	switch wt {
	case FixedType:
		return string(FixedType)
	case SlidingType:
		return string(SlidingType)
	default:
		return "unknownWindowType"
	}
}

// TimeCharacteristic decides where the timestamp of a record comes from.
type TimeCharacteristic string

const (
	EventTime     TimeCharacteristic = "eventTime"
	IngestionTime TimeCharacteristic = "ingestionTime"
)

// TimeUnit is the unit of an event time field.
type TimeUnit string

const (
	Milliseconds TimeUnit = "ms"
	Seconds      TimeUnit = "s"
	Minutes      TimeUnit = "m"
	Hours        TimeUnit = "h"
)

// Multiplier returns the factor converting a value of the unit into milliseconds, 0 for an unknown unit.
func (tu TimeUnit) Multiplier() int64 {
	switch tu {
	case Milliseconds:
		return 1
	case Seconds:
		return int64(time.Second / time.Millisecond)
	case Minutes:
		return int64(time.Minute / time.Millisecond)
	case Hours:
		return int64(time.Hour / time.Millisecond)
	default:
		return 0
	}
}

// LatePolicy decides what happens to a record older than the trigger watermark.
type LatePolicy string

const (
	// LatePolicyDrop drops the record and counts it.
	LatePolicyDrop LatePolicy = "drop"
	// LatePolicySideOutput routes the record to the late sink.
	LatePolicySideOutput LatePolicy = "sideOutput"
	// LatePolicyFail fails the query.
	LatePolicyFail LatePolicy = "fail"
)

// EmptyAveragePolicy decides the result of an average over no values.
type EmptyAveragePolicy string

const (
	EmptyAverageError EmptyAveragePolicy = "error"
	EmptyAverageNaN   EmptyAveragePolicy = "nan"
)

// RoutingStrategy decides which task-local partition processes a buffer.
type RoutingStrategy string

const (
	// RoundRobin hands buffers to whichever worker is free.
	RoundRobin RoutingStrategy = "roundRobin"
	// OriginAffinity pins every origin to one worker.
	OriginAffinity RoutingStrategy = "originAffinity"
)

type AggregationType string

const (
	AggregationSum                      AggregationType = "sum"
	AggregationMin                      AggregationType = "min"
	AggregationMax                      AggregationType = "max"
	AggregationAvg                      AggregationType = "avg"
	AggregationCount                    AggregationType = "count"
	AggregationMedian                   AggregationType = "median"
	AggregationSampleWithReplacement    AggregationType = "sampleWithReplacement"
	AggregationSampleWithoutReplacement AggregationType = "sampleWithoutReplacement"
)

type FieldType string

const (
	FieldTypeInt64   FieldType = "int64"
	FieldTypeUInt64  FieldType = "uint64"
	FieldTypeFloat64 FieldType = "float64"
	FieldTypeString  FieldType = "string"
	FieldTypeBool    FieldType = "bool"
	FieldTypeBytes   FieldType = "bytes"
)

type OnFailureRetryStrategy string

const (
	OnFailureRetry OnFailureRetryStrategy = "retry" // Retry until the query stops.
	OnFailureDrop  OnFailureRetryStrategy = "drop"  // Drop the results and count them.
	OnFailureFail  OnFailureRetryStrategy = "fail"  // Fail the query.
)

const (
	DefaultParallelism            = 1
	DefaultSampleSize             = 16
	DefaultEmptyAverage           = EmptyAverageError
	DefaultTimeUnit               = Milliseconds
	DefaultRouting                = RoundRobin
	DefaultRetryInterval          = time.Millisecond
	DefaultRetrySteps             = 5
	DefaultRetryFactor            = 2.0
	DefaultRetryCap               = 5 * time.Second
	DefaultOnFailureRetryStrategy = OnFailureFail

	DefaultGeneratorRPU      = 5
	DefaultGeneratorDuration = time.Second
	DefaultGeneratorKeyCount = 3
	DefaultReadBatchSize     = 100

	DefaultMetricsPort = 2469
)
