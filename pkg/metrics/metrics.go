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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion   = "version"
	LabelPlatform  = "platform"
	LabelQuery     = "query"
	LabelQueryID   = "query_id"
	LabelOperator  = "operator"
	LabelPartition = "partition"
	LabelOrigin    = "origin"
	LabelPolicy    = "policy"
	LabelReason    = "reason"
	LabelSink      = "sink"
	LabelSource    = "source"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by numaslice binary version and platform",
	}, []string{LabelVersion, LabelPlatform})

	QueryInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "query_info",
		Help: "A metric with a constant value '1' for every running query",
	}, []string{LabelQuery, LabelQueryID})
)

// Engine metrics
var (
	// ReadBuffersCount is the number of buffers read from the source.
	ReadBuffersCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "engine",
		Name:      "read_buffers_total",
		Help:      "Total number of record buffers read",
	}, []string{LabelQuery, LabelSource})

	// ReadRecordsCount is the number of records read from the source.
	ReadRecordsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "engine",
		Name:      "read_records_total",
		Help:      "Total number of records read",
	}, []string{LabelQuery, LabelSource})

	// ReadErrorCount is the number of failed source reads.
	ReadErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "engine",
		Name:      "read_error_total",
		Help:      "Total number of source read errors",
	}, []string{LabelQuery, LabelSource})

	// TaskProcessingTime is a histogram of the time taken to run one buffer through the pipeline.
	TaskProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "engine",
		Name:      "task_processing_time",
		Help:      "Processing times of pipeline tasks (100 microseconds to 10 minutes)",
		Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*10, 10),
	}, []string{LabelQuery, LabelPartition})

	// FilteredRecordsCount is the number of records rejected by the filter.
	FilteredRecordsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "engine",
		Name:      "filtered_records_total",
		Help:      "Total number of records rejected by the filter",
	}, []string{LabelQuery})

	// DataErrorCount is the number of records skipped because of a data error.
	DataErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "engine",
		Name:      "data_error_total",
		Help:      "Total number of records skipped because of data errors",
	}, []string{LabelQuery, LabelOperator, LabelReason})
)

// Slice store metrics
var (
	// SlicesCreatedCount is the number of slices created.
	SlicesCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "slicestore",
		Name:      "slices_created_total",
		Help:      "Total number of slices created",
	}, []string{LabelQuery, LabelPartition})

	// SlicesRetiredCount is the number of slices retired once their last window triggered.
	SlicesRetiredCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "slicestore",
		Name:      "slices_retired_total",
		Help:      "Total number of slices retired",
	}, []string{LabelQuery})

	// ActiveSlicesCount is the number of slices not yet retired.
	ActiveSlicesCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "slicestore",
		Name:      "active_slices",
		Help:      "Total number of active slices",
	}, []string{LabelQuery})

	// WindowsTriggeredCount is the number of windows triggered.
	WindowsTriggeredCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "slicestore",
		Name:      "windows_triggered_total",
		Help:      "Total number of windows triggered",
	}, []string{LabelQuery})

	// LateRecordsCount is the number of late records, by late policy.
	LateRecordsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "slicestore",
		Name:      "late_records_total",
		Help:      "Total number of late records",
	}, []string{LabelQuery, LabelPartition, LabelPolicy})

	// TriggerProcessingTime is a histogram of the time taken to trigger the windows of one watermark.
	TriggerProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "slicestore",
		Name:      "trigger_processing_time",
		Help:      "Processing times of window triggers (100 microseconds to 10 minutes)",
		Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*10, 10),
	}, []string{LabelQuery})
)

// Watermark metrics
var (
	// GlobalWatermark is the global watermark of a query in milliseconds.
	GlobalWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "watermark",
		Name:      "global_watermark",
		Help:      "Global watermark in milliseconds",
	}, []string{LabelQuery})

	// WatermarkErrorCount is the number of rejected watermark updates.
	WatermarkErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "watermark",
		Name:      "update_error_total",
		Help:      "Total number of rejected watermark updates",
	}, []string{LabelQuery, LabelOrigin})
)

// Sink metrics
var (
	// ResultsEmittedCount is the number of results written to the sink.
	ResultsEmittedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sink",
		Name:      "results_emitted_total",
		Help:      "Total number of results written",
	}, []string{LabelQuery, LabelSink})

	// SinkWriteErrorCount is the number of failed sink writes, including the ones retried.
	SinkWriteErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sink",
		Name:      "write_error_total",
		Help:      "Total number of sink write errors",
	}, []string{LabelQuery, LabelSink})

	// ResultsDroppedCount is the number of results dropped after the retries were exhausted.
	ResultsDroppedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "sink",
		Name:      "results_dropped_total",
		Help:      "Total number of results dropped",
	}, []string{LabelQuery, LabelSink})

	// SinkWriteProcessingTime is a histogram of sink write latency.
	SinkWriteProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "sink",
		Name:      "write_processing_time",
		Help:      "Processing times of sink writes (100 microseconds to 20 minutes)",
		Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*20, 10),
	}, []string{LabelQuery, LabelSink})
)
