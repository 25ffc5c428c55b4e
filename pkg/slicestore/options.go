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

package slicestore

import (
	"context"
	"fmt"
	"time"

	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
)

// LatePolicy decides what happens to a record whose slice is already sealed.
type LatePolicy uint8

const (
	// LatePolicyUnspecified is rejected, the policy has to be chosen explicitly.
	LatePolicyUnspecified LatePolicy = iota
	// LatePolicyDrop drops the record and counts it.
	LatePolicyDrop
	// LatePolicySideOutput writes the record to the late sink.
	LatePolicySideOutput
	// LatePolicyFail fails the update with ErrLateRecord.
	LatePolicyFail
)

func (p LatePolicy) String() string {
	switch p {
	case LatePolicyDrop:
		return "drop"
	case LatePolicySideOutput:
		return "sideOutput"
	case LatePolicyFail:
		return "fail"
	default:
		return "unspecified"
	}
}

// LateSink receives the late records of the side output.
type LateSink interface {
	WriteLate(ctx context.Context, records []isb.LateRecord) error
}

type options struct {
	// allowedLateness holds the trigger back by this duration behind the watermark.
	allowedLateness time.Duration
	latePolicy      LatePolicy
	lateSink        LateSink
	mapOpts         []hashmap.Option
}

// Option to configure a Handler.
type Option func(*options) error

func defaultOptions() *options {
	return &options{}
}

// WithAllowedLateness sets the allowed lateness.
func WithAllowedLateness(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("allowed lateness can not be negative, got %s", d)
		}
		o.allowedLateness = d
		return nil
	}
}

// WithLatePolicy sets the late record policy.
func WithLatePolicy(p LatePolicy) Option {
	return func(o *options) error {
		o.latePolicy = p
		return nil
	}
}

// WithLateSink sets the sink of LatePolicySideOutput.
func WithLateSink(s LateSink) Option {
	return func(o *options) error {
		o.lateSink = s
		return nil
	}
}

// WithMapOptions sets the options of the hash map of every slice.
func WithMapOptions(opts ...hashmap.Option) Option {
	return func(o *options) error {
		o.mapOpts = append(o.mapOpts, opts...)
		return nil
	}
}

func (o *options) validate() error {
	switch o.latePolicy {
	case LatePolicyDrop, LatePolicyFail:
	case LatePolicySideOutput:
		if o.lateSink == nil {
			return fmt.Errorf("late policy %s requires a late sink", o.latePolicy)
		}
	default:
		return fmt.Errorf("late policy must be set explicitly")
	}
	return nil
}
