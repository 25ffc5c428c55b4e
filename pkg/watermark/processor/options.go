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

package processor

type processorOptions struct {
	// dynamicOrigins allows origins that were not known at construction to join by reporting a watermark.
	dynamicOrigins bool
	// name is used in logs and metrics.
	name string
}

// Option set options for the MultiOriginProcessor.
type Option func(*processorOptions)

// WithDynamicOrigins lets unknown origins join on their first update. A joining origin starts at the current
// global watermark, so joining never lowers the global watermark.
func WithDynamicOrigins() Option {
	return func(opts *processorOptions) {
		opts.dynamicOrigins = true
	}
}

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(opts *processorOptions) {
		opts.name = name
	}
}
