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

package commands

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/engine"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/sources/generator"
)

// EnvPrefix prefixes the environment variables overriding top level settings, e.g. NUMASLICE_METRICSPORT.
const EnvPrefix = "NUMASLICE"

// pipelineKeys are the sections of a pipeline configuration.
var pipelineKeys = []string{"query", "schema", "source", "sink", "lateSink"}

// newConfig reads a yaml or json pipeline configuration file.
func newConfig(path string) (*viper.Viper, error) {
	if path == "" {
		return nil, fmt.Errorf("a configuration file is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	return v, nil
}

// decodePipeline goes through json so the durations of the configuration parse the way they do in the api types.
// Viper lowercases the keys, the json decoding matches them case insensitively. The sections are read whole
// since the flattened settings drop empty maps such as `blackhole: {}`.
func decodePipeline(v *viper.Viper) (*v1alpha1.Pipeline, error) {
	settings := make(map[string]any, len(pipelineKeys)+1)
	for _, key := range pipelineKeys {
		if v.IsSet(key) {
			settings[key] = v.Get(key)
		}
	}
	if v.IsSet("metricsPort") {
		settings["metricsPort"] = v.GetInt("metricsPort")
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration. %w", err)
	}
	p := &v1alpha1.Pipeline{}
	if err = json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration. %w", err)
	}
	if err = p.Validate(); err != nil {
		return nil, isb.PlanErr{Name: p.Query.Name, Message: err.Error()}
	}
	return p, nil
}

// pipelineSchema returns the schema of the records of the source.
func pipelineSchema(p *v1alpha1.Pipeline) (*isb.Schema, error) {
	if p.Source.Generator != nil {
		return generator.Schema(), nil
	}
	return engine.SchemaFromSpec(p.Schema)
}
