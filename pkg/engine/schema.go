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

package engine

import (
	"fmt"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
)

// SchemaFromSpec converts the configured schema.
func SchemaFromSpec(spec v1alpha1.SchemaSpec) (*isb.Schema, error) {
	if err := spec.Validate(); err != nil {
		return nil, isb.PlanErr{Name: "schema", Message: err.Error()}
	}
	fields := make([]isb.Field, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		ft, err := isb.ParseFieldType(string(f.Type))
		if err != nil {
			return nil, isb.PlanErr{Name: "schema", Message: fmt.Sprintf("field %q, %s", f.Name, err)}
		}
		fields = append(fields, isb.Field{Name: f.Name, Type: ft})
	}
	return isb.NewSchema(fields...)
}
