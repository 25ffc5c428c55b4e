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

// Package expr compiles boolean expressions over the named fields of a record.
package expr

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// Predicate is a boolean expression compiled once against the fields of a schema.
type Predicate struct {
	expression string
	program    *vm.Program
}

// CompileBool compiles the expression with sample as the environment. The sample maps every field name the
// expression may reference to a value of the field's type.
func CompileBool(expression string, sample map[string]any) (*Predicate, error) {
	program, err := expr.Compile(expression, expr.Env(getFuncMap(sample)))
	if err != nil {
		return nil, fmt.Errorf("unable to compile expression '%s': %s", expression, err)
	}
	return &Predicate{expression: expression, program: program}, nil
}

// String returns the source of the predicate.
func (p *Predicate) String() string {
	return p.expression
}

// Eval runs the predicate against the field values of one record.
func (p *Predicate) Eval(values map[string]any) (bool, error) {
	result, err := expr.Run(p.program, getFuncMap(values))
	if err != nil {
		return false, fmt.Errorf("unable to evaluate expression '%s': %s", p.expression, err)
	}
	return asBool(result)
}

// EvalBool compiles and evaluates the expression in one go.
func EvalBool(expression string, values map[string]any) (bool, error) {
	result, err := expr.Eval(expression, getFuncMap(values))
	if err != nil {
		return false, fmt.Errorf("unable to evaluate expression '%s': %s", expression, err)
	}
	return asBool(result)
}

func asBool(result any) (bool, error) {
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unable to cast expression result '%v' to bool", result)
	}
	return b, nil
}

func getFuncMap(m map[string]any) map[string]any {
	env := Nest(m)
	env["json"] = _json
	env["int"] = _int
	env["float"] = _float
	env["string"] = _string
	return env
}
