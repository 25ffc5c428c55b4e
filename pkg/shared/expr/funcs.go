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

package expr

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// the helpers panic, expr turns the panic into an evaluation error

func _int(v any) int64 {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		panic(fmt.Errorf("cannot convert %q to int: %w", v, err))
	}
	return i
}

func _float(v any) float64 {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		panic(fmt.Errorf("cannot convert %q to float: %w", v, err))
	}
	return f
}

func _string(v any) string {
	switch w := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(w)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func _json(v any) map[string]any {
	x := make(map[string]any)
	switch w := v.(type) {
	case nil:
		return nil
	case []byte:
		if err := json.Unmarshal(w, &x); err != nil {
			panic(fmt.Errorf("cannot convert %q to object: %v", v, err))
		}
		return x
	case string:
		if err := json.Unmarshal([]byte(w), &x); err != nil {
			panic(fmt.Errorf("cannot convert %q to object: %v", v, err))
		}
		return x
	default:
		panic("unknown type")
	}
}
