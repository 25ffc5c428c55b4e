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

import "strings"

// Nest turns dotted field names into nested maps, so "user.id" is reachable as user.id in an expression.
// When both "a" and "a.b" are present the nested form wins.
func Nest(values map[string]any) map[string]any {
	result := make(map[string]any, len(values)+4)
	for k, v := range values {
		if !strings.Contains(k, ".") {
			if _, ok := result[k]; !ok {
				result[k] = v
			}
			continue
		}
		parts := strings.Split(k, ".")
		cur := result
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return result
}
