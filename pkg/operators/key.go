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

package operators

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/numaproj/numaslice/pkg/isb"
)

// EncodeKey appends the byte form of the group-by values to dst. Every value is prefixed by the tag of its type,
// strings and bytes are length prefixed, so two keys are equal iff their values are.
func EncodeKey(dst []byte, values []any, types []isb.FieldType) ([]byte, error) {
	if len(values) != len(types) {
		return dst, isb.DataErr{Name: "key", Message: fmt.Sprintf("%d key values for %d key fields", len(values), len(types))}
	}
	for i, ft := range types {
		v, err := coerce(ft, values[i])
		if err != nil {
			return dst, isb.DataErr{Name: "key", Message: fmt.Sprintf("key field %d: %s", i, err)}
		}
		dst = append(dst, byte(ft))
		switch x := v.(type) {
		case int64:
			dst = binary.BigEndian.AppendUint64(dst, uint64(x))
		case uint64:
			dst = binary.BigEndian.AppendUint64(dst, x)
		case float64:
			dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(x))
		case bool:
			if x {
				dst = append(dst, 1)
			} else {
				dst = append(dst, 0)
			}
		case string:
			dst = binary.AppendUvarint(dst, uint64(len(x)))
			dst = append(dst, x...)
		case []byte:
			dst = binary.AppendUvarint(dst, uint64(len(x)))
			dst = append(dst, x...)
		}
	}
	return dst, nil
}

func coerce(ft isb.FieldType, v any) (any, error) {
	switch ft {
	case isb.Int64:
		if x, ok := v.(int64); ok {
			return x, nil
		}
	case isb.UInt64:
		if x, ok := v.(uint64); ok {
			return x, nil
		}
	case isb.Float64:
		if x, ok := v.(float64); ok {
			return x, nil
		}
	case isb.String:
		if x, ok := v.(string); ok {
			return x, nil
		}
	case isb.Bool:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case isb.Bytes:
		if x, ok := v.([]byte); ok {
			return x, nil
		}
	}
	return ft.Coerce(v)
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key []byte, types []isb.FieldType) ([]any, error) {
	values := make([]any, len(types))
	for i, ft := range types {
		if len(key) == 0 {
			return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("key truncated before field %d", i)}
		}
		if tag := isb.FieldType(key[0]); tag != ft {
			return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("field %d has tag %d, expected %s", i, key[0], ft)}
		}
		key = key[1:]
		switch ft {
		case isb.Int64, isb.UInt64, isb.Float64:
			if len(key) < 8 {
				return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("field %d truncated", i)}
			}
			u := binary.BigEndian.Uint64(key)
			key = key[8:]
			switch ft {
			case isb.Int64:
				values[i] = int64(u)
			case isb.UInt64:
				values[i] = u
			default:
				values[i] = math.Float64frombits(u)
			}
		case isb.Bool:
			if len(key) < 1 || key[0] > 1 {
				return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("field %d is not a bool", i)}
			}
			values[i] = key[0] == 1
			key = key[1:]
		case isb.String, isb.Bytes:
			n, read := binary.Uvarint(key)
			if read <= 0 || uint64(len(key)-read) < n {
				return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("field %d has a bad length", i)}
			}
			b := key[read : read+int(n)]
			key = key[read+int(n):]
			if ft == isb.String {
				values[i] = string(b)
			} else {
				values[i] = append([]byte(nil), b...)
			}
		default:
			return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("field %d has unknown type %d", i, ft)}
		}
	}
	if len(key) != 0 {
		return nil, isb.DataErr{Name: "key", Message: fmt.Sprintf("%d trailing bytes", len(key))}
	}
	return values, nil
}
