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

package isb

import (
	"fmt"

	"github.com/spf13/cast"
)

// FieldType is the type of a record field.
type FieldType uint8

const (
	Int64 FieldType = iota + 1
	UInt64
	Float64
	String
	Bool
	Bytes
)

func (ft FieldType) String() string {
	switch ft {
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// IsNumeric returns true for the types an aggregation or a time function can read.
func (ft FieldType) IsNumeric() bool {
	return ft == Int64 || ft == UInt64 || ft == Float64
}

// ParseFieldType parses the name of a field type.
func ParseFieldType(s string) (FieldType, error) {
	for ft := Int64; ft <= Bytes; ft++ {
		if ft.String() == s {
			return ft, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Coerce converts a value into the Go representation of the type.
func (ft FieldType) Coerce(v any) (any, error) {
	switch ft {
	case Int64:
		return cast.ToInt64E(v)
	case UInt64:
		return cast.ToUint64E(v)
	case Float64:
		return cast.ToFloat64E(v)
	case String:
		return cast.ToStringE(v)
	case Bool:
		return cast.ToBoolE(v)
	case Bytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		default:
			s, err := cast.ToStringE(v)
			return []byte(s), err
		}
	default:
		return nil, fmt.Errorf("unknown field type %d", ft)
	}
}

// Field is a named, typed field.
type Field struct {
	Name string
	Type FieldType
}

// Schema describes the fields of the records of a source.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema returns a Schema, field names have to be unique.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if _, ok := s.index[f.Name]; ok {
			return nil, PlanErr{Name: "schema", Message: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		if f.Type < Int64 || f.Type > Bytes {
			return nil, PlanErr{Name: "schema", Message: fmt.Sprintf("field %q has an unknown type", f.Name)}
		}
		s.index[f.Name] = i
	}
	return s, nil
}

// IndexOf returns the position of the named field.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Field returns the field at position i.
func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

// Fields returns the fields in order.
func (s *Schema) Fields() []Field {
	return s.fields
}

func (s *Schema) Len() int {
	return len(s.fields)
}

// Conform coerces the values of the record in place, in schema order.
func (s *Schema) Conform(r *Record) error {
	if len(r.Values) != len(s.fields) {
		return DataErr{Name: "schema", Message: fmt.Sprintf("record has %d values, schema has %d fields", len(r.Values), len(s.fields))}
	}
	for i, f := range s.fields {
		v, err := f.Type.Coerce(r.Values[i])
		if err != nil {
			return DataErr{Name: "schema", Message: fmt.Sprintf("field %q: %s", f.Name, err)}
		}
		r.Values[i] = v
	}
	return nil
}
