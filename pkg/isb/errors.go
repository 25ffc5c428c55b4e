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
	"errors"
	"fmt"
)

// PlanErr is a fatal error found while planning a query, before any record is processed.
type PlanErr struct {
	Name    string
	Message string
}

func (e PlanErr) Error() string {
	return fmt.Sprintf("(%s) plan error: %s", e.Name, e.Message)
}

// InvariantErr means the slice store state is inconsistent. The query fails with it.
type InvariantErr struct {
	Name    string
	Message string
}

func (e InvariantErr) Error() string {
	return fmt.Sprintf("(%s) invariant violated: %s", e.Name, e.Message)
}

// DataErr is a recoverable error caused by a single record, counted and skipped.
type DataErr struct {
	Name    string
	Message string
}

func (e DataErr) Error() string {
	return fmt.Sprintf("(%s) data error: %s", e.Name, e.Message)
}

// IsPlanErr returns true if the error, or one it wraps, is a PlanErr.
func IsPlanErr(err error) bool {
	var pe PlanErr
	return errors.As(err, &pe)
}

// IsInvariantErr returns true if the error, or one it wraps, is an InvariantErr.
func IsInvariantErr(err error) bool {
	var ie InvariantErr
	return errors.As(err, &ie)
}

// IsDataErr returns true if the error, or one it wraps, is a DataErr.
func IsDataErr(err error) bool {
	var de DataErr
	return errors.As(err, &de)
}
