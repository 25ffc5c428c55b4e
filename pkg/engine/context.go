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
	"context"
	"fmt"
	"sync"

	"github.com/numaproj/numaslice/pkg/slicestore"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

// OperatorHandlerIndex addresses an operator handler within the execution context of a query.
type OperatorHandlerIndex int

// OperatorHandler is the window based state shared by the tasks of a query, bound to the probe it triggers.
type OperatorHandler interface {
	Name() string
	// OnWatermark triggers the windows the watermark completes and returns how many were triggered.
	OnWatermark(ctx context.Context, wm wmb.Watermark) (int, error)
	// Terminate stops the handler, flush triggers the remaining windows first.
	Terminate(ctx context.Context, flush bool) (int, error)
	State() slicestore.State
	ActiveSlices() int64
	Validate() error
}

type boundHandler[V any] struct {
	*slicestore.Handler[V]
	emit slicestore.EmitFunc[V]
}

// BindHandler binds a slice store handler to the probe emitting its windows.
func BindHandler[V any](h *slicestore.Handler[V], emit slicestore.EmitFunc[V]) OperatorHandler {
	return &boundHandler[V]{Handler: h, emit: emit}
}

func (b *boundHandler[V]) OnWatermark(ctx context.Context, wm wmb.Watermark) (int, error) {
	return b.Handler.OnWatermark(ctx, wm, b.emit)
}

func (b *boundHandler[V]) Terminate(ctx context.Context, flush bool) (int, error) {
	return b.Handler.Terminate(ctx, flush, b.emit)
}

// ExecutionContext holds the operator handlers of one deployed query. Handlers are registered while the query
// is planned and looked up by the tasks.
type ExecutionContext struct {
	queryID  string
	lock     sync.RWMutex
	handlers []OperatorHandler
}

func NewExecutionContext(queryID string) *ExecutionContext {
	return &ExecutionContext{queryID: queryID}
}

// QueryID returns the id of the query the context belongs to.
func (ec *ExecutionContext) QueryID() string {
	return ec.queryID
}

// Register adds a handler and returns its index.
func (ec *ExecutionContext) Register(h OperatorHandler) OperatorHandlerIndex {
	ec.lock.Lock()
	defer ec.lock.Unlock()
	ec.handlers = append(ec.handlers, h)
	return OperatorHandlerIndex(len(ec.handlers) - 1)
}

// Handler returns the handler registered at the index.
func (ec *ExecutionContext) Handler(idx OperatorHandlerIndex) (OperatorHandler, error) {
	ec.lock.RLock()
	defer ec.lock.RUnlock()
	if idx < 0 || int(idx) >= len(ec.handlers) {
		return nil, fmt.Errorf("no operator handler at index %d, %d registered", idx, len(ec.handlers))
	}
	return ec.handlers[idx], nil
}

// Handlers returns the registered handlers in registration order.
func (ec *ExecutionContext) Handlers() []OperatorHandler {
	ec.lock.RLock()
	defer ec.lock.RUnlock()
	out := make([]OperatorHandler, len(ec.handlers))
	copy(out, ec.handlers)
	return out
}
