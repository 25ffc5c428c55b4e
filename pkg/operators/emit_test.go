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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/sinks/collector"
)

func fastRetry(steps uint32, onFailure v1alpha1.OnFailureRetryStrategy) v1alpha1.RetryStrategy {
	return v1alpha1.RetryStrategy{
		BackOff: &v1alpha1.Backoff{
			Interval: &metav1.Duration{Duration: time.Millisecond},
			Steps:    ptr.To(steps),
			Factor:   ptr.To(1.0),
		},
		OnFailure: ptr.To(onFailure),
	}
}

func failFirst(n int) func(int) error {
	return func(attempt int) error {
		if attempt <= n {
			return errors.New("sink unavailable")
		}
		return nil
	}
}

func TestEmitter_Write(t *testing.T) {
	ctx := context.Background()
	results := []isb.Result{{Values: []any{int64(1)}}, {Values: []any{int64(2)}}}

	t.Run("retries until the write succeeds", func(t *testing.T) {
		sink := collector.New("out")
		sink.FailWith(failFirst(2))
		e := NewEmitter(ctx, "q", sink, fastRetry(5, v1alpha1.OnFailureFail))
		require.NoError(t, e.Write(ctx, results))
		assert.Equal(t, 3, sink.Writes())
		assert.Len(t, sink.Results(), 2)
	})

	t.Run("fail", func(t *testing.T) {
		sink := collector.New("out")
		sink.FailWith(failFirst(100))
		e := NewEmitter(ctx, "q", sink, fastRetry(3, v1alpha1.OnFailureFail))
		err := e.Write(ctx, results)
		assert.ErrorIs(t, err, ErrEmitFailed)
		assert.ErrorContains(t, err, "sink unavailable")
		assert.Equal(t, 3, sink.Writes())
	})

	t.Run("drop", func(t *testing.T) {
		sink := collector.New("out")
		sink.FailWith(failFirst(100))
		e := NewEmitter(ctx, "q", sink, fastRetry(2, v1alpha1.OnFailureDrop))
		require.NoError(t, e.Write(ctx, results))
		assert.Empty(t, sink.Results())
	})

	t.Run("retry keeps going past the backoff", func(t *testing.T) {
		sink := collector.New("out")
		sink.FailWith(failFirst(5))
		e := NewEmitter(ctx, "q", sink, fastRetry(2, v1alpha1.OnFailureRetry))
		require.NoError(t, e.Write(ctx, results))
		assert.Equal(t, 6, sink.Writes())
		assert.Len(t, sink.Results(), 2)
	})

	t.Run("cancelled", func(t *testing.T) {
		sink := collector.New("out")
		sink.FailWith(failFirst(1 << 30))
		e := NewEmitter(ctx, "q", sink, fastRetry(2, v1alpha1.OnFailureRetry))
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		err := e.Write(cctx, results)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("nothing to write", func(t *testing.T) {
		sink := collector.New("out")
		e := NewEmitter(ctx, "q", sink, v1alpha1.RetryStrategy{})
		require.NoError(t, e.Write(ctx, nil))
		assert.Equal(t, 0, sink.Writes())
		assert.Equal(t, sink, e.Sink())
	})
}
