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

package blackhole

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/numaproj/numaslice/pkg/isb"
)

func TestBlackhole_Write(t *testing.T) {
	b := NewBlackhole(context.Background(), "q", "sinks.blackhole")
	assert.Equal(t, "sinks.blackhole", b.GetName())
	assert.NoError(t, b.Write(context.Background(), make([]isb.Result, 3)))
	assert.NoError(t, b.WriteLate(context.Background(), make([]isb.LateRecord, 2)))
	assert.Equal(t, 5.0, testutil.ToFloat64(sinkWriteCount.WithLabelValues("q", "sinks.blackhole")))
	assert.NoError(t, b.Close())
}
