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

package jsonfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func testSchema(t *testing.T) *isb.Schema {
	s, err := isb.NewSchema(
		isb.Field{Name: "ts", Type: isb.Int64},
		isb.Field{Name: "region", Type: isb.String},
		isb.Field{Name: "amount", Type: isb.Float64},
	)
	require.NoError(t, err)
	return s
}

const input = `{"origin": 1, "sequence": 1, "watermark": 1000, "records": [{"ts": 990, "region": "us", "amount": 3}, {"ts": "oops", "region": "us", "amount": 1}]}

{"origin": 2, "sequence": 4, "chunk": 2, "lastChunk": false, "watermark": 500, "records": []}
`

func TestSource_Read(t *testing.T) {
	ctx := context.Background()
	s := NewFromReader(ctx, "q", "file", strings.NewReader(input), testSchema(t))
	assert.Equal(t, "file", s.GetName())

	buf, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, wmb.OriginID(1), buf.Origin)
	assert.Equal(t, wmb.NewSequenceData(1), buf.Sequence)
	assert.Equal(t, int64(1000), buf.Watermark.UnixMilli())
	require.Len(t, buf.Records, 1)
	assert.Equal(t, []any{int64(990), "us", 3.0}, buf.Records[0].Values)

	buf, err = s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, wmb.SequenceData{SequenceNumber: 4, ChunkNumber: 2, LastChunk: false}, buf.Sequence)
	assert.Empty(t, buf.Records)

	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, s.Close())
}

func TestSource_BadLine(t *testing.T) {
	ctx := context.Background()
	s := NewFromReader(ctx, "q", "file", strings.NewReader("{not json}\n"), testSchema(t))
	_, err := s.Read(ctx)
	assert.True(t, isb.IsDataErr(err))
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
	s, err := New(ctx, "q", "file", path, testSchema(t))
	require.NoError(t, err)
	_, err = s.Read(ctx)
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = New(ctx, "q", "file", filepath.Join(t.TempDir(), "missing"), testSchema(t))
	assert.Error(t, err)
	_, err = New(ctx, "q", "file", path, nil)
	assert.Error(t, err)
}
