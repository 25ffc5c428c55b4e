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

// Package jsonfile reads record buffers from a JSON lines file, one buffer per line:
//
//	{"origin": 1, "sequence": 1, "watermark": 1000, "records": [{"ts": 990, "region": "us", "amount": 3}]}
//
// "chunk" and "lastChunk" split a sequence over several lines, both default to an unchunked buffer.
package jsonfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

const maxLineSize = 16 << 20

type line struct {
	Origin    uint64           `json:"origin"`
	Sequence  uint64           `json:"sequence"`
	Chunk     uint64           `json:"chunk"`
	LastChunk *bool            `json:"lastChunk"`
	Watermark int64            `json:"watermark"`
	Records   []map[string]any `json:"records"`
}

// Source reads a JSON lines file. Records are conformed to the schema, a record which does not conform is
// skipped and counted.
type Source struct {
	name    string
	query   string
	schema  *isb.Schema
	file    io.Closer
	scanner *bufio.Scanner
	lineNo  int
	log     *zap.SugaredLogger
}

// New opens the file.
func New(ctx context.Context, query string, name string, path string, schema *isb.Schema) (*Source, error) {
	if schema == nil {
		return nil, fmt.Errorf("json file source %q requires a schema", name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q, %w", path, err)
	}
	return NewFromReader(ctx, query, name, f, schema), nil
}

// NewFromReader reads the lines from r, r is closed by Close when it is an io.Closer.
func NewFromReader(ctx context.Context, query string, name string, r io.Reader, schema *isb.Schema) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &Source{
		name:    name,
		query:   query,
		schema:  schema,
		scanner: scanner,
		log:     logging.FromContext(ctx).With("source", name),
	}
	if c, ok := r.(io.Closer); ok {
		s.file = c
	}
	return s
}

// GetName returns the name.
func (s *Source) GetName() string {
	return s.name
}

// Read returns the buffer of the next non empty line, io.EOF at the end of the file.
func (s *Source) Read(ctx context.Context) (*isb.RecordBuffer, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read line %d, %w", s.lineNo+1, err)
			}
			return nil, io.EOF
		}
		s.lineNo++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, isb.DataErr{Name: s.name, Message: fmt.Sprintf("line %d: %s", s.lineNo, err)}
		}
		return s.toBuffer(l), nil
	}
}

func (s *Source) toBuffer(l line) *isb.RecordBuffer {
	seq := wmb.NewSequenceData(l.Sequence)
	if l.Chunk != 0 {
		seq.ChunkNumber = l.Chunk
	}
	if l.LastChunk != nil {
		seq.LastChunk = *l.LastChunk
	}
	buf := &isb.RecordBuffer{
		Origin:    wmb.OriginID(l.Origin),
		Sequence:  seq,
		Watermark: wmb.FromUnixMilli(l.Watermark),
		Records:   make([]isb.Record, 0, len(l.Records)),
	}
	for i, fields := range l.Records {
		rec := isb.Record{Values: make([]any, s.schema.Len())}
		for j, f := range s.schema.Fields() {
			rec.Values[j] = fields[f.Name]
		}
		if err := s.schema.Conform(&rec); err != nil {
			metrics.ReadErrorCount.WithLabelValues(s.query, s.name).Inc()
			s.log.Warnw("Skipping record", zap.Int("line", s.lineNo), zap.Int("record", i), zap.Error(err))
			continue
		}
		buf.Records = append(buf.Records, rec)
	}
	return buf
}

func (s *Source) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
