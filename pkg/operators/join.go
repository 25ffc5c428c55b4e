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
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/numaproj/numaslice/pkg/hashmap"
	"github.com/numaproj/numaslice/pkg/isb"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/slicestore"
	"github.com/numaproj/numaslice/pkg/timefunction"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
	"github.com/numaproj/numaslice/pkg/window"
)

// JoinSide is the input a join build reads.
type JoinSide uint8

const (
	LeftSide JoinSide = iota
	RightSide
)

func (s JoinSide) String() string {
	if s == LeftSide {
		return "left"
	}
	return "right"
}

// JoinState holds the records of one key seen by each side.
type JoinState struct {
	Left  []isb.Record
	Right []isb.Record
}

// Join describes a windowed equi-join of two inputs.
type Join struct {
	query      string
	keyNames   []string
	keyTypes   []isb.FieldType
	keyFields  [2][]int
	valueNames []string
}

// NewJoin resolves the join keys of both sides, the key types have to match pairwise. The output values are the
// fields of the left record followed by the fields of the right one, prefixed with their side.
func NewJoin(query string, left *isb.Schema, leftKeys []string, right *isb.Schema, rightKeys []string) (*Join, error) {
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("join needs the same non zero number of keys per side, got %d and %d", len(leftKeys), len(rightKeys))}
	}
	j := &Join{query: query, keyNames: leftKeys}
	for i := range leftKeys {
		li, ok := left.IndexOf(leftKeys[i])
		if !ok {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("left key %q is not in the schema", leftKeys[i])}
		}
		ri, ok := right.IndexOf(rightKeys[i])
		if !ok {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("right key %q is not in the schema", rightKeys[i])}
		}
		lt, rt := left.Field(li).Type, right.Field(ri).Type
		if lt != rt {
			return nil, isb.PlanErr{Name: query, Message: fmt.Sprintf("join key %d has type %s on the left and %s on the right", i, lt, rt)}
		}
		j.keyFields[LeftSide] = append(j.keyFields[LeftSide], li)
		j.keyFields[RightSide] = append(j.keyFields[RightSide], ri)
		j.keyTypes = append(j.keyTypes, lt)
	}
	for _, f := range left.Fields() {
		j.valueNames = append(j.valueNames, "left."+f.Name)
	}
	for _, f := range right.Fields() {
		j.valueNames = append(j.valueNames, "right."+f.Name)
	}
	return j, nil
}

// KeyNames returns the names of the join keys, the names of the left side.
func (j *Join) KeyNames() []string {
	return j.keyNames
}

// ValueNames returns the names of the output values.
func (j *Join) ValueNames() []string {
	return j.valueNames
}

// Merge appends the records of src to dst.
func (j *Join) Merge(dst *JoinState, src *JoinState) {
	dst.Left = append(dst.Left, src.Left...)
	dst.Right = append(dst.Right, src.Right...)
}

// JoinBuild stores the records of one side into the slices of their timestamps.
type JoinBuild struct {
	join    *Join
	side    JoinSide
	handler *slicestore.Handler[JoinState]
	timeFn  timefunction.TimeFunction
	log     *zap.SugaredLogger
}

func NewJoinBuild(ctx context.Context, join *Join, side JoinSide, handler *slicestore.Handler[JoinState], timeFn timefunction.TimeFunction) *JoinBuild {
	return &JoinBuild{
		join:    join,
		side:    side,
		handler: handler,
		timeFn:  timeFn,
		log:     logging.FromContext(ctx).With(metrics.LabelOperator, OperatorBuild, metrics.LabelQuery, join.query, "side", side.String()),
	}
}

// Execute stores the records of the buffer and returns the number of records applied.
func (b *JoinBuild) Execute(ctx context.Context, partition int, buf *isb.RecordBuffer) (int, error) {
	ctx = b.timeFn.Open(ctx, buf)
	fields := b.join.keyFields[b.side]
	key := make([]byte, 0, 64)
	keyVals := make([]any, len(fields))
	applied := 0
	for _, rec := range buf.Records {
		ts, err := b.timeFn.GetTs(ctx, rec)
		if err != nil {
			return applied, fmt.Errorf("failed to get the timestamp of a record of %s, %w", buf, err)
		}
		malformed := false
		for i, idx := range fields {
			if idx >= len(rec.Values) {
				malformed = true
				break
			}
			keyVals[i] = rec.Values[idx]
		}
		if !malformed {
			key, err = EncodeKey(key[:0], keyVals, b.join.keyTypes)
			malformed = err != nil
		}
		if malformed {
			metrics.DataErrorCount.WithLabelValues(b.join.query, OperatorBuild, "malformedKey").Inc()
			continue
		}
		stored := isb.Record{Values: slices.Clone(rec.Values)}
		err = b.handler.Update(ctx, partition, ts, key, rec, func(s *JoinState, _ bool) {
			if b.side == LeftSide {
				s.Left = append(s.Left, stored)
			} else {
				s.Right = append(s.Right, stored)
			}
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// OriginJoinBuild joins two groups of origins of one input: buffers of the left origins are built into the left
// side, every other buffer into the right side.
type OriginJoinBuild struct {
	left        *JoinBuild
	right       *JoinBuild
	leftOrigins map[wmb.OriginID]struct{}
}

func NewOriginJoinBuild(left *JoinBuild, right *JoinBuild, leftOrigins []wmb.OriginID) *OriginJoinBuild {
	b := &OriginJoinBuild{left: left, right: right, leftOrigins: make(map[wmb.OriginID]struct{}, len(leftOrigins))}
	for _, o := range leftOrigins {
		b.leftOrigins[o] = struct{}{}
	}
	return b
}

// Side returns the side the buffers of the origin are built into.
func (b *OriginJoinBuild) Side(origin wmb.OriginID) JoinSide {
	if _, ok := b.leftOrigins[origin]; ok {
		return LeftSide
	}
	return RightSide
}

func (b *OriginJoinBuild) Execute(ctx context.Context, partition int, buf *isb.RecordBuffer) (int, error) {
	if b.Side(buf.Origin) == LeftSide {
		return b.left.Execute(ctx, partition, buf)
	}
	return b.right.Execute(ctx, partition, buf)
}

// JoinProbe emits the cross product of the left and right records of every key of a window.
type JoinProbe struct {
	join    *Join
	emitter *Emitter
	log     *zap.SugaredLogger
}

func NewJoinProbe(ctx context.Context, join *Join, emitter *Emitter) *JoinProbe {
	return &JoinProbe{
		join:    join,
		emitter: emitter,
		log:     logging.FromContext(ctx).With(metrics.LabelOperator, OperatorProbe, metrics.LabelQuery, join.query),
	}
}

// Emit is a slicestore.EmitFunc. Keys seen by one side only produce nothing.
func (p *JoinProbe) Emit(ctx context.Context, w window.TimedWindow, state *hashmap.Map[JoinState]) error {
	type keyed struct {
		key     []byte
		results []isb.Result
	}
	var out []keyed
	it := state.Iterator()
	for it.Next() {
		s := it.Value()
		if len(s.Left) == 0 || len(s.Right) == 0 {
			continue
		}
		keys, err := DecodeKey(it.Key(), p.join.keyTypes)
		if err != nil {
			metrics.DataErrorCount.WithLabelValues(p.join.query, OperatorProbe, "malformedKey").Inc()
			p.log.Warnw("Skipping malformed key", zap.Binary("key", it.Key()), zap.Error(err))
			continue
		}
		k := keyed{key: it.Key(), results: make([]isb.Result, 0, len(s.Left)*len(s.Right))}
		for _, l := range s.Left {
			for _, r := range s.Right {
				values := make([]any, 0, len(l.Values)+len(r.Values))
				values = append(values, l.Values...)
				values = append(values, r.Values...)
				k.results = append(k.results, isb.Result{
					WindowStart: w.StartTime(),
					WindowEnd:   w.EndTime(),
					KeyNames:    p.join.keyNames,
					Keys:        keys,
					ValueNames:  p.join.valueNames,
					Values:      values,
				})
			}
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].key, out[j].key) < 0
	})
	var results []isb.Result
	for _, k := range out {
		results = append(results, k.results...)
	}
	return p.emitter.Write(ctx, results)
}
