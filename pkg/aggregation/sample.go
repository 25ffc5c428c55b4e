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

package aggregation

import (
	"math/rand/v2"
	"slices"
)

// reservoirAdd implements algorithm R, c.Count already includes v. Once the reservoir is full v replaces a
// uniformly chosen slot with probability size/count.
func (f *Function) reservoirAdd(c *Cell, v float64) {
	if len(c.Values) < f.opts.sampleSize {
		c.Values = append(c.Values, v)
		return
	}
	if j := rand.Uint64N(c.Count); j < uint64(f.opts.sampleSize) {
		c.Values[j] = v
	}
}

// reservoirMerge merges two reservoirs. Each slot of the merged reservoir is drawn from one of the inputs with a
// probability proportional to the number of values that input has seen.
func (f *Function) reservoirMerge(c *Cell, other *Cell) {
	total := c.Count + other.Count
	if len(c.Values)+len(other.Values) <= f.opts.sampleSize {
		c.Values = append(c.Values, other.Values...)
		c.Count = total
		return
	}
	a, b := shuffled(c.Values), shuffled(other.Values)
	remA, remB := c.Count, other.Count
	merged := make([]float64, 0, f.opts.sampleSize)
	for len(merged) < f.opts.sampleSize && (len(a) > 0 || len(b) > 0) {
		// remA >= len(a) and remB >= len(b), so the bound is positive
		if len(b) == 0 || (len(a) > 0 && rand.Uint64N(remA+remB) < remA) {
			merged = append(merged, a[len(a)-1])
			a = a[:len(a)-1]
			remA--
		} else {
			merged = append(merged, b[len(b)-1])
			b = b[:len(b)-1]
			remB--
		}
	}
	c.Values = merged
	c.Count = total
}

func shuffled(values []float64) []float64 {
	out := slices.Clone(values)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func randomPriority() float64 {
	return rand.Float64()
}

// priorityAdd keeps the values with the sampleSize smallest priorities. Every value gets its priority once, so
// merging samples is the union of the kept values cut back to the smallest priorities.
func (f *Function) priorityAdd(c *Cell, v float64, priority float64) {
	if len(c.Values) < f.opts.sampleSize {
		c.Values = append(c.Values, v)
		c.Priorities = append(c.Priorities, priority)
		return
	}
	largest := 0
	for i := 1; i < len(c.Priorities); i++ {
		if c.Priorities[i] > c.Priorities[largest] {
			largest = i
		}
	}
	if priority < c.Priorities[largest] {
		c.Values[largest] = v
		c.Priorities[largest] = priority
	}
}
