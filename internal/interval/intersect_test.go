// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package interval_test

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harehare/mqparse/internal/interval"
)

func TestInsert(t *testing.T) {
	t.Parallel()
	type in struct {
		start, end int
		value      string
	}
	type out = interval.Entry[int, []string]

	tests := []struct {
		name   string
		ranges []in
		want   []out
		runs   []out
	}{
		{
			name:   "single",
			ranges: []in{{0, 9, "e0"}},
			want:   []out{{0, 9, []string{"e0"}}},
			runs:   []out{{0, 9, nil}},
		},
		{
			name:   "disjoint",
			ranges: []in{{30, 39, "e1"}, {0, 9, "e0"}},
			want: []out{
				{0, 9, []string{"e0"}},
				{30, 39, []string{"e1"}},
			},
			runs: []out{{0, 9, nil}, {30, 39, nil}},
		},
		{
			name:   "adjacent",
			ranges: []in{{0, 9, "e0"}, {30, 39, "e1"}, {10, 29, "e2"}},
			want: []out{
				{0, 9, []string{"e0"}},
				{10, 29, []string{"e2"}},
				{30, 39, []string{"e1"}},
			},
			runs: []out{{0, 39, nil}},
		},
		{
			name:   "inside",
			ranges: []in{{0, 9, "e0"}, {1, 2, "e1"}},
			want: []out{
				{0, 0, []string{"e0"}},
				{1, 2, []string{"e0", "e1"}},
				{3, 9, []string{"e0"}},
			},
			runs: []out{{0, 9, nil}},
		},
		{
			name:   "overlap-end",
			ranges: []in{{0, 9, "e0"}, {9, 12, "e1"}},
			want: []out{
				{0, 8, []string{"e0"}},
				{9, 9, []string{"e0", "e1"}},
				{10, 12, []string{"e1"}},
			},
			runs: []out{{0, 12, nil}},
		},
		{
			name:   "overlap-start",
			ranges: []in{{0, 10, "e0"}, {-2, 0, "e1"}},
			want: []out{
				{-2, -1, []string{"e1"}},
				{0, 0, []string{"e0", "e1"}},
				{1, 10, []string{"e0"}},
			},
			runs: []out{{-2, 10, nil}},
		},
		{
			name:   "spanning",
			ranges: []in{{0, 9, "e0"}, {30, 39, "e1"}, {-2, 30, "e2"}},
			want: []out{
				{-2, -1, []string{"e2"}},
				{0, 9, []string{"e0", "e2"}},
				{10, 29, []string{"e2"}},
				{30, 30, []string{"e1", "e2"}},
				{31, 39, []string{"e1"}},
			},
			runs: []out{{-2, 39, nil}},
		},
		{
			name:   "touching-entries",
			ranges: []in{{0, 9, "e0"}, {10, 19, "e1"}, {0, 19, "e2"}},
			want: []out{
				{0, 9, []string{"e0", "e2"}},
				{10, 19, []string{"e1", "e2"}},
			},
			runs: []out{{0, 19, nil}},
		},
		{
			name:   "unbounded",
			ranges: []in{{0, 9, "e0"}, {30, 39, "e1"}, {29, math.MaxInt, "e2"}},
			want: []out{
				{0, 9, []string{"e0"}},
				{29, 29, []string{"e2"}},
				{30, 39, []string{"e1", "e2"}},
				{40, math.MaxInt, []string{"e2"}},
			},
			runs: []out{{0, 9, nil}, {29, math.MaxInt, nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := new(interval.Intersect[int, string])
			for _, e := range tt.ranges {
				m.Insert(e.start, e.end, e.value)
			}

			assert.Equal(t, tt.want, slices.Collect(m.Entries()))
			assert.Equal(t, tt.runs, slices.Collect(m.Contiguous()))
		})
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	m := new(interval.Intersect[int, string])
	m.Insert(5, 9, "e0")
	m.Insert(20, 20, "e1")

	assert.True(t, m.Overlaps(0, 5))
	assert.True(t, m.Overlaps(20, 30))
	assert.False(t, m.Overlaps(10, 19))
	assert.True(t, m.Overlaps(9, 9))
	assert.False(t, m.Overlaps(21, 21))
	assert.False(t, new(interval.Intersect[int, string]).Overlaps(0, 100))
}
