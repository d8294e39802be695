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

// Package interval provides an interval index over integer offsets, used to
// track which byte ranges of a document have been touched by edits.
package interval

import (
	"fmt"
	"iter"
	"slices"

	"github.com/tidwall/btree"
	"golang.org/x/exp/constraints" //nolint:exptostd // Tries to replace w/ cmp.
)

// Endpoint is a type that may be used as an interval endpoint.
type Endpoint = constraints.Integer

// Intersect is an interval intersection map: a collection of closed
// intervals such that, given a point, one can find the values of every
// interval that contains it.
//
// Internally the collection is kept as pairwise disjoint entries, one per
// maximal run of points covered by the same set of intervals.
//
// A zero value is ready to use.
type Intersect[K Endpoint, V any] struct {
	// Keys are the ends of the entries.
	tree    btree.Map[K, *Entry[K, []V]]
	pending []*Entry[K, []V] // Scratch space for Insert().
}

// Entry is one disjoint piece of an [Intersect].
type Entry[K Endpoint, V any] struct {
	Start, End K // Inclusive.
	Value      V
}

// Contains returns whether an entry contains a given point.
func (e Entry[K, V]) Contains(point K) bool {
	return e.Start <= point && point <= e.End
}

// Overlaps returns whether any interval in the map intersects [start, end].
func (m *Intersect[K, V]) Overlaps(start, end K) bool {
	for range m.intersect(start, end) {
		return true
	}
	return false
}

// Entries returns an iterator over the disjoint entries of this map, in
// order.
func (m *Intersect[K, V]) Entries() iter.Seq[Entry[K, []V]] {
	return func(yield func(Entry[K, []V]) bool) {
		iter := m.tree.Iter()
		for more := iter.First(); more; more = iter.Next() {
			if !yield(*iter.Value()) {
				return
			}
		}
	}
}

// Contiguous returns an iterator over the maximal runs of covered points:
// entries that touch or overlap are joined. The yielded entries carry no
// values.
func (m *Intersect[K, V]) Contiguous() iter.Seq[Entry[K, []V]] {
	return func(yield func(Entry[K, []V]) bool) {
		var run Entry[K, []V]
		started := false
		for e := range m.Entries() {
			if started && run.End+1 >= e.Start {
				run.End = max(run.End, e.End)
				continue
			}
			if started && !yield(run) {
				return
			}
			run = Entry[K, []V]{Start: e.Start, End: e.End}
			started = true
		}
		if started {
			yield(run)
		}
	}
}

// Insert adds the closed interval [start, end] with the given value.
//
// Returns true if the interval was disjoint from all others in the map.
func (m *Intersect[K, V]) Insert(start, end K, value V) (disjoint bool) {
	if start > end {
		panic(fmt.Sprintf("interval: start (%#v) > end (%#v)", start, end))
	}

	var prev *Entry[K, []V]
	for entry := range m.intersect(start, end) {
		if prev == nil && start < entry.Start {
			// Cover the gap between start and the first overlapping entry.
			m.pending = append(m.pending, &Entry[K, []V]{
				Start: start,
				End:   entry.Start - 1,
				Value: []V{value},
			})
		}

		// Values may be shared between neighbouring entries, so never append
		// into spare capacity.
		orig := slices.Clip(entry.Value)

		if entry.Contains(end) && end < entry.End {
			// Split off the part of entry past end; it keeps the old values.
			next := &Entry[K, []V]{
				Start: entry.Start,
				End:   end,
				Value: orig,
			}
			entry.Start = end + 1
			m.pending = append(m.pending, next)
			entry = next
		}

		if entry.Contains(start) && entry.Start < start {
			// Split off the part of entry before start.
			m.pending = append(m.pending, &Entry[K, []V]{
				Start: entry.Start,
				End:   start - 1,
				Value: orig,
			})
			entry.Start = start
		}

		entry.Value = append(orig, value)

		if prev != nil && prev.End+1 < entry.Start {
			// Cover the gap between two overlapping entries.
			m.pending = append(m.pending, &Entry[K, []V]{
				Start: prev.End + 1,
				End:   entry.Start - 1,
				Value: []V{value},
			})
		}

		prev = entry
	}

	if prev != nil && prev.End < end {
		m.pending = append(m.pending, &Entry[K, []V]{
			Start: prev.End + 1,
			End:   end,
			Value: []V{value},
		})
	}

	for _, entry := range m.pending {
		m.tree.Set(entry.End, entry)
	}
	clear(m.pending)
	m.pending = m.pending[:0]

	if prev == nil {
		m.tree.Set(end, &Entry[K, []V]{
			Start: start,
			End:   end,
			Value: []V{value},
		})
	}

	return prev == nil
}

// intersect returns an iterator over the entries that intersect [start, end].
func (m *Intersect[K, V]) intersect(start, end K) iter.Seq[*Entry[K, []V]] {
	return func(yield func(*Entry[K, []V]) bool) {
		// Entries are keyed by their end, so the first entry whose end is at
		// least start is the first candidate. Walk forward until an entry
		// starts past end.
		iter := m.tree.Iter()
		for more := iter.Seek(start); more; more = iter.Next() {
			if end < iter.Value().Start || !yield(iter.Value()) {
				return
			}
		}
	}
}
