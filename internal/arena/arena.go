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

// Package arena defines a slab allocator for syntax nodes.
//
// Values allocated in an [Arena] never move, so a *T obtained from one stays
// valid for as long as anything references it, even after the arena grows.
// This is what lets a parse allocate its nodes in bulk while trees produced by
// later parses keep pointing into older arenas.
package arena

import (
	"fmt"
	"math/bits"
)

// minChunkShift is the log2 of the size of the first chunk of an arena.
const (
	minChunkShift = 4
	minChunkLen   = 1 << minChunkShift
)

// Pointer is a compressed reference to a value in an [Arena].
//
// The value of a pointer is one plus the number of values allocated before
// it; the zero value is nil.
type Pointer[T any] uint32

// Nil returns whether this pointer is nil.
func (p Pointer[T]) Nil() bool {
	return p == 0
}

// Arena is a slice of T that never moves its elements.
//
// It is stored as a table of chunks whose capacities double, mimicking the
// growth of an ordinary slice without ever copying. Lookup stays O(1).
//
// A zero Arena is empty and ready to use. An Arena must not be used from
// several goroutines at once.
type Arena[T any] struct {
	// Invariants:
	// 1. cap(chunks[0]) == minChunkLen.
	// 2. cap(chunks[n]) == 2*cap(chunks[n-1]).
	// 3. len(chunks[n]) == cap(chunks[n]) for all but the last chunk.
	chunks [][]T
}

// New allocates value in the arena and returns a compressed pointer to it.
func (a *Arena[T]) New(value T) Pointer[T] {
	if a.chunks == nil {
		a.chunks = [][]T{make([]T, 0, minChunkLen)}
	}

	last := &a.chunks[len(a.chunks)-1]
	if len(*last) == cap(*last) {
		a.chunks = append(a.chunks, make([]T, 0, 2*cap(*last)))
		last = &a.chunks[len(a.chunks)-1]
	}

	*last = append(*last, value)
	return Pointer[T](a.Len())
}

// Alloc is like [Arena.New], but returns an ordinary pointer.
func (a *Arena[T]) Alloc(value T) *T {
	return a.Deref(a.New(value))
}

// Deref returns the value p points to.
func (a *Arena[T]) Deref(p Pointer[T]) *T {
	if p.Nil() {
		panic("arena: dereferenced nil pointer")
	}
	chunk, idx := a.coordinates(int(p) - 1)
	return &a.chunks[chunk][idx]
}

// Len returns the number of values allocated so far.
func (a *Arena[T]) Len() int {
	if len(a.chunks) == 0 {
		return 0
	}
	return a.lenOfFirstN(len(a.chunks)-1) + len(a.chunks[len(a.chunks)-1])
}

// lenOfFirstN returns the total capacity of the first n chunks, whether or
// not they have been allocated yet.
func (*Arena[T]) lenOfFirstN(n int) int {
	// minChunkLen * (2^0 + ... + 2^(n-1)) == minChunkLen * (2^n - 1).
	return (minChunkLen << n) - minChunkLen
}

// coordinates returns the chunk and the index inside it holding the idx-th
// value, performing a bounds check.
func (a *Arena[T]) coordinates(idx int) (int, int) {
	if idx < 0 || idx >= a.Len() {
		panic(fmt.Sprintf("arena: pointer out of range: %#x", idx))
	}

	// Chunk k starts at minChunkLen * (2^k - 1). Adding minChunkLen turns
	// that into minChunkLen << k, whose highest set bit identifies k.
	chunk := bits.UintSize - bits.LeadingZeros(uint(idx)+minChunkLen)
	chunk -= minChunkShift + 1

	return chunk, idx - a.lenOfFirstN(chunk)
}
