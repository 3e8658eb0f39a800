// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package metaclass

import (
	"container/heap"

	"github.com/twotwotwo/sorts"
)

// Algorithm selects how a Sketch subsamples the hash values it observes.
type Algorithm uint8

const (
	// BottomK retains the N smallest distinct hashes ever observed.
	BottomK Algorithm = iota
	// Scaled retains every distinct hash h with h < maxHash64/scale,
	// so the sketch grows with the underlying set's true cardinality.
	Scaled
)

// maxHash64 is the largest value a 64-bit hash can take; Scaled sketches
// compare against maxHash64/scale rather than rescaling every hash.
const maxHash64 = ^uint64(0)

// Sketch is a bounded, mergeable approximation of a set of 64-bit k-mer
// hashes, used to estimate Jaccard similarity without retaining every
// k-mer. It is built incrementally by Add and is not safe for concurrent
// use; callers needing concurrent ingestion build one Sketch per worker
// and Merge them under a single lock.
type Sketch struct {
	algo  Algorithm
	n     int    // target size for BottomK
	scale uint64 // divisor for Scaled
	limit uint64 // maxHash64/scale, cached

	heap bottomKHeap     // used when algo == BottomK
	set  map[uint64]bool // used when algo == Scaled

	dirty  bool     // set mutated since sorted was last rebuilt
	sorted []uint64 // cached sorted, deduplicated view of set
}

// NewBottomKSketch returns a Sketch retaining the n smallest distinct
// hashes observed. n must be positive.
func NewBottomKSketch(n int) (*Sketch, error) {
	if n <= 0 {
		return nil, ErrInvalidSketchParameters
	}
	return &Sketch{
		algo: BottomK,
		n:    n,
		heap: make(bottomKHeap, 0, n),
	}, nil
}

// NewScaledSketch returns a Sketch retaining every distinct hash h with
// h < maxHash64/scale. scale must be positive.
func NewScaledSketch(scale uint64) (*Sketch, error) {
	if scale == 0 {
		return nil, ErrInvalidSketchParameters
	}
	return &Sketch{
		algo:  Scaled,
		scale: scale,
		limit: maxHash64 / scale,
		set:   make(map[uint64]bool),
	}, nil
}

// Algorithm reports which subsampling strategy the sketch uses.
func (s *Sketch) Algorithm() Algorithm { return s.algo }

// Parameter returns the value the sketch was constructed with: n for
// BottomK, scale for Scaled. Used by refstore's on-disk cache codec to
// round-trip a sketch without guessing its configuration back out of the
// retained values.
func (s *Sketch) Parameter() uint64 {
	if s.algo == BottomK {
		return uint64(s.n)
	}
	return s.scale
}

// Add folds a single hash value into the sketch.
func (s *Sketch) Add(h uint64) {
	if s.algo == BottomK {
		s.addBottomK(h)
		return
	}
	s.addScaled(h)
}

// AddAll folds every hash in hs into the sketch.
func (s *Sketch) AddAll(hs []uint64) {
	for _, h := range hs {
		s.Add(h)
	}
}

// addBottomK maintains a bounded max-heap keyed by hash, rejecting values
// at or above the current max once the heap is full, so the heap always
// holds the n smallest distinct values seen so far.
func (s *Sketch) addBottomK(h uint64) {
	for _, existing := range s.heap {
		if existing == h {
			return
		}
	}
	if len(s.heap) < s.n {
		heap.Push(&s.heap, h)
		return
	}
	if h >= s.heap[0] {
		return
	}
	s.heap[0] = h
	heap.Fix(&s.heap, 0)
}

// addScaled keeps h only if it falls within the sampling band; the
// underlying map absorbs duplicates for free, and the sorted cache is
// invalidated lazily rather than rebuilt on every insert.
func (s *Sketch) addScaled(h uint64) {
	if h >= s.limit {
		return
	}
	if !s.set[h] {
		s.set[h] = true
		s.dirty = true
	}
}

// Size returns the number of distinct hashes currently retained.
func (s *Sketch) Size() int {
	if s.algo == BottomK {
		return len(s.heap)
	}
	return len(s.set)
}

// Values returns the retained hashes in ascending order. For BottomK
// sketches this is every member; for Scaled sketches the deduplicated set
// is sorted with twotwotwo/sorts.Quicksort, a parallel quicksort, and the
// result is cached until the next Add invalidates it.
func (s *Sketch) Values() []uint64 {
	if s.algo == BottomK {
		out := make([]uint64, len(s.heap))
		copy(out, s.heap)
		sorts.Quicksort(uint64Slice(out))
		return out
	}
	if s.dirty || s.sorted == nil {
		s.sorted = make([]uint64, 0, len(s.set))
		for h := range s.set {
			s.sorted = append(s.sorted, h)
		}
		sorts.Quicksort(uint64Slice(s.sorted))
		s.dirty = false
	}
	return s.sorted
}

// Merge folds the contents of other into s in place, as if every hash
// other ever observed had been added directly. s and other must use the
// same algorithm and parameters.
func (s *Sketch) Merge(other *Sketch) error {
	if s.algo != other.algo || s.n != other.n || s.scale != other.scale {
		return ErrIncompatibleSketch
	}
	if s.algo == BottomK {
		for _, h := range other.heap {
			s.addBottomK(h)
		}
		return nil
	}
	for h := range other.set {
		s.addScaled(h)
	}
	return nil
}

// Jaccard estimates the Jaccard similarity between the sets s and other
// were sampled from. Both sketches must use the same algorithm and
// parameters, else ErrIncompatibleSketch is returned.
func (s *Sketch) Jaccard(other *Sketch) (float64, error) {
	if s.algo != other.algo || s.n != other.n || s.scale != other.scale {
		return 0, ErrIncompatibleSketch
	}

	a, b := s.Values(), other.Values()
	if len(a) == 0 && len(b) == 0 {
		return 1, nil
	}
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	intersection := sortedIntersectionSize(a, b)

	if s.algo == BottomK {
		denom := len(a)
		if len(b) < denom {
			denom = len(b)
		}
		return float64(intersection) / float64(denom), nil
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1, nil
	}
	return float64(intersection) / float64(union), nil
}

// sortedIntersectionSize counts shared elements between two ascending,
// deduplicated slices via a linear merge.
func sortedIntersectionSize(a, b []uint64) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// uint64Slice adapts []uint64 to sort.Interface for sorts.Quicksort,
// which uses only Len, Less and Swap; the Key method is not used by it.
type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s uint64Slice) Key(i int) uint64   { return s[i] }

// bottomKHeap is a container/heap max-heap of hash values, so the largest
// retained value is always available at index 0 for the
// reject-if-not-smaller check in addBottomK.
type bottomKHeap []uint64

func (h bottomKHeap) Len() int            { return len(h) }
func (h bottomKHeap) Less(i, j int) bool  { return h[i] > h[j] } // max-heap
func (h bottomKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bottomKHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *bottomKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
