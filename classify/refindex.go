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

package classify

import "github.com/shenwei356/metaclass"

// refindexMinRefs is the smallest reference-set size for which building
// the coarse bucket index is worth its construction cost; below this,
// Classifier scans every reference directly.
const refindexMinRefs = 32

// numBuckets is the number of hash buckets the sketch values of every
// level are scattered into. One row of refIndex.buckets is a bitset
// with one bit per reference, a COBS-style bit-sliced layout held in
// memory and built from live sketches.
const numBuckets = 1 << 16

// bitset is a fixed-size bit vector, sized to the reference count.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << uint(i%64)
}

func (b bitset) forEach(f func(i int)) {
	for word, bits := range b {
		for bits != 0 {
			bit := bits & -bits
			i := word*64 + trailingZeros64(bit)
			f(i)
			bits ^= bit
		}
	}
}

func trailingZeros64(x uint64) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// refIndex is an in-memory coarse pre-filter: bucket i's bitset has bit
// r set if any of reference r's resolution levels contains a hash that
// falls into bucket i. bestMatch's argmax runs over the weighted mean
// similarity across every aligned level (spec.md §4.7 step 2), so the
// filter must be built from the union of all levels, not just the
// finest one — a reference can hold the true overall-similarity argmax
// purely on coarser-level agreement while sharing no finest-level hash
// with the query at all. It is a superset-safe filter — it may
// over-include a reference that shares a bucket with the query by
// coincidence, but it never excludes a reference that genuinely shares
// a hash value at any level, since every hash a reference holds at any
// level is recorded in its bucket.
type refIndex struct {
	refs    []*metaclass.MultiResolutionSignature
	buckets []bitset
}

func buildRefIndex(refs []*metaclass.MultiResolutionSignature) *refIndex {
	idx := &refIndex{
		refs:    refs,
		buckets: make([]bitset, numBuckets),
	}
	for b := range idx.buckets {
		idx.buckets[b] = newBitset(len(refs))
	}
	for r, ref := range refs {
		for _, level := range ref.Levels() {
			for _, h := range level.Sketch().Values() {
				idx.buckets[h%numBuckets].set(r)
			}
		}
	}
	return idx
}

// shortlist returns every reference whose sketch shares at least one
// bucket with query at any resolution level, in no particular order. An
// empty result means the caller should fall back to scanning every
// reference (e.g. for a query sparse enough that none of its hashes
// collide with any reference's bucket assignment).
func (idx *refIndex) shortlist(query *metaclass.MultiResolutionSignature) []*metaclass.MultiResolutionSignature {
	seen := make(map[int]bool)
	var out []*metaclass.MultiResolutionSignature
	for _, level := range query.Levels() {
		for _, h := range level.Sketch().Values() {
			idx.buckets[h%numBuckets].forEach(func(r int) {
				if !seen[r] {
					seen[r] = true
					out = append(out, idx.refs[r])
				}
			})
		}
	}
	return out
}
