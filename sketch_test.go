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
	"math/rand"
	"testing"
)

func TestBottomKBounded(t *testing.T) {
	sk, err := NewBottomKSketch(100)
	if err != nil {
		t.Fatalf("NewBottomKSketch: %s", err)
	}
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		sk.Add(r.Uint64())
	}
	if sk.Size() != 100 {
		t.Fatalf("expected size 100, got %d", sk.Size())
	}
	vals := sk.Values()
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			t.Fatalf("Values() not sorted at %d", i)
		}
	}
}

func TestBottomKOrderInsensitive(t *testing.T) {
	hashes := make([]uint64, 500)
	r := rand.New(rand.NewSource(3))
	for i := range hashes {
		hashes[i] = r.Uint64()
	}

	skA, _ := NewBottomKSketch(50)
	skA.AddAll(hashes)

	shuffled := make([]uint64, len(hashes))
	copy(shuffled, hashes)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	skB, _ := NewBottomKSketch(50)
	skB.AddAll(shuffled)

	valsA, valsB := skA.Values(), skB.Values()
	if len(valsA) != len(valsB) {
		t.Fatalf("size mismatch: %d vs %d", len(valsA), len(valsB))
	}
	for i := range valsA {
		if valsA[i] != valsB[i] {
			t.Fatalf("order-sensitivity at %d: %d vs %d", i, valsA[i], valsB[i])
		}
	}
}

func TestScaledMembership(t *testing.T) {
	sk, err := NewScaledSketch(1000)
	if err != nil {
		t.Fatalf("NewScaledSketch: %s", err)
	}
	limit := maxHash64 / 1000
	sk.Add(limit - 1)
	sk.Add(limit + 1)
	if sk.Size() != 1 {
		t.Fatalf("expected 1 retained hash, got %d", sk.Size())
	}
}

// TestScaledMembershipExcludesLimit guards the strict h < limit boundary:
// a hash exactly equal to limit must be rejected, not retained.
func TestScaledMembershipExcludesLimit(t *testing.T) {
	sk, err := NewScaledSketch(1000)
	if err != nil {
		t.Fatalf("NewScaledSketch: %s", err)
	}
	limit := maxHash64 / 1000
	sk.Add(limit)
	if sk.Size() != 0 {
		t.Fatalf("expected h == limit to be excluded, got size %d", sk.Size())
	}
}

func TestJaccardEmptySets(t *testing.T) {
	a, _ := NewBottomKSketch(10)
	b, _ := NewBottomKSketch(10)

	j, err := a.Jaccard(b)
	if err != nil || j != 1 {
		t.Fatalf("both empty: expected 1, nil; got %v, %v", j, err)
	}

	b.Add(42)
	j, err = a.Jaccard(b)
	if err != nil || j != 0 {
		t.Fatalf("one empty: expected 0, nil; got %v, %v", j, err)
	}
}

func TestJaccardSymmetricAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	a, _ := NewScaledSketch(20)
	b, _ := NewScaledSketch(20)
	for i := 0; i < 5000; i++ {
		h := r.Uint64()
		a.Add(h)
		if i%2 == 0 {
			b.Add(h)
		} else {
			b.Add(r.Uint64())
		}
	}

	jab, err := a.Jaccard(b)
	if err != nil {
		t.Fatalf("Jaccard: %s", err)
	}
	jba, err := b.Jaccard(a)
	if err != nil {
		t.Fatalf("Jaccard: %s", err)
	}
	if jab != jba {
		t.Fatalf("Jaccard not symmetric: %v vs %v", jab, jba)
	}
	if jab < 0 || jab > 1 {
		t.Fatalf("Jaccard out of [0,1]: %v", jab)
	}
}

func TestJaccardIncompatibleSketches(t *testing.T) {
	a, _ := NewBottomKSketch(10)
	b, _ := NewScaledSketch(10)
	if _, err := a.Jaccard(b); err != ErrIncompatibleSketch {
		t.Fatalf("expected ErrIncompatibleSketch, got %v", err)
	}
}

func TestMergeEquivalence(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	hashes := make([]uint64, 2000)
	for i := range hashes {
		hashes[i] = r.Uint64()
	}

	whole, _ := NewBottomKSketch(64)
	whole.AddAll(hashes)

	half1, _ := NewBottomKSketch(64)
	half1.AddAll(hashes[:1000])
	half2, _ := NewBottomKSketch(64)
	half2.AddAll(hashes[1000:])
	if err := half1.Merge(half2); err != nil {
		t.Fatalf("Merge: %s", err)
	}

	wantVals, gotVals := whole.Values(), half1.Values()
	if len(wantVals) != len(gotVals) {
		t.Fatalf("size mismatch after merge: %d vs %d", len(wantVals), len(gotVals))
	}
	for i := range wantVals {
		if wantVals[i] != gotVals[i] {
			t.Fatalf("merge result diverges at %d: %d vs %d", i, wantVals[i], gotVals[i])
		}
	}
}
