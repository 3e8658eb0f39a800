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
	"sort"
	"testing"
)

func randomDNA(n int, r *rand.Rand) []byte {
	bases := []byte{'A', 'C', 'G', 'T'}
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func sortedHashes(h []uint64) []uint64 {
	out := make([]uint64, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TestCanonicalDeterminism checks spec §8's "Canonical k-mer determinism"
// invariant: a sequence and its reverse complement yield the same multiset
// of canonical k-mer hashes.
func TestCanonicalDeterminism(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	hasher, err := NewHasher(DNA, 21)
	if err != nil {
		t.Fatalf("NewHasher: %s", err)
	}

	for trial := 0; trial < 20; trial++ {
		seq := randomDNA(200, r)
		rc := ReverseComplement(seq)

		h1 := sortedHashes(hasher.HashSequence(seq))
		h2 := sortedHashes(hasher.HashSequence(rc))

		if len(h1) != len(h2) {
			t.Fatalf("trial %d: hash count mismatch: %d vs %d", trial, len(h1), len(h2))
		}
		for i := range h1 {
			if h1[i] != h2[i] {
				t.Fatalf("trial %d: canonical hash multisets differ at %d: %d vs %d", trial, i, h1[i], h2[i])
			}
		}
	}
}

// TestSkipsInvalidBases checks spec §4.1(ii): windows containing a
// non-ACGT base are skipped, not hashed.
func TestSkipsInvalidBases(t *testing.T) {
	hasher, err := NewHasher(DNA, 4)
	if err != nil {
		t.Fatalf("NewHasher: %s", err)
	}

	// "ACGTNACGT" has 6 4-mer windows total, 4 of which touch the N.
	seq := []byte("ACGTNACGT")
	hashes := hasher.HashSequence(seq)
	if len(hashes) != 2 {
		t.Fatalf("expected 2 valid 4-mers around the N, got %d", len(hashes))
	}
}

// TestShortSequenceNoHashes checks that a sequence shorter than k produces
// no hashes rather than an error.
func TestShortSequenceNoHashes(t *testing.T) {
	hasher, _ := NewHasher(DNA, 21)
	if got := hasher.HashSequence([]byte("ACGT")); got != nil {
		t.Fatalf("expected nil for too-short sequence, got %v", got)
	}
}

// TestInvalidKmerSize checks spec §7's InvalidKmerSize error.
func TestInvalidKmerSize(t *testing.T) {
	if _, err := NewHasher(DNA, 2); err != ErrInvalidKmerSize {
		t.Errorf("k=2: expected ErrInvalidKmerSize, got %v", err)
	}
	if _, err := NewHasher(DNA, 64); err != ErrInvalidKmerSize {
		t.Errorf("k=64: expected ErrInvalidKmerSize, got %v", err)
	}
	if _, err := NewHasher(DNA, 31); err != nil {
		t.Errorf("k=31: unexpected error %v", err)
	}
}

// TestProteinDirectHashDeterministic checks that the non-nucleotide path
// is a pure function of the bytes (no accidental RNG/clock dependence).
func TestProteinDirectHashDeterministic(t *testing.T) {
	hasher, _ := NewHasher(Protein, 5)
	seq := []byte("MKTAYIAKQRQISFVKSHFSRQLEERLGLIEVQ")
	h1 := hasher.HashSequence(seq)
	h2 := hasher.HashSequence(seq)
	if len(h1) != len(h2) {
		t.Fatalf("length mismatch")
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Fatalf("non-deterministic hash at %d", i)
		}
	}
	if len(h1) != len(seq)-5+1 {
		t.Fatalf("expected %d hashes, got %d", len(seq)-5+1, len(h1))
	}
}
