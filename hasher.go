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
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/will-rowe/nthash"
)

// Molecule identifies the alphabet a KmerSignature hashes.
type Molecule uint8

// Molecule types. DNA and RNA are reverse-complement compatible with each
// other; Protein and Other only compare equal to themselves.
const (
	DNA Molecule = iota
	RNA
	Protein
	Other
)

func (m Molecule) String() string {
	switch m {
	case DNA:
		return "DNA"
	case RNA:
		return "RNA"
	case Protein:
		return "protein"
	default:
		return "other"
	}
}

// nucleic reports whether m is a nucleotide alphabet eligible for
// reverse-complement canonicalization.
func (m Molecule) nucleic() bool {
	return m == DNA || m == RNA
}

// moleculeCompatible implements the compatibility rule of spec §4.3:
// DNA and RNA are interchangeable, everything else must match exactly.
func moleculeCompatible(a, b Molecule) bool {
	if a == b {
		return true
	}
	return a.nucleic() && b.nucleic()
}

// Hasher maps canonical k-mers of a byte sequence to 64-bit hash values.
// It is stateless and safe to share (read-only) across every KmerSignature
// level and across threads; all mutable state lives in the short-lived
// per-call scratch buffers.
type Hasher struct {
	k        int
	molecule Molecule
}

// NewHasher returns a Hasher for k-mers of length k over molecule. k must
// be in [3, 63].
func NewHasher(molecule Molecule, k int) (*Hasher, error) {
	if k < 3 || k > 63 {
		return nil, ErrInvalidKmerSize
	}
	return &Hasher{k: k, molecule: molecule}, nil
}

// K returns the configured k-mer length.
func (h *Hasher) K() int { return h.k }

// Molecule returns the configured molecule type.
func (h *Hasher) Molecule() Molecule { return h.molecule }

// HashSequence returns the canonical hash of every valid k-mer window in
// seq, left to right. Windows shorter than k, or (for nucleotide
// molecules) containing any base outside {A,C,G,T,a,c,g,t} or, for RNA,
// {A,C,G,U,a,c,g,u}, are skipped entirely per spec §4.1(ii).
func (h *Hasher) HashSequence(seq []byte) []uint64 {
	if len(seq) < h.k {
		return nil
	}
	if h.molecule.nucleic() {
		return h.hashNucleotide(seq)
	}
	return h.hashDirect(seq)
}

// hashNucleotide splits seq into maximal runs of valid bases and feeds
// each run through an ntHash rolling hasher, so that invalid bases never
// enter a window and the cost stays O(len(seq)) overall regardless of how
// many runs are produced.
func (h *Hasher) hashNucleotide(seq []byte) []uint64 {
	k := h.k
	hashes := make([]uint64, 0, len(seq)-k+1)

	isRNA := h.molecule == RNA
	start := -1
	flush := func(end int) {
		if start < 0 || end-start < k {
			start = -1
			return
		}
		run := seq[start:end]
		if isRNA {
			run = translateRNAToDNA(run)
		}
		hashes = append(hashes, runCanonicalHashes(run, k)...)
		start = -1
	}

	for i, b := range seq {
		if isValidBase(b, isRNA) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(seq))

	return hashes
}

func isValidBase(b byte, isRNA bool) bool {
	switch b {
	case 'A', 'C', 'G', 'a', 'c', 'g':
		return true
	case 'T', 't':
		return !isRNA
	case 'U', 'u':
		return isRNA
	default:
		return false
	}
}

// translateRNAToDNA copies run with U/u mapped to T/t so it can be handed
// to the DNA rolling hasher; the caller's slice is never mutated.
func translateRNAToDNA(run []byte) []byte {
	out := make([]byte, len(run))
	for i, b := range run {
		switch b {
		case 'U':
			out[i] = 'T'
		case 'u':
			out[i] = 't'
		default:
			out[i] = b
		}
	}
	return out
}

// runCanonicalHashes hashes every k-mer of a run already known to contain
// only valid nucleotide bases.
func runCanonicalHashes(run []byte, k int) []uint64 {
	if len(run) < k {
		return nil
	}
	hasher, err := nthash.NewHasher(&run, uint(k))
	if err != nil {
		return nil
	}
	out := make([]uint64, 0, len(run)-k+1)
	for {
		code, ok := hasher.Next(true) // true: canonical (min of forward/reverse-complement)
		if !ok {
			break
		}
		out = append(out, code)
	}
	return out
}

// hashDirect computes a Rabin-Karp rolling polynomial hash over raw bytes
// (no canonicalization) for protein/other molecules, each window
// finalized through xxhash to spread bits across the full 64-bit range.
func (h *Hasher) hashDirect(seq []byte) []uint64 {
	k := h.k
	n := len(seq)
	if n < k {
		return nil
	}

	const base uint64 = 1099511628211 // FNV-1a prime, reused here purely as a polynomial base

	var pow uint64 = 1
	for i := 0; i < k-1; i++ {
		pow *= base
	}

	var buf [8]byte
	finalize := func(v uint64) uint64 {
		binary.BigEndian.PutUint64(buf[:], v)
		return xxhash.Sum64(buf[:])
	}

	hashes := make([]uint64, 0, n-k+1)

	var acc uint64
	for i := 0; i < k; i++ {
		acc = acc*base + uint64(seq[i])
	}
	hashes = append(hashes, finalize(acc))

	for i := k; i < n; i++ {
		acc = (acc-uint64(seq[i-k])*pow)*base + uint64(seq[i])
		hashes = append(hashes, finalize(acc))
	}

	return hashes
}
