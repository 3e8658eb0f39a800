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

import "github.com/pkg/errors"

// KmerSignature wraps a Sketch with the (k, molecule) it was built from.
// It is the unit of comparison at a single resolution.
type KmerSignature struct {
	hasher *Hasher
	sketch *Sketch
}

// NewKmerSignature builds an empty KmerSignature over the given hasher
// and a freshly constructed sketch using the supplied constructor, e.g.
//
//	NewKmerSignature(hasher, func() (*Sketch, error) { return NewBottomKSketch(1000) })
func NewKmerSignature(hasher *Hasher, newSketch func() (*Sketch, error)) (*KmerSignature, error) {
	sk, err := newSketch()
	if err != nil {
		return nil, err
	}
	return &KmerSignature{hasher: hasher, sketch: sk}, nil
}

// K returns the k-mer length this signature was built with.
func (ks *KmerSignature) K() int { return ks.hasher.K() }

// Molecule returns the molecule type this signature was built with.
func (ks *KmerSignature) Molecule() Molecule { return ks.hasher.Molecule() }

// Sketch exposes the underlying sketch for merging or serialization.
func (ks *KmerSignature) Sketch() *Sketch { return ks.sketch }

// AddSequence hashes every canonical k-mer of seq and inserts the hashes
// into the sketch. Sequences shorter than k are a no-op, not an error.
func (ks *KmerSignature) AddSequence(seq []byte) {
	if len(seq) < ks.hasher.K() {
		return
	}
	ks.sketch.AddAll(ks.hasher.HashSequence(seq))
}

// Jaccard estimates similarity to other. It is undefined
// (ErrIncompatibleSignature) unless both signatures share k and their
// molecules are compatible (DNA and RNA are interchangeable; everything
// else must match exactly).
func (ks *KmerSignature) Jaccard(other *KmerSignature) (float64, error) {
	if ks.K() != other.K() || !moleculeCompatible(ks.Molecule(), other.Molecule()) {
		return 0, ErrIncompatibleSignature
	}
	j, err := ks.sketch.Jaccard(other.sketch)
	if err != nil {
		return 0, errors.Wrap(ErrIncompatibleSignature, err.Error())
	}
	return j, nil
}

// MultiResolutionSignature (MRS) holds an ordered ladder of
// KmerSignatures at strictly increasing k, from coarsest (macro, index
// 0) to finest (micro, last index), together with the taxon identity the
// signature was built to represent.
type MultiResolutionSignature struct {
	TaxonID string
	Lineage Lineage

	levels []*KmerSignature
}

// NewMultiResolutionSignature builds an MRS from levels ordered coarsest
// to finest. At least one level is required.
func NewMultiResolutionSignature(taxonID string, lineage Lineage, levels []*KmerSignature) (*MultiResolutionSignature, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	return &MultiResolutionSignature{
		TaxonID: taxonID,
		Lineage: lineage,
		levels:  levels,
	}, nil
}

// Levels returns the signature ladder, coarsest first.
func (m *MultiResolutionSignature) Levels() []*KmerSignature { return m.levels }

// MergeFrom folds every level of other into the matching level of m, as
// if every sequence ever added to other had been added to m directly.
// other must have the same number of levels, each built with the same
// (k, molecule, sketch parameters) as the corresponding level in m; this
// is always true for per-worker scratch MRSes built from the same
// pipeline configuration as the shared sample MRS.
func (m *MultiResolutionSignature) MergeFrom(other *MultiResolutionSignature) error {
	if len(m.levels) != len(other.levels) {
		return ErrIncompatibleSignature
	}
	for i := range m.levels {
		if err := m.levels[i].sketch.Merge(other.levels[i].sketch); err != nil {
			return err
		}
	}
	return nil
}

// TotalSketchedKmers sums the number of hashes retained across every
// level, used by the Classifier's minimum-coverage check.
func (m *MultiResolutionSignature) TotalSketchedKmers() int {
	total := 0
	for _, l := range m.levels {
		total += l.sketch.Size()
	}
	return total
}

// AddSequence fans out to every level's KmerSignature.
func (m *MultiResolutionSignature) AddSequence(seq []byte) {
	for _, l := range m.levels {
		l.AddSequence(seq)
	}
}

// Similarity computes the weighted arithmetic mean of per-level Jaccard
// estimates between m and other, aligning levels by index up to the
// shorter ladder. If weights is non-nil it must have one entry per
// aligned level pair; weights need not sum to 1, as the total weight
// actually used (i.e. excluding incompatible pairs) is the
// normalization denominator. A nil weights uses 1/L for each of the L
// aligned pairs. A level pair whose signatures are incompatible
// contributes to neither the numerator nor the denominator. If every
// aligned pair is incompatible, the similarity is undefined.
func (m *MultiResolutionSignature) Similarity(other *MultiResolutionSignature, weights []float64) (float64, error) {
	n := len(m.levels)
	if len(other.levels) < n {
		n = len(other.levels)
	}
	if weights == nil {
		weights = make([]float64, n)
		w := 1.0 / float64(n)
		for i := range weights {
			weights[i] = w
		}
	}

	var numerator, denominator float64
	any := false
	for i := 0; i < n; i++ {
		j, err := m.levels[i].Jaccard(other.levels[i])
		if err != nil {
			continue
		}
		any = true
		numerator += weights[i] * j
		denominator += weights[i]
	}
	if !any || denominator == 0 {
		return 0, ErrNoComparableLevels
	}
	return numerator / denominator, nil
}

// PerLevelJaccard returns the Jaccard estimate at every aligned level,
// in the same coarsest-to-finest order as Levels(). An incompatible pair
// is reported as 0 with ok=false at that index so callers (the
// Classifier) can distinguish "no similarity" from "not comparable".
func (m *MultiResolutionSignature) PerLevelJaccard(other *MultiResolutionSignature) ([]float64, []bool) {
	n := len(m.levels)
	if len(other.levels) < n {
		n = len(other.levels)
	}
	scores := make([]float64, n)
	ok := make([]bool, n)
	for i := 0; i < n; i++ {
		j, err := m.levels[i].Jaccard(other.levels[i])
		if err == nil {
			scores[i] = j
			ok[i] = true
		}
	}
	return scores, ok
}
