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

// Package classify assigns a query MultiResolutionSignature to the
// closest matching reference and the taxonomic rank that similarity
// supports.
package classify

import (
	"github.com/pkg/errors"

	"github.com/shenwei356/metaclass"
)

// Classification is the outcome of classifying one query signature.
type Classification struct {
	TaxonID          string
	Level            metaclass.Rank
	Confidence       float64
	BestMatch        string
	Lineage          metaclass.Lineage
	SimilarityScores map[metaclass.Rank]float64
}

// Classifier holds an immutable reference set and is safe for
// concurrent Classify calls.
type Classifier struct {
	references  []*metaclass.MultiResolutionSignature
	thresholds  [9]float64
	minCoverage int
	index       *refIndex
}

// Option configures a Classifier at construction time.
type Option func(*Classifier)

// WithThresholds overrides the default per-rank similarity thresholds.
func WithThresholds(thresholds [9]float64) Option {
	return func(c *Classifier) { c.thresholds = thresholds }
}

// WithMinCoverage sets the minimum number of sketched k-mers a query
// must have before it can be classified at all.
func WithMinCoverage(n int) Option {
	return func(c *Classifier) { c.minCoverage = n }
}

// New builds a Classifier over an immutable reference set. references
// must be non-empty.
func New(references []*metaclass.MultiResolutionSignature, opts ...Option) (*Classifier, error) {
	if len(references) == 0 {
		return nil, metaclass.ErrNoReferences
	}

	c := &Classifier{
		references: references,
		thresholds: metaclass.DefaultThresholds,
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(references) >= refindexMinRefs {
		c.index = buildRefIndex(references)
	}

	return c, nil
}

// Classify assigns query to the best-matching reference and the finest
// rank its similarity supports, per the rank-walk described in spec §4.7.
func (c *Classifier) Classify(query *metaclass.MultiResolutionSignature) (*Classification, error) {
	if query.TotalSketchedKmers() < c.minCoverage {
		return nil, metaclass.ErrInsufficientCoverage
	}

	candidates := c.references
	if c.index != nil {
		if shortlist := c.index.shortlist(query); len(shortlist) > 0 {
			candidates = shortlist
		}
	}

	best, bestScores, bestOk, err := c.bestMatch(query, candidates)
	if err != nil {
		return nil, err
	}

	return buildClassification(best, bestScores, bestOk, c.thresholds), nil
}

// bestMatch picks the reference with the largest overall similarity,
// tie-broken by lexicographically smaller taxon_id, and returns its
// per-level Jaccard scores against query.
func (c *Classifier) bestMatch(
	query *metaclass.MultiResolutionSignature,
	candidates []*metaclass.MultiResolutionSignature,
) (*metaclass.MultiResolutionSignature, []float64, []bool, error) {
	var best *metaclass.MultiResolutionSignature
	var bestOverall float64
	var bestScores []float64
	var bestOk []bool

	for _, ref := range candidates {
		overall, err := query.Similarity(ref, nil)
		if err != nil {
			continue // no comparable levels at all; this reference cannot be scored
		}
		better := best == nil ||
			overall > bestOverall ||
			(overall == bestOverall && ref.TaxonID < best.TaxonID)
		if better {
			best = ref
			bestOverall = overall
			bestScores, bestOk = query.PerLevelJaccard(ref)
		}
	}

	if best == nil {
		return nil, nil, nil, errors.Wrap(metaclass.ErrNoComparableLevels, "classify: no reference shares a comparable resolution level with the query")
	}
	return best, bestScores, bestOk, nil
}

// buildClassification walks ranks from finest to coarsest (spec §4.7
// steps 3-5), accepting the finest rank whose threshold the aligned
// level's similarity meets, or falling back to the coarsest rank present
// in best's lineage.
func buildClassification(best *metaclass.MultiResolutionSignature, scores []float64, ok []bool, thresholds [9]float64) *Classification {
	n := len(scores)

	similarities := make(map[metaclass.Rank]float64, n)
	for i := 0; i < n; i++ {
		if !ok[i] {
			continue
		}
		levelsFromFinest := n - 1 - i
		similarities[metaclass.LevelRank(levelsFromFinest)] = scores[i]
	}

	for i := n - 1; i >= 0; i-- {
		if !ok[i] {
			continue
		}
		levelsFromFinest := n - 1 - i
		rank := metaclass.LevelRank(levelsFromFinest)
		if scores[i] >= thresholds[rank] {
			return &Classification{
				TaxonID:          best.Lineage.TaxonAt(rank),
				Level:            rank,
				Confidence:       clamp01(scores[i]),
				BestMatch:        best.TaxonID,
				Lineage:          best.Lineage.Truncate(rank),
				SimilarityScores: similarities,
			}
		}
	}

	fallbackRank := best.Lineage.CoarsestRank()
	best95 := maxOkScore(scores, ok)
	return &Classification{
		TaxonID:          best.Lineage.TaxonAt(fallbackRank),
		Level:            fallbackRank,
		Confidence:       clampRange(best95, 0, thresholds[fallbackRank]),
		BestMatch:        best.TaxonID,
		Lineage:          best.Lineage.Truncate(fallbackRank),
		SimilarityScores: similarities,
	}
}

func maxOkScore(scores []float64, ok []bool) float64 {
	max := 0.0
	found := false
	for i, v := range scores {
		if !ok[i] {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	return max
}

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
