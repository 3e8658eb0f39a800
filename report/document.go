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

// Package report builds and persists the per-sample classification result
// document.
package report

import (
	"github.com/shenwei356/metaclass/classify"
	"github.com/shenwei356/metaclass/pipeline"
	"github.com/shenwei356/metaclass/strain"
)

// schemaVersion is round-tripped for forward compatibility; the core
// never reads it back.
const schemaVersion = "1"

// Metrics mirrors pipeline.Summary at the JSON boundary, with explicit
// field names and types matching the bit-exact schema.
type Metrics struct {
	TotalReads            uint64  `json:"total_reads"`
	PassedReads           uint64  `json:"passed_reads"`
	TotalBases            uint64  `json:"total_bases"`
	PassedBases           uint64  `json:"passed_bases"`
	AvgReadLength         float64 `json:"avg_read_length"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// ClassificationEntry is one reported classification result.
type ClassificationEntry struct {
	TaxonID          string             `json:"taxon_id"`
	Lineage          []string           `json:"lineage"`
	Level            string             `json:"level"`
	Confidence       float64            `json:"confidence"`
	BestMatch        string             `json:"best_match"`
	SimilarityScores map[string]float64 `json:"similarity_scores"`
}

// Document is the complete per-sample result written to disk.
type Document struct {
	SchemaVersion    string                `json:"schema_version"`
	SampleID         string                `json:"sample_id"`
	Metrics          Metrics               `json:"metrics"`
	Classifications  []ClassificationEntry `json:"classifications"`
	StrainAbundances map[string][2]float64 `json:"strain_abundances"`
	ResultsFile      string                `json:"results_file"`
}

// NewDocument assembles a Document from one sample's pipeline summary,
// its classifications (nil or empty when classification failed, per
// spec §7's "metrics-only results" fallback), and an optional strain
// result (nil when strain estimation was skipped or degraded to empty,
// per spec §7's StrainEstimation non-fatal policy).
func NewDocument(sampleID string, summary pipeline.Summary, classifications []*classify.Classification, strainResult *strain.Result) *Document {
	doc := &Document{
		SchemaVersion: schemaVersion,
		SampleID:      sampleID,
		Metrics: Metrics{
			TotalReads:            summary.TotalReads,
			PassedReads:           summary.PassedReads,
			TotalBases:            summary.TotalBases,
			PassedBases:           summary.PassedBases,
			AvgReadLength:         summary.AvgReadLength,
			ProcessingTimeSeconds: summary.ElapsedSecs,
		},
		Classifications:  make([]ClassificationEntry, 0, len(classifications)),
		StrainAbundances: map[string][2]float64{},
	}

	for _, c := range classifications {
		if c == nil {
			continue
		}
		scores := make(map[string]float64, len(c.SimilarityScores))
		for rank, score := range c.SimilarityScores {
			scores[rank.String()] = score
		}
		doc.Classifications = append(doc.Classifications, ClassificationEntry{
			TaxonID:          c.TaxonID,
			Lineage:          []string(c.Lineage),
			Level:            c.Level.String(),
			Confidence:       c.Confidence,
			BestMatch:        c.BestMatch,
			SimilarityScores: scores,
		})
	}

	if strainResult != nil {
		for strainID, mean := range strainResult.Mean {
			doc.StrainAbundances[strainID] = [2]float64{mean, strainResult.CredibleIntervalWidth[strainID]}
		}
	}

	return doc
}
