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

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/classify"
	"github.com/shenwei356/metaclass/pipeline"
	"github.com/shenwei356/metaclass/strain"
)

func TestNewDocumentPopulatesAllSchemaFields(t *testing.T) {
	summary := pipeline.Summary{
		TotalReads:    100,
		PassedReads:   90,
		TotalBases:    15000,
		PassedBases:   13500,
		AvgReadLength: 150,
		ElapsedSecs:   1.25,
	}
	classifications := []*classify.Classification{
		{
			TaxonID:    "562",
			Level:      metaclass.Species,
			Confidence: 0.91,
			BestMatch:  "562.1",
			Lineage:    metaclass.Lineage{"Bacteria", "Proteobacteria", "", "", "", "", "Escherichia coli"},
			SimilarityScores: map[metaclass.Rank]float64{
				metaclass.Species: 0.91,
				metaclass.Genus:   0.94,
			},
		},
	}
	strainResult := &strain.Result{
		Mean:                  map[string]float64{"562.1": 0.6, "562.2": 0.4},
		CredibleIntervalWidth: map[string]float64{"562.1": 0.05, "562.2": 0.05},
	}

	doc := NewDocument("sample1", summary, classifications, strainResult)

	if doc.SampleID != "sample1" {
		t.Errorf("SampleID = %q", doc.SampleID)
	}
	if doc.Metrics.TotalBases != 15000 || doc.Metrics.PassedBases != 13500 {
		t.Errorf("Metrics bases mismatch: %+v", doc.Metrics)
	}
	if len(doc.Classifications) != 1 {
		t.Fatalf("Classifications len = %d, want 1", len(doc.Classifications))
	}
	entry := doc.Classifications[0]
	if entry.Level != "Species" || entry.TaxonID != "562" {
		t.Errorf("unexpected classification entry: %+v", entry)
	}
	if entry.SimilarityScores["Species"] != 0.91 || entry.SimilarityScores["Genus"] != 0.94 {
		t.Errorf("similarity_scores not keyed by rank name: %+v", entry.SimilarityScores)
	}
	if doc.StrainAbundances["562.1"][0] != 0.6 || doc.StrainAbundances["562.1"][1] != 0.05 {
		t.Errorf("strain_abundances mismatch: %+v", doc.StrainAbundances)
	}
}

func TestNewDocumentWithoutStrainResultHasEmptyAbundances(t *testing.T) {
	doc := NewDocument("sample2", pipeline.Summary{}, nil, nil)
	if doc.Classifications == nil || len(doc.Classifications) != 0 {
		t.Errorf("Classifications = %#v, want empty non-nil slice", doc.Classifications)
	}
	if len(doc.StrainAbundances) != 0 {
		t.Errorf("StrainAbundances = %#v, want empty", doc.StrainAbundances)
	}
}

func TestWriteProducesBitExactSchemaFile(t *testing.T) {
	dir := t.TempDir()
	doc := NewDocument("sample3", pipeline.Summary{TotalReads: 1}, nil, nil)

	path, err := Write(dir, "sample3", doc)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(dir, "sample3_results.json") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"sample_id", "metrics", "classifications", "strain_abundances", "results_file"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing schema field %q", key)
		}
	}

	var roundTripped string
	if err := json.Unmarshal(fields["results_file"], &roundTripped); err != nil {
		t.Fatalf("Unmarshal results_file: %v", err)
	}
	if roundTripped != path {
		t.Errorf("results_file = %q, want %q", roundTripped, path)
	}
}
