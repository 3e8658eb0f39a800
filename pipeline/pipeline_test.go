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

package pipeline

import (
	"io"
	"math/rand"
	"testing"

	"github.com/shenwei356/metaclass"
)

type sliceSource struct {
	records []Record
	i       int
}

func (s *sliceSource) Next() (Record, error) {
	if s.i >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.i]
	s.i++
	return r, nil
}

func randomDNARead(n int, r *rand.Rand) []byte {
	bases := []byte{'A', 'C', 'G', 'T'}
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func testConfig() Config {
	return Config{
		SampleID:  "sample-1",
		QC:        metaclass.QCParams{MinLength: 20, MaxNPercent: 10, MinAvgQuality: 0, TrimQuality: 0},
		Ks:        []int{15, 21, 31},
		Molecule:  metaclass.DNA,
		Sketch:    SketchParams{Algorithm: metaclass.BottomK, NumHashes: 200},
		Workers:   4,
		ChunkSize: 16,
	}
}

func TestPipelineRunAggregatesAcrossChunks(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	var records []Record
	for i := 0; i < 100; i++ {
		records = append(records, Record{Seq: randomDNARead(150, r)})
	}

	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	mrs, summary, err := p.Run(&sliceSource{records: records})
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if summary.TotalReads != 100 {
		t.Fatalf("expected 100 total reads, got %d", summary.TotalReads)
	}
	if summary.PassedReads != 100 {
		t.Fatalf("expected all reads to pass QC, got %d", summary.PassedReads)
	}
	if summary.PassedBases != 100*150 {
		t.Fatalf("expected %d passed bases, got %d", 100*150, summary.PassedBases)
	}
	if mrs.TotalSketchedKmers() == 0 {
		t.Fatal("expected sample signature to have sketched k-mers")
	}
}

func TestPipelineRunDropsFailingQC(t *testing.T) {
	records := []Record{
		{Seq: []byte("ACGT")}, // too short, below min_length 20
		{Seq: []byte("ACGTACGTACGTACGTACGTACGT")},
	}
	p, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	_, summary, err := p.Run(&sliceSource{records: records})
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if summary.TotalReads != 2 || summary.PassedReads != 1 {
		t.Fatalf("expected 2 total / 1 passed, got %d/%d", summary.TotalReads, summary.PassedReads)
	}
}

func TestPipelineRunEquivalentRegardlessOfChunkSize(t *testing.T) {
	r := rand.New(rand.NewSource(22))
	var records []Record
	for i := 0; i < 40; i++ {
		records = append(records, Record{Seq: randomDNARead(200, r)})
	}

	cfgSmall := testConfig()
	cfgSmall.ChunkSize = 3
	cfgSmall.Workers = 2
	pSmall, _ := New(cfgSmall)
	mrsSmall, _, err := pSmall.Run(&sliceSource{records: records})
	if err != nil {
		t.Fatalf("Run (small chunks): %s", err)
	}

	cfgBig := testConfig()
	cfgBig.ChunkSize = 1000
	cfgBig.Workers = 8
	pBig, _ := New(cfgBig)
	mrsBig, _, err := pBig.Run(&sliceSource{records: records})
	if err != nil {
		t.Fatalf("Run (one chunk): %s", err)
	}

	sim, err := mrsSmall.Similarity(mrsBig, nil)
	if err != nil {
		t.Fatalf("Similarity: %s", err)
	}
	if sim != 1 {
		t.Fatalf("expected identical signatures regardless of chunking, got similarity %v", sim)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 0
	if _, err := New(cfg); err != ErrInvalidConfig {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
