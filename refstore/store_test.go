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

package refstore

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/pipeline"
)

func writeFasta(t *testing.T, dir, name string, seqs [][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	for i, seq := range seqs {
		if _, err := f.WriteString(">rec" + string(rune('0'+i)) + "\n" + string(seq) + "\n"); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return path
}

func randomDNA(rng *rand.Rand, n int) []byte {
	const bases = "ACGT"
	out := make([]byte, n)
	for i := range out {
		out[i] = bases[rng.Intn(4)]
	}
	return out
}

func testPipelineConfig() pipeline.Config {
	return pipeline.Config{
		QC:        metaclass.QCParams{MinLength: 1, MinAvgQuality: 0},
		Ks:        []int{15, 21},
		Molecule:  metaclass.DNA,
		Sketch:    pipeline.SketchParams{Algorithm: metaclass.BottomK, NumHashes: 500},
		Workers:   2,
		ChunkSize: 8,
	}
}

func TestLoadBuildsOneMRSPerReferenceFile(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))
	writeFasta(t, dir, "alpha.fasta", [][]byte{randomDNA(rng, 2000)})
	writeFasta(t, dir, "notes.txt", [][]byte{randomDNA(rng, 2000)})

	store, err := Load(testPipelineConfig(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if store.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (notes.txt must be skipped)", store.Count())
	}
	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() returned %d signatures, want 1", len(all))
	}
	if all[0].TaxonID != "alpha" {
		t.Errorf("TaxonID = %q, want %q", all[0].TaxonID, "alpha")
	}
}

func TestLoadUsesBasenameWithoutTaxonomy(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	writeFasta(t, dir, "Escherichia_coli.fasta", [][]byte{randomDNA(rng, 1500)})

	store, err := Load(testPipelineConfig(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	all := store.GetAll()
	if len(all) != 1 || all[0].TaxonID != "Escherichia_coli" {
		t.Fatalf("unexpected records: %+v", all)
	}
	if all[0].Lineage != nil {
		t.Errorf("Lineage = %v, want nil without a taxonomy", all[0].Lineage)
	}
}

func TestLoadCachesSketchesAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	rng := rand.New(rand.NewSource(3))
	writeFasta(t, dir, "gamma.fasta", [][]byte{randomDNA(rng, 3000)})

	cfg := testPipelineConfig()
	cfg.CacheDir = cacheDir

	first, err := Load(cfg, dir)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	for _, k := range cfg.Ks {
		if _, err := os.Stat(cachePath(cacheDir, filepath.Join(dir, "gamma.fasta"), k)); err != nil {
			t.Errorf("expected cache file for k=%d: %v", k, err)
		}
	}

	// Second load must reconstruct an equivalent signature purely from
	// cache; corrupt the source file so re-hashing would fail if it were
	// attempted, proving the cache path was actually taken.
	if err := os.Truncate(filepath.Join(dir, "gamma.fasta"), 0); err != nil {
		t.Fatalf("truncate source: %v", err)
	}

	second, err := Load(cfg, dir)
	if err != nil {
		t.Fatalf("second Load (should use cache, not the truncated source): %v", err)
	}
	if second.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", second.Count())
	}

	j, err := first.GetAll()[0].Similarity(second.GetAll()[0], nil)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if j < 0.999 {
		t.Errorf("cached signature diverged from original: similarity = %v", j)
	}
}
