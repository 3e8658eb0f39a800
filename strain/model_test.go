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

package strain

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func threeStrainConfig() Config {
	// Three strains with disjoint features: strain-a owns features 0-1,
	// strain-b owns features 2-3, strain-c owns feature 4.
	signatures := [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	return Config{
		Signatures: signatures,
		StrainIDs:  []string{"strain-a", "strain-b", "strain-c"},
		Alpha:      []float64{1, 1, 1},
		Iterations: 8000,
		BurnIn:     2000,
		Thin:       2,
		Seed:       42,
	}
}

func TestNewRejectsMismatchedStrainIDs(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.StrainIDs = []string{"only-one"}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for mismatched strain_ids length")
	}
}

func TestNewRejectsBurnInNotLessThanIterations(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.BurnIn = cfg.Iterations
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error when burn_in >= iterations")
	}
}

func TestNewRejectsRaggedSignatureMatrix(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.Signatures[1] = []float64{1, 0}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for ragged signature matrix")
	}
}

func TestRunRejectsFeatureDimensionMismatch(t *testing.T) {
	m, err := New(threeStrainConfig())
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if _, err := m.Run([]float64{1, 2, 3}); errors.Cause(err) != ErrFeatureDimensionMismatch {
		t.Fatalf("expected ErrFeatureDimensionMismatch, got %v", err)
	}
}

func TestRunRecoversKnownMixture(t *testing.T) {
	cfg := threeStrainConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	// True abundances (0.6, 0.3, 0.1); strain-a's and strain-b's two owned
	// features each split that strain's abundance evenly, strain-c's single
	// feature carries all of its abundance, scaled to a large count per spec's
	// strain-estimator-recovery test sketch.
	const totalCount = 100000.0
	y := []float64{
		0.3 * totalCount, 0.3 * totalCount,
		0.15 * totalCount, 0.15 * totalCount,
		0.1 * totalCount,
	}

	result, err := m.Run(y)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}

	want := map[string]float64{"strain-a": 0.6, "strain-b": 0.3, "strain-c": 0.1}
	for id, w := range want {
		got := result.Mean[id]
		if math.Abs(got-w) > 0.05 {
			t.Errorf("strain %s: want mean within 0.05 of %v, got %v", id, w, got)
		}
	}

	if result.EffectiveSampleSize == 0 {
		t.Fatal("expected a non-zero number of retained samples")
	}
	sum := 0.0
	for _, v := range result.Mean {
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("expected posterior means to sum to ~1, got %v", sum)
	}
}

func TestProposeStaysOnSimplex(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.Iterations = 500
	cfg.BurnIn = 0
	cfg.Thin = 1
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %s", err)
	}

	x := make([]float64, m.strains)
	for s := range x {
		x[s] = 1 / float64(m.strains)
	}
	proposed := make([]float64, m.strains)
	for i := 0; i < 1000; i++ {
		m.propose(x, proposed)
		sum := 0.0
		for _, v := range proposed {
			if v < -1e-9 {
				t.Fatalf("simplex component went negative: %v", v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("expected proposed vector to sum to 1 within 1e-9, got %v", sum)
		}
		copy(x, proposed)
	}
}

// TestRunRetainsBurnInBoundaryInclusive guards spec step 3's "retain x^t
// for t >= B": with Iterations=10, BurnIn=4, Thin=2, the retained steps
// are t=4,6,8,10 (4 samples). An exclusive t>B off-by-one would drop
// t=4 and retain only 3.
func TestRunRetainsBurnInBoundaryInclusive(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.Iterations = 10
	cfg.BurnIn = 4
	cfg.Thin = 2
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	y := []float64{10, 10, 5, 5, 1}
	result, err := m.Run(y)
	if err != nil {
		t.Fatalf("Run: %s", err)
	}
	if result.EffectiveSampleSize != 4 {
		t.Fatalf("expected 4 retained samples (t=4,6,8,10), got %d", result.EffectiveSampleSize)
	}
}

func TestRunZeroObservationDegradesGracefully(t *testing.T) {
	cfg := threeStrainConfig()
	cfg.Iterations = 200
	cfg.BurnIn = 50
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	y := make([]float64, 5)
	if _, err := m.Run(y); err != nil {
		t.Fatalf("Run with all-zero observation: %s", err)
	}
}
