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

// Package strain estimates per-strain relative abundances from a sample's
// feature counts and a matrix of candidate strain signatures, via a
// random-walk Metropolis-Hastings sampler over the abundance simplex.
package strain

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// proposalWidth is the half-width δ of the symmetric per-component
// perturbation Uniform(-δ, δ) applied at each Metropolis-Hastings step.
const proposalWidth = 0.1

// Config parameterizes a Model. Signatures is F rows by S columns, row f
// column s holding strain s's weight at feature f.
type Config struct {
	Signatures [][]float64
	StrainIDs  []string
	Alpha      []float64
	Iterations int
	BurnIn     int
	Thin       int
	Seed       int64
}

// Model is an immutable, single-sample Metropolis-Hastings sampler. Each
// Model owns its own *rand.Rand; it is not safe for concurrent Run calls.
type Model struct {
	signatures [][]float64
	strainIDs  []string
	iterations int
	burnIn     int
	thin       int
	features   int
	strains    int

	rng      *rand.Rand
	proposal distuv.Uniform
}

// New validates cfg and builds a Model. Alpha is accepted for interface
// completeness (spec §9 leaves its Dirichlet prior ratio out of the
// acceptance probability) but is otherwise unused by Run.
func New(cfg Config) (*Model, error) {
	f := len(cfg.Signatures)
	if f == 0 {
		return nil, errors.Wrap(ErrInvalidModelConfig, "signature matrix has zero features")
	}
	s := len(cfg.Signatures[0])
	if s == 0 {
		return nil, errors.Wrap(ErrInvalidModelConfig, "signature matrix has zero strains")
	}
	for _, row := range cfg.Signatures {
		if len(row) != s {
			return nil, errors.Wrap(ErrInvalidModelConfig, "signature matrix rows have inconsistent width")
		}
	}
	if len(cfg.StrainIDs) != s {
		return nil, errors.Wrap(ErrInvalidModelConfig, "strain_ids length must match signature matrix column count")
	}
	if len(cfg.Alpha) != s {
		return nil, errors.Wrap(ErrInvalidModelConfig, "alpha length must match signature matrix column count")
	}
	if cfg.BurnIn >= cfg.Iterations {
		return nil, errors.Wrap(ErrInvalidModelConfig, "burn_in must be less than iterations")
	}
	if cfg.Thin <= 0 {
		cfg.Thin = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Model{
		signatures: cfg.Signatures,
		strainIDs:  cfg.StrainIDs,
		iterations: cfg.Iterations,
		burnIn:     cfg.BurnIn,
		thin:       cfg.Thin,
		features:   f,
		strains:    s,
		rng:        rng,
		proposal:   distuv.Uniform{Min: -proposalWidth, Max: proposalWidth, Src: rng},
	}, nil
}

// Result is the posterior summary Run returns, one entry per strain.
type Result struct {
	Mean                  map[string]float64
	CredibleIntervalWidth map[string]float64
	EffectiveSampleSize   int
	GoodnessOfFit         float64
}

// Run samples the posterior abundance distribution given an observed
// non-negative feature vector y, whose length must equal the signature
// matrix's feature count. y need not already sum to 1; it is normalized
// internally per spec.
func (m *Model) Run(y []float64) (*Result, error) {
	if len(y) != m.features {
		return nil, errors.Wrap(ErrFeatureDimensionMismatch, "observed feature vector length must match signature matrix feature count")
	}

	yNorm := make([]float64, len(y))
	copy(yNorm, y)
	if sum := floats.Sum(yNorm); sum > 0 {
		floats.Scale(1/sum, yNorm)
	}

	x := make([]float64, m.strains)
	for s := range x {
		x[s] = 1 / float64(m.strains)
	}
	curLogL := m.logLikelihood(yNorm, x)

	numRetained := (m.iterations - m.burnIn + m.thin - 1) / m.thin
	retained := make([][]float64, 0, numRetained)
	var retainedLogL []float64

	proposed := make([]float64, m.strains)
	for t := 1; t <= m.iterations; t++ {
		m.propose(x, proposed)
		propLogL := m.logLikelihood(yNorm, proposed)

		delta := propLogL - curLogL
		if delta >= 0 || m.rng.Float64() < math.Exp(delta) {
			copy(x, proposed)
			curLogL = propLogL
		}

		if t >= m.burnIn && (t-m.burnIn)%m.thin == 0 {
			snapshot := make([]float64, m.strains)
			copy(snapshot, x)
			retained = append(retained, snapshot)
			retainedLogL = append(retainedLogL, curLogL)
		}
	}

	return m.summarize(retained, retainedLogL), nil
}

// propose writes a renormalized perturbation of x into dst: each
// component is nudged by Uniform(-δ, δ), floored at 0, then the vector is
// rescaled to sum to 1.
func (m *Model) propose(x, dst []float64) {
	for s := range x {
		v := x[s] + m.proposal.Rand()
		if v < 0 {
			v = 0
		}
		dst[s] = v
	}
	sum := floats.Sum(dst)
	if sum == 0 {
		for s := range dst {
			dst[s] = 1 / float64(m.strains)
		}
		return
	}
	floats.Scale(1/sum, dst)
}

// logLikelihood computes Σ_f [y_f·ln(μ_f) − μ_f] over features with
// μ_f = (M·x)_f > 0, per spec §4.8's Poisson-style likelihood.
func (m *Model) logLikelihood(y, x []float64) float64 {
	logL := 0.0
	for f := 0; f < m.features; f++ {
		mu := floats.Dot(m.signatures[f], x)
		if mu <= 0 {
			continue
		}
		logL += y[f]*math.Log(mu) - mu
	}
	return logL
}

// summarize computes per-strain posterior mean and 95% credible interval
// width from the retained samples, and the advisory effective-sample-size
// and goodness-of-fit fields.
func (m *Model) summarize(retained [][]float64, retainedLogL []float64) *Result {
	res := &Result{
		Mean:                  make(map[string]float64, m.strains),
		CredibleIntervalWidth: make(map[string]float64, m.strains),
		EffectiveSampleSize:   len(retained),
	}

	if len(retained) == 0 {
		for _, id := range m.strainIDs {
			res.Mean[id] = 0
			res.CredibleIntervalWidth[id] = 0
		}
		return res
	}

	column := make([]float64, len(retained))
	for s, id := range m.strainIDs {
		for i, sample := range retained {
			column[i] = sample[s]
		}
		res.Mean[id] = stat.Mean(column, nil)

		sorted := make([]float64, len(column))
		copy(sorted, column)
		floats.Sort(sorted)
		lo := stat.Quantile(0.025, stat.Empirical, sorted, nil)
		hi := stat.Quantile(0.975, stat.Empirical, sorted, nil)
		res.CredibleIntervalWidth[id] = hi - lo
	}

	res.GoodnessOfFit = stat.Mean(retainedLogL, nil)
	return res
}
