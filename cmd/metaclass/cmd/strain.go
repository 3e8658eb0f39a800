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

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/classify"
	"github.com/shenwei356/metaclass/strain"
)

// estimateStrainAbundance runs the Bayesian mixture model over the
// finest-resolution k-mer presence/absence pattern shared by every
// reference in the classified species/strain-group and the query, per
// spec §4.8. It returns nil (never fatal, per spec §7's StrainEstimation
// non-fatal policy) when fewer than two sibling strains are available or
// the model otherwise cannot be built.
func estimateStrainAbundance(
	cmd *cobra.Command,
	query *metaclass.MultiResolutionSignature,
	result *classify.Classification,
	references []*metaclass.MultiResolutionSignature,
	verbose bool,
) *strain.Result {
	siblings := siblingStrains(result, references)
	if len(siblings) < 2 {
		if verbose {
			log.Infof("skipping strain mixture: only %d sibling strain(s) in reference set", len(siblings))
		}
		return nil
	}

	signatures, strainIDs, y, ok := buildStrainInputs(query, siblings)
	if !ok {
		log.Warningf("strain mixture: no distinguishing k-mers among %d siblings", len(siblings))
		return nil
	}

	model, err := strain.New(strain.Config{
		Signatures: signatures,
		StrainIDs:  strainIDs,
		Alpha:      uniformAlpha(len(strainIDs)),
		Iterations: getFlagInt(cmd, "strain-iterations"),
		BurnIn:     getFlagInt(cmd, "strain-burnin"),
		Thin:       getFlagInt(cmd, "strain-thin"),
		Seed:       mustGetInt64(cmd, "strain-seed"),
	})
	if err != nil {
		log.Warningf("strain mixture: %v", err)
		return nil
	}

	out, err := model.Run(y)
	if err != nil {
		log.Warningf("strain mixture: %v", err)
		return nil
	}
	return out
}

func mustGetInt64(cmd *cobra.Command, flag string) int64 {
	v, err := cmd.Flags().GetInt64(flag)
	checkError(err)
	return v
}

func uniformAlpha(n int) []float64 {
	alpha := make([]float64, n)
	for i := range alpha {
		alpha[i] = 1
	}
	return alpha
}

// siblingStrains returns every reference whose lineage agrees with
// result's up through Species, i.e. every strain belonging to the
// species result was classified to.
func siblingStrains(result *classify.Classification, references []*metaclass.MultiResolutionSignature) []*metaclass.MultiResolutionSignature {
	group := result.Lineage.Truncate(metaclass.Species)
	if len(group) <= int(metaclass.Species) {
		return nil
	}

	var siblings []*metaclass.MultiResolutionSignature
	for _, ref := range references {
		if lineagePrefixEqual(ref.Lineage, group) {
			siblings = append(siblings, ref)
		}
	}
	return siblings
}

func lineagePrefixEqual(lineage, prefix metaclass.Lineage) bool {
	if len(lineage) < len(prefix) {
		return false
	}
	for i, name := range prefix {
		if lineage[i] != name {
			return false
		}
	}
	return true
}

// buildStrainInputs builds a binary k-mer presence/absence feature model
// over the finest resolution level: the feature universe is every hash
// value observed in the query or any sibling's finest KmerSignature, y_f
// is 1 if the query observed feature f, and signatures[f][s] is 1 if
// sibling s observed it. Features no sibling observed contribute nothing
// to the likelihood (model.go skips mu_f <= 0), so the universe need not
// be pruned further.
func buildStrainInputs(query *metaclass.MultiResolutionSignature, siblings []*metaclass.MultiResolutionSignature) (signatures [][]float64, strainIDs []string, y []float64, ok bool) {
	queryValues := finestValues(query)
	siblingValues := make([][]uint64, len(siblings))
	universe := map[uint64]int{}
	for i, s := range siblings {
		siblingValues[i] = finestValues(s)
		for _, h := range siblingValues[i] {
			if _, seen := universe[h]; !seen {
				universe[h] = len(universe)
			}
		}
	}
	for _, h := range queryValues {
		if _, seen := universe[h]; !seen {
			universe[h] = len(universe)
		}
	}
	if len(universe) == 0 {
		return nil, nil, nil, false
	}

	y = make([]float64, len(universe))
	for _, h := range queryValues {
		y[universe[h]] = 1
	}

	signatures = make([][]float64, len(universe))
	for f := range signatures {
		signatures[f] = make([]float64, len(siblings))
	}
	strainIDs = make([]string, len(siblings))
	for i, s := range siblings {
		for _, h := range siblingValues[i] {
			signatures[universe[h]][i] = 1
		}
		strainIDs[i] = s.TaxonID
	}
	return signatures, strainIDs, y, true
}

func finestValues(m *metaclass.MultiResolutionSignature) []uint64 {
	levels := m.Levels()
	if len(levels) == 0 {
		return nil
	}
	return levels[len(levels)-1].Sketch().Values()
}
