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

// Rank is a taxonomic rank, ordered from coarsest (Domain) to finest
// (Strain). It is a dense int enum rather than a string key so that
// threshold and lineage lookups are array indexing instead of map
// lookups.
type Rank int

// The nine ranks a Lineage may address, coarsest first.
const (
	Domain Rank = iota
	Phylum
	Class
	Order
	Family
	Genus
	Species
	StrainGroup
	Strain

	numRanks
)

func (r Rank) String() string {
	switch r {
	case Domain:
		return "Domain"
	case Phylum:
		return "Phylum"
	case Class:
		return "Class"
	case Order:
		return "Order"
	case Family:
		return "Family"
	case Genus:
		return "Genus"
	case Species:
		return "Species"
	case StrainGroup:
		return "StrainGroup"
	case Strain:
		return "Strain"
	default:
		return "Unknown"
	}
}

// DefaultThresholds holds the similarity threshold below which a
// classification must fall back to a coarser rank. Index by Rank.
var DefaultThresholds = [numRanks]float64{
	Domain:      0.95,
	Phylum:      0.92,
	Class:       0.90,
	Order:       0.87,
	Family:      0.85,
	Genus:       0.80,
	Species:     0.75,
	StrainGroup: 0.70,
	Strain:      0.65,
}

// LevelRank maps a MultiResolutionSignature level index, counted from the
// finest (last) level backward, to the rank it represents: the finest
// level is Strain, the next is StrainGroup, and so on coarsening one rank
// per level until Domain, per spec §4.7 step 3. A query with fewer levels
// than ranks simply starts further down this table.
func LevelRank(levelsFromFinest int) Rank {
	r := Strain - Rank(levelsFromFinest)
	if r < Domain {
		return Domain
	}
	return r
}

// Lineage is an ordered path of taxon names from root (Domain) toward
// leaf (Strain); index i names the taxon at Rank(i). A lineage need not
// reach Strain: len(lineage) <= 9.
type Lineage []string

// Truncate returns the lineage path up to and including rank r. If the
// lineage is shorter than r+1, the full lineage is returned.
func (l Lineage) Truncate(r Rank) Lineage {
	n := int(r) + 1
	if n > len(l) {
		n = len(l)
	}
	out := make(Lineage, n)
	copy(out, l[:n])
	return out
}

// CoarsestRank returns the coarsest rank actually present in the
// lineage, i.e. Domain if the lineage is non-empty.
func (l Lineage) CoarsestRank() Rank {
	if len(l) == 0 {
		return Domain
	}
	return Domain
}

// DeepestRank returns the finest rank the lineage reaches.
func (l Lineage) DeepestRank() Rank {
	if len(l) == 0 {
		return Domain
	}
	r := Rank(len(l) - 1)
	if r > Strain {
		return Strain
	}
	return r
}

// TaxonAt returns the taxon name at rank r, or "" if the lineage does
// not reach that far.
func (l Lineage) TaxonAt(r Rank) string {
	if int(r) < 0 || int(r) >= len(l) {
		return ""
	}
	return l[r]
}
