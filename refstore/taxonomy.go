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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"

	"github.com/shenwei356/metaclass"
)

// rankToLevel maps the NCBI nodes.dmp rank strings this loader recognizes
// onto the nine ranks a Lineage may address. Ranks not in this table
// (e.g. "no rank", "subfamily") are skipped when walking a lineage,
// except the queried leaf itself, which is always reported as Strain.
var rankToLevel = map[string]metaclass.Rank{
	"superkingdom": metaclass.Domain,
	"domain":       metaclass.Domain,
	"phylum":       metaclass.Phylum,
	"class":        metaclass.Class,
	"order":        metaclass.Order,
	"family":       metaclass.Family,
	"genus":        metaclass.Genus,
	"species":      metaclass.Species,
	"strain":       metaclass.StrainGroup,
}

type taxNode struct {
	parent uint32
	rank   string
}

// Taxonomy holds an NCBI-style nodes.dmp/names.dmp pair, used to derive a
// reference genome's full Lineage from its leaf taxid.
type Taxonomy struct {
	nodes map[uint32]taxNode
	names map[uint32]string
	root  uint32
}

// LoadTaxonomy parses nodes.dmp (tax_id | parent tax_id | rank | ...) and
// names.dmp (tax_id | name txt | unique name | name class | ...),
// following ftp://ftp.ncbi.nih.gov/pub/taxonomy/taxdump.tar.gz's layout.
// Only "scientific name" entries are kept from names.dmp.
func LoadTaxonomy(nodesPath, namesPath string) (*Taxonomy, error) {
	nodes := make(map[uint32]taxNode, 1024)
	var root uint32

	type nodeRow struct {
		Taxid  uint32
		Parent uint32
		Rank   string
	}
	nodeParse := func(line string) (interface{}, bool, error) {
		items := strings.Split(line, "\t|\t")
		if len(items) < 3 {
			return nil, false, nil
		}
		taxid, err := strconv.Atoi(strings.TrimSpace(items[0]))
		if err != nil {
			return nil, false, err
		}
		parent, err := strconv.Atoi(strings.TrimSpace(items[1]))
		if err != nil {
			return nil, false, err
		}
		return nodeRow{Taxid: uint32(taxid), Parent: uint32(parent), Rank: strings.TrimSpace(items[2])}, true, nil
	}
	nodeReader, err := breader.NewBufferedReader(nodesPath, 8, 100, nodeParse)
	if err != nil {
		return nil, errors.Wrap(err, "refstore: reading nodes.dmp")
	}
	for chunk := range nodeReader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "refstore: parsing nodes.dmp")
		}
		for _, data := range chunk.Data {
			row := data.(nodeRow)
			nodes[row.Taxid] = taxNode{parent: row.Parent, rank: row.Rank}
			if row.Taxid == row.Parent {
				root = row.Taxid
			}
		}
	}

	names := make(map[uint32]string, 1024)
	type nameRow struct {
		Taxid uint32
		Name  string
	}
	nameParse := func(line string) (interface{}, bool, error) {
		items := strings.Split(line, "\t|\t")
		if len(items) < 4 {
			return nil, false, nil
		}
		if !strings.HasPrefix(strings.TrimSpace(items[3]), "scientific name") {
			return nil, false, nil
		}
		taxid, err := strconv.Atoi(strings.TrimSpace(items[0]))
		if err != nil {
			return nil, false, err
		}
		return nameRow{Taxid: uint32(taxid), Name: strings.TrimSpace(items[1])}, true, nil
	}
	nameReader, err := breader.NewBufferedReader(namesPath, 8, 100, nameParse)
	if err != nil {
		return nil, errors.Wrap(err, "refstore: reading names.dmp")
	}
	for chunk := range nameReader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "refstore: parsing names.dmp")
		}
		for _, data := range chunk.Data {
			row := data.(nameRow)
			names[row.Taxid] = row.Name
		}
	}

	return &Taxonomy{nodes: nodes, names: names, root: root}, nil
}

// Lineage walks leaf up to the taxonomy root, returning a root-to-leaf
// Lineage with one entry per recognized rank in rankToLevel, plus the
// leaf itself reported at Strain regardless of its own nodes.dmp rank
// (reference genomes are leaves of the taxonomy, below the lowest rank
// NCBI itself names).
func (t *Taxonomy) Lineage(leaf uint32) metaclass.Lineage {
	var lineage [9]string
	var has [9]bool

	leafName, ok := t.names[leaf]
	if ok {
		lineage[metaclass.Strain] = leafName
		has[metaclass.Strain] = true
	}

	taxid := leaf
	for {
		node, ok := t.nodes[taxid]
		if !ok {
			break
		}
		if rank, ok := rankToLevel[node.rank]; ok && taxid != leaf {
			if name, ok := t.names[taxid]; ok {
				lineage[rank] = name
				has[rank] = true
			}
		}
		if node.parent == taxid {
			break
		}
		taxid = node.parent
	}

	deepest := -1
	for r := 0; r < 9; r++ {
		if has[r] {
			deepest = r
		}
	}
	if deepest < 0 {
		return nil
	}
	out := make(metaclass.Lineage, deepest+1)
	for r := 0; r <= deepest; r++ {
		out[r] = lineage[r]
	}
	return out
}

// TaxidByName returns the taxid whose scientific name matches name
// exactly, and whether one was found. Reference files name their leaf
// taxon in the filename by convention (see Load), so this is a linear
// scan rather than a maintained reverse index.
func (t *Taxonomy) TaxidByName(name string) (uint32, bool) {
	for taxid, n := range t.names {
		if n == name {
			return taxid, true
		}
	}
	return 0, false
}
