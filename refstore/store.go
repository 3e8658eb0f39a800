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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/pipeline"
)

// ReferenceRecord is the unit produced per reference genome: the
// MultiResolutionSignature built from it, and the file it came from.
type ReferenceRecord struct {
	MRS        *metaclass.MultiResolutionSignature
	SourcePath string
}

// referenceExts lists the recognized (pre-.gz) reference file extensions.
var referenceExts = map[string]bool{
	".fasta": true,
	".fa":    true,
	".fq":    true,
	".fastq": true,
}

// Store holds one MultiResolutionSignature per reference genome found in
// a directory, the only two operations the Classifier needs: GetAll and
// Count.
type Store struct {
	records  []ReferenceRecord
	taxonomy *Taxonomy
}

// Load scans dir for reference files, builds one MultiResolutionSignature
// per file using cfg's k-ladder/molecule/sketch parameters (cfg.SampleID
// is ignored and overwritten per file with the derived taxon id), and
// returns the populated Store. If taxonomyPaths names a (nodes.dmp,
// names.dmp) pair, each reference's taxon id and Lineage are derived by
// looking up its basename in the taxonomy; otherwise the basename itself
// is used as the taxon id with no lineage.
//
// If cfg.CacheDir is non-empty, a per-level SaveSketch/LoadSketch cache
// under that directory lets a second Load over the same reference
// directory skip re-hashing genomes entirely.
func Load(cfg pipeline.Config, dir string, taxonomyPaths ...string) (*Store, error) {
	var tax *Taxonomy
	if len(taxonomyPaths) == 2 {
		var err error
		tax, err = LoadTaxonomy(taxonomyPaths[0], taxonomyPaths[1])
		if err != nil {
			return nil, errors.Wrap(err, "refstore: loading taxonomy")
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "refstore: reading reference directory")
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isReferenceFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	store := &Store{taxonomy: tax, records: make([]ReferenceRecord, 0, len(names))}
	for _, name := range names {
		path := filepath.Join(dir, name)
		base := referenceBasename(name)
		taxonID, lineage := store.identify(base)

		mrs, err := store.buildMRS(cfg, path, taxonID, lineage)
		if err != nil {
			return nil, errors.Wrapf(err, "refstore: loading reference %s", path)
		}
		store.records = append(store.records, ReferenceRecord{MRS: mrs, SourcePath: path})
	}
	return store, nil
}

// GetAll returns every reference's MultiResolutionSignature. This, with
// Count, is the entire surface the core classifier calls.
func (s *Store) GetAll() []*metaclass.MultiResolutionSignature {
	out := make([]*metaclass.MultiResolutionSignature, len(s.records))
	for i, r := range s.records {
		out[i] = r.MRS
	}
	return out
}

// Count reports how many reference genomes were loaded.
func (s *Store) Count() int { return len(s.records) }

// Records exposes the (MRS, SourcePath) pairs for callers that need the
// provenance GetAll discards, such as a future re-cache pass.
func (s *Store) Records() []ReferenceRecord { return s.records }

func (s *Store) identify(base string) (taxonID string, lineage metaclass.Lineage) {
	if s.taxonomy != nil {
		if taxid, ok := s.taxonomy.TaxidByName(base); ok {
			return strconv.FormatUint(uint64(taxid), 10), s.taxonomy.Lineage(taxid)
		}
	}
	return base, nil
}

// buildMRS loads path's cached sketches if cfg.CacheDir has a complete
// set for every configured k, otherwise streams path through a Pipeline
// and, if caching is enabled, writes the freshly built levels back out.
func (s *Store) buildMRS(cfg pipeline.Config, path, taxonID string, lineage metaclass.Lineage) (*metaclass.MultiResolutionSignature, error) {
	if cfg.CacheDir != "" {
		if mrs, ok, err := loadCachedMRS(cfg, path, taxonID, lineage); err != nil {
			return nil, err
		} else if ok {
			return mrs, nil
		}
	}

	runCfg := cfg
	runCfg.SampleID = taxonID
	p, err := pipeline.New(runCfg)
	if err != nil {
		return nil, err
	}
	source, err := NewFastxSource(path)
	if err != nil {
		return nil, err
	}
	mrs, _, err := p.Run(source)
	if err != nil {
		return nil, err
	}
	mrs.Lineage = lineage

	if cfg.CacheDir != "" {
		if err := saveCachedMRS(cfg, path, mrs); err != nil {
			return nil, err
		}
	}
	return mrs, nil
}

func isReferenceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".gz" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	return referenceExts[ext]
}

// referenceBasename strips a trailing .gz and the reference extension,
// leaving the bare genome/strain name a taxonomy lookup keys on.
func referenceBasename(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		name = name[:len(name)-3]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
