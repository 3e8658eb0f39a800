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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/pipeline"
)

// cachePath returns where buildMRS expects to find/write the cached
// sketch for one (reference file, k) pair.
func cachePath(cacheDir, sourcePath string, k int) string {
	base := referenceBasename(filepath.Base(sourcePath))
	return filepath.Join(cacheDir, fmt.Sprintf("%s.k%d.mcsktch", base, k))
}

// loadCachedMRS attempts to rebuild path's MultiResolutionSignature
// entirely from cached per-level sketch files. ok is false (with a nil
// error) on any cache miss or mismatch, which the caller treats as "fall
// through to hashing the genome".
func loadCachedMRS(cfg pipeline.Config, path, taxonID string, lineage metaclass.Lineage) (*metaclass.MultiResolutionSignature, bool, error) {
	levels := make([]*metaclass.KmerSignature, 0, len(cfg.Ks))
	for _, k := range cfg.Ks {
		f, err := os.Open(cachePath(cfg.CacheDir, path, k))
		if err != nil {
			return nil, false, nil
		}
		ks, err := LoadSketch(f)
		closeErr := f.Close()
		if err != nil {
			return nil, false, nil
		}
		if closeErr != nil {
			return nil, false, errors.Wrap(closeErr, "refstore: closing cached sketch")
		}
		if ks.K() != k || ks.Molecule() != cfg.Molecule || ks.Sketch().Algorithm() != cfg.Sketch.Algorithm {
			return nil, false, nil
		}
		wantParam := cfg.Sketch.Scale
		if cfg.Sketch.Algorithm == metaclass.BottomK {
			wantParam = uint64(cfg.Sketch.NumHashes)
		}
		if ks.Sketch().Parameter() != wantParam {
			return nil, false, nil
		}
		levels = append(levels, ks)
	}

	mrs, err := metaclass.NewMultiResolutionSignature(taxonID, lineage, levels)
	if err != nil {
		return nil, false, err
	}
	return mrs, true, nil
}

// saveCachedMRS writes every level of mrs to cfg.CacheDir, creating it if
// necessary, so a later Load over the same directory can use
// loadCachedMRS instead of re-hashing path.
func saveCachedMRS(cfg pipeline.Config, path string, mrs *metaclass.MultiResolutionSignature) error {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return errors.Wrap(err, "refstore: creating sketch cache directory")
	}
	for i, k := range cfg.Ks {
		f, err := os.Create(cachePath(cfg.CacheDir, path, k))
		if err != nil {
			return errors.Wrap(err, "refstore: creating cached sketch file")
		}
		err = SaveSketch(f, mrs.Levels()[i])
		closeErr := f.Close()
		if err != nil {
			return errors.Wrap(err, "refstore: writing cached sketch")
		}
		if closeErr != nil {
			return errors.Wrap(closeErr, "refstore: closing cached sketch file")
		}
	}
	return nil
}
