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

import "errors"

// ErrInvalidKmerSize means k is outside [3, 63].
var ErrInvalidKmerSize = errors.New("metaclass: k-mer size must be in [3, 63]")

// ErrInvalidSketchParameters means neither num_hashes nor scaled is
// positive, or both are.
var ErrInvalidSketchParameters = errors.New("metaclass: exactly one of num-hashes or scaled must be positive")

// ErrIncompatibleSketch is returned when Jaccard is requested between
// sketches whose algorithm/parameters differ. It is non-fatal: callers
// that average across several comparisons should treat it as "no
// information" rather than aborting.
var ErrIncompatibleSketch = errors.New("metaclass: incompatible sketch parameters")

// ErrIncompatibleSignature is returned when two KmerSignatures cannot be
// compared (different k, or incompatible molecule types).
var ErrIncompatibleSignature = errors.New("metaclass: incompatible k-mer signature")

// ErrNoLevels means a MultiResolutionSignature was constructed with zero levels.
var ErrNoLevels = errors.New("metaclass: multi-resolution signature needs at least one level")

// ErrNoComparableLevels means every aligned level pair between two MRSes
// was incompatible, so no similarity could be computed at all.
var ErrNoComparableLevels = errors.New("metaclass: no comparable resolution levels")

// ErrNoReferences means a Classifier was constructed with zero references.
var ErrNoReferences = errors.New("metaclass: classifier has no reference signatures")

// ErrInsufficientCoverage means a query signature has fewer sketched
// k-mers than the classifier's configured minimum coverage.
var ErrInsufficientCoverage = errors.New("metaclass: insufficient k-mer coverage for classification")

// ErrMalformedRead means the upstream record source produced an error
// while parsing a sequence record; fatal for the current file only.
var ErrMalformedRead = errors.New("metaclass: malformed read")

// ErrOutputIO is returned when a result document cannot be written to disk.
var ErrOutputIO = errors.New("metaclass: failed to write output")

// ErrMutexPoisoned is returned when merging a shard's scratch signature
// into the shared sample signature fails while the lock guarding it is
// held; fatal, surfaced to the orchestrator.
var ErrMutexPoisoned = errors.New("metaclass: shared signature lock poisoned by a panicking worker")

// ErrStrainEstimation is non-fatal: callers should degrade to an empty
// abundance map and log the cause.
var ErrStrainEstimation = errors.New("metaclass: strain abundance estimation failed")
