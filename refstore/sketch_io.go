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
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/shenwei356/metaclass"
)

// sketchMagic identifies a cached single-level sketch file on disk.
var sketchMagic = [8]byte{'.', 'm', 'c', 's', 'k', 't', 'c', 'h'}

// sketchFormatVersion is bumped whenever the on-disk layout below changes.
const sketchFormatVersion uint8 = 1

// ErrInvalidSketchFile means a cached sketch file's magic number or
// version did not match what this build writes.
var ErrInvalidSketchFile = errors.New("refstore: invalid or incompatible cached sketch file")

var be = binary.BigEndian

// SaveSketch writes one KmerSignature's (k, molecule, algorithm,
// parameter, values) to w, so a later LoadSketch call can reconstruct an
// equivalent KmerSignature without re-hashing the source genome.
//
// Layout, following the teacher's file.go/serialization.go header
// convention:
//
//	offset  bytes  field
//	0       8      magic number (".mcsktch")
//	8       1      format version
//	9       1      k
//	10      1      molecule
//	11      1      algorithm
//	12      8      parameter (num_hashes for BottomK, scale for Scaled)
//	20      8      value count
//	28+     ...     sorted hash values, delta-encoded and packed two at a
//	               time via the group-varint codec in varint.go
func SaveSketch(w io.Writer, ks *metaclass.KmerSignature) error {
	if err := binary.Write(w, be, sketchMagic); err != nil {
		return errors.Wrap(err, "refstore: writing sketch magic")
	}
	header := [4]uint8{sketchFormatVersion, uint8(ks.K()), uint8(ks.Molecule()), uint8(ks.Sketch().Algorithm())}
	if err := binary.Write(w, be, header); err != nil {
		return errors.Wrap(err, "refstore: writing sketch header")
	}

	values := ks.Sketch().Values()
	if err := binary.Write(w, be, ks.Sketch().Parameter()); err != nil {
		return errors.Wrap(err, "refstore: writing sketch parameter")
	}
	if err := binary.Write(w, be, uint64(len(values))); err != nil {
		return errors.Wrap(err, "refstore: writing sketch value count")
	}

	return writeDeltaEncoded(w, values)
}

// LoadSketch reads a file SaveSketch produced and rebuilds an equivalent
// KmerSignature.
func LoadSketch(r io.Reader) (*metaclass.KmerSignature, error) {
	var magic [8]byte
	if err := binary.Read(r, be, &magic); err != nil {
		return nil, errors.Wrap(err, "refstore: reading sketch magic")
	}
	if magic != sketchMagic {
		return nil, ErrInvalidSketchFile
	}

	var header [4]uint8
	if err := binary.Read(r, be, &header); err != nil {
		return nil, errors.Wrap(err, "refstore: reading sketch header")
	}
	if header[0] != sketchFormatVersion {
		return nil, ErrInvalidSketchFile
	}
	k := int(header[1])
	molecule := metaclass.Molecule(header[2])
	algo := metaclass.Algorithm(header[3])

	var param uint64
	if err := binary.Read(r, be, &param); err != nil {
		return nil, errors.Wrap(err, "refstore: reading sketch parameter")
	}
	var count uint64
	if err := binary.Read(r, be, &count); err != nil {
		return nil, errors.Wrap(err, "refstore: reading sketch value count")
	}

	values, err := readDeltaEncoded(r, count)
	if err != nil {
		return nil, errors.Wrap(err, "refstore: reading sketch values")
	}

	hasher, err := metaclass.NewHasher(molecule, k)
	if err != nil {
		return nil, err
	}
	ks, err := metaclass.NewKmerSignature(hasher, func() (*metaclass.Sketch, error) {
		if algo == metaclass.BottomK {
			return metaclass.NewBottomKSketch(int(param))
		}
		return metaclass.NewScaledSketch(param)
	})
	if err != nil {
		return nil, err
	}
	ks.Sketch().AddAll(values)
	return ks, nil
}

