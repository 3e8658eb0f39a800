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
	"io"

	"github.com/pkg/errors"
)

// offsets lists big-endian byte shifts, most significant first, used to
// pack a uint64 into its minimal byte length.
var offsets = []uint8{56, 48, 40, 32, 24, 16, 8, 0}

// putUint64Pair group-varint-encodes two uint64s into 2-16 bytes,
// returning the control byte (two 3-bit byte-length fields) and the
// number of bytes written to buf.
func putUint64Pair(buf []byte, v1, v2 uint64) (ctrl byte, n int) {
	blen := byteLength(v1)
	ctrl |= byte(blen - 1)
	for _, offset := range offsets[8-blen:] {
		buf[n] = byte((v1 >> offset) & 0xff)
		n++
	}

	ctrl <<= 3
	blen = byteLength(v2)
	ctrl |= byte(blen - 1)
	for _, offset := range offsets[8-blen:] {
		buf[n] = byte((v2 >> offset) & 0xff)
		n++
	}
	return
}

// uint64Pair decodes two uint64s packed by putUint64Pair given their
// control byte, returning the bytes consumed from buf.
func uint64Pair(ctrl byte, buf []byte) (values [2]uint64, n int) {
	blens := ctrlByteToByteLengths[ctrl]
	for i := 0; i < 2; i++ {
		for j := uint8(0); j < blens[i]; j++ {
			values[i] <<= 8
			values[i] |= uint64(buf[n])
			n++
		}
	}
	return values, n
}

func byteLength(n uint64) uint8 {
	switch {
	case n < 1<<8:
		return 1
	case n < 1<<16:
		return 2
	case n < 1<<24:
		return 3
	case n < 1<<32:
		return 4
	case n < 1<<40:
		return 5
	case n < 1<<48:
		return 6
	case n < 1<<56:
		return 7
	default:
		return 8
	}
}

// ctrlByteToByteLengths is precomputed so decoding never recomputes
// byteLength's branch chain; index is the 6-bit control byte, value is
// the byte length of each of the pair's two values.
var ctrlByteToByteLengths = func() [64][2]uint8 {
	var table [64][2]uint8
	for a := uint8(0); a < 8; a++ {
		for b := uint8(0); b < 8; b++ {
			table[a<<3|b] = [2]uint8{a + 1, b + 1}
		}
	}
	return table
}()

// writeDeltaEncoded writes ascending, deduplicated values as successive
// deltas (always > 0 after the first value, which is delta-from-zero),
// packed two at a time with the group-varint codec above.
func writeDeltaEncoded(w io.Writer, values []uint64) error {
	buf := make([]byte, 17) // 1 control byte + up to 16 value bytes
	var prev uint64
	for i := 0; i < len(values); i += 2 {
		d1 := values[i] - prev
		prev = values[i]
		var d2 uint64
		if i+1 < len(values) {
			d2 = values[i+1] - prev
			prev = values[i+1]
		}
		ctrl, n := putUint64Pair(buf[1:], d1, d2)
		buf[0] = ctrl
		if _, err := w.Write(buf[:n+1]); err != nil {
			return errors.Wrap(err, "refstore: writing delta-encoded values")
		}
	}
	return nil
}

// readDeltaEncoded reads count values written by writeDeltaEncoded.
func readDeltaEncoded(r io.Reader, count uint64) ([]uint64, error) {
	out := make([]uint64, 0, count)
	buf := make([]byte, 16)
	var ctrlBuf [1]byte
	var prev uint64
	for uint64(len(out)) < count {
		if _, err := io.ReadFull(r, ctrlBuf[:]); err != nil {
			return nil, errors.Wrap(err, "refstore: reading control byte")
		}
		blens := ctrlByteToByteLengths[ctrlBuf[0]]
		total := int(blens[0] + blens[1])
		if _, err := io.ReadFull(r, buf[:total]); err != nil {
			return nil, errors.Wrap(err, "refstore: reading packed values")
		}
		pair, _ := uint64Pair(ctrlBuf[0], buf[:total])

		prev += pair[0]
		out = append(out, prev)
		if uint64(len(out)) < count {
			prev += pair[1]
			out = append(out, prev)
		}
	}
	return out, nil
}
