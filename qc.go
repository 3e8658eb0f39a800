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

// QCParams configures the read quality filter.
type QCParams struct {
	MinLength     int     // discard reads shorter than this, after trimming
	MaxNPercent   float64 // discard reads with more than this percent N/n bases
	MinAvgQuality float64 // discard reads with mean Phred quality below this
	TrimQuality   float64 // trim leading/trailing bases below this Phred quality
}

// FilterRead applies the QC rules to a single read, returning the
// (possibly trimmed) sequence to keep and ok=true, or ok=false if the
// read should be discarded. FilterRead is pure and holds no state, so a
// single QCParams value may be shared and called concurrently by every
// pipeline worker.
func FilterRead(seq []byte, qual []byte, p QCParams) ([]byte, bool) {
	if len(seq) < p.MinLength {
		return nil, false
	}

	if p.MaxNPercent < 100 {
		n := countN(seq)
		nPercent := 100 * float64(n) / float64(len(seq))
		if nPercent > p.MaxNPercent {
			return nil, false
		}
	}

	if qual == nil {
		return seq, true
	}
	if len(qual) != len(seq) {
		return nil, false
	}

	if meanQuality(qual) < p.MinAvgQuality {
		return nil, false
	}

	i := -1
	for idx, q := range qual {
		if float64(q)-33 >= p.TrimQuality {
			i = idx
			break
		}
	}
	if i < 0 {
		return nil, false
	}

	j := -1
	for idx := len(qual) - 1; idx >= 0; idx-- {
		if float64(qual[idx])-33 >= p.TrimQuality {
			j = idx
			break
		}
	}
	if j < i {
		return nil, false
	}

	if j-i+1 < p.MinLength {
		return nil, false
	}

	return seq[i : j+1], true
}

func countN(seq []byte) int {
	n := 0
	for _, b := range seq {
		if b == 'N' || b == 'n' {
			n++
		}
	}
	return n
}

func meanQuality(qual []byte) float64 {
	var sum float64
	for _, q := range qual {
		sum += float64(q) - 33
	}
	return sum / float64(len(qual))
}
