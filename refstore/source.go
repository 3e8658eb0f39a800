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

// Package refstore loads reference genomes and an optional NCBI taxonomy
// into MultiResolutionSignatures, and adapts FASTA/FASTQ files into the
// pipeline's RecordSource interface.
package refstore

import (
	"io"

	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/shenwei356/metaclass/pipeline"
)

// FastxSource adapts a fastx.Reader to pipeline.RecordSource, the same
// way the teacher's own commands (count.go, map.go, locate.go) drive
// fastx.NewDefaultReader in a for-loop terminated by io.EOF.
type FastxSource struct {
	reader *fastx.Reader
}

// NewFastxSource opens path (transparently gzip-decompressed by the
// fastx/xopen stack) for sequential reading.
func NewFastxSource(path string) (*FastxSource, error) {
	reader, err := fastx.NewDefaultReader(path)
	if err != nil {
		return nil, err
	}
	return &FastxSource{reader: reader}, nil
}

// Next returns the next record, or io.EOF once the file is exhausted.
func (s *FastxSource) Next() (pipeline.Record, error) {
	record, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return pipeline.Record{}, io.EOF
		}
		return pipeline.Record{}, err
	}

	seq := make([]byte, len(record.Seq.Seq))
	copy(seq, record.Seq.Seq)

	var qual []byte
	if len(record.Seq.Qual) > 0 {
		qual = make([]byte, len(record.Seq.Qual))
		copy(qual, record.Seq.Qual)
	}

	return pipeline.Record{Seq: seq, Qual: qual}, nil
}
