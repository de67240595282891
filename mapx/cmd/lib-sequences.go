// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
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
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// SequenceStore holds sequences in memory, the index of a sequence is its id.
type SequenceStore struct {
	Names []string
	Seqs  [][]byte

	totalLength int64
	maxLength   int
}

// NewSequenceStore creates an empty SequenceStore.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{
		Names: make([]string, 0, 1024),
		Seqs:  make([][]byte, 0, 1024),
	}
}

// Add appends a sequence, the sequence is upper-cased and copied.
func (s *SequenceStore) Add(name string, sequence []byte) int {
	s.Names = append(s.Names, name)
	s.Seqs = append(s.Seqs, bytes.ToUpper(sequence))
	s.totalLength += int64(len(sequence))
	if len(sequence) > s.maxLength {
		s.maxLength = len(sequence)
	}
	return len(s.Seqs) - 1
}

// LoadSequences reads all sequences in (gzipped) FASTA/Q files.
func LoadSequences(files []string) (*SequenceStore, error) {
	s := NewSequenceStore()
	for _, file := range files {
		if err := s.ReadFile(file); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ReadFile reads all sequences of a file, "-" for stdin.
func (s *SequenceStore) ReadFile(file string) error {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return errors.Wrapf(err, "failed to read sequence file: %s", file)
	}
	defer fastxReader.Close()

	var record *fastx.Record
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrapf(err, "failed to parse sequence file: %s", file)
		}
		s.Add(string(record.ID), record.Seq.Seq)
	}
	return nil
}

// Len returns the number of sequences.
func (s *SequenceStore) Len() int {
	return len(s.Seqs)
}

// Seq returns a sequence by id.
func (s *SequenceStore) Seq(id int) []byte {
	return s.Seqs[id]
}

// Name returns the name of a sequence.
func (s *SequenceStore) Name(id int) string {
	return s.Names[id]
}

// Length returns the length of a sequence.
func (s *SequenceStore) Length(id int) int {
	return len(s.Seqs[id])
}

// Lengths returns lengths of all sequences.
func (s *SequenceStore) Lengths() []int {
	lens := make([]int, len(s.Seqs))
	for i, seq := range s.Seqs {
		lens[i] = len(seq)
	}
	return lens
}

// TotalLength returns the sum of lengths of all sequences.
func (s *SequenceStore) TotalLength() int64 {
	return s.totalLength
}

// MaxLength returns the length of the longest sequence.
func (s *SequenceStore) MaxLength() int {
	return s.maxLength
}

// splitRegions splits sequences into at most n contiguous regions of similar
// total lengths. A region is [begin, end) of sequence ids.
func splitRegions(lengths []int, n int) [][2]int {
	if len(lengths) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(lengths) {
		n = len(lengths)
	}

	var total int64
	for _, l := range lengths {
		total += int64(l)
	}
	target := total / int64(n)
	if target < 1 {
		target = 1
	}

	regions := make([][2]int, 0, n)
	var sum int64
	begin := 0
	for i, l := range lengths {
		sum += int64(l)
		// leave at least one sequence for each of the remaining regions
		if len(regions) < n-1 && sum >= target*int64(len(regions)+1) && len(lengths)-(i+1) >= n-1-len(regions) {
			regions = append(regions, [2]int{begin, i + 1})
			begin = i + 1
		}
	}
	if begin < len(lengths) {
		regions = append(regions, [2]int{begin, len(lengths)})
	}
	return regions
}
