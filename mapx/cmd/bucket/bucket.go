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

package bucket

import (
	"fmt"
	"sort"
)

// Quantum is the width of a length bucket.
// For nucleotide reads it equals the length of a codon.
const Quantum = 3

// MaxWindowLength is the maximum length (in amino acids) of a single indexed window.
const MaxWindowLength = 63

// SequenceLengthBuckets groups sequences by their lengths.
type SequenceLengthBuckets struct {
	minLength int
	counts    map[int]int
	ids       []int // sorted bucket ids
	excluded  int
}

// NewSequenceLengthBuckets creates buckets from sequence lengths.
// Sequences shorter than minLength are not assigned to any bucket.
func NewSequenceLengthBuckets(lengths []int, minLength int) *SequenceLengthBuckets {
	b := &SequenceLengthBuckets{
		minLength: minLength,
		counts:    make(map[int]int, 64),
	}

	var id int
	for _, l := range lengths {
		if l < minLength {
			b.excluded++
			continue
		}
		id = BucketOf(l)
		b.counts[id]++
	}

	b.ids = make([]int, 0, len(b.counts))
	for id = range b.counts {
		b.ids = append(b.ids, id)
	}
	sort.Ints(b.ids)

	return b
}

// BucketOf returns the bucket id of a length.
func BucketOf(length int) int {
	return (length / Quantum) * Quantum
}

// Buckets returns all bucket ids in ascending order.
func (b *SequenceLengthBuckets) Buckets() []int {
	return b.ids
}

// Count returns the number of sequences in a bucket.
func (b *SequenceLengthBuckets) Count(bucketID int) int {
	return b.counts[bucketID]
}

// Contains tells if a sequence of the given length belongs to any bucket.
func (b *SequenceLengthBuckets) Contains(length int) bool {
	return length >= b.minLength
}

// Excluded returns the number of sequences shorter than the minimum length.
func (b *SequenceLengthBuckets) Excluded() int {
	return b.excluded
}

// MinLength returns the minimum sequence length.
func (b *SequenceLengthBuckets) MinLength() int {
	return b.minLength
}

func (b *SequenceLengthBuckets) String() string {
	return fmt.Sprintf("%d buckets, %d sequences excluded (<%d)", len(b.ids), b.excluded, b.minLength)
}

// NeedsMetaChunking tells if a protein needs to be split into overlapping windows.
func NeedsMetaChunking(protLen, chunkLen int) bool {
	return protLen > chunkLen
}

// CountMetaChunks returns the number of windows of a protein.
func CountMetaChunks(protLen, chunkLen, overlap int) int {
	if protLen <= chunkLen {
		return 1
	}
	return (protLen-overlap-1)/(chunkLen-overlap) + 1
}

// Window is a half-open region [Start, End) of a protein.
type Window struct {
	Start int
	End   int
}

// Len returns the length of the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// MetaChunkWindows returns windows covering [0, protLen), starting every
// chunkLen-overlap residues. The last window is clipped to end at protLen.
func MetaChunkWindows(protLen, chunkLen, overlap int) []Window {
	if protLen <= chunkLen {
		return []Window{{0, protLen}}
	}

	n := CountMetaChunks(protLen, chunkLen, overlap)
	step := chunkLen - overlap
	windows := make([]Window, n)
	var start int
	for i := 0; i < n; i++ {
		start = i * step
		windows[i] = Window{start, min(start+chunkLen, protLen)}
	}
	return windows
}
