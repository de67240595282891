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

// TopEqualProteinImplementation keeps results sharing the best score of each read.
// It stores at most n of them, but counts all, so a read with more than n
// equally best results reports nothing.
type TopEqualProteinImplementation struct {
	n     int
	locks *StripedLocks

	results []*ProteinAlignmentResult // [readId*n, readId*n+n)
	sizes   []uint8
	best    []int32
	counts  []int32
}

// NewTopEqualProteinImplementation creates a table of capacity n for numReads reads.
func NewTopEqualProteinImplementation(numReads, n int, locks *StripedLocks) *TopEqualProteinImplementation {
	return &TopEqualProteinImplementation{
		n:     n,
		locks: locks,

		results: make([]*ProteinAlignmentResult, numReads*n),
		sizes:   make([]uint8, numReads),
		best:    make([]int32, numReads),
		counts:  make([]int32, numReads),
	}
}

// NumReads returns the number of reads.
func (t *TopEqualProteinImplementation) NumReads() int {
	return len(t.sizes)
}

// Insert adds a result. A better score resets the table of the read.
func (t *TopEqualProteinImplementation) Insert(r *ProteinAlignmentResult) bool {
	id := r.readID
	s := int32(r.score)

	t.locks.Lock(id)
	defer t.locks.Unlock(id)

	base := id * t.n

	if t.counts[id] == 0 || s < t.best[id] {
		slots := t.results[base : base+int(t.sizes[id])]
		for i := range slots {
			slots[i] = nil
		}
		t.results[base] = r
		t.sizes[id] = 1
		t.best[id] = s
		t.counts[id] = 1
		return true
	}

	if s > t.best[id] {
		return false
	}

	size := int(t.sizes[id])
	for _, stored := range t.results[base : base+size] {
		if stored.SameKey(r) {
			return false
		}
	}

	t.counts[id]++
	if size < t.n {
		t.results[base+size] = r
		t.sizes[id]++
		return true
	}
	return false
}

// Drain returns all stored results of a read, unless more than n results
// with the best score were seen.
func (t *TopEqualProteinImplementation) Drain(readID int, buf []*ProteinAlignmentResult) ([]*ProteinAlignmentResult, bool) {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)

	if int(t.counts[readID]) > t.n {
		return buf, true
	}

	base := readID * t.n
	return append(buf, t.results[base:base+int(t.sizes[readID])]...), false
}

// Count returns the number of results with the best score of a read.
func (t *TopEqualProteinImplementation) Count(readID int) int {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)
	return int(t.counts[readID])
}

// Best returns the best score of a read.
func (t *TopEqualProteinImplementation) Best(readID int) int {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)
	return int(t.best[readID])
}
