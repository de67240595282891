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

// rankingTable is a concurrent per-read table of alignment results.
type rankingTable interface {
	// Insert adds a result and tells if it is stored.
	Insert(r *ProteinAlignmentResult) bool

	// Drain appends results of a read to be reported to buf.
	// exceeded is true when the read has hits but none is reported.
	Drain(readID int, buf []*ProteinAlignmentResult) (rs []*ProteinAlignmentResult, exceeded bool)

	// NumReads returns the number of reads.
	NumReads() int
}

// TopNProteinImplementation keeps the N best results of each read, sorted by score.
//
// Besides stored results, the table tracks the score at the boundary (edgeScore)
// and how many results seen have this score (edgeScoreCount), including those
// not stored because the table was full.
type TopNProteinImplementation struct {
	n     int
	locks *StripedLocks

	results         []*ProteinAlignmentResult // [readId*n, readId*n+n)
	sizes           []uint8
	edgeScores      []int32
	edgeScoreCounts []int32
	counts          []int32
}

// NewTopNProteinImplementation creates a table of capacity n for numReads reads.
func NewTopNProteinImplementation(numReads, n int, locks *StripedLocks) *TopNProteinImplementation {
	return &TopNProteinImplementation{
		n:     n,
		locks: locks,

		results:         make([]*ProteinAlignmentResult, numReads*n),
		sizes:           make([]uint8, numReads),
		edgeScores:      make([]int32, numReads),
		edgeScoreCounts: make([]int32, numReads),
		counts:          make([]int32, numReads),
	}
}

// NumReads returns the number of reads.
func (t *TopNProteinImplementation) NumReads() int {
	return len(t.sizes)
}

// Insert adds a result. It returns false for duplicates, results worse than
// the edge score of a full table, and ties of the edge score of a full table
// which are only counted.
func (t *TopNProteinImplementation) Insert(r *ProteinAlignmentResult) bool {
	id := r.readID
	s := int32(r.score)

	t.locks.Lock(id)
	defer t.locks.Unlock(id)

	base := id * t.n
	size := int(t.sizes[id])
	slots := t.results[base : base+t.n]

	for i := 0; i < size; i++ {
		if slots[i].SameKey(r) {
			return false
		}
	}

	if size < t.n {
		insertByScore(slots[:size+1], size, r)
		t.sizes[id]++

		if size == 0 || s > t.edgeScores[id] {
			t.edgeScores[id] = s
			t.edgeScoreCounts[id] = 1
		} else if s == t.edgeScores[id] {
			t.edgeScoreCounts[id]++
		}
		t.counts[id]++
		return true
	}

	edge := t.edgeScores[id]
	if s > edge {
		return false
	}
	if s == edge {
		t.edgeScoreCounts[id]++
		t.counts[id]++
		return false
	}

	// the last one is dropped
	insertByScore(slots, t.n-1, r)

	last := int32(slots[t.n-1].score)
	if last != edge {
		var c int32
		for i := t.n - 1; i >= 0 && int32(slots[i].score) == last; i-- {
			c++
		}
		t.edgeScores[id] = last
		t.edgeScoreCounts[id] = c
	}

	var c int32
	for i := 0; i < t.n && int32(slots[i].score) < t.edgeScores[id]; i++ {
		c++
	}
	t.counts[id] = c + t.edgeScoreCounts[id]
	return true
}

// insertByScore inserts r into slots[:n+1] after results with the same or
// smaller scores, slots[n] is overwritten.
func insertByScore(slots []*ProteinAlignmentResult, n int, r *ProteinAlignmentResult) {
	i := n
	for i > 0 && slots[i-1].score > r.score {
		slots[i] = slots[i-1]
		i--
	}
	slots[i] = r
}

// Drain returns results with scores better than the edge score, and as many
// ties of the edge score as the remaining slots allow.
func (t *TopNProteinImplementation) Drain(readID int, buf []*ProteinAlignmentResult) ([]*ProteinAlignmentResult, bool) {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)

	base := readID * t.n
	size := int(t.sizes[readID])
	edge := t.edgeScores[readID]
	ec := t.edgeScoreCounts[readID]

	n := len(buf)
	var s int32
	var r *ProteinAlignmentResult
	for i := 0; i < size; i++ {
		r = t.results[base+i]
		s = int32(r.score)
		if s < edge {
			buf = append(buf, r)
		} else if s == edge && int32(t.n-i) >= ec {
			buf = append(buf, r)
			ec--
		}
	}
	return buf, len(buf) == n && t.counts[readID] != 0
}

// Count returns the number of results counted for a read.
func (t *TopNProteinImplementation) Count(readID int) int {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)
	return int(t.counts[readID])
}

// Edge returns the edge score and its count of a read.
func (t *TopNProteinImplementation) Edge(readID int) (int, int) {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)
	return int(t.edgeScores[readID]), int(t.edgeScoreCounts[readID])
}

// Results returns stored results of a read, in the order of scores.
func (t *TopNProteinImplementation) Results(readID int) []*ProteinAlignmentResult {
	t.locks.Lock(readID)
	defer t.locks.Unlock(readID)
	base := readID * t.n
	rs := make([]*ProteinAlignmentResult, t.sizes[readID])
	copy(rs, t.results[base:base+int(t.sizes[readID])])
	return rs
}
