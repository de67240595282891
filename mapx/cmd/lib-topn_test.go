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
	"math/rand"
	"sort"
	"sync"
	"testing"
)

// newTestResult creates a result with the fields used by ranking tables.
func newTestResult(readID, templateID, start, score int) *ProteinAlignmentResult {
	return &ProteinAlignmentResult{
		templateID:   templateID,
		readID:       readID,
		readAndFrame: int32(readID),
		score:        score,

		templateStart:  start,
		templateEnd:    start + 10,
		templateLength: 1000,
		readStart:      1,
		readEnd:        10,
		readLength:     10,
	}
}

func scoresOf(rs []*ProteinAlignmentResult) []int {
	scores := make([]int, len(rs))
	for i, r := range rs {
		scores[i] = r.score
	}
	return scores
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTopNTies(t *testing.T) {
	table := NewTopNProteinImplementation(2, 2, &StripedLocks{})

	table.Insert(newTestResult(0, 0, 0, -10))
	table.Insert(newTestResult(0, 0, 1, -8))
	if table.Insert(newTestResult(0, 0, 2, -8)) {
		t.Errorf("a tie of the edge score of a full table should not be stored")
	}
	if table.Count(0) != 3 {
		t.Errorf("expected count: %d, results: %d", 3, table.Count(0))
	}
	if s, c := table.Edge(0); s != -8 || c != 2 {
		t.Errorf("expected edge: -8 x 2, results: %d x %d", s, c)
	}

	// two results share the edge score, only one slot left
	rs, exceeded := table.Drain(0, nil)
	if exceeded || !equalInts(scoresOf(rs), []int{-10}) {
		t.Errorf("expected: [-10], results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}

	// a better one pushes the ties out
	if !table.Insert(newTestResult(0, 0, 3, -12)) {
		t.Errorf("a better result should be stored")
	}
	if s, c := table.Edge(0); s != -10 || c != 1 {
		t.Errorf("expected edge: -10 x 1, results: %d x %d", s, c)
	}
	rs, exceeded = table.Drain(0, nil)
	if exceeded || !equalInts(scoresOf(rs), []int{-12, -10}) {
		t.Errorf("expected: [-12 -10], results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}

	// worse ones are ignored
	if table.Insert(newTestResult(0, 0, 4, -1)) {
		t.Errorf("a worse result should not be stored")
	}

	// duplicates
	if table.Insert(newTestResult(0, 0, 3, -12)) {
		t.Errorf("a duplicated result should not be stored")
	}

	// no hits
	rs, exceeded = table.Drain(1, nil)
	if exceeded || len(rs) != 0 {
		t.Errorf("expected no results for a read without hits, results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}
}

func TestTopNExceeded(t *testing.T) {
	table := NewTopNProteinImplementation(1, 1, &StripedLocks{})
	table.Insert(newTestResult(0, 0, 0, -5))
	table.Insert(newTestResult(0, 1, 0, -5))

	rs, exceeded := table.Drain(0, nil)
	if !exceeded || len(rs) != 0 {
		t.Errorf("expected exceeded, results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}
}

func TestTopNConcurrent(t *testing.T) {
	nReads := 50
	n := 5
	r := rand.New(rand.NewSource(11))

	var results []*ProteinAlignmentResult
	for id := 0; id < nReads; id++ {
		for i := 0; i < 40; i++ {
			results = append(results, newTestResult(id, i%3, i, -r.Intn(8)))
		}
	}

	sequential := NewTopNProteinImplementation(nReads, n, &StripedLocks{})
	for _, res := range results {
		sequential.Insert(res)
	}

	r.Shuffle(len(results), func(i, j int) { results[i], results[j] = results[j], results[i] })
	concurrent := NewTopNProteinImplementation(nReads, n, &StripedLocks{})
	var wg sync.WaitGroup
	threads := 8
	for k := 0; k < threads; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			for i := k; i < len(results); i += threads {
				concurrent.Insert(results[i])
			}
		}(k)
	}
	wg.Wait()

	for id := 0; id < nReads; id++ {
		s1, c1 := sequential.Edge(id)
		s2, c2 := concurrent.Edge(id)
		if s1 != s2 || c1 != c2 {
			t.Errorf("read %d: expected edge: %d x %d, results: %d x %d", id, s1, c1, s2, c2)
		}
		if sequential.Count(id) != concurrent.Count(id) {
			t.Errorf("read %d: expected count: %d, results: %d", id, sequential.Count(id), concurrent.Count(id))
		}

		a, b := scoresOf(sequential.Results(id)), scoresOf(concurrent.Results(id))
		sort.Ints(a)
		sort.Ints(b)
		if !equalInts(a, b) {
			t.Errorf("read %d: expected scores: %v, results: %v", id, a, b)
		}

		ra, ea := sequential.Drain(id, nil)
		rb, eb := concurrent.Drain(id, nil)
		if ea != eb || len(ra) != len(rb) {
			t.Errorf("read %d: expected %d results (exceeded: %v), results: %d (exceeded: %v)",
				id, len(ra), ea, len(rb), eb)
		}
	}
}

func TestTopEqual(t *testing.T) {
	table := NewTopEqualProteinImplementation(2, 2, &StripedLocks{})

	table.Insert(newTestResult(0, 0, 0, -5))
	if !table.Insert(newTestResult(0, 0, 1, -7)) {
		t.Errorf("a better result should be stored")
	}
	if table.Insert(newTestResult(0, 0, 1, -7)) {
		t.Errorf("a duplicated result should not be stored")
	}
	table.Insert(newTestResult(0, 0, 2, -7))
	if table.Insert(newTestResult(0, 0, 3, -6)) {
		t.Errorf("a worse result should not be stored")
	}
	if table.Best(0) != -7 || table.Count(0) != 2 {
		t.Errorf("expected best: -7 x 2, results: %d x %d", table.Best(0), table.Count(0))
	}

	rs, exceeded := table.Drain(0, nil)
	if exceeded || !equalInts(scoresOf(rs), []int{-7, -7}) {
		t.Errorf("expected: [-7 -7], results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}

	// more than n equally best results
	table.Insert(newTestResult(0, 1, 0, -7))
	rs, exceeded = table.Drain(0, nil)
	if !exceeded || len(rs) != 0 {
		t.Errorf("expected exceeded, results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}

	// a better one resets the read
	table.Insert(newTestResult(0, 1, 5, -20))
	rs, exceeded = table.Drain(0, nil)
	if exceeded || !equalInts(scoresOf(rs), []int{-20}) {
		t.Errorf("expected: [-20], results: %v (exceeded: %v)", scoresOf(rs), exceeded)
	}

	rs, exceeded = table.Drain(1, nil)
	if exceeded || len(rs) != 0 {
		t.Errorf("expected no results for a read without hits")
	}
}
