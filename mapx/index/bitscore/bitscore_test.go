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

package bitscore

import (
	"math/rand"
	"testing"
)

var aas = []byte("ACDEFGHIKLMNPQRSTVWY")

func randProtein(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = aas[r.Intn(len(aas))]
	}
	return s
}

func TestSelfMatch(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for _, maxIndel := range []int{0, 1, 3, 10} {
		scorer, err := New(maxIndel)
		if err != nil {
			t.Error(err)
			return
		}
		for _, n := range []int{1, 10, 44, 63, 64, 100, 250} {
			s := randProtein(r, n)
			scores := scorer.CalculateFastScore(s, 0, n, s, 0)
			if len(scores) != 2*maxIndel+2 {
				t.Errorf("unexpected number of scores: %d", len(scores))
				return
			}
			if scores[maxIndel] != n {
				t.Errorf("maxIndel: %d, length: %d, expected: %d, results: %d", maxIndel, n, n, scores[maxIndel])
			}
			if scores[len(scores)-1] != n {
				t.Errorf("maxIndel: %d, length: %d, expected: %d, results: %d", maxIndel, n, n, scores[len(scores)-1])
			}
		}
	}
}

// brute-force version
func naiveScores(read []byte, readStart, length int, template []byte, templateStart int, maxIndel int) []int {
	scores := make([]int, 2*maxIndel+2)
	hit := make([]bool, length)
	var pos, tpos int
	for s := -maxIndel; s <= maxIndel; s++ {
		for i := 0; i < length; i++ {
			pos = readStart + i
			tpos = templateStart + i + s
			if pos >= len(read) || tpos < 0 || tpos >= len(template) {
				continue
			}
			if Code(read[pos]) == Code(template[tpos]) {
				scores[s+maxIndel]++
				hit[i] = true
			}
		}
	}
	for _, v := range hit {
		if v {
			scores[len(scores)-1]++
		}
	}
	return scores
}

func TestShifts(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	template := randProtein(r, 300)
	for _, maxIndel := range []int{0, 2, 5} {
		scorer, _ := New(maxIndel)
		for _, tStart := range []int{-3, 0, 7, 150, 280} {
			// a read copied from the template with an indel
			read := make([]byte, 0, 120)
			for i := tStart; i < tStart+50; i++ {
				if i >= 0 && i < len(template) {
					read = append(read, template[i])
				} else {
					read = append(read, 'W')
				}
			}
			read = append(read, template[min(len(template)-1, max(0, tStart+52)):min(len(template), max(0, tStart+110))]...)

			for _, length := range []int{10, 60, len(read), len(read) + 5} {
				scores := scorer.CalculateFastScore(read, 0, length, template, tStart)
				expected := naiveScores(read, 0, length, template, tStart, maxIndel)
				for i := range scores {
					if scores[i] != expected[i] {
						t.Errorf("maxIndel: %d, start: %d, length: %d, expected: %v, results: %v",
							maxIndel, tStart, length, expected, scores)
						break
					}
				}
			}
		}
	}
}

func TestAccept(t *testing.T) {
	// legacy mode uses the last value
	if !Accept([]int{1, 10, 2, 12}, 12, false) || Accept([]int{1, 10, 2, 11}, 12, false) {
		t.Errorf("unexpected results of the legacy mode")
	}

	// peak mode: w = 3, sum = 13, best = 10*3-13 = 17, 17*2/3 = 11
	if !Accept([]int{1, 10, 2, 12}, 11, true) || Accept([]int{1, 10, 2, 12}, 12, true) {
		t.Errorf("unexpected results of the peak mode")
	}

	// identical values of all shifts give nothing in the peak mode
	if Accept([]int{5, 5, 5, 10}, 1, true) {
		t.Errorf("scattered matches should not be accepted in the peak mode")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Errorf("negative maxIndel should not be allowed")
	}
	if _, err := New(MaxIndel + 1); err == nil {
		t.Errorf("too big maxIndel should not be allowed")
	}
}
