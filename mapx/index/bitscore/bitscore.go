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

// Package bitscore implements a bit-parallel estimation of the number of
// identical residues between a read and a template, allowing small shifts.
package bitscore

import (
	"fmt"
	"math/bits"
)

// NumPlanes is the number of bits of a residue code.
const NumPlanes = 5

// Sentinel is the code of positions out of the template, it never equals any residue code.
const Sentinel = 127

// MaxIndel is the maximum allowed number of shifts on each side.
const MaxIndel = 20

var codes [256]uint8

func init() {
	for i := range codes {
		codes[i] = 23 // X
	}
	for i, c := range []byte("ACDEFGHIKLMNPQRSTVWYBZX*UOJ") {
		codes[c] = uint8(i + 1)
		if c >= 'A' && c <= 'Z' {
			codes[c+32] = uint8(i + 1)
		}
	}
}

// Code returns the 5-bit code of a residue. 0 is not used by any residue.
func Code(c byte) uint8 {
	return codes[c]
}

// ProteinBitScorer computes the identity counts of a window for each shift.
//
// It's not thread-safe, please create one for each goroutine.
type ProteinBitScorer struct {
	maxIndel int
	nShifts  int // 2 * maxIndel + 1
	block    int // number of read positions handled in one machine word

	scores []int

	readPlanes     [NumPlanes]uint64
	templatePlanes [NumPlanes]uint64
}

// New creates a ProteinBitScorer allowing maxIndel shifts on each side.
func New(maxIndel int) (*ProteinBitScorer, error) {
	if maxIndel < 0 || maxIndel > MaxIndel {
		return nil, fmt.Errorf("maximum indel should be in range of [0, %d]: %d", MaxIndel, maxIndel)
	}
	s := &ProteinBitScorer{
		maxIndel: maxIndel,
		nShifts:  2*maxIndel + 1,
		block:    64 - 2*maxIndel,
		scores:   make([]int, 2*maxIndel+2),
	}
	return s, nil
}

// MaxIndel returns the number of shifts on each side.
func (s *ProteinBitScorer) MaxIndel() int {
	return s.maxIndel
}

// CalculateFastScore compares read[readStart:readStart+length] with
// template[templateStart:templateStart+length] under all shifts in
// [-maxIndel, maxIndel]. The result has 2*maxIndel+2 values: the number of
// identical positions of each shift, and the number of read positions
// identical under any shift.
//
// The returned slice is reused by the next call.
func (s *ProteinBitScorer) CalculateFastScore(read []byte, readStart, length int, template []byte, templateStart int) []int {
	for i := range s.scores {
		s.scores[i] = 0
	}

	maxIndel := s.maxIndel
	nShifts := s.nShifts
	last := len(s.scores) - 1

	var bs, n, i, p, pos, off int
	var c uint8
	var mask, eq, or uint64
	for bs = 0; bs < length; bs += s.block {
		n = min(s.block, length-bs)

		// read planes, zero padded
		for p = 0; p < NumPlanes; p++ {
			s.readPlanes[p] = 0
			s.templatePlanes[p] = 0
		}
		for i = 0; i < n; i++ {
			pos = readStart + bs + i
			if pos < 0 || pos >= len(read) {
				continue
			}
			c = codes[read[pos]]
			for p = 0; p < NumPlanes; p++ {
				s.readPlanes[p] |= uint64((c>>p)&1) << i
			}
		}

		// template planes, extended by maxIndel on both sides
		for i = 0; i < n+2*maxIndel; i++ {
			pos = templateStart + bs - maxIndel + i
			if pos < 0 || pos >= len(template) {
				c = Sentinel
			} else {
				c = codes[template[pos]]
			}
			for p = 0; p < NumPlanes; p++ {
				s.templatePlanes[p] |= uint64((c>>p)&1) << i
			}
		}

		if n == 64 {
			mask = ^uint64(0)
		} else {
			mask = (uint64(1) << n) - 1
		}

		or = 0
		for off = 0; off < nShifts; off++ { // shift = off - maxIndel
			eq = mask
			for p = 0; p < NumPlanes; p++ {
				eq &= ^((s.templatePlanes[p] >> off) ^ s.readPlanes[p])
			}
			s.scores[off] += bits.OnesCount64(eq)
			or |= eq
		}
		s.scores[last] += bits.OnesCount64(or)
	}

	return s.scores
}

// Accept tells if the scores pass the threshold.
//
// In the legacy mode, the number of positions identical under any shift is used.
// In the peak mode, the best shift is compared with the average of all shifts,
// so matches scattered across many shifts are not rewarded.
func Accept(scores []int, minScore int, peak bool) bool {
	last := len(scores) - 1
	if !peak {
		return scores[last] >= minScore
	}

	w := last // number of shifts
	var sum int
	for _, v := range scores[:last] {
		sum += v
	}
	best := scores[0]*w - sum
	var v int
	for _, score := range scores[1:last] {
		v = score*w - sum
		if v > best {
			best = v
		}
	}
	return best*2/w >= minScore
}
