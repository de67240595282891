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

package align

import (
	"bytes"
	"fmt"
)

// Alignment operations.
const (
	OpMatch     byte = '='
	OpMismatch  byte = 'X'
	OpInsertion byte = 'I' // a read residue aligned to a gap in the template
	OpDeletion  byte = 'D' // a template residue aligned to a gap in the read
)

// states of the three dynamic programming matrices.
const (
	stateM uint8 = iota
	stateI
	stateD
	stateNone
)

const inf = int32(1 << 29)

// Actions is the result of an alignment: the operations from the
// template start, and the summary values of them.
type Actions struct {
	Ops []byte

	score          int
	templateStart  int
	matches        int
	mismatches     int
	insertions     int
	deletions      int
	overhang       int // read residues hanging out of the template ends
	templateLength int
}

// AlignmentScore returns the cost of the alignment, the smaller the better.
func (a *Actions) AlignmentScore() int { return a.score }

// ZeroBasedTemplateStart returns the 0-based start position in the template.
func (a *Actions) ZeroBasedTemplateStart() int { return a.templateStart }

// ActionsCount returns the number of operations.
func (a *Actions) ActionsCount() int { return len(a.Ops) }

// MatchCount returns the number of identical residues.
func (a *Actions) MatchCount() int { return a.matches }

// MismatchCount returns the number of substitutions.
func (a *Actions) MismatchCount() int { return a.mismatches }

// InsertionCount returns the number of read residues aligned to gaps.
func (a *Actions) InsertionCount() int { return a.insertions }

// DeletionFromReadAndOverlapCount returns the number of deleted template residues
// plus the read residues hanging out of the template ends.
func (a *Actions) DeletionFromReadAndOverlapCount() int { return a.deletions + a.overhang }

// TemplateEnd returns the 0-based exclusive end position in the template.
func (a *Actions) TemplateEnd() int { return a.templateStart + a.templateLength }

func (a *Actions) String() string {
	return fmt.Sprintf("score: %d, start: %d, ops: %s", a.score, a.templateStart, a.Ops)
}

func (a *Actions) reset() {
	a.Ops = a.Ops[:0]
	a.score = 0
	a.templateStart = 0
	a.matches = 0
	a.mismatches = 0
	a.insertions = 0
	a.deletions = 0
	a.overhang = 0
	a.templateLength = 0
}

// GotohProteinEditDistance aligns a protein read against a region of a protein
// template with affine gap costs. The read is aligned end to end while both
// ends of the template region are free.
//
// It's not thread-safe, please create one for each goroutine.
type GotohProteinEditDistance struct {
	matrix *ProteinScoringMatrix

	open   int32 // cost of the first residue of a gap
	extend int32 // cost of other residues of a gap

	// reusable variables
	rowM, rowI, rowD    []int32
	prevM, prevI, prevD []int32
	pointers            []uint8
}

// NewGotohProteinEditDistance creates an aligner with a scoring matrix.
func NewGotohProteinEditDistance(matrix *ProteinScoringMatrix) *GotohProteinEditDistance {
	return &GotohProteinEditDistance{
		matrix:   matrix,
		open:     int32(-(matrix.Gap + matrix.Extend)),
		extend:   int32(-matrix.Extend),
		pointers: make([]uint8, 64<<10),
	}
}

// Matrix returns the scoring matrix.
func (g *GotohProteinEditDistance) Matrix() *ProteinScoringMatrix {
	return g.matrix
}

// CalculateEditDistance aligns read[0:rlen] against the template around start,
// the expected template position of the first read residue.
// The template region is extended by maxShift residues on both sides.
// It returns nil if the region does not overlap the template.
//
// There's no early termination: with substitution matrices, a partial
// alignment with a negative score might still get better.
func (g *GotohProteinEditDistance) CalculateEditDistance(read []byte, rlen int, template []byte, start int, maxShift int) *Actions {
	if rlen > len(read) {
		rlen = len(read)
	}
	if rlen <= 0 {
		return nil
	}
	ws := max(0, start-maxShift)
	we := min(len(template), start+rlen+maxShift)
	if we <= ws {
		return nil
	}
	tmpl := template[ws:we]

	h := rlen + 1
	w := len(tmpl) + 1

	// ---------------------------------------------------
	// initialize

	g.rowM = resize(g.rowM, w)
	g.rowI = resize(g.rowI, w)
	g.rowD = resize(g.rowD, w)
	g.prevM = resize(g.prevM, w)
	g.prevI = resize(g.prevI, w)
	g.prevD = resize(g.prevD, w)

	n := h * w
	if n > len(g.pointers) {
		g.pointers = make([]uint8, n+n>>2)
	}
	pointers := g.pointers[:n]

	open, extend := g.open, g.extend
	scores := &g.matrix.scores

	prevM, prevI, prevD := g.prevM, g.prevI, g.prevD
	rowM, rowI, rowD := g.rowM, g.rowI, g.rowD

	var i, j int
	// the first row: free start in the template
	for j = 0; j < w; j++ {
		prevM[j] = 0
		prevI[j] = inf
		prevD[j] = inf
		pointers[j] = pack(stateNone, stateNone, stateNone)
	}

	// ---------------------------------------------------
	// compute

	var a byte
	var sm, si, sd, best int32
	var pm, pi, pd uint8
	var k int
	for i = 1; i < h; i++ {
		a = read[i-1]
		k = i * w

		// the first column
		rowM[0] = inf
		rowD[0] = inf
		if i == 1 {
			rowI[0] = open
			pointers[k] = pack(stateNone, stateM, stateNone)
		} else {
			rowI[0] = prevI[0] + extend
			pointers[k] = pack(stateNone, stateI, stateNone)
		}

		for j = 1; j < w; j++ {
			// diagonal
			best, pm = prevM[j-1], stateM
			if prevI[j-1] < best {
				best, pm = prevI[j-1], stateI
			}
			if prevD[j-1] < best {
				best, pm = prevD[j-1], stateD
			}
			sm = best - int32(scores[a][tmpl[j-1]])

			// gap in the template, consuming a read residue
			best, pi = prevM[j]+open, stateM
			if prevI[j]+extend < best {
				best, pi = prevI[j]+extend, stateI
			}
			if prevD[j]+open < best {
				best, pi = prevD[j]+open, stateD
			}
			si = best

			// gap in the read, consuming a template residue
			best, pd = rowM[j-1]+open, stateM
			if rowI[j-1]+open < best {
				best, pd = rowI[j-1]+open, stateI
			}
			if rowD[j-1]+extend < best {
				best, pd = rowD[j-1]+extend, stateD
			}
			sd = best

			rowM[j], rowI[j], rowD[j] = sm, si, sd
			pointers[k+j] = pack(pm, pi, pd)
		}

		prevM, rowM = rowM, prevM
		prevI, rowI = rowI, prevI
		prevD, rowD = rowD, prevD
	}

	// ---------------------------------------------------
	// free end in the template, the leftmost best cell wins

	bestJ := 0
	bestState := stateI
	best = prevI[0]
	for j = 1; j < w; j++ {
		if prevM[j] < best {
			best, bestJ, bestState = prevM[j], j, stateM
		}
		if prevI[j] < best {
			best, bestJ, bestState = prevI[j], j, stateI
		}
	}

	// ---------------------------------------------------
	// traceback

	r := &Actions{Ops: make([]byte, 0, rlen+8)}
	r.reset()
	r.score = int(best)

	i, j = rlen, bestJ
	state := bestState
	var p uint8
	for i > 0 {
		p = pointers[i*w+j]
		switch state {
		case stateM:
			if a = read[i-1]; a == tmpl[j-1] {
				r.Ops = append(r.Ops, OpMatch)
				r.matches++
			} else {
				r.Ops = append(r.Ops, OpMismatch)
				r.mismatches++
			}
			state = p & 3
			i--
			j--
		case stateI:
			r.Ops = append(r.Ops, OpInsertion)
			r.insertions++
			state = (p >> 2) & 3
			i--
		case stateD:
			r.Ops = append(r.Ops, OpDeletion)
			r.deletions++
			state = (p >> 4) & 3
			j--
		default:
			panic(fmt.Sprintf("unexpected traceback state at (%d, %d)", i, j))
		}
	}
	reverse(r.Ops)

	r.templateStart = ws + j
	r.templateLength = r.matches + r.mismatches + r.deletions

	// read residues out of the template
	if r.templateStart == 0 {
		for _, op := range r.Ops {
			if op != OpInsertion {
				break
			}
			r.overhang++
		}
	}
	if r.TemplateEnd() == len(template) && r.overhang < len(r.Ops) {
		for k = len(r.Ops) - 1; k >= 0; k-- {
			if r.Ops[k] != OpInsertion {
				break
			}
			r.overhang++
		}
	}

	return r
}

// AlignedStrings returns the aligned template, the aligned read, and the
// matching line: the residue for identity, "+" for a positive score, " " otherwise.
func (g *GotohProteinEditDistance) AlignedStrings(a *Actions, read []byte, template []byte) ([]byte, []byte, []byte) {
	return AlignedStrings(g.matrix, a, read, template)
}

// AlignedStrings renders an alignment with a scoring matrix.
func AlignedStrings(m *ProteinScoringMatrix, a *Actions, read []byte, template []byte) ([]byte, []byte, []byte) {
	var bt, br, bm bytes.Buffer
	bt.Grow(len(a.Ops))
	br.Grow(len(a.Ops))
	bm.Grow(len(a.Ops))

	i, j := 0, a.templateStart
	for _, op := range a.Ops {
		switch op {
		case OpMatch:
			bt.WriteByte(template[j])
			br.WriteByte(read[i])
			bm.WriteByte(read[i])
			i++
			j++
		case OpMismatch:
			bt.WriteByte(template[j])
			br.WriteByte(read[i])
			if m.IsPositive(read[i], template[j]) {
				bm.WriteByte('+')
			} else {
				bm.WriteByte(' ')
			}
			i++
			j++
		case OpInsertion:
			bt.WriteByte('-')
			br.WriteByte(read[i])
			bm.WriteByte(' ')
			i++
		case OpDeletion:
			bt.WriteByte(template[j])
			br.WriteByte('-')
			bm.WriteByte(' ')
			j++
		}
	}
	return bt.Bytes(), br.Bytes(), bm.Bytes()
}

// PositiveCount returns the number of aligned pairs with positive scores.
func PositiveCount(m *ProteinScoringMatrix, a *Actions, read []byte, template []byte) int {
	var n int
	i, j := 0, a.templateStart
	for _, op := range a.Ops {
		switch op {
		case OpMatch, OpMismatch:
			if m.IsPositive(read[i], template[j]) {
				n++
			}
			i++
			j++
		case OpInsertion:
			i++
		case OpDeletion:
			j++
		}
	}
	return n
}

func pack(m, i, d uint8) uint8 {
	return m | i<<2 | d<<4
}

func resize(s []int32, n int) []int32 {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]int32, n, n+n>>2)
}

func reverse(s []byte) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
