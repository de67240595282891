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
	"bufio"
	"strconv"

	"github.com/shenwei356/mapx/mapx/index/align"
)

// Frames are the translating frames, the index is the frame slot of a read.
var Frames = [6]int8{1, 2, 3, -1, -2, -3}

// frameNames is indexed by frame+3, 0 is for protein reads.
var frameNames = [7]string{"-3", "-2", "-1", "null", "+1", "+2", "+3"}

// FrameName returns the text of a frame.
func FrameName(frame int8) string {
	return frameNames[frame+3]
}

// ReadAndFrame combines a read id and a frame slot.
func ReadAndFrame(readID int, slot int, translated bool) int32 {
	if translated {
		return int32(readID*6 + slot)
	}
	return int32(readID)
}

// SplitReadAndFrame returns the read id and the frame.
func SplitReadAndFrame(readAndFrame int32, translated bool) (int, int8) {
	if translated {
		return int(readAndFrame / 6), Frames[readAndFrame%6]
	}
	return int(readAndFrame), 0
}

// ProteinAlignmentResult is a verified alignment of a read protein against a template.
// It's immutable after being created.
type ProteinAlignmentResult struct {
	templateID   int
	readID       int
	frame        int8
	readAndFrame int32

	score          int // alignment score, smaller is better
	templateStart  int // 0-based
	templateEnd    int // 0-based, exclusive
	templateLength int

	readStart  int // 1-based, on the original read
	readEnd    int // 1-based, readEnd < readStart for reverse frames
	readLength int // length of the original read

	identical  int
	positive   int
	mismatches int
	actions    int
	percentID  int

	bitScore float64
	eScore   float64

	// optional
	templateProtein []byte
	readProtein     []byte
	alignment       []byte
}

// resultContext provides what a result needs to compute its values.
type resultContext struct {
	matrix   *align.ProteinScoringMatrix
	scoring  *ScoringHelper
	dbLength int64

	translated bool
	withSeqs   bool
}

func newProteinAlignmentResult(ctx *resultContext, a *align.Actions,
	templateID int, template []byte,
	readAndFrame int32, protein []byte, readLength int) *ProteinAlignmentResult {

	readID, frame := SplitReadAndFrame(readAndFrame, ctx.translated)
	plen := len(protein)

	r := &ProteinAlignmentResult{
		templateID:   templateID,
		readID:       readID,
		frame:        frame,
		readAndFrame: readAndFrame,

		score:          a.AlignmentScore(),
		templateStart:  a.ZeroBasedTemplateStart(),
		templateEnd:    a.TemplateEnd(),
		templateLength: len(template),

		readLength: readLength,

		identical:  a.MatchCount(),
		positive:   align.PositiveCount(ctx.matrix, a, protein, template),
		mismatches: a.MismatchCount(),
		actions:    a.ActionsCount(),
	}
	r.percentID = PercentID(r.identical, r.actions)
	r.bitScore = ctx.scoring.BitScore(r.score)
	r.eScore = ctx.scoring.EScore(r.score, plen, ctx.dbLength)

	// the protein is aligned end to end
	switch {
	case frame > 0:
		r.readStart = int(frame)
		r.readEnd = int(frame) - 1 + plen*3
	case frame < 0:
		offset := int(-frame) - 1
		r.readStart = readLength - offset
		r.readEnd = readLength - (offset + plen*3) + 1
	default:
		r.readStart = 1
		r.readEnd = plen
	}

	if ctx.withSeqs {
		r.templateProtein, r.readProtein, r.alignment = align.AlignedStrings(ctx.matrix, a, protein, template)
	}
	return r
}

// TemplateID returns the template id.
func (r *ProteinAlignmentResult) TemplateID() int { return r.templateID }

// ReadID returns the read id.
func (r *ProteinAlignmentResult) ReadID() int { return r.readID }

// Frame returns the frame, 0 for protein reads.
func (r *ProteinAlignmentResult) Frame() int8 { return r.frame }

// ReadAndFrame returns the combined read id and frame slot.
func (r *ProteinAlignmentResult) ReadAndFrame() int32 { return r.readAndFrame }

// AlignmentScore returns the alignment score, smaller is better.
func (r *ProteinAlignmentResult) AlignmentScore() int { return r.score }

// AlignmentStart returns the 0-based start position in the template.
func (r *ProteinAlignmentResult) AlignmentStart() int { return r.templateStart }

// PercentIdentity returns the rounded percentage of identical residues.
func (r *ProteinAlignmentResult) PercentIdentity() int { return r.percentID }

// Compare compares two results by template id, template start and readAndFrame.
func (r *ProteinAlignmentResult) Compare(b *ProteinAlignmentResult) int {
	if r.templateID != b.templateID {
		if r.templateID < b.templateID {
			return -1
		}
		return 1
	}
	if r.templateStart != b.templateStart {
		if r.templateStart < b.templateStart {
			return -1
		}
		return 1
	}
	if r.readAndFrame != b.readAndFrame {
		if r.readAndFrame < b.readAndFrame {
			return -1
		}
		return 1
	}
	return 0
}

// SameKey tells if two results have the same template, template start and readAndFrame.
func (r *ProteinAlignmentResult) SameKey(b *ProteinAlignmentResult) bool {
	return r.templateID == b.templateID && r.templateStart == b.templateStart && r.readAndFrame == b.readAndFrame
}

// RowFormat decides the columns of the alignment output.
type RowFormat struct {
	Translated       bool
	ReadNames        bool
	ProteinSequences bool

	templateNames []string
	readNames     []string
}

// ColumnHeader returns the header line of columns, without a line break.
func (f *RowFormat) ColumnHeader() string {
	buf := make([]byte, 0, 256)
	buf = append(buf, "#template-name"...)
	if f.Translated {
		buf = append(buf, "\tframe"...)
	}
	if f.ReadNames {
		buf = append(buf, "\tread-name"...)
	} else {
		buf = append(buf, "\tread-id"...)
	}
	buf = append(buf, "\ttemplate-start\ttemplate-end\ttemplate-length\tread-start\tread-end\tread-length"...)
	if f.ProteinSequences {
		buf = append(buf, "\ttemplate-protein\tread-protein\talignment"...)
	}
	buf = append(buf, "\tidentical\t%identical\tpositive\t%positive\tmismatches\traw-score\tbit-score\te-score"...)
	return string(buf)
}

// Write renders the result as a row.
func (r *ProteinAlignmentResult) Write(w *bufio.Writer, f *RowFormat) error {
	buf := w.AvailableBuffer()

	buf = append(buf, f.templateNames[r.templateID]...)
	if f.Translated {
		buf = append(buf, '\t')
		buf = append(buf, FrameName(r.frame)...)
	}
	buf = append(buf, '\t')
	if f.ReadNames {
		buf = append(buf, f.readNames[r.readID]...)
	} else {
		buf = strconv.AppendInt(buf, int64(r.readID), 10)
	}

	buf = appendInts(buf, r.templateStart+1, r.templateEnd, r.templateLength,
		r.readStart, r.readEnd, r.readLength)

	if f.ProteinSequences {
		buf = append(buf, '\t')
		buf = append(buf, r.templateProtein...)
		buf = append(buf, '\t')
		buf = append(buf, r.readProtein...)
		buf = append(buf, '\t')
		buf = append(buf, r.alignment...)
	}

	buf = appendInts(buf, r.identical, r.percentID,
		r.positive, PercentID(r.positive, r.actions),
		r.mismatches, -r.score)

	buf = append(buf, '\t')
	buf = append(buf, FormatBitScore(r.bitScore)...)
	buf = append(buf, '\t')
	buf = append(buf, FormatEScore(r.eScore)...)
	buf = append(buf, '\n')

	_, err := w.Write(buf)
	return err
}

func appendInts(buf []byte, vals ...int) []byte {
	for _, v := range vals {
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, int64(v), 10)
	}
	return buf
}
