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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shenwei356/mapx/mapx/index/align"
)

// OutputMode decides how many and which alignments of a read are reported.
type OutputMode int

const (
	// ModeAllHits reports all alignments passing the thresholds.
	ModeAllHits OutputMode = iota
	// ModeTopN reports the N best alignments of each read.
	ModeTopN
	// ModeTopEqual reports alignments sharing the best score of each read,
	// it reports nothing if there are more than N of them.
	ModeTopEqual
)

func (m OutputMode) String() string {
	switch m {
	case ModeAllHits:
		return "all-hits"
	case ModeTopN:
		return "top-n"
	case ModeTopEqual:
		return "top-equal"
	}
	return "unknown"
}

// ParseOutputMode parses the name of an output mode.
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(s) {
	case "all", "all-hits", "allhits":
		return ModeAllHits, nil
	case "topn", "top-n":
		return ModeTopN, nil
	case "topequal", "top-equal":
		return ModeTopEqual, nil
	}
	return ModeAllHits, fmt.Errorf("invalid output mode: %s, available: all, topn, topequal", s)
}

// MaxTopN is the maximum value of N in the top-N and top-equal modes.
const MaxTopN = 250

// MaxPreFilterShift is the maximum absolute value of the prefilter algorithm.
const MaxPreFilterShift = 10

// AlignmentScoreThreshold is the maximum alignment score, either an absolute
// value or a percentage of the protein length.
type AlignmentScoreThreshold struct {
	Value   int
	Percent bool
}

// Threshold returns the maximum alignment score for a protein.
func (t AlignmentScoreThreshold) Threshold(protLen int) int {
	if t.Percent {
		return t.Value * protLen / 100
	}
	return t.Value
}

func (t AlignmentScoreThreshold) String() string {
	if t.Percent {
		return fmt.Sprintf("%d%%", t.Value)
	}
	return strconv.Itoa(t.Value)
}

// ParseAlignmentScoreThreshold parses values like "-10" or "-10%".
func ParseAlignmentScoreThreshold(s string) (AlignmentScoreThreshold, error) {
	var t AlignmentScoreThreshold
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		t.Percent = true
		s = s[:len(s)-1]
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return t, fmt.Errorf("invalid alignment score threshold: %s", s)
	}
	t.Value = v
	return t, nil
}

// ProteinMapOptions contains all options of protein mapping.
// Values are checked by the command, the core trusts their ranges.
type ProteinMapOptions struct {
	NumCPUs  int
	Verbose  bool
	Log2File bool

	// result selection
	Mode OutputMode
	TopN int // [1, 250]

	// thresholds
	MaxAlignmentScore AlignmentScoreThreshold
	MinIdentity       int     // [0, 100]
	MaxEScore         float64 // +Inf when MinBitScore is used
	MinBitScore       float64 // -Inf when MaxEScore is used

	// prefilter, the sign of the algorithm chooses the policy,
	// the absolute value is the maximum shift.
	PreFilterAlgorithm  int // [-10, 10]
	PreFilterMinScore   int // percentage, [0, 100]
	PreFilterMinOverlap int // percentage, [0, 100]

	// read indexing
	MetaChunkLength  int // [1, 63]
	MetaChunkOverlap int // [0, MetaChunkLength)
	MinReadLength    int
	WordSize         int
	MinHits          int

	// input
	Translated bool // reads are nucleotide sequences

	// output
	CompressOutput         bool
	CompressionLevel       int // of gzip, -1 for the default
	OutputReadNames        bool
	OutputProteinSequences bool
	OutputUnmapped         bool
	MergeAlignmentResults  bool
	KeepTempFiles          bool

	Matrix *align.ProteinScoringMatrix

	CommandLine string
}

// DefaultProteinMapOptions returns the default options.
func DefaultProteinMapOptions() *ProteinMapOptions {
	return &ProteinMapOptions{
		NumCPUs: 1,
		Verbose: false,

		Mode: ModeTopN,
		TopN: 10,

		MaxAlignmentScore: AlignmentScoreThreshold{Value: -10, Percent: true},
		MinIdentity:       60,
		MaxEScore:         10,
		MinBitScore:       math.Inf(-1),

		PreFilterAlgorithm:  -3,
		PreFilterMinScore:   30,
		PreFilterMinOverlap: 70,

		MetaChunkLength:  63,
		MetaChunkOverlap: 31,
		MinReadLength:    30,
		WordSize:         4,
		MinHits:          2,

		Translated: true,

		CompressOutput:        true,
		CompressionLevel:      -1,
		OutputUnmapped:        true,
		MergeAlignmentResults: true,

		Matrix: align.Blosum62,
	}
}

// UseBitScore switches the threshold from e-score to bit-score.
func (opt *ProteinMapOptions) UseBitScore(minBitScore float64) {
	opt.MinBitScore = minBitScore
	opt.MaxEScore = math.Inf(1)
}

// MaxIndel returns the number of shifts on each side in the prefilter.
func (opt *ProteinMapOptions) MaxIndel() int {
	if opt.PreFilterAlgorithm < 0 {
		return -opt.PreFilterAlgorithm
	}
	return opt.PreFilterAlgorithm
}

// PeakPreFilter tells if the peak policy is used in the prefilter.
func (opt *ProteinMapOptions) PeakPreFilter() bool {
	return opt.PreFilterAlgorithm < 0
}

// FramesPerRead returns the number of proteins of a read.
func (opt *ProteinMapOptions) FramesPerRead() int {
	if opt.Translated {
		return 6
	}
	return 1
}
