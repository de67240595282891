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
	"math"
	"strconv"

	"github.com/shenwei356/mapx/mapx/index/align"
)

// ScoringHelper converts alignment scores to identities, bit-scores and e-scores.
type ScoringHelper struct {
	k      float64
	h      float64
	lambda float64
	logK   float64
}

// NewScoringHelper creates a ScoringHelper from the parameters of a scoring matrix.
func NewScoringHelper(m *align.ProteinScoringMatrix) *ScoringHelper {
	return &ScoringHelper{
		k:      m.K,
		h:      m.H,
		lambda: m.Lambda,
		logK:   math.Log(m.K),
	}
}

// PercentID returns the rounded percentage, 0 for an empty denominator.
func PercentID(matches, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(100*float64(matches)/float64(total) + 0.5))
}

// BitScore computes the bit-score from an alignment score, which is a cost
// (the negative of the BLAST raw score).
func (s *ScoringHelper) BitScore(alignScore int) float64 {
	return (s.lambda*float64(-alignScore) - s.logK) / math.Ln2
}

// EScore computes the e-score from an alignment score, the protein length of
// the read, and the total length of all templates.
func (s *ScoringHelper) EScore(alignScore int, readLen int, dbLength int64) float64 {
	effectiveReadLen := float64(readLen) + s.lambda*float64(alignScore)/s.h
	if effectiveReadLen < 1 {
		effectiveReadLen = 1
	}
	return s.k * effectiveReadLen * float64(dbLength) * math.Exp(s.lambda*float64(alignScore))
}

// FormatBitScore renders a bit-score with one decimal, rounding half up.
func FormatBitScore(v float64) string {
	buf := make([]byte, 0, 16)
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	// tenths, computed directly to keep exact halves
	t := int64(math.Floor((v + 0.05) * 10))
	buf = strconv.AppendInt(buf, t/10, 10)
	buf = append(buf, '.')
	buf = append(buf, byte('0'+t%10))
	return string(buf)
}

// FormatEScore renders an e-score with one decimal in the mantissa, like 3.7e-5.
// Values smaller than 1e-180 are rendered as "0".
func FormatEScore(v float64) string {
	if v < 1e-180 {
		return "0"
	}
	if math.IsInf(v, 1) || math.IsNaN(v) {
		return "inf"
	}

	exp := int(math.Floor(math.Log10(v)))
	mant := v / math.Pow10(exp)
	m10 := int(mant*10 + 0.5)
	if m10 >= 100 {
		m10 = (m10 + 5) / 10
		exp++
	}

	buf := make([]byte, 0, 16)
	buf = strconv.AppendInt(buf, int64(m10/10), 10)
	buf = append(buf, '.')
	buf = append(buf, byte('0'+m10%10))
	buf = append(buf, 'e')
	if exp >= 0 {
		buf = append(buf, '+')
	}
	buf = strconv.AppendInt(buf, int64(exp), 10)
	return string(buf)
}
