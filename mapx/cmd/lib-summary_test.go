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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIdentityMeanStdDev(t *testing.T) {
	var hist [101]int64
	if m, s := identityMeanStdDev(&hist); m != 0 || s != 0 {
		t.Errorf("expected: 0, 0, results: %f, %f", m, s)
	}

	hist[80] = 1
	if m, s := identityMeanStdDev(&hist); m != 80 || s != 0 {
		t.Errorf("expected: 80, 0, results: %f, %f", m, s)
	}

	hist[100] = 1
	m, s := identityMeanStdDev(&hist)
	if m != 90 || math.Abs(s-math.Sqrt(200)) > 1e-9 {
		t.Errorf("expected: 90, %f, results: %f, %f", math.Sqrt(200), m, s)
	}
}

func TestSummary(t *testing.T) {
	outDir := t.TempDir()
	opt := testOptions(ModeTopN)
	templates, reads := testData()
	header := NewOutputHeader("mapx map", time.Now())

	res := &FinishResult{
		Written:    2,
		Duplicates: 1,
		Reads:      &UnmappedStats{Mapped: 2, Unmapped: 2, NoHits: 2},
	}
	res.Stats.Candidates = 10
	res.Stats.Aligned = 4
	res.Shifts[ShiftHistogramRange] = 3
	res.Shifts[ShiftHistogramRange-2] = 1
	res.Identities[100] = 2

	s := NewSummary(opt, header, templates, reads, 3, res)
	if s.ShiftHistLabels[0] != -ShiftHistogramRange || s.ShiftHistLabels[len(s.ShiftHistLabels)-1] != ShiftHistogramRange {
		t.Errorf("unexpected labels: %v", s.ShiftHistLabels)
	}

	file := filepath.Join(outDir, FileSummary)
	if err := s.Write(file); err != nil {
		t.Error(err)
		return
	}
	s2, err := ReadSummary(file)
	if err != nil {
		t.Error(err)
		return
	}

	if s2.RunID != header.RunID || s2.Mode != ModeTopN.String() || s2.TopN != 1 {
		t.Errorf("unexpected summary: %+v", s2)
	}
	if s2.Templates != 2 || s2.TemplateResidue != 350 || s2.ReadsTotal != 4 || s2.ReadsIndexed != 3 {
		t.Errorf("unexpected numbers of sequences: %+v", s2)
	}
	if s2.Rows != 2 || s2.Duplicates != 1 || s2.IdentityMean != 100 || s2.Reads != *res.Reads {
		t.Errorf("unexpected numbers of results: %+v", s2)
	}
	if s2.Candidates.Candidates != 10 || s2.Candidates.Aligned != 4 {
		t.Errorf("unexpected candidate stats: %+v", s2.Candidates)
	}
	if len(s2.ShiftHistogram) != 2*ShiftHistogramRange+1 || s2.ShiftHistogram[ShiftHistogramRange] != 3 {
		t.Errorf("unexpected shift histogram: %v", s2.ShiftHistogram)
	}

	plot := filepath.Join(outDir, FileShiftPlot)
	if err = s.PlotShifts(plot); err != nil {
		t.Error(err)
		return
	}
	if fi, err := os.Stat(plot); err != nil || fi.Size() == 0 {
		t.Errorf("plot not saved: %s", plot)
	}
}
