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
	"image/color"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Summary is saved into summary.toml.
type Summary struct {
	Version string `toml:"version"`
	RunID   string `toml:"run-id"`
	Mode    string `toml:"mode"`
	TopN    int    `toml:"top-n"`

	Templates       int   `toml:"templates"`
	TemplateResidue int64 `toml:"template-residues"`
	ReadsTotal      int   `toml:"reads"`
	ReadsIndexed    int   `toml:"reads-indexed"`

	Rows            int64   `toml:"rows"`
	Duplicates      int64   `toml:"duplicates"`
	IdentityMean    float64 `toml:"identity-mean"`
	IdentityStdDev  float64 `toml:"identity-stdev"`
	ShiftHistogram  []int64 `toml:"shift-histogram"`
	ShiftHistLabels []int   `toml:"shift-histogram-labels"`

	Reads      UnmappedStats  `toml:"read-status"`
	Candidates ProcessorStats `toml:"candidates"`
}

// NewSummary creates a Summary from the result of the processor.
func NewSummary(opt *ProteinMapOptions, header *OutputHeader,
	templates, reads *SequenceStore, indexed int, res *FinishResult) *Summary {
	s := &Summary{
		Version: VERSION,
		RunID:   header.RunID,
		Mode:    opt.Mode.String(),
		TopN:    opt.TopN,

		Templates:       templates.Len(),
		TemplateResidue: templates.TotalLength(),
		ReadsTotal:      reads.Len(),
		ReadsIndexed:    indexed,

		Rows:       res.Written,
		Duplicates: res.Duplicates,

		ShiftHistogram:  res.Shifts[:],
		ShiftHistLabels: make([]int, len(res.Shifts)),

		Candidates: res.Stats,
	}
	if res.Reads != nil {
		s.Reads = *res.Reads
	}
	for i := range s.ShiftHistLabels {
		s.ShiftHistLabels[i] = i - ShiftHistogramRange
	}
	s.IdentityMean, s.IdentityStdDev = identityMeanStdDev(&res.Identities)
	return s
}

// identityMeanStdDev computes the mean and standard deviation of the histogram
// of percent identities.
func identityMeanStdDev(hist *[101]int64) (float64, float64) {
	values := make([]float64, len(hist))
	weights := make([]float64, len(hist))
	var n int64
	for i, c := range hist {
		values[i] = float64(i)
		weights[i] = float64(c)
		n += c
	}
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return stat.Mean(values, weights), 0
	}
	return stat.MeanStdDev(values, weights)
}

// Write saves the summary as a TOML file.
func (s *Summary) Write(file string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to encode summary")
	}
	if err = os.WriteFile(file, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write summary: %s", file)
	}
	return nil
}

// ReadSummary reads a summary file.
func ReadSummary(file string) (*Summary, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read summary: %s", file)
	}
	s := &Summary{}
	if err = toml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "failed to parse summary: %s", file)
	}
	return s, nil
}

// PlotShifts draws the histogram of shifts between anchored starts and alignment starts.
func (s *Summary) PlotShifts(file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Shifts of alignment starts (%d alignments)", s.Candidates.Aligned)
	p.X.Label.Text = "shift (residues)"
	p.Y.Label.Text = "alignments"

	values := make(plotter.Values, len(s.ShiftHistogram))
	labels := make([]string, len(s.ShiftHistogram))
	for i, c := range s.ShiftHistogram {
		values[i] = float64(c)
		labels[i] = strconv.Itoa(s.ShiftHistLabels[i])
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "failed to plot shifts")
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	p.Add(bars)
	p.NominalX(labels...)

	if err = p.Save(6*vg.Inch, 4*vg.Inch, file); err != nil {
		return errors.Wrapf(err, "failed to save plot: %s", file)
	}
	return nil
}
