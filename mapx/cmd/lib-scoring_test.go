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
	"testing"

	"github.com/shenwei356/mapx/mapx/index/align"
)

func TestFormatBitScore(t *testing.T) {
	tests := []struct {
		v float64
		s string
	}{
		{12.34, "12.3"},
		{0, "0.0"},
		{100, "100.0"},
		{-1.26, "-1.3"},
		{43.96, "44.0"},
		{2.25, "2.3"},
		{1.15, "1.2"},
		{3.75, "3.8"},
		{4.05, "4.1"},
	}
	for _, test := range tests {
		if s := FormatBitScore(test.v); s != test.s {
			t.Errorf("bit-score %f, expected: %s, results: %s", test.v, test.s, s)
		}
	}
}

func TestFormatEScore(t *testing.T) {
	tests := []struct {
		v float64
		s string
	}{
		{3.7e-5, "3.7e-5"},
		{1e-181, "0"},
		{0, "0"},
		{10, "1.0e+1"},
		{9.96, "1.0e+1"},
		{1.5, "1.5e+0"},
		{2.04e-100, "2.0e-100"},
	}
	for _, test := range tests {
		if s := FormatEScore(test.v); s != test.s {
			t.Errorf("e-score %g, expected: %s, results: %s", test.v, test.s, s)
		}
	}
}

func TestPercentID(t *testing.T) {
	tests := []struct {
		matches, total int
		p              int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, test := range tests {
		if p := PercentID(test.matches, test.total); p != test.p {
			t.Errorf("%d/%d, expected: %d, results: %d", test.matches, test.total, test.p, p)
		}
	}
}

func TestScores(t *testing.T) {
	s := NewScoringHelper(align.Blosum62)

	// lower alignment scores are better
	if s.BitScore(-100) <= s.BitScore(-50) {
		t.Errorf("expected a higher bit-score for a better alignment score")
	}
	if s.EScore(-100, 100, 1000000) >= s.EScore(-50, 100, 1000000) {
		t.Errorf("expected a smaller e-score for a better alignment score")
	}
	if s.EScore(-100, 100, 1000000) >= s.EScore(-100, 100, 2000000) {
		t.Errorf("expected a larger e-score for a larger database")
	}

	// the effective length is at least 1
	e := s.EScore(-10000, 10, 1000)
	if e != 0 && FormatEScore(e) != "0" {
		t.Errorf("expected: 0, results: %s", FormatEScore(e))
	}
}
