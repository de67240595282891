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
	"fmt"
	"strconv"
	"strings"
)

// ProteinScoringMatrix holds substitution scores and the statistical
// parameters for the gap penalties.
type ProteinScoringMatrix struct {
	Name string

	scores [256][256]int8

	Gap    int // gap open penalty, negative
	Extend int // gap extension penalty, negative

	// Karlin-Altschul parameters for the gapped alignment
	K      float64
	H      float64
	Lambda float64
}

// Score returns the substitution score of two residues.
func (m *ProteinScoringMatrix) Score(a, b byte) int {
	return int(m.scores[a][b])
}

// IsPositive tells if two residues have a positive score.
func (m *ProteinScoringMatrix) IsPositive(a, b byte) bool {
	return m.scores[a][b] > 0
}

// NCBI BLOSUM62.
const blosum62 = `
   A  R  N  D  C  Q  E  G  H  I  L  K  M  F  P  S  T  W  Y  V  B  Z  X  *
A  4 -1 -2 -2  0 -1 -1  0 -2 -1 -1 -1 -1 -2 -1  1  0 -3 -2  0 -2 -1  0 -4
R -1  5  0 -2 -3  1  0 -2  0 -3 -2  2 -1 -3 -2 -1 -1 -3 -2 -3 -1  0 -1 -4
N -2  0  6  1 -3  0  0  0  1 -3 -3  0 -2 -3 -2  1  0 -4 -2 -3  3  0 -1 -4
D -2 -2  1  6 -3  0  2 -1 -1 -3 -4 -1 -3 -3 -1  0 -1 -4 -3 -3  4  1 -1 -4
C  0 -3 -3 -3  9 -3 -4 -3 -3 -1 -1 -3 -1 -2 -3 -1 -1 -2 -2 -1 -3 -3 -2 -4
Q -1  1  0  0 -3  5  2 -2  0 -3 -2  1  0 -3 -1  0 -1 -2 -1 -2  0  3 -1 -4
E -1  0  0  2 -4  2  5 -2  0 -3 -3  1 -2 -3 -1  0 -1 -3 -2 -2  1  4 -1 -4
G  0 -2  0 -1 -3 -2 -2  6 -2 -4 -4 -2 -3 -3 -2  0 -2 -2 -3 -3 -1 -2 -1 -4
H -2  0  1 -1 -3  0  0 -2  8 -3 -3 -1 -2 -1 -2 -1 -2 -2  2 -3  0  0 -1 -4
I -1 -3 -3 -3 -1 -3 -3 -4 -3  4  2 -3  1  0 -3 -2 -1 -3 -1  3 -3 -3 -1 -4
L -1 -2 -3 -4 -1 -2 -3 -4 -3  2  4 -2  2  0 -3 -2 -1 -2 -1  1 -4 -3 -1 -4
K -1  2  0 -1 -3  1  1 -2 -1 -3 -2  5 -1 -3 -1  0 -1 -3 -2 -2  0  1 -1 -4
M -1 -1 -2 -3 -1  0 -2 -3 -2  1  2 -1  5  0 -2 -1 -1 -1 -1  1 -3 -1 -1 -4
F -2 -3 -3 -3 -2 -3 -3 -3 -1  0  0 -3  0  6 -4 -2 -2  1  3 -1 -3 -3 -1 -4
P -1 -2 -2 -1 -3 -1 -1 -2 -2 -3 -3 -1 -2 -4  7 -1 -1 -4 -3 -2 -2 -1 -2 -4
S  1 -1  1  0 -1  0  0  0 -1 -2 -2  0 -1 -2 -1  4  1 -3 -2 -2  0  0  0 -4
T  0 -1  0 -1 -1 -1 -1 -2 -2 -1 -1 -1 -1 -2 -1  1  5 -2 -2  0 -1 -1  0 -4
W -3 -3 -4 -4 -2 -2 -3 -2 -2 -3 -2 -3 -1  1 -4 -3 -2 11  2 -3 -4 -3 -2 -4
Y -2 -2 -2 -3 -2 -1 -2 -3  2 -1 -1 -2 -1  3 -3 -2 -2  2  7 -1 -3 -2 -1 -4
V  0 -3 -3 -3 -1 -2 -2 -3 -3  3  1 -2  1 -1 -2 -2  0 -3 -1  4 -3 -2 -1 -4
B -2 -1  3  4 -3  0  1 -1  0 -3 -4  0 -3 -3 -2  0 -1 -4 -3 -3  4  1 -1 -4
Z -1  0  0  1 -3  3  4 -2  0 -3 -3  1 -1 -3 -1  0 -1 -3 -2 -2  1  4 -1 -4
X  0 -1 -1 -1 -2 -1 -1 -1 -1 -1 -1 -1 -1 -1 -2  0  0 -2 -1 -1 -1 -1 -1 -4
* -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4 -4  1
`

// Blosum62 is the default scoring matrix, with gap open 11 and gap extension 1.
var Blosum62 = MustParseMatrix("BLOSUM62", blosum62, -11, -1, 0.041, 0.14, 0.267)

// ParseMatrix parses a substitution matrix in the NCBI text format.
// Residues not in the matrix are scored as X, lower case letters are accepted.
func ParseMatrix(name, text string, gap, extend int, k, h, lambda float64) (*ProteinScoringMatrix, error) {
	m := &ProteinScoringMatrix{
		Name:   name,
		Gap:    gap,
		Extend: extend,
		K:      k,
		H:      h,
		Lambda: lambda,
	}

	var header []byte
	rows := make(map[byte][]int8, 24)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if header == nil {
			for _, f := range fields {
				if len(f) != 1 {
					return nil, fmt.Errorf("invalid residue in matrix header: %s", f)
				}
				header = append(header, f[0])
			}
			continue
		}
		if len(fields) != len(header)+1 || len(fields[0]) != 1 {
			return nil, fmt.Errorf("invalid matrix row: %s", line)
		}
		row := make([]int8, len(header))
		for i, f := range fields[1:] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("invalid score in matrix: %s", f)
			}
			row[i] = int8(v)
		}
		rows[fields[0][0]] = row
	}
	if len(rows) != len(header) {
		return nil, fmt.Errorf("matrix should be square, %d rows and %d columns", len(rows), len(header))
	}

	// unknown residues
	x := byte('X')
	rowX, ok := rows[x]
	if !ok {
		return nil, fmt.Errorf("residue X missing in matrix")
	}
	var ix int
	for i, c := range header {
		if c == x {
			ix = i
		}
	}

	codes := make([]int, 256)
	for i := range codes {
		codes[i] = -1
	}
	for i, c := range header {
		codes[c] = i
		if c >= 'A' && c <= 'Z' {
			codes[c+32] = i
		}
	}

	var ca, cb int
	var row []int8
	for a := 0; a < 256; a++ {
		ca = codes[a]
		if ca < 0 {
			row = rowX
		} else {
			row = rows[header[ca]]
		}
		for b := 0; b < 256; b++ {
			cb = codes[b]
			if cb < 0 {
				cb = ix
			}
			m.scores[a][b] = row[cb]
		}
	}

	return m, nil
}

// MustParseMatrix is like ParseMatrix but panics on errors.
func MustParseMatrix(name, text string, gap, extend int, k, h, lambda float64) *ProteinScoringMatrix {
	m, err := ParseMatrix(name, text, gap, extend, k, h, lambda)
	if err != nil {
		panic(err)
	}
	return m
}
