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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shenwei356/xopen"
)

func writeTestFile(t *testing.T, file string, content string) {
	outfh, gw, w, err := outStream(file, isGzipFile(file), -1)
	if err != nil {
		t.Error(err)
		return
	}
	outfh.WriteString(content)
	outfh.Flush()
	if gw != nil {
		gw.Close()
	}
	w.Close()
}

func readLines(t *testing.T, file string) []string {
	fh, err := xopen.Ropen(file)
	if err != nil {
		t.Error(err)
		return nil
	}
	defer fh.Close()

	var lines []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestConcatResultFiles(t *testing.T) {
	header := NewOutputHeader("mapx map -t t.faa", time.Now())

	tests := []struct {
		compressed bool
		files      []string
	}{
		{true, []string{"a.tsv.gz", "b.tsv.gz"}}, // raw copy
		{false, []string{"a.tsv", "b.tsv"}},      // raw copy
		{true, []string{"a.tsv.gz", "b.tsv"}},    // line by line
		{false, []string{"a.tsv.gz", "b.tsv"}},   // line by line
	}
	for i, test := range tests {
		dir := t.TempDir()

		files := make([]string, len(test.files))
		for j, f := range test.files {
			files[j] = filepath.Join(dir, f)
		}
		writeTestFile(t, files[0], "a1\na2\n")
		writeTestFile(t, files[1], "b1\n")

		file := filepath.Join(dir, "alignments.tsv")
		if test.compressed {
			file += ".gz"
		}
		rw, err := NewResultWriter(file, test.compressed, -1, testRowFormat(),
			NewSharedStatusCollector(1, &StripedLocks{}), header)
		if err != nil {
			t.Error(err)
			return
		}
		if err = concatResultFiles(rw, files); err != nil {
			t.Error(err)
			return
		}
		if err = rw.Close(); err != nil {
			t.Error(err)
			return
		}
		if err = removeFiles(files); err != nil {
			t.Error(err)
		}
		for _, f := range files {
			if _, err = os.Stat(f); !os.IsNotExist(err) {
				t.Errorf("file not removed: %s", f)
			}
		}

		lines := readLines(t, file)
		var rows []string
		var comments int
		for _, line := range lines {
			if strings.HasPrefix(line, "#") {
				comments++
				continue
			}
			rows = append(rows, line)
		}
		if comments != 5 {
			t.Errorf("test %d, expected header lines: %d, results: %d", i, 5, comments)
		}
		if strings.Join(rows, ",") != "a1,a2,b1" {
			t.Errorf("test %d, unexpected rows: %v", i, rows)
		}
		if !strings.HasPrefix(lines[len(lines)-4], "#template-name") {
			t.Errorf("test %d, unexpected column header: %s", i, lines[len(lines)-4])
		}
	}
}

func TestOutputHeader(t *testing.T) {
	now := time.Now()
	h := NewOutputHeader("mapx map", now)
	if h.RunID != NewRunID("mapx map", now) {
		t.Errorf("run ids should be reproducible")
	}
	if h.RunID == NewRunID("mapx map -n 5", now) {
		t.Errorf("run ids of different command lines should differ")
	}
}
