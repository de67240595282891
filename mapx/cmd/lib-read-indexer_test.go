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
	"sort"
	"strings"
	"testing"
)

func TestWordIterator(t *testing.T) {
	s := []byte("ACXDEF*GHIK")
	it := NewWordIterator(s, 2)

	var words []string
	var pos []int
	for {
		word, p, ok := it.Next()
		if !ok {
			break
		}
		expected, _ := PackWord(s[p : p+2])
		if word != expected {
			t.Errorf("position %d, expected word: %d, results: %d", p, expected, word)
		}
		words = append(words, string(s[p:p+2]))
		pos = append(pos, p)
	}
	if strings.Join(words, ",") != "AC,DE,EF,GH,HI,IK" {
		t.Errorf("unexpected words: %v", words)
	}
	if !equalInts(pos, []int{0, 3, 4, 7, 8, 9}) {
		t.Errorf("unexpected positions: %v", pos)
	}

	if _, ok := PackWord([]byte("AX")); ok {
		t.Errorf("words with X should not be packed")
	}
	a, _ := PackWord([]byte("ACDE"))
	b, _ := PackWord([]byte("acde"))
	if a != b {
		t.Errorf("words should be case-insensitive")
	}
}

func TestEntryPacking(t *testing.T) {
	tests := [][3]int32{
		{0, 0, 0},
		{123456, 64, 62},
		{1<<31 - 1, 1<<24 - 1, 255},
	}
	for _, test := range tests {
		raf, cs, pic := unpackEntry(packEntry(test[0], int(test[1]), int(test[2])))
		if raf != test[0] || cs != test[1] || pic != test[2] {
			t.Errorf("expected: %v, results: %d %d %d", test, raf, cs, pic)
		}
	}
}

func TestChunkGeometry(t *testing.T) {
	g, err := newChunkGeometry(126, 63, 31)
	if err != nil {
		t.Error(err)
		return
	}

	tests := []struct {
		pos     int
		windows []int
	}{
		{0, []int{0}},
		{40, []int{0, 1}},
		{59, []int{0, 1}},
		{60, []int{1}},
		{64, []int{1, 2}},
		{100, []int{2}},
		{122, []int{2}},
	}
	for _, test := range tests {
		ws := g.covering(test.pos, 4, nil)
		sort.Ints(ws)
		if !equalInts(ws, test.windows) {
			t.Errorf("position %d, expected: %v, results: %v", test.pos, test.windows, ws)
		}
	}

	g, err = newChunkGeometry(40, 63, 31)
	if err != nil {
		t.Error(err)
		return
	}
	if ws := g.covering(36, 4, nil); !equalInts(ws, []int{0}) {
		t.Errorf("expected: [0], results: %v", ws)
	}
}

func TestBucketParams(t *testing.T) {
	reads := NewSequenceStore()
	reads.Add("long", []byte(strings.Repeat("A", 300)))
	reads.Add("long2", []byte(strings.Repeat("C", 301)))
	reads.Add("short", []byte(strings.Repeat("G", 90)))
	reads.Add("tiny", []byte(strings.Repeat("T", 20)))

	opt := DefaultProteinMapOptions()
	x := NewProteinReadIndexer(reads, opt)

	if x.Buckets().Excluded() != 1 {
		t.Errorf("expected excluded reads: %d, results: %d", 1, x.Buckets().Excluded())
	}
	if x.ParamsOf(20) != nil {
		t.Errorf("reads shorter than the minimum length should not be indexed")
	}
	if len(x.Params()) != 2 {
		t.Errorf("expected buckets: %d, results: %d", 2, len(x.Params()))
		return
	}

	p := x.ParamsOf(301)
	if p == nil || p.BucketID != 300 || p.Reads != 2 {
		t.Errorf("unexpected bucket: %v", p)
		return
	}
	if !p.MetaChunking || p.MaxProteinLength != 100 || p.WindowLength != 63 || p.Windows != 3 || p.WordSize != 4 {
		t.Errorf("unexpected parameters: %s", p)
	}

	p = x.ParamsOf(90)
	if p.MetaChunking || p.MaxProteinLength != 30 || p.WindowLength != 30 || p.Windows != 1 {
		t.Errorf("unexpected parameters: %s", p)
	}
}

func TestBuildIndexes(t *testing.T) {
	reads := NewSequenceStore()
	reads.Add("r0", []byte("MKVLAAGIVALLLAAGCSSSKEETPKAPELTLEQRVAQL"))
	reads.Add("r1", []byte("AAGIVALLLAAGCSSXXXXXKEETPKAPELTLEQRVAQL"))

	opt := DefaultProteinMapOptions()
	opt.Translated = false
	x := NewProteinReadIndexer(reads, opt)
	proteins := NewSharedProteinResources(reads, false, &StripedLocks{})

	indexes, err := x.BuildIndexes(reads, proteins, 2)
	if err != nil {
		t.Error(err)
		return
	}
	if len(indexes) != 1 {
		t.Errorf("expected indexes: %d, results: %d", 1, len(indexes))
		return
	}
	idx := indexes[0]

	// 36 words of r0, 12 + 16 words of r1
	if idx.Entries() != 36+12+16 {
		t.Errorf("expected entries: %d, results: %d", 36+12+16, idx.Entries())
	}

	word, _ := PackWord([]byte("AAGI"))
	entries := idx.Lookup(word)
	if len(entries) != 2 {
		t.Errorf("expected entries of AAGI: %d, results: %d", 2, len(entries))
		return
	}
	found := map[int32]int32{}
	for _, e := range entries {
		raf, cs, pic := unpackEntry(e)
		if cs != 0 {
			t.Errorf("unexpected chunk start: %d", cs)
		}
		found[raf] = pic
	}
	if found[0] != 4 || found[1] != 0 {
		t.Errorf("unexpected positions of AAGI: %v", found)
	}
}
