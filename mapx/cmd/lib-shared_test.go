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
	"bytes"
	"sync"
	"testing"

	"github.com/shenwei356/bio/seq"
)

func TestReasonCode(t *testing.T) {
	tests := []struct {
		status uint8
		code   byte
	}{
		{0, 0},
		{StatusWritten, 0},
		{StatusAlignmentThreshold, 'd'},
		{StatusExceedsN, 'e'},
		{StatusIdentity, 'f'},
		{StatusEScore, 'g'},
		{StatusBitScore, 'h'},
		{StatusBitScore | StatusIdentity, 'f'},
		{StatusEScore | StatusAlignmentThreshold | StatusBitScore, 'd'},
	}
	for _, test := range tests {
		if c := ReasonCode(test.status); c != test.code {
			t.Errorf("status %08b, expected: %q, results: %q", test.status, test.code, c)
		}
	}
}

func TestSharedStatusCollector(t *testing.T) {
	c := NewSharedStatusCollector(5, &StripedLocks{})

	var wg sync.WaitGroup
	for _, flag := range []uint8{StatusIdentity, StatusEScore, StatusBitScore} {
		wg.Add(1)
		go func(flag uint8) {
			defer wg.Done()
			c.SetStatus(1, flag)
			c.SetStatus(3, flag)
		}(flag)
	}
	wg.Wait()
	c.SetStatus(2, StatusWritten)
	c.SetStatus(3, StatusWritten)
	c.SetStatus(4, StatusExceedsN)

	if s := c.Status(1); s != StatusIdentity|StatusEScore|StatusBitScore {
		t.Errorf("unexpected status: %08b", s)
	}

	stats := c.Stats()
	expected := UnmappedStats{Mapped: 2, Unmapped: 3, Identity: 1, ExceedsN: 1, NoHits: 1}
	if *stats != expected {
		t.Errorf("expected: %+v, results: %+v", expected, *stats)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	n, err := c.WriteUnmapped(w, nil)
	if err != nil {
		t.Error(err)
		return
	}
	w.Flush()
	if n != 3 {
		t.Errorf("expected %d unmapped reads, results: %d", 3, n)
	}
	if s := buf.String(); s != "0\t\n1\tf\n4\te\n" {
		t.Errorf("unexpected unmapped rows: %q", s)
	}

	buf.Reset()
	w.Reset(&buf)
	_, err = c.WriteUnmapped(w, []string{"r0", "r1", "r2", "r3", "r4"})
	if err != nil {
		t.Error(err)
		return
	}
	w.Flush()
	if s := buf.String(); s != "r0\t\nr1\tf\nr4\te\n" {
		t.Errorf("unexpected unmapped rows: %q", s)
	}
}

func TestProteinLength(t *testing.T) {
	tests := []struct {
		l     int
		frame int8
		p     int
	}{
		{30, 0, 30},
		{30, 1, 10},
		{30, 2, 9},
		{30, 3, 9},
		{30, -1, 10},
		{31, -3, 9},
		{2, 3, 0},
		{0, 1, 0},
	}
	for _, test := range tests {
		if p := ProteinLength(test.l, test.frame); p != test.p {
			t.Errorf("read length %d, frame %d, expected: %d, results: %d", test.l, test.frame, test.p, p)
		}
	}
}

func TestSharedProteinResources(t *testing.T) {
	reads := NewSequenceStore()
	reads.Add("r0", []byte("ATGGCTTGTGATTAA"))
	reads.Add("r1", []byte("ttaatcacaagccat")) // reverse complement of r0

	proteins := NewSharedProteinResources(reads, true, &StripedLocks{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proteins.Protein(ReadAndFrame(0, 0, true))
			proteins.Protein(ReadAndFrame(1, 3, true))
		}()
	}
	wg.Wait()

	for _, raf := range []int32{ReadAndFrame(0, 0, true), ReadAndFrame(1, 3, true)} {
		if p := string(proteins.Protein(raf)); p != "MACD*" {
			t.Errorf("readAndFrame %d, expected: %s, results: %s", raf, "MACD*", p)
		}
	}
	for slot, frame := range Frames {
		p := proteins.Protein(ReadAndFrame(0, slot, true))
		if len(p) != ProteinLength(reads.Length(0), frame) {
			t.Errorf("frame %d, expected length: %d, results: %d", frame, ProteinLength(reads.Length(0), frame), len(p))
		}
	}

	plain := NewSharedProteinResources(reads, false, &StripedLocks{})
	if p := string(plain.Protein(1)); p != "TTAATCACAAGCCAT" {
		t.Errorf("unexpected protein: %s", p)
	}
	if plain.ReadLength(1) != 15 {
		t.Errorf("expected read length: %d, results: %d", 15, plain.ReadLength(1))
	}
}

func TestTranslateInvalidRead(t *testing.T) {
	validate := seq.ValidateSeq
	seq.ValidateSeq = true
	defer func() { seq.ValidateSeq = validate }()

	reads := NewSequenceStore()
	reads.Add("r0", []byte("ATG!!CTTGAT"))
	proteins := NewSharedProteinResources(reads, true, &StripedLocks{})
	for slot := range Frames {
		p := proteins.Protein(ReadAndFrame(0, slot, true))
		if p == nil || len(p) != 0 {
			t.Errorf("frame %d, expected an empty protein, results: %q", Frames[slot], p)
		}
	}

	frames := make([][]byte, 6)
	if err := translateFrames([]byte("ATG!!CTTGAT"), frames); err == nil {
		t.Errorf("expected error for an invalid sequence")
	}
}

func TestTemplateCache(t *testing.T) {
	store := NewSequenceStore()
	store.Add("a", []byte("MKV"))
	store.Add("b", []byte("ACD"))

	c := newTemplateCache(store)
	c.Get(0)
	c.Get(0)
	if s := string(c.Get(1)); s != "ACD" {
		t.Errorf("expected: %s, results: %s", "ACD", s)
	}
	if c.loads != 2 {
		t.Errorf("expected loads: %d, results: %d", 2, c.loads)
	}
}
