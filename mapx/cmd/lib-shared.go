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
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
)

// NumLocks is the number of striped locks shared by per-read states.
const NumLocks = 1 << 16

const lockMask = NumLocks - 1

// StripedLocks guards per-read states with a fixed number of mutexes,
// a read uses the lock of readID & (NumLocks-1).
type StripedLocks struct {
	locks [NumLocks]sync.Mutex
}

// Lock locks the stripe of a read.
func (l *StripedLocks) Lock(readID int) {
	l.locks[readID&lockMask].Lock()
}

// Unlock unlocks the stripe of a read.
func (l *StripedLocks) Unlock(readID int) {
	l.locks[readID&lockMask].Unlock()
}

// --------------------------------------------------------------------------

// Status flags of a read, accumulated with OR.
const (
	StatusAlignmentThreshold uint8 = 1 << iota
	StatusExceedsN
	StatusIdentity
	StatusEScore
	StatusBitScore

	// StatusWritten is set once a row of the read is written.
	StatusWritten uint8 = 1 << 7
)

// reasons are in the order of priority.
var reasons = [...]struct {
	flag uint8
	code byte
}{
	{StatusAlignmentThreshold, 'd'},
	{StatusExceedsN, 'e'},
	{StatusIdentity, 'f'},
	{StatusEScore, 'g'},
	{StatusBitScore, 'h'},
}

// ReasonCode returns the code of the first failure reason of a status,
// 0 if no failure flag is set.
func ReasonCode(status uint8) byte {
	for _, r := range reasons {
		if status&r.flag > 0 {
			return r.code
		}
	}
	return 0
}

// SharedStatusCollector records the outcome of each read.
type SharedStatusCollector struct {
	status []uint8
	locks  *StripedLocks
}

// NewSharedStatusCollector creates a SharedStatusCollector for n reads.
func NewSharedStatusCollector(n int, locks *StripedLocks) *SharedStatusCollector {
	return &SharedStatusCollector{
		status: make([]uint8, n),
		locks:  locks,
	}
}

// SetStatus adds a flag to a read.
func (c *SharedStatusCollector) SetStatus(readID int, flag uint8) {
	c.locks.Lock(readID)
	c.status[readID] |= flag
	c.locks.Unlock(readID)
}

// Status returns the status of a read.
func (c *SharedStatusCollector) Status(readID int) uint8 {
	c.locks.Lock(readID)
	s := c.status[readID]
	c.locks.Unlock(readID)
	return s
}

// Len returns the number of reads.
func (c *SharedStatusCollector) Len() int {
	return len(c.status)
}

// UnmappedStats contains numbers of reads not written, per reason.
type UnmappedStats struct {
	Mapped   int `toml:"mapped"`
	Unmapped int `toml:"unmapped"`

	AlignmentThreshold int `toml:"alignment-threshold"`
	ExceedsN           int `toml:"exceeds-n"`
	Identity           int `toml:"identity"`
	EScore             int `toml:"e-score"`
	BitScore           int `toml:"bit-score"`
	NoHits             int `toml:"no-hits"`
}

func (s *UnmappedStats) add(code byte) {
	s.Unmapped++
	switch code {
	case 'd':
		s.AlignmentThreshold++
	case 'e':
		s.ExceedsN++
	case 'f':
		s.Identity++
	case 'g':
		s.EScore++
	case 'h':
		s.BitScore++
	default:
		s.NoHits++
	}
}

// Stats counts mapped and unmapped reads. It should be called after all workers finished.
func (c *SharedStatusCollector) Stats() *UnmappedStats {
	stats := &UnmappedStats{}
	for _, s := range c.status {
		if s&StatusWritten > 0 {
			stats.Mapped++
			continue
		}
		stats.add(ReasonCode(s))
	}
	return stats
}

// WriteUnmapped writes reads without any written row, along with the reason code.
// names is used when it's not nil.
func (c *SharedStatusCollector) WriteUnmapped(w *bufio.Writer, names []string) (int, error) {
	var n int
	var code byte
	var err error
	for id, s := range c.status {
		if s&StatusWritten > 0 {
			continue
		}

		buf := w.AvailableBuffer()
		if names != nil {
			buf = append(buf, names[id]...)
		} else {
			buf = strconv.AppendInt(buf, int64(id), 10)
		}
		buf = append(buf, '\t')
		if code = ReasonCode(s); code > 0 {
			buf = append(buf, code)
		}
		buf = append(buf, '\n')
		if _, err = w.Write(buf); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// --------------------------------------------------------------------------

// SharedProteinResources provides proteins of reads shared by all workers.
// Reads in nucleotides are translated in all six frames on the first use.
type SharedProteinResources struct {
	reads      *SequenceStore
	translated bool

	proteins [][]byte // indexed by readAndFrame
	done     []bool   // indexed by readId
	locks    *StripedLocks
}

// NewSharedProteinResources creates a SharedProteinResources.
func NewSharedProteinResources(reads *SequenceStore, translated bool, locks *StripedLocks) *SharedProteinResources {
	r := &SharedProteinResources{
		reads:      reads,
		translated: translated,
		locks:      locks,
	}
	if translated {
		r.proteins = make([][]byte, reads.Len()*6)
		r.done = make([]bool, reads.Len())
	}
	return r
}

// Protein returns the protein of a readAndFrame, the returned slice should not be modified.
func (r *SharedProteinResources) Protein(readAndFrame int32) []byte {
	if !r.translated {
		return r.reads.Seq(int(readAndFrame))
	}

	readID := int(readAndFrame / 6)
	r.locks.Lock(readID)
	if !r.done[readID] {
		if err := translateFrames(r.reads.Seq(readID), r.proteins[readID*6:readID*6+6]); err != nil {
			log.Warningf("read %s skipped: %s", r.reads.Name(readID), err)
		}
		r.done[readID] = true
	}
	p := r.proteins[readAndFrame]
	r.locks.Unlock(readID)
	return p
}

// ReadLength returns the length of the original read.
func (r *SharedProteinResources) ReadLength(readID int) int {
	return r.reads.Length(readID)
}

// ProteinLength returns the length of the protein of a read in a frame,
// without translating it.
func ProteinLength(readLength int, frame int8) int {
	if frame == 0 {
		return readLength
	}
	offset := int(frame)
	if offset < 0 {
		offset = -offset
	}
	offset--
	if readLength <= offset {
		return 0
	}
	return (readLength - offset) / 3
}

// translateFrames translates a nucleotide sequence in the six frames, in the order of Frames.
// All frames are empty for an invalid sequence.
func translateFrames(s []byte, proteins [][]byte) error {
	dna, err := seq.NewSeq(seq.DNAredundant, s)
	if err != nil {
		for i := range proteins {
			proteins[i] = []byte{}
		}
		return errors.Wrap(err, "failed to translate")
	}
	var p *seq.Seq
	for i, frame := range Frames {
		if ProteinLength(len(s), frame) == 0 {
			proteins[i] = []byte{}
			continue
		}
		p, err = dna.Translate(1, int(frame), false, false, true, false)
		if err != nil {
			proteins[i] = []byte{}
			continue
		}
		proteins[i] = p.Seq
	}
	return nil
}

// --------------------------------------------------------------------------

// templateCache keeps the most recently used template of a worker,
// candidates of a template arrive contiguously.
type templateCache struct {
	store *SequenceStore

	id  int
	seq []byte

	loads int
}

func newTemplateCache(store *SequenceStore) *templateCache {
	return &templateCache{store: store, id: -1}
}

// Get returns a template by id.
func (c *templateCache) Get(id int) []byte {
	if id != c.id {
		c.id = id
		c.seq = c.store.Seq(id)
		c.loads++
	}
	return c.seq
}
