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
	"sync"

	"github.com/pkg/errors"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/mapx/mapx/cmd/bucket"
	"github.com/shenwei356/mapx/mapx/index/bitscore"
)

// initial size of word maps
var mapInitSize = 1 << 20 // 1M

// MaxWordSize is the maximum length of indexed words, a word is packed
// into 5 bits per residue.
const MaxWordSize = 12

// codes of residues which are not indexed
var codeX, codeStop = bitscore.Code('X'), bitscore.Code('*')

// BucketIndexParams are the parameters of indexing the reads of a length bucket.
type BucketIndexParams struct {
	BucketID         int
	Reads            int
	MaxProteinLength int
	MetaChunking     bool
	WindowLength     int // length of indexed windows
	Windows          int // number of windows of a protein of the maximum length
	WordSize         int
}

func (p *BucketIndexParams) String() string {
	return fmt.Sprintf("bucket %d: %d reads, max protein length: %d, meta-chunking: %v, window length: %d, windows: %d, word size: %d",
		p.BucketID, p.Reads, p.MaxProteinLength, p.MetaChunking, p.WindowLength, p.Windows, p.WordSize)
}

// chunkGeometry maps positions of proteins of one length to the covering chunk windows.
type chunkGeometry struct {
	windows []bucket.Window
	tree    *interval.SearchTree[int, int]
}

func newChunkGeometry(protLen, chunkLen, overlap int) (*chunkGeometry, error) {
	g := &chunkGeometry{
		windows: bucket.MetaChunkWindows(protLen, chunkLen, overlap),
		tree:    interval.NewSearchTree[int, int](func(x, y int) int { return x - y }),
	}
	for i, w := range g.windows {
		// closed intervals in the tree
		if err := g.tree.Insert(w.Start, w.End-1, i); err != nil {
			return nil, errors.Wrapf(err, "failed to insert window %d: [%d, %d)", i, w.Start, w.End)
		}
	}
	return g, nil
}

// covering appends indexes of windows containing [pos, pos+k) to buf.
func (g *chunkGeometry) covering(pos, k int, buf []int) []int {
	ids, ok := g.tree.AllIntersections(pos, pos+k-1)
	if !ok {
		return buf
	}
	var w bucket.Window
	for _, i := range ids {
		w = g.windows[i]
		if w.Start <= pos && pos+k <= w.End {
			buf = append(buf, i)
		}
	}
	return buf
}

// ProteinReadIndexer decides how reads of each length bucket are indexed,
// and builds the word indexes.
type ProteinReadIndexer struct {
	opt     *ProteinMapOptions
	buckets *bucket.SequenceLengthBuckets
	params  []*BucketIndexParams
	byID    map[int]*BucketIndexParams
}

// NewProteinReadIndexer computes the parameters of all buckets.
func NewProteinReadIndexer(reads *SequenceStore, opt *ProteinMapOptions) *ProteinReadIndexer {
	x := &ProteinReadIndexer{
		opt:     opt,
		buckets: bucket.NewSequenceLengthBuckets(reads.Lengths(), opt.MinReadLength),
	}

	ids := x.buckets.Buckets()
	x.params = make([]*BucketIndexParams, 0, len(ids))
	x.byID = make(map[int]*BucketIndexParams, len(ids))
	for _, id := range ids {
		p := x.bucketParams(id)
		x.params = append(x.params, p)
		x.byID[id] = p
	}
	return x
}

func (x *ProteinReadIndexer) bucketParams(id int) *BucketIndexParams {
	opt := x.opt

	// the longest read of the bucket
	maxLen := id + bucket.Quantum - 1
	maxProt := maxLen
	if opt.Translated {
		maxProt = ProteinLength(maxLen, 1)
	}

	p := &BucketIndexParams{
		BucketID:         id,
		Reads:            x.buckets.Count(id),
		MaxProteinLength: maxProt,
		MetaChunking:     bucket.NeedsMetaChunking(maxProt, opt.MetaChunkLength),
	}
	if p.MetaChunking {
		p.WindowLength = opt.MetaChunkLength
	} else {
		p.WindowLength = maxProt
	}
	p.Windows = bucket.CountMetaChunks(maxProt, opt.MetaChunkLength, opt.MetaChunkOverlap)
	p.WordSize = min(opt.WordSize, p.WindowLength, MaxWordSize)
	return p
}

// Params returns parameters of all buckets, in ascending order of bucket ids.
func (x *ProteinReadIndexer) Params() []*BucketIndexParams {
	return x.params
}

// Buckets returns the length buckets of reads.
func (x *ProteinReadIndexer) Buckets() *bucket.SequenceLengthBuckets {
	return x.buckets
}

// ParamsOf returns the parameters of the bucket of a read length, nil for
// reads not indexed.
func (x *ProteinReadIndexer) ParamsOf(readLength int) *BucketIndexParams {
	if !x.buckets.Contains(readLength) {
		return nil
	}
	return x.byID[bucket.BucketOf(readLength)]
}

// --------------------------------------------------------------------------

// ReadIndex maps words to positions in the chunk windows of reads of a bucket.
type ReadIndex struct {
	Params *BucketIndexParams

	words   map[uint64][]uint64
	entries int
}

// an entry: readAndFrame (32 bits) | chunkStart (24 bits) | positionInChunk (8 bits)
func packEntry(readAndFrame int32, chunkStart, posInChunk int) uint64 {
	return uint64(uint32(readAndFrame))<<32 | uint64(chunkStart&0xffffff)<<8 | uint64(posInChunk&0xff)
}

func unpackEntry(e uint64) (int32, int32, int32) {
	return int32(uint32(e >> 32)), int32((e >> 8) & 0xffffff), int32(e & 0xff)
}

// Lookup returns the entries of a word.
func (idx *ReadIndex) Lookup(word uint64) []uint64 {
	return idx.words[word]
}

// Words returns the number of distinct words.
func (idx *ReadIndex) Words() int {
	return len(idx.words)
}

// Entries returns the number of entries.
func (idx *ReadIndex) Entries() int {
	return idx.entries
}

// WordIterator yields packed words of a protein, skipping words containing
// X or stop codons.
type WordIterator struct {
	s    []byte
	k    int
	mask uint64

	i     int
	word  uint64
	valid int // length of the run of indexable residues before i
}

// NewWordIterator creates an iterator of words of length k.
func NewWordIterator(s []byte, k int) *WordIterator {
	return &WordIterator{s: s, k: k, mask: 1<<(uint(k)*5) - 1}
}

// Next returns the next word and its start position, ok is false at the end.
func (it *WordIterator) Next() (word uint64, pos int, ok bool) {
	var c uint8
	for it.i < len(it.s) {
		c = bitscore.Code(it.s[it.i])
		it.i++
		if c == codeX || c == codeStop {
			it.valid = 0
			it.word = 0
			continue
		}
		it.word = (it.word<<5 | uint64(c)) & it.mask
		it.valid++
		if it.valid >= it.k {
			return it.word, it.i - it.k, true
		}
	}
	return 0, 0, false
}

// PackWord packs a word, ok is false if it contains residues not indexed.
func PackWord(s []byte) (uint64, bool) {
	var word uint64
	var c uint8
	for _, b := range s {
		c = bitscore.Code(b)
		if c == codeX || c == codeStop {
			return 0, false
		}
		word = word<<5 | uint64(c)
	}
	return word, true
}

// BuildIndexes builds a word index for each bucket, with at most threads buckets
// indexed at the same time.
func (x *ProteinReadIndexer) BuildIndexes(reads *SequenceStore, proteins *SharedProteinResources, threads int) ([]*ReadIndex, error) {
	// read ids of each bucket
	members := make(map[int][]int, len(x.params))
	for id, l := range reads.Lengths() {
		if p := x.ParamsOf(l); p != nil {
			members[p.BucketID] = append(members[p.BucketID], id)
		}
	}

	indexes := make([]*ReadIndex, len(x.params))
	errs := make([]error, len(x.params))

	frames := x.opt.FramesPerRead()
	translated := x.opt.Translated

	var wg sync.WaitGroup
	tokens := make(chan int, max(1, threads))
	for i, p := range x.params {
		tokens <- 1
		wg.Add(1)

		go func(i int, p *BucketIndexParams) {
			defer func() {
				<-tokens
				wg.Done()
			}()

			idx := &ReadIndex{
				Params: p,
				words:  make(map[uint64][]uint64, min(p.Reads*frames*p.MaxProteinLength, mapInitSize)),
			}
			geometries := make(map[int]*chunkGeometry, 4)

			var g *chunkGeometry
			var ok bool
			var err error
			var raf int32
			var protein []byte
			var word uint64
			var pos int
			var w bucket.Window
			chunks := make([]int, 0, 8)
			k := p.WordSize

			for _, readID := range members[p.BucketID] {
				for slot := 0; slot < frames; slot++ {
					raf = ReadAndFrame(readID, slot, translated)
					protein = proteins.Protein(raf)
					if len(protein) < k {
						continue
					}

					if g, ok = geometries[len(protein)]; !ok {
						g, err = newChunkGeometry(len(protein), x.opt.MetaChunkLength, x.opt.MetaChunkOverlap)
						if err != nil {
							errs[i] = err
							return
						}
						geometries[len(protein)] = g
					}

					it := NewWordIterator(protein, k)
					for {
						word, pos, ok = it.Next()
						if !ok {
							break
						}
						chunks = g.covering(pos, k, chunks[:0])
						for _, c := range chunks {
							w = g.windows[c]
							idx.words[word] = append(idx.words[word], packEntry(raf, w.Start, pos-w.Start))
							idx.entries++
						}
					}
				}
			}

			indexes[i] = idx
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return indexes, nil
}
