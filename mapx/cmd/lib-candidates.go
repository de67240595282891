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
	"os"
	"sync"

	"github.com/shenwei356/mapx/mapx/util"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// the bias of the anchored start in packed candidate keys,
// anchors might be negative.
const anchorBias = 1 << 30

// hitKey identifies a diagonal of a chunk window of a protein.
type hitKey struct {
	readAndFrame int32
	chunkStart   int32
	tStart       int32 // template position of the chunk start
}

// candidate is the best chunk hit of a (readAndFrame, anchored start).
type candidate struct {
	tStart           int32
	chunkStart       int32
	approxScore      int32
	approxScoreIndel int32
}

// CandidateFinder finds candidates of a template by exact word hits,
// and passes them to a worker in ascending order of anchored starts.
// It's not thread-safe, please create one for each worker.
type CandidateFinder struct {
	indexes  []*ReadIndex
	minHits  int32
	maxIndel int32

	hits       map[hitKey]int32
	candidates map[uint64]candidate
	keys       []uint64
}

// NewCandidateFinder creates a CandidateFinder.
func NewCandidateFinder(indexes []*ReadIndex, minHits int, maxIndel int) *CandidateFinder {
	return &CandidateFinder{
		indexes:  indexes,
		minHits:  int32(minHits),
		maxIndel: int32(maxIndel),

		hits:       make(map[hitKey]int32, 1024),
		candidates: make(map[uint64]candidate, 1024),
		keys:       make([]uint64, 0, 1024),
	}
}

// Find calls the worker for candidates of a template.
func (f *CandidateFinder) Find(w *Worker, templateID int, template []byte) error {
	clear(f.hits)
	clear(f.candidates)

	var word uint64
	var pos int
	var ok bool
	var raf, cs, pic int32
	for _, idx := range f.indexes {
		if len(template) < idx.Params.WordSize {
			continue
		}
		it := NewWordIterator(template, idx.Params.WordSize)
		for {
			if word, pos, ok = it.Next(); !ok {
				break
			}
			for _, e := range idx.Lookup(word) {
				raf, cs, pic = unpackEntry(e)
				f.hits[hitKey{raf, cs, int32(pos) - pic}]++
			}
		}
	}

	var key uint64
	var c, old candidate
	var indel, d int32
	for k, n := range f.hits {
		if n < f.minHits {
			continue
		}

		indel = 0
		for d = -f.maxIndel; d <= f.maxIndel; d++ {
			indel += f.hits[hitKey{k.readAndFrame, k.chunkStart, k.tStart + d}]
		}

		c = candidate{tStart: k.tStart, chunkStart: k.chunkStart, approxScore: n, approxScoreIndel: indel}
		key = uint64(k.tStart-k.chunkStart+anchorBias)<<32 | uint64(uint32(k.readAndFrame))
		if old, ok = f.candidates[key]; !ok || c.better(old) {
			f.candidates[key] = c
		}
	}

	f.keys = f.keys[:0]
	for key = range f.candidates {
		f.keys = append(f.keys, key)
	}
	util.UniqUint64s(&f.keys)

	for _, key = range f.keys {
		c = f.candidates[key]
		if err := w.Process(templateID, false, int32(uint32(key)),
			c.tStart, c.chunkStart, c.approxScore, c.approxScoreIndel); err != nil {
			return err
		}
	}
	return nil
}

func (c candidate) better(b candidate) bool {
	if c.approxScoreIndel != b.approxScoreIndel {
		return c.approxScoreIndel > b.approxScoreIndel
	}
	if c.approxScore != b.approxScore {
		return c.approxScore > b.approxScore
	}
	return c.chunkStart < b.chunkStart
}

// --------------------------------------------------------------------------

// SearchOptions are options of running workers.
type SearchOptions struct {
	Threads     int
	ProgressBar bool
}

// RunSearch splits templates into regions and verifies candidates of each
// region in a worker goroutine.
func RunSearch(p *ProteinOutputProcessor, templates *SequenceStore, indexes []*ReadIndex, sopt *SearchOptions) error {
	regions := splitRegions(templates.Lengths(), sopt.Threads)
	if len(regions) == 0 {
		return nil
	}

	opt := p.shared.opt
	workers := make([]*Worker, len(regions))
	var err error
	for i := range regions {
		if workers[i], err = p.NewWorker(i); err != nil {
			return err
		}
	}

	var pbs *mpb.Progress
	var bar *mpb.Bar
	if sopt.ProgressBar {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(templates.Len()),
			mpb.PrependDecorators(
				decor.Name("processed templates: ", decor.WC{W: len("processed templates: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 3),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	errs := make([]error, len(regions))
	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func(i int, region [2]int) {
			defer wg.Done()

			w := workers[i]
			finder := NewCandidateFinder(indexes, opt.MinHits, opt.MaxIndel())
			for id := region[0]; id < region[1]; id++ {
				if err := finder.Find(w, id, templates.Seq(id)); err != nil {
					errs[i] = err
					if bar != nil {
						bar.Abort(false)
					}
					return
				}
				if bar != nil {
					bar.Increment()
				}
			}
		}(i, region)
	}
	wg.Wait()

	if pbs != nil {
		pbs.Wait()
	}

	for _, err = range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
