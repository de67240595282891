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
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/mapx/mapx/index/align"
	"github.com/shenwei356/mapx/mapx/index/bitscore"
)

// ErrUnsupported means the operation is not supported.
var ErrUnsupported = errors.New("unsupported operation")

// ErrBufferDistanceTooSmall means results arrived too far out of order to be deduplicated.
var ErrBufferDistanceTooSmall = errors.New("buffer distance too small")

// ShiftLimit is the maximum difference between the anchored start and the start
// of the alignment, beyond which the read is aligned again at the new start.
const ShiftLimit = 5

// ShiftHistogramRange is the maximum absolute shift recorded in the histogram.
const ShiftHistogramRange = 10

// MaxShiftFraction is the fraction of the protein length that the alignment
// can move away from the anchored start.
const MaxShiftFraction = 0.6

// Output file names.
const (
	FileAlignments = "alignments.tsv"
	FileUnmapped   = "unmapped.tsv"
	FileSummary    = "summary.toml"
	FileShiftPlot  = "shifts.png"
)

// strategy decides which retained results are written.
type strategy interface {
	Accept(r *ProteinAlignmentResult) error
	Finish() error
}

// ProcessorStats contains counters of candidates.
type ProcessorStats struct {
	Candidates    int64 `toml:"candidates"`
	CandidateHits int64 `toml:"candidate-hits"`

	NoOverlap       int64 `toml:"no-overlap"`
	PreFilterFailed int64 `toml:"prefilter-failed"`
	Aligned         int64 `toml:"aligned"`
	ReAnchored      int64 `toml:"re-anchored"`

	AlignmentThreshold int64 `toml:"alignment-threshold"`
	Identity           int64 `toml:"identity"`
	EScore             int64 `toml:"e-score"`
	BitScore           int64 `toml:"bit-score"`
	Retained           int64 `toml:"retained"`

	Templates int64 `toml:"templates"`
}

func (s *ProcessorStats) add(b *ProcessorStats) {
	s.Candidates += b.Candidates
	s.CandidateHits += b.CandidateHits
	s.NoOverlap += b.NoOverlap
	s.PreFilterFailed += b.PreFilterFailed
	s.Aligned += b.Aligned
	s.ReAnchored += b.ReAnchored
	s.AlignmentThreshold += b.AlignmentThreshold
	s.Identity += b.Identity
	s.EScore += b.EScore
	s.BitScore += b.BitScore
	s.Retained += b.Retained
	s.Templates += b.Templates
}

// sharedState is shared by the master and all workers.
type sharedState struct {
	opt    *ProteinMapOptions
	outDir string
	header *OutputHeader

	templates *SequenceStore
	reads     *SequenceStore
	proteins  *SharedProteinResources
	locks     *StripedLocks
	status    *SharedStatusCollector

	rctx   *resultContext
	format *RowFormat

	bufferDistance int
	suffix         string // of output files
}

// ProteinOutputProcessor is the master of alignment verification and result
// selection. It owns the output file, the read status, and, for the top-n and
// top-equal modes, the ranking tables shared by all workers.
type ProteinOutputProcessor struct {
	shared *sharedState

	writer   *ResultWriter // nil for all-hits mode without merging
	strategy strategy      // shared, nil for the all-hits mode
	workers  []*Worker

	finished bool
}

// NewProteinOutputProcessor creates a master processor writing into outDir,
// which should exist.
func NewProteinOutputProcessor(outDir string, opt *ProteinMapOptions,
	templates *SequenceStore, reads *SequenceStore, header *OutputHeader) (*ProteinOutputProcessor, error) {
	if opt.TopN < 1 || opt.TopN > MaxTopN {
		return nil, fmt.Errorf("invalid value of N: %d, valid range: [1, %d]", opt.TopN, MaxTopN)
	}

	locks := &StripedLocks{}
	status := NewSharedStatusCollector(reads.Len(), locks)

	suffix := ""
	if opt.CompressOutput {
		suffix = ".gz"
	}

	s := &sharedState{
		opt:    opt,
		outDir: outDir,
		header: header,

		templates: templates,
		reads:     reads,
		proteins:  NewSharedProteinResources(reads, opt.Translated, locks),
		locks:     locks,
		status:    status,

		rctx: &resultContext{
			matrix:     opt.Matrix,
			scoring:    NewScoringHelper(opt.Matrix),
			dbLength:   templates.TotalLength(),
			translated: opt.Translated,
			withSeqs:   opt.OutputProteinSequences,
		},
		format: &RowFormat{
			Translated:       opt.Translated,
			ReadNames:        opt.OutputReadNames,
			ProteinSequences: opt.OutputProteinSequences,
			templateNames:    templates.Names,
			readNames:        reads.Names,
		},

		bufferDistance: allHitsBufferDistance(reads.MaxLength(), opt.Translated),
		suffix:         suffix,
	}

	p := &ProteinOutputProcessor{shared: s}

	if opt.Mode != ModeAllHits || opt.MergeAlignmentResults {
		var err error
		p.writer, err = NewResultWriter(filepath.Join(outDir, FileAlignments+suffix),
			opt.CompressOutput, opt.CompressionLevel, s.format, status, header)
		if err != nil {
			return nil, err
		}
	}

	switch opt.Mode {
	case ModeTopN:
		p.strategy = newTopNStrategy(reads.Len(), opt.TopN, locks, p.writer, status)
	case ModeTopEqual:
		p.strategy = newTopEqualStrategy(reads.Len(), opt.TopN, locks, p.writer, status)
	}

	return p, nil
}

// allHitsBufferDistance returns the buffer distance of the all-hits mode:
// the maximum protein length plus the maximum shifts of the two alignments,
// as a read might be aligned again at the shifted start.
// A re-anchored result may start up to two shifts before the anchor of a
// later candidate, and must still find its predecessors in the buffer.
func allHitsBufferDistance(maxReadLength int, translated bool) int {
	maxProtein := maxReadLength
	if translated {
		maxProtein = maxReadLength / 3
	}
	return maxProtein + 2*maxShift(maxProtein)
}

func maxShift(proteinLength int) int {
	return int(math.Round(float64(proteinLength) * MaxShiftFraction))
}

// Proteins returns the shared proteins of reads.
func (p *ProteinOutputProcessor) Proteins() *SharedProteinResources {
	return p.shared.proteins
}

// BufferDistance returns the buffer distance of the all-hits mode.
func (p *ProteinOutputProcessor) BufferDistance() int {
	return p.shared.bufferDistance
}

// Status returns the shared status collector.
func (p *ProteinOutputProcessor) Status() *SharedStatusCollector {
	return p.shared.status
}

// NewWorker creates a worker for a region of templates. It should be called
// from one goroutine, and the worker should be used by one goroutine.
func (p *ProteinOutputProcessor) NewWorker(region int) (*Worker, error) {
	s := p.shared
	scorer, err := bitscore.New(s.opt.MaxIndel())
	if err != nil {
		return nil, err
	}

	w := &Worker{
		shared:    s,
		region:    region,
		aligner:   align.NewGotohProteinEditDistance(s.opt.Matrix),
		scorer:    scorer,
		templates: newTemplateCache(s.templates),
	}

	if s.opt.Mode == ModeAllHits {
		var header *OutputHeader
		var file string
		if s.opt.MergeAlignmentResults {
			file = filepath.Join(s.outDir, fmt.Sprintf("tmp-alignments-%d.tsv%s", region, s.suffix))
		} else {
			file = filepath.Join(s.outDir, fmt.Sprintf("alignments-%d.tsv%s", region, s.suffix))
			header = s.header
		}
		w.writer, err = NewResultWriter(file, s.opt.CompressOutput, s.opt.CompressionLevel, s.format, s.status, header)
		if err != nil {
			return nil, err
		}
		w.allHits = newAllHitsStrategy(w.writer, s.bufferDistance)
		w.strategy = w.allHits
	} else {
		w.strategy = p.strategy
	}

	p.workers = append(p.workers, w)
	return w, nil
}

// FinishResult are numbers collected by Finish.
type FinishResult struct {
	Stats        ProcessorStats
	Shifts       [2*ShiftHistogramRange + 1]int64
	Identities   [101]int64
	Written      int64
	Duplicates   int64
	ExceedsN     int64
	Reads        *UnmappedStats
	UnmappedRows int
	Files        []string
}

// Finish closes workers, merges outputs, writes the unmapped report, and
// returns the statistics. It should be called after all workers are done.
func (p *ProteinOutputProcessor) Finish() (*FinishResult, error) {
	if p.finished {
		return nil, errors.New("processor already finished")
	}
	p.finished = true

	s := p.shared
	res := &FinishResult{}
	var err error

	tmpFiles := make([]string, 0, len(p.workers))
	for _, w := range p.workers {
		if err = w.Close(); err != nil {
			return nil, err
		}
		res.Stats.add(&w.stats)
		for i, c := range w.shifts {
			res.Shifts[i] += c
		}
		if w.writer != nil {
			tmpFiles = append(tmpFiles, w.writer.File())
			addIdentities(&res.Identities, &w.writer.identities)
			res.Written += w.writer.written
		}
		if w.allHits != nil {
			res.Duplicates += w.allHits.duplicates
		}
	}

	if s.opt.Mode == ModeAllHits {
		if s.opt.MergeAlignmentResults {
			if err = concatResultFiles(p.writer, tmpFiles); err != nil {
				return nil, err
			}
			if !s.opt.KeepTempFiles {
				if err = removeFiles(tmpFiles); err != nil {
					return nil, err
				}
			}
		} else {
			res.Files = append(res.Files, tmpFiles...)
		}
	} else {
		if err = p.strategy.Finish(); err != nil {
			return nil, err
		}
		res.ExceedsN = p.strategy.(*rankedStrategy).exceeded
	}

	if p.writer != nil {
		addIdentities(&res.Identities, &p.writer.identities)
		res.Written += p.writer.written
		if err = p.writer.Close(); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, p.writer.File())
	}

	if s.opt.OutputUnmapped {
		file := filepath.Join(s.outDir, FileUnmapped+s.suffix)
		if res.UnmappedRows, err = p.writeUnmapped(file); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, file)
	}

	res.Reads = s.status.Stats()
	return res, nil
}

func addIdentities(a, b *[101]int64) {
	for i, c := range b {
		a[i] += c
	}
}

func (p *ProteinOutputProcessor) writeUnmapped(file string) (int, error) {
	s := p.shared
	outfh, gw, w, err := outStream(file, s.opt.CompressOutput, s.opt.CompressionLevel)
	if err != nil {
		return 0, err
	}

	if err = s.header.Write(outfh); err != nil {
		return 0, errors.Wrapf(err, "failed to write file: %s", file)
	}
	var names []string
	if s.opt.OutputReadNames {
		outfh.WriteString("#read-name\treason-unmapped\n")
		names = s.reads.Names
	} else {
		outfh.WriteString("#read-id\treason-unmapped\n")
	}

	n, err := s.status.WriteUnmapped(outfh, names)
	if err != nil {
		return n, errors.Wrapf(err, "failed to write file: %s", file)
	}

	if err = outfh.Flush(); err != nil {
		return n, errors.Wrapf(err, "failed to write file: %s", file)
	}
	if gw != nil {
		if err = gw.Close(); err != nil {
			return n, errors.Wrapf(err, "failed to write file: %s", file)
		}
	}
	if w != os.Stdout {
		if err = w.Close(); err != nil {
			return n, errors.Wrapf(err, "failed to close file: %s", file)
		}
	}
	return n, nil
}

// --------------------------------------------------------------------------

// Worker verifies candidates of a region of templates.
// Besides the shared state, it has its own aligner, prefilter,
// template cache, and for the all-hits mode, its own output file.
type Worker struct {
	shared *sharedState
	region int

	aligner   *align.GotohProteinEditDistance
	scorer    *bitscore.ProteinBitScorer
	templates *templateCache

	// the maxShift of the last protein length
	lastLength   int
	lastMaxShift int

	strategy strategy
	allHits  *allHitsStrategy
	writer   *ResultWriter

	stats  ProcessorStats
	shifts [2*ShiftHistogramRange + 1]int64

	closed bool
}

// Region returns the region id of the worker.
func (w *Worker) Region() int {
	return w.region
}

// Stats returns counters of the worker.
func (w *Worker) Stats() ProcessorStats {
	return w.stats
}

func (w *Worker) maxShift(proteinLength int) int {
	if proteinLength != w.lastLength {
		w.lastLength = proteinLength
		w.lastMaxShift = maxShift(proteinLength)
	}
	return w.lastMaxShift
}

// Process verifies a candidate: the protein of readAndFrame, whose chunk
// starting at chunkStart matches the template at tStart.
// approxScore and approxScoreIndel are the numbers of word hits on the
// diagonal and the nearby diagonals, found by the candidate generator.
//
// Candidates of a template should arrive contiguously and, for the all-hits
// mode, in ascending order of the anchored start (tStart - chunkStart).
func (w *Worker) Process(templateID int, reverse bool, readAndFrame int32,
	tStart int32, chunkStart int32, approxScore int32, approxScoreIndel int32) error {
	if reverse {
		return errors.Wrap(ErrUnsupported, "reverse complement alignment")
	}
	if w.closed {
		return errors.New("worker already closed")
	}

	s := w.shared
	opt := s.opt

	w.stats.Candidates++
	w.stats.CandidateHits += int64(approxScoreIndel)

	loads := w.templates.loads
	template := w.templates.Get(templateID)
	if w.templates.loads != loads {
		w.stats.Templates++
	}

	protein := s.proteins.Protein(readAndFrame)
	plen := len(protein)
	if plen == 0 {
		w.stats.NoOverlap++
		return nil
	}
	start := int(tStart - chunkStart)

	// -----------------------------------------------------------
	// prefilter on the overlapping part

	rs := max(0, -start)
	re := min(plen, len(template)-start)
	window := re - rs
	if window <= 0 || window*100 < opt.PreFilterMinOverlap*plen {
		w.stats.NoOverlap++
		return nil
	}
	minScore := window * opt.PreFilterMinScore / 100
	scores := w.scorer.CalculateFastScore(protein, rs, window, template, start+rs)
	if !bitscore.Accept(scores, minScore, opt.PeakPreFilter()) {
		w.stats.PreFilterFailed++
		return nil
	}

	// -----------------------------------------------------------
	// alignment

	shiftLen := w.maxShift(plen)
	a := w.aligner.CalculateEditDistance(protein, plen, template, start, shiftLen)
	if a == nil {
		w.stats.NoOverlap++
		return nil
	}
	w.stats.Aligned++

	shift := a.ZeroBasedTemplateStart() - start
	if shift >= -ShiftHistogramRange && shift <= ShiftHistogramRange {
		w.shifts[shift+ShiftHistogramRange]++
	}
	if shift > ShiftLimit || shift < -ShiftLimit {
		// only once
		w.stats.ReAnchored++
		if b := w.aligner.CalculateEditDistance(protein, plen, template, a.ZeroBasedTemplateStart(), shiftLen); b != nil {
			a = b
		}
	}

	readID := int(readAndFrame)
	if opt.Translated {
		readID /= 6
	}
	if !w.retainResult(a, readID, plen) {
		return nil
	}
	w.stats.Retained++

	r := newProteinAlignmentResult(s.rctx, a, templateID, template,
		readAndFrame, protein, s.proteins.ReadLength(readID))
	return w.strategy.Accept(r)
}

// retainResult checks the thresholds in order, a failure is recorded in the
// status of the read.
func (w *Worker) retainResult(a *align.Actions, readID int, proteinLength int) bool {
	s := w.shared
	opt := s.opt
	scoring := s.rctx.scoring
	score := a.AlignmentScore()

	if score > opt.MaxAlignmentScore.Threshold(proteinLength) {
		s.status.SetStatus(readID, StatusAlignmentThreshold)
		w.stats.AlignmentThreshold++
		return false
	}
	if PercentID(a.MatchCount(), a.ActionsCount()) < opt.MinIdentity {
		s.status.SetStatus(readID, StatusIdentity)
		w.stats.Identity++
		return false
	}
	if scoring.EScore(score, proteinLength, s.rctx.dbLength) > opt.MaxEScore {
		s.status.SetStatus(readID, StatusEScore)
		w.stats.EScore++
		return false
	}
	if scoring.BitScore(score) < opt.MinBitScore {
		s.status.SetStatus(readID, StatusBitScore)
		w.stats.BitScore++
		return false
	}
	return true
}

// Close flushes buffered results of the all-hits mode and closes the file of the worker.
func (w *Worker) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.allHits == nil {
		return nil
	}
	if err := w.allHits.Finish(); err != nil {
		return err
	}
	return w.writer.Close()
}
