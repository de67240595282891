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
	"regexp"
	"strings"
	"time"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/mapx/mapx/util"
	"github.com/spf13/cobra"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map nucleotide or protein reads against protein templates",
	Long: `Map nucleotide or protein reads against protein templates

Attention:
  1. Reads and templates should be (gzipped) FASTA or FASTQ records from files or stdin.
     All sequences are loaded into memory.
  2. Nucleotide reads are translated in six frames, use --protein-reads for protein reads.
  3. Reads shorter than --min-read-length are not searched, they are listed
     in the unmapped file with an empty reason.

Result selection (--mode):
  all       All alignments passing the thresholds, sorted by template and position.
  topn      The N (-n/--top-n) best alignments of each read. Equally scored alignments
            at the boundary are reported only if all of them fit in the remaining slots.
  topequal  All alignments sharing the best score of each read, none if there are
            more than N of them.

Alignment thresholds, checked in order:
  1. -a/--max-alignment-score, an integer or a percentage of the protein length, e.g., -10%.
     The alignment score is the negative value of the raw score, smaller is better.
  2. --min-identity, percent identity.
  3. -e/--max-e-score, or --min-bit-score. Only one of them can be used.

Output files in the output directory:
  alignments.tsv[.gz]     Alignments, or alignments-<n>.tsv[.gz] per worker with --no-merge
                          in the all-hits mode.
  unmapped.tsv[.gz]       Reads without alignments and the reasons:
                            d: alignment score threshold
                            e: more than N hits
                            f: percent identity
                            g: e-score
                            h: bit-score
  summary.toml            Statistics.
  shifts.png              Histogram of shifts of alignment starts (--plot-shifts).

Columns of alignments, with 1-based positions:
  template-name, frame (nucleotide reads only), read-id or read-name (--read-names),
  template-start, template-end, template-length, read-start, read-end, read-length,
  template-protein, read-protein, alignment (--output-protein-sequences),
  identical, %identical, positive, %positive, mismatches, raw-score, bit-score, e-score.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		outDir := getFlagString(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -o/--out-dir needed"))
		}
		outDir = expandPath(outDir)
		force := getFlagBool(cmd, "force")

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		verbose := opt.Verbose
		outputLog := opt.Verbose || opt.Log2File

		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// options

		mopt := DefaultProteinMapOptions()
		mopt.NumCPUs = opt.NumCPUs
		mopt.Verbose = opt.Verbose
		mopt.Log2File = opt.Log2File
		mopt.CommandLine = strings.Join(os.Args, " ")

		var err error
		mopt.Mode, err = ParseOutputMode(getFlagString(cmd, "mode"))
		checkError(err)
		mopt.TopN = getFlagIntInRange(cmd, "top-n", 1, MaxTopN)

		mopt.MaxAlignmentScore, err = ParseAlignmentScoreThreshold(getFlagString(cmd, "max-alignment-score"))
		checkError(err)
		mopt.MinIdentity = getFlagIntInRange(cmd, "min-identity", 0, 100)

		if cmd.Flags().Changed("min-bit-score") {
			if cmd.Flags().Changed("max-e-score") {
				checkError(fmt.Errorf("flags -e/--max-e-score and --min-bit-score can not be used at the same time"))
			}
			mopt.UseBitScore(getFlagFloat64(cmd, "min-bit-score"))
		} else {
			mopt.MaxEScore = getFlagNonNegativeFloat64(cmd, "max-e-score")
			mopt.MinBitScore = math.Inf(-1)
		}

		mopt.PreFilterAlgorithm = getFlagIntInRange(cmd, "prefilter-algorithm", -MaxPreFilterShift, MaxPreFilterShift)
		mopt.PreFilterMinScore = getFlagIntInRange(cmd, "prefilter-min-score", 0, 100)
		mopt.PreFilterMinOverlap = getFlagIntInRange(cmd, "prefilter-min-overlap", 0, 100)

		mopt.MetaChunkLength = getFlagIntInRange(cmd, "meta-chunk-length", 1, 63)
		mopt.MetaChunkOverlap = getFlagIntInRange(cmd, "meta-chunk-overlap", 0, mopt.MetaChunkLength-1)
		mopt.MinReadLength = getFlagNonNegativeInt(cmd, "min-read-length")
		mopt.WordSize = getFlagIntInRange(cmd, "word-size", 1, MaxWordSize)
		mopt.MinHits = getFlagPositiveInt(cmd, "min-hits")

		mopt.Translated = !getFlagBool(cmd, "protein-reads")
		mopt.CompressOutput = !getFlagBool(cmd, "no-compress")
		mopt.CompressionLevel = opt.CompressionLevel
		mopt.OutputReadNames = getFlagBool(cmd, "read-names")
		mopt.OutputProteinSequences = getFlagBool(cmd, "output-protein-sequences")
		mopt.OutputUnmapped = !getFlagBool(cmd, "no-unmapped")
		mopt.MergeAlignmentResults = !getFlagBool(cmd, "no-merge")
		mopt.KeepTempFiles = getFlagBool(cmd, "keep-tmp-files")
		plotShifts := getFlagBool(cmd, "plot-shifts")

		// ---------------------------------------------------------------

		if outputLog {
			log.Infof("mapx v%s", VERSION)
			log.Info()
		}

		// ---------------------------------------------------------------
		// input files

		if outputLog {
			log.Info("checking input files ...")
		}

		templateFiles := getFlagStringSlice(cmd, "templates")
		templateDir := getFlagString(cmd, "template-dir")
		if templateDir != "" {
			pattern := getFlagString(cmd, "template-pattern")
			reFile, err := regexp.Compile(pattern)
			if err != nil {
				checkError(fmt.Errorf("failed to parse regular expression for matching file: %s", pattern))
			}
			_files, err := getFileListFromDir(expandPath(templateDir), reFile, opt.NumCPUs)
			checkError(err)
			if len(_files) == 0 {
				checkError(fmt.Errorf("no template files found in %s", templateDir))
			}
			templateFiles = append(templateFiles, _files...)
		}
		if len(templateFiles) == 0 {
			checkError(fmt.Errorf("flag -t/--templates or --template-dir needed"))
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		for _, file := range templateFiles {
			if isStdin(file) {
				checkError(fmt.Errorf("templates should not be read from stdin"))
			}
		}

		if outputLog {
			log.Infof("  %d template file(s) given", len(templateFiles))
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("  no read files given, reading from stdin")
			} else {
				log.Infof("  %d read file(s) given", len(files))
			}
		}

		outDirClean := filepath.Clean(outDir)
		for _, file := range append(files, templateFiles...) {
			if !isStdin(file) && strings.HasPrefix(filepath.Clean(file), outDirClean+string(filepath.Separator)) {
				checkError(fmt.Errorf("input files should not be in the output directory: %s", file))
			}
		}

		makeOutDir(outDir, force, "output directory", outputLog)

		// ---------------------------------------------------------------
		// sequences

		if outputLog {
			log.Info()
			log.Info("loading sequences ...")
		}

		templates, err := LoadSequences(templateFiles)
		checkError(err)
		if templates.Len() == 0 {
			checkError(fmt.Errorf("no templates found"))
		}
		reads, err := LoadSequences(files)
		checkError(err)

		if outputLog {
			log.Infof("  %d templates with %d residues loaded", templates.Len(), templates.TotalLength())
			log.Infof("  %d reads loaded, the longest one: %d", reads.Len(), util.MaxInt(reads.Lengths()))
		}

		header := NewOutputHeader(mopt.CommandLine, timeStart)

		p, err := NewProteinOutputProcessor(outDir, mopt, templates, reads, header)
		checkError(err)

		// ---------------------------------------------------------------
		// indexing reads

		if outputLog {
			log.Info()
			log.Info("indexing reads ...")
		}

		indexer := NewProteinReadIndexer(reads, mopt)
		if outputLog {
			log.Infof("  %s", indexer.Buckets())
			if verbose && len(indexer.Params()) <= 16 {
				for _, bp := range indexer.Params() {
					log.Infof("    %s", bp)
				}
			}
		}

		timeIndex := time.Now()
		indexes, err := indexer.BuildIndexes(reads, p.Proteins(), opt.NumCPUs)
		checkError(err)

		if outputLog {
			var words, entries int
			for _, idx := range indexes {
				words += idx.Words()
				entries += idx.Entries()
			}
			log.Infof("  %d buckets indexed with %d words and %d entries in %s", len(indexes), words, entries, time.Since(timeIndex))
		}

		// ---------------------------------------------------------------
		// searching

		if outputLog {
			log.Info()
			log.Infof("searching with %d threads, output mode: %s ...", opt.NumCPUs, mopt.Mode)
			if mopt.Mode == ModeAllHits {
				log.Infof("  buffer distance: %d", p.BufferDistance())
			}
		}

		err = RunSearch(p, templates, indexes, &SearchOptions{
			Threads:     opt.NumCPUs,
			ProgressBar: verbose,
		})
		checkError(err)

		res, err := p.Finish()
		checkError(err)

		// ---------------------------------------------------------------
		// summary

		indexed := reads.Len() - indexer.Buckets().Excluded()
		summary := NewSummary(mopt, header, templates, reads, indexed, res)
		fileSummary := filepath.Join(outDir, FileSummary)
		checkError(summary.Write(fileSummary))

		if plotShifts {
			checkError(summary.PlotShifts(filepath.Join(outDir, FileShiftPlot)))
		}

		if outputLog {
			log.Info()
			log.Infof("%d candidates, %d aligned, %d retained", res.Stats.Candidates, res.Stats.Aligned, res.Stats.Retained)
			log.Infof("%d rows written", res.Written)
			if reads.Len() > 0 {
				log.Infof("%.4f%% (%d/%d) reads mapped",
					float64(res.Reads.Mapped)/float64(reads.Len())*100, res.Reads.Mapped, reads.Len())
			}
			log.Infof("  unmapped reasons: alignment score: %d, exceeds N: %d, identity: %d, e-score: %d, bit-score: %d, no hits: %d",
				res.Reads.AlignmentThreshold, res.Reads.ExceedsN, res.Reads.Identity,
				res.Reads.EScore, res.Reads.BitScore, res.Reads.NoHits)
			log.Infof("shift histogram [-%d, %d]: %s", ShiftHistogramRange, ShiftHistogramRange, intsToString(res.Shifts[:]))
			log.Info()
			log.Infof("results saved to: %s", outDir)
			for _, file := range res.Files {
				log.Infof("  %s", filepath.Base(file))
			}
			log.Infof("  %s", FileSummary)
		}
	},
}

func init() {
	RootCmd.AddCommand(mapCmd)

	// input and output

	mapCmd.Flags().StringSliceP("templates", "t", []string{},
		formatFlagUsage(`Protein template files in (gzipped) FASTA/Q format. Multiple values are separated by commas.`))
	mapCmd.Flags().StringP("template-dir", "", "",
		formatFlagUsage(`Directory containing template files. Directory symlinks are followed.`))
	mapCmd.Flags().StringP("template-pattern", "", `\.(f[aq](st[aq])?|faa)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching template files in --template-dir.`))
	mapCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of read file paths, one file per line.`))
	mapCmd.Flags().BoolP("protein-reads", "", false,
		formatFlagUsage(`Reads are protein sequences.`))

	mapCmd.Flags().StringP("out-dir", "o", "",
		formatFlagUsage(`Output directory.`))
	mapCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	// result selection

	mapCmd.Flags().StringP("mode", "", "topn",
		formatFlagUsage(`Result selection mode: all, topn, or topequal.`))
	mapCmd.Flags().IntP("top-n", "n", 10,
		formatFlagUsage(fmt.Sprintf(`The value of N in the topn and topequal modes, in range of [1, %d].`, MaxTopN)))

	// thresholds

	mapCmd.Flags().StringP("max-alignment-score", "a", "-10%",
		formatFlagUsage(`Maximum alignment score, an integer or a percentage of the protein length.`))
	mapCmd.Flags().IntP("min-identity", "", 60,
		formatFlagUsage(`Minimum percent identity.`))
	mapCmd.Flags().Float64P("max-e-score", "e", 10,
		formatFlagUsage(`Maximum e-score.`))
	mapCmd.Flags().Float64P("min-bit-score", "", 0,
		formatFlagUsage(`Minimum bit-score. The e-score threshold is disabled if it is given.`))

	// prefilter

	mapCmd.Flags().IntP("prefilter-algorithm", "", -3,
		formatFlagUsage(fmt.Sprintf(`Prefilter: the absolute value is the maximum shift of positions, in range of [-%d, %d]. A negative value chooses the best shift, a non-negative value counts matches of all shifts.`, MaxPreFilterShift, MaxPreFilterShift)))
	mapCmd.Flags().IntP("prefilter-min-score", "", 30,
		formatFlagUsage(`Prefilter: minimum score, a percentage of the overlapping length.`))
	mapCmd.Flags().IntP("prefilter-min-overlap", "", 70,
		formatFlagUsage(`Prefilter: minimum overlapping length with the template, a percentage of the protein length.`))

	// indexing

	mapCmd.Flags().IntP("meta-chunk-length", "", 63,
		formatFlagUsage(`Length of windows of long proteins, in range of [1, 63].`))
	mapCmd.Flags().IntP("meta-chunk-overlap", "", 31,
		formatFlagUsage(`Overlap between windows of long proteins.`))
	mapCmd.Flags().IntP("min-read-length", "", 30,
		formatFlagUsage(`Minimum read length.`))
	mapCmd.Flags().IntP("word-size", "", 4,
		formatFlagUsage(fmt.Sprintf(`Word size of indexing proteins, in range of [1, %d].`, MaxWordSize)))
	mapCmd.Flags().IntP("min-hits", "", 2,
		formatFlagUsage(`Minimum number of word hits on a diagonal for a candidate.`))

	// output

	mapCmd.Flags().BoolP("no-compress", "", false,
		formatFlagUsage(`Do not compress output files with gzip.`))
	mapCmd.Flags().BoolP("read-names", "", false,
		formatFlagUsage(`Output read names instead of read ids.`))
	mapCmd.Flags().BoolP("output-protein-sequences", "", false,
		formatFlagUsage(`Output aligned protein sequences.`))
	mapCmd.Flags().BoolP("no-unmapped", "", false,
		formatFlagUsage(`Do not output unmapped reads.`))
	mapCmd.Flags().BoolP("no-merge", "", false,
		formatFlagUsage(`Do not merge alignment files of workers in the all-hits mode.`))
	mapCmd.Flags().BoolP("keep-tmp-files", "", false,
		formatFlagUsage(`Keep temporary alignment files of workers after merging.`))
	mapCmd.Flags().BoolP("plot-shifts", "", false,
		formatFlagUsage(`Plot the histogram of shifts of alignment starts.`))

	mapCmd.SetUsageTemplate(usageTemplate("-t <templates.faa.gz> [reads.fq.gz ...] -o <out dir>"))
}
