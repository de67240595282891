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

// rankedStrategy collects results of all workers into a shared ranking table,
// and writes them when all workers are finished.
type rankedStrategy struct {
	table  rankingTable
	writer *ResultWriter
	status *SharedStatusCollector

	written  int64 // only updated by Finish
	exceeded int64
}

func newTopNStrategy(numReads, n int, locks *StripedLocks,
	writer *ResultWriter, status *SharedStatusCollector) *rankedStrategy {
	return &rankedStrategy{
		table:  NewTopNProteinImplementation(numReads, n, locks),
		writer: writer,
		status: status,
	}
}

func newTopEqualStrategy(numReads, n int, locks *StripedLocks,
	writer *ResultWriter, status *SharedStatusCollector) *rankedStrategy {
	return &rankedStrategy{
		table:  NewTopEqualProteinImplementation(numReads, n, locks),
		writer: writer,
		status: status,
	}
}

// Accept adds a result to the table, it's safe for concurrent use.
func (s *rankedStrategy) Accept(r *ProteinAlignmentResult) error {
	s.table.Insert(r)
	return nil
}

// Finish writes results of every read, it should be called only once
// after all workers are closed.
func (s *rankedStrategy) Finish() error {
	rs := make([]*ProteinAlignmentResult, 0, MaxTopN)
	var exceeded bool
	for id := 0; id < s.table.NumReads(); id++ {
		// the stripe lock is released before writing, the writer updates the status
		rs, exceeded = s.table.Drain(id, rs[:0])
		if exceeded {
			s.status.SetStatus(id, StatusExceedsN)
			s.exceeded++
			continue
		}
		for _, r := range rs {
			if err := s.writer.Write(r); err != nil {
				return err
			}
		}
		s.written += int64(len(rs))
	}
	return nil
}
