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

	"github.com/pkg/errors"
)

// allHitsStrategy writes all retained results of a worker, in the order of
// (templateId, templateStart, readAndFrame), and removes duplicates.
//
// Results of a template are buffered until the distance between the first and
// the last buffered ones exceeds bufferDistance. A result starting before the
// last written one can not be deduplicated or ordered anymore, it's an error.
type allHitsStrategy struct {
	writer         *ResultWriter
	bufferDistance int

	templateID int
	buffer     []*ProteinAlignmentResult

	// results written at the start position of the last written one
	lastWritten []*ProteinAlignmentResult

	duplicates int64
}

func newAllHitsStrategy(writer *ResultWriter, bufferDistance int) *allHitsStrategy {
	return &allHitsStrategy{
		writer:         writer,
		bufferDistance: bufferDistance,
		templateID:     -1,
		buffer:         make([]*ProteinAlignmentResult, 0, 1024),
		lastWritten:    make([]*ProteinAlignmentResult, 0, 8),
	}
}

// Accept buffers a result.
func (s *allHitsStrategy) Accept(r *ProteinAlignmentResult) error {
	if r.templateID != s.templateID {
		if err := s.flush(); err != nil {
			return err
		}
		s.templateID = r.templateID
		s.lastWritten = s.lastWritten[:0]
	}

	if len(s.lastWritten) > 0 {
		last := s.lastWritten[0]
		if r.templateStart < last.templateStart {
			return errors.Wrapf(ErrBufferDistanceTooSmall,
				"template %d: result at %d arrived after one at %d was written, %d more bases needed (%d records buffered)",
				r.templateID, r.templateStart, last.templateStart,
				last.templateStart-r.templateStart, len(s.buffer))
		}
		if r.templateStart == last.templateStart {
			for _, w := range s.lastWritten {
				if w.SameKey(r) {
					s.duplicates++
					return nil
				}
			}
		}
	}

	buf := s.buffer
	i := sort.Search(len(buf), func(i int) bool { return buf[i].Compare(r) >= 0 })
	if i < len(buf) && buf[i].SameKey(r) {
		s.duplicates++
		return nil
	}
	buf = append(buf, nil)
	copy(buf[i+1:], buf[i:])
	buf[i] = r
	s.buffer = buf

	for len(s.buffer) > 1 && s.buffer[len(s.buffer)-1].templateStart-s.buffer[0].templateStart > s.bufferDistance {
		if err := s.write(s.buffer[0]); err != nil {
			return err
		}
		s.buffer[0] = nil
		s.buffer = s.buffer[1:]
	}
	return nil
}

func (s *allHitsStrategy) write(r *ProteinAlignmentResult) error {
	if len(s.lastWritten) > 0 && s.lastWritten[0].templateStart != r.templateStart {
		s.lastWritten = s.lastWritten[:0]
	}
	s.lastWritten = append(s.lastWritten, r)
	return s.writer.Write(r)
}

// flush writes all buffered results.
func (s *allHitsStrategy) flush() error {
	for i, r := range s.buffer {
		if err := s.write(r); err != nil {
			return err
		}
		s.buffer[i] = nil
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Finish writes remaining results.
func (s *allHitsStrategy) Finish() error {
	return s.flush()
}
