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
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/wyhash"
)

// OutputHeader is the header block of output files.
type OutputHeader struct {
	Version       string
	FormatVersion string
	CommandLine   string
	RunID         string
}

// NewOutputHeader creates a header with a run id computed from the command
// line and the starting time.
func NewOutputHeader(commandLine string, t time.Time) *OutputHeader {
	return &OutputHeader{
		Version:       VERSION,
		FormatVersion: OutputFormatVersion,
		CommandLine:   commandLine,
		RunID:         NewRunID(commandLine, t),
	}
}

// NewRunID returns a run id.
func NewRunID(commandLine string, t time.Time) string {
	h := wyhash.Hash([]byte(commandLine), uint64(t.UnixNano()))
	return strconv.FormatUint(h, 16)
}

// Write writes the header block.
func (h *OutputHeader) Write(w *bufio.Writer) error {
	buf := w.AvailableBuffer()
	buf = append(buf, "#Version\t"...)
	buf = append(buf, h.Version...)
	buf = append(buf, "\n#MAPX output\t"...)
	buf = append(buf, h.FormatVersion...)
	buf = append(buf, '\n')
	if h.CommandLine != "" {
		buf = append(buf, "#CL\t"...)
		buf = append(buf, h.CommandLine...)
		buf = append(buf, '\n')
	}
	buf = append(buf, "#RUN-ID\t"...)
	buf = append(buf, h.RunID...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

// ResultWriter writes alignment rows into a file and marks reads as written.
// It's not thread-safe.
type ResultWriter struct {
	file       string
	compressed bool

	outfh *bufio.Writer
	gw    io.WriteCloser
	w     *os.File

	format *RowFormat
	status *SharedStatusCollector

	written    int64
	identities [101]int64
	closed     bool
}

// NewResultWriter creates a file, and writes the header block and the column
// header if header is not nil.
func NewResultWriter(file string, compressed bool, level int,
	format *RowFormat, status *SharedStatusCollector, header *OutputHeader) (*ResultWriter, error) {
	outfh, gw, w, err := outStream(file, compressed, level)
	if err != nil {
		return nil, err
	}

	rw := &ResultWriter{
		file:       file,
		compressed: compressed,
		outfh:      outfh,
		gw:         gw,
		w:          w,
		format:     format,
		status:     status,
	}

	if header != nil {
		if err = rw.writeHeader(header, format.ColumnHeader()); err != nil {
			return nil, err
		}
	}
	return rw, nil
}

func (rw *ResultWriter) writeHeader(header *OutputHeader, columns string) error {
	if err := header.Write(rw.outfh); err != nil {
		return errors.Wrapf(err, "failed to write header: %s", rw.file)
	}
	if _, err := rw.outfh.WriteString(columns); err != nil {
		return errors.Wrapf(err, "failed to write header: %s", rw.file)
	}
	return rw.outfh.WriteByte('\n')
}

// Write writes a result and marks the read as written.
func (rw *ResultWriter) Write(r *ProteinAlignmentResult) error {
	if err := r.Write(rw.outfh, rw.format); err != nil {
		return errors.Wrapf(err, "failed to write result: %s", rw.file)
	}
	rw.status.SetStatus(r.readID, StatusWritten)
	rw.written++
	rw.identities[r.percentID]++
	return nil
}

// Written returns the number of written rows.
func (rw *ResultWriter) Written() int64 {
	return rw.written
}

// File returns the path of the file.
func (rw *ResultWriter) File() string {
	return rw.file
}

// Close flushes and closes the file.
func (rw *ResultWriter) Close() error {
	if rw.closed {
		return nil
	}
	rw.closed = true

	if err := rw.outfh.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write file: %s", rw.file)
	}
	if rw.gw != nil {
		if err := rw.gw.Close(); err != nil {
			return errors.Wrapf(err, "failed to write file: %s", rw.file)
		}
	}
	if rw.w != os.Stdout {
		if err := rw.w.Close(); err != nil {
			return errors.Wrapf(err, "failed to close file: %s", rw.file)
		}
	}
	return nil
}

// appendRaw copies the bytes of files of the same compression format to the end.
// A gzip stream is closed before copying, and concatenated gzip members are
// still a valid gzip file. No more rows can be written after calling it.
func (rw *ResultWriter) appendRaw(files []string) error {
	if err := rw.outfh.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write file: %s", rw.file)
	}
	if rw.gw != nil {
		if err := rw.gw.Close(); err != nil {
			return errors.Wrapf(err, "failed to write file: %s", rw.file)
		}
		rw.gw = nil
	}

	for _, file := range files {
		fh, err := os.Open(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read file: %s", file)
		}
		_, err = io.Copy(rw.w, fh)
		fh.Close()
		if err != nil {
			return errors.Wrapf(err, "failed to copy file: %s", file)
		}
	}
	return nil
}
