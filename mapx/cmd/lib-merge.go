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
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// isGzipFile tells if a file is gzip-compressed by its suffix.
func isGzipFile(file string) bool {
	return strings.HasSuffix(strings.ToLower(file), ".gz")
}

// concatResultFiles appends files without headers to the end of rw.
// Files are copied byte by byte when all have the same compression format
// as rw, otherwise they are decompressed and written line by line.
func concatResultFiles(rw *ResultWriter, files []string) error {
	if len(files) == 0 {
		return nil
	}

	raw := true
	for _, file := range files {
		if isGzipFile(file) != rw.compressed {
			raw = false
			break
		}
	}

	if raw {
		return rw.appendRaw(files)
	}
	return rw.appendLines(files)
}

// appendLines copies the decompressed content of files through the buffered
// (and maybe compressed) stream of rw.
// Files of workers share the compression suffix of rw, so this only happens
// with inputs of mixed compression formats.
func (rw *ResultWriter) appendLines(files []string) error {
	for _, file := range files {
		fh, err := xopen.Ropen(file)
		if err != nil {
			return errors.Wrapf(err, "failed to read file: %s", file)
		}
		_, err = io.Copy(rw.outfh, fh)
		fh.Close()
		if err != nil {
			return errors.Wrapf(err, "failed to copy file: %s", file)
		}
	}
	return nil
}

// removeFiles deletes files.
func removeFiles(files []string) error {
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			return errors.Wrapf(err, "failed to remove file: %s", file)
		}
	}
	return nil
}
