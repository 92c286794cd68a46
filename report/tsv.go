// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package report

import (
	"bufio"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// tsvFile writes tab separated rows with every field in double quotes.
type tsvFile struct {
	name    string
	buf     *bufio.Writer
	closers []io.Closer
}

func createFile(fs afero.Fs, path string, compress bool) (*tsvFile, error) {
	if compress {
		path += ".zst"
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not create output file")
	}
	file := &tsvFile{name: path, buf: bufio.NewWriter(f), closers: []io.Closer{f}}
	if compress {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close() // nolint:errcheck
			return nil, err
		}
		file.buf = bufio.NewWriter(enc)
		file.closers = []io.Closer{enc, f}
	}
	return file, nil
}

func (t *tsvFile) Write(fields ...string) error {
	for i, field := range fields {
		if i > 0 {
			if err := t.buf.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := t.buf.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return t.buf.WriteByte('\n')
}

func (t *tsvFile) Close() error {
	err := t.buf.Flush()
	for _, closer := range t.closers {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
