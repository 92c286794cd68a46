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

package usnanalytics

import (
	"io"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// DefaultPageSize is the size of a cached image page.
	DefaultPageSize = 4096
	// DefaultPageCache is the number of pages kept in memory.
	DefaultPageCache = 1024
)

// Image is a read-only journal image. Reads are served from a LRU cache of
// fixed size pages so that images larger than memory can be scanned.
type Image struct {
	file     afero.File
	size     int64
	pageSize int64
	pages    *lru.Cache
}

// OpenImage opens name on fs. Zero values for pageSize and cacheSize select
// the defaults.
func OpenImage(fs afero.Fs, name string, pageSize, cacheSize int) (*Image, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if cacheSize <= 0 {
		cacheSize = DefaultPageCache
	}

	f, err := fs.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "could not open image")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() // nolint:errcheck
		return nil, errors.Wrap(err, "could not stat image")
	}
	if info.IsDir() {
		f.Close() // nolint:errcheck
		return nil, errors.Errorf("%s is a directory", name)
	}

	pages, err := lru.New(cacheSize)
	if err != nil {
		f.Close() // nolint:errcheck
		return nil, err
	}
	return &Image{file: f, size: info.Size(), pageSize: int64(pageSize), pages: pages}, nil
}

// Size returns the image size in bytes.
func (img *Image) Size() int64 { return img.size }

// ReadAt implements io.ReaderAt.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	n := 0
	for n < len(p) {
		pos := off + int64(n)
		if pos >= img.size {
			return n, io.EOF
		}
		page, err := img.page(pos / img.pageSize)
		if err != nil {
			return n, err
		}
		start := pos % img.pageSize
		if start >= int64(len(page)) {
			return n, io.EOF
		}
		n += copy(p[n:], page[start:])
	}
	return n, nil
}

func (img *Image) page(index int64) ([]byte, error) {
	if cached, ok := img.pages.Get(index); ok {
		return cached.([]byte), nil
	}

	size := img.pageSize
	if rest := img.size - index*img.pageSize; rest < size {
		size = rest
	}
	page := make([]byte, size)
	n, err := img.file.ReadAt(page, index*img.pageSize)
	if err != nil && !(err == io.EOF && int64(n) == size) {
		return nil, errors.Wrapf(err, "could not read page %d", index)
	}
	img.pages.Add(index, page)
	return page, nil
}

// Close closes the underlying file.
func (img *Image) Close() error {
	img.pages.Purge()
	return img.file.Close()
}
