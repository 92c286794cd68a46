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
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

var baseTime = time.Date(2020, 5, 4, 10, 0, 0, 0, time.UTC)

// ticksAt returns the timestamp ms milliseconds after baseTime.
func ticksAt(ms int) uint64 {
	return usnrecord.ToFileTime(baseTime.Add(time.Duration(ms) * time.Millisecond))
}

func record(usn, id, parent uint64, ms int, reason usnrecord.Reason, attrs usnrecord.Attribute, name string) *usnrecord.Record {
	return &usnrecord.Record{
		MajorVersion: 2,
		FileID:       id,
		ParentID:     parent,
		USN:          usn,
		Timestamp:    ticksAt(ms),
		Reason:       reason,
		Attributes:   attrs,
		Name:         name,
	}
}

func image(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func memImage(t *testing.T, b []byte) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "$J", b, 0644))
	return fs
}

func openJournal(t *testing.T, b []byte) *Journal {
	img, err := OpenImage(memImage(t, b), "$J", 16, 4)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return NewJournal(img, img.Size())
}

func TestJournal_Scan(t *testing.T) {
	var parts [][]byte
	for i := 1; i <= 5; i++ {
		parts = append(parts, usnrecord.Encode(record(uint64(i*100), uint64(i+40), 5, i, usnrecord.FileCreate, usnrecord.Archive, "file.txt")))
	}
	journal := openJournal(t, image(parts...))

	require.NoError(t, journal.Scan())
	assert.Equal(t, []uint64{100, 200, 300, 400, 500}, journal.USNs)
	assert.Empty(t, journal.Corrupt)

	rec, err := journal.Record(300)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), rec.FileID)
	assert.Equal(t, "file.txt", rec.Name)

	_, err = journal.Record(301)
	assert.Error(t, err)
}

func TestJournal_Scan_mixed(t *testing.T) {
	corrupt := record(200, 41, 5, 0, 0, usnrecord.Archive, "corrupt.txt")
	v3 := record(300, 42, 5, 0, usnrecord.FileCreate, usnrecord.Archive, "v3.txt")
	v3.MajorVersion = 3
	v4 := make([]byte, 64)
	copy(v4, []byte{64, 0, 0, 0, 4, 0, 0, 0})

	b := image(
		make([]byte, 24),
		usnrecord.Encode(record(100, 40, 5, 0, usnrecord.FileCreate, usnrecord.Archive, "a.txt")),
		make([]byte, 8),
		usnrecord.Encode(corrupt),
		usnrecord.Encode(v3),
		v4,
		[]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		usnrecord.Encode(record(100, 40, 5, 0, usnrecord.FileCreate, usnrecord.Archive, "a.txt")),
		usnrecord.Encode(record(400, 43, 5, 0, usnrecord.Close, usnrecord.Archive, "b.txt")),
		make([]byte, 40),
	)
	journal := openJournal(t, b)

	require.NoError(t, journal.Scan())
	assert.Equal(t, []uint64{100, 100, 400}, journal.USNs)
	assert.Equal(t, []int64{24 + 72 + 8}, journal.Corrupt)
	assert.Equal(t, 1, journal.V3)
	assert.Equal(t, 1, journal.Unsupported)

	offset, ok := journal.Offset(400)
	require.True(t, ok)
	assert.Equal(t, int64(len(b)-40-72), offset)
}

func TestJournal_Scan_tail(t *testing.T) {
	corrupt := usnrecord.Encode(record(200, 41, 5, 0, 0, usnrecord.Archive, "corrupt.txt"))
	valid := usnrecord.Encode(record(100, 40, 5, 0, usnrecord.FileCreate, usnrecord.Archive, "a.txt"))
	require.Len(t, valid, 72)

	tests := []struct {
		name        string
		tail        []byte
		wantCorrupt []int64
	}{
		{"header only", corrupt[:usnrecord.HeaderSizeV2], nil},
		{"less than a record", corrupt[:usnrecord.MinLength-1], nil},
		{"minimum record length", corrupt[:usnrecord.MinLength], []int64{72}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := openJournal(t, image(valid, tt.tail))

			require.NoError(t, journal.Scan())
			assert.Equal(t, []uint64{100}, journal.USNs)
			assert.Equal(t, tt.wantCorrupt, journal.Corrupt)
		})
	}
}

func TestJournal_Scan_noRecords(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"smaller than a record", make([]byte, 40)},
		{"zeros", make([]byte, 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := openJournal(t, tt.b).Scan()
			assert.True(t, errors.Is(err, ErrNoRecords))
		})
	}
}

func TestImage_ReadAt(t *testing.T) {
	b := make([]byte, 100)
	for i := range b {
		b[i] = byte(i)
	}
	img, err := OpenImage(memImage(t, b), "$J", 16, 2)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, int64(100), img.Size())

	p := make([]byte, 40)
	n, err := img.ReadAt(p, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, b[10:50], p)

	n, err = img.ReadAt(p, 90)
	assert.Error(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, b[90:], p[:10])

	// read evicted pages again
	n, err = img.ReadAt(p, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, b[:40], p)
}

func TestOpenImage_missing(t *testing.T) {
	_, err := OpenImage(afero.NewMemMapFs(), "missing", 0, 0)
	assert.Error(t, err)
}
