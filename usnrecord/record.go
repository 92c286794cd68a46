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

// Package usnrecord decodes and classifies NTFS USN change journal records.
//
// A journal image is arbitrary bytes: sparse gaps, torn writes and records
// of different versions are common. Decode therefore never fails on bad
// input, it classifies the bytes at an offset instead.
package usnrecord

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Kind is the classification of the bytes at an offset.
type Kind int

// Classifications returned by Decode.
const (
	NotARecord Kind = iota
	V2
	V3
	Unsupported
	Corrupt
)

func (k Kind) String() string {
	switch k {
	case V2:
		return "v2"
	case V3:
		return "v3"
	case Unsupported:
		return "unsupported"
	case Corrupt:
		return "corrupt"
	}
	return "not a record"
}

const (
	// MinLength and MaxLength bound the record length field.
	MinLength = 64
	MaxLength = 576

	// HeaderSizeV2 is the fixed part of a USN_RECORD_V2.
	HeaderSizeV2 = 60
	// HeaderSizeV3 is the fixed part of a USN_RECORD_V3.
	HeaderSizeV3 = 76

	// MaxUSN is the largest plausible update sequence number.
	MaxUSN = 10000000000000
	// MaxNameLength is the exclusive upper bound of the name length in bytes.
	MaxNameLength = 512

	// Root is the file id of the volume root directory.
	Root = 5

	idMask = 0x0000FFFFFFFFFFFF
)

// Record is a single decoded journal entry.
type Record struct {
	Offset       int64
	Length       uint32
	MajorVersion uint16
	MinorVersion uint16
	FileID       uint64
	FileSeq      uint16
	ParentID     uint64
	ParentSeq    uint16
	USN          uint64
	Timestamp    uint64
	Reason       Reason
	SourceInfo   uint32
	SecurityID   uint32
	Attributes   Attribute
	NameLength   uint16
	NameOffset   uint16
	Name         string
}

// Time returns the record timestamp.
func (r *Record) Time() time.Time {
	return FileTime(r.Timestamp)
}

// SplitReference splits a 64 bit file reference into the 48 bit record id
// and the 16 bit sequence number.
func SplitReference(ref uint64) (id uint64, seq uint16) {
	return ref & idMask, uint16(ref >> 48)
}

// Codec decodes records from a journal image.
type Codec struct {
	r    io.ReaderAt
	size int64
}

// NewCodec returns a Codec reading size bytes from r.
func NewCodec(r io.ReaderAt, size int64) *Codec {
	return &Codec{r: r, size: size}
}

// Size returns the image size.
func (c *Codec) Size() int64 { return c.size }

// read fills b from off. It reports false for reads crossing the image end.
func (c *Codec) read(b []byte, off int64) (bool, error) {
	if off < 0 || off+int64(len(b)) > c.size {
		return false, nil
	}
	n, err := c.r.ReadAt(b, off)
	if n == len(b) {
		return true, nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	return false, errors.Wrapf(err, "read at %d", off)
}

// Decode classifies and decodes the bytes at offset. A short read is
// reported as NotARecord; the error is only set when the underlying reader
// fails. The record is returned for V2, V3 and Corrupt. For Unsupported only
// its header fields are set.
func (c *Codec) Decode(offset int64) (*Record, Kind, error) {
	head := make([]byte, 8)
	ok, err := c.read(head, offset)
	if err != nil || !ok {
		return nil, NotARecord, err
	}

	length := binary.LittleEndian.Uint32(head[0:])
	major := binary.LittleEndian.Uint16(head[4:])
	minor := binary.LittleEndian.Uint16(head[6:])
	if length < MinLength || length > MaxLength || length%8 != 0 || minor != 0 {
		return nil, NotARecord, nil
	}

	var size int
	switch major {
	case 2:
		size = HeaderSizeV2
	case 3:
		size = HeaderSizeV3
	case 4:
		return &Record{Offset: offset, Length: length, MajorVersion: major}, Unsupported, nil
	default:
		return nil, NotARecord, nil
	}

	b := make([]byte, size)
	ok, err = c.read(b, offset)
	if err != nil || !ok {
		return nil, NotARecord, err
	}

	rec := &Record{Offset: offset, Length: length, MajorVersion: major, MinorVersion: minor}
	if major == 2 {
		rec.FileID, rec.FileSeq = SplitReference(binary.LittleEndian.Uint64(b[8:]))
		rec.ParentID, rec.ParentSeq = SplitReference(binary.LittleEndian.Uint64(b[16:]))
		b = b[24:]
	} else {
		// 128 bit ids, only the low 64 bits carry the reference
		rec.FileID, rec.FileSeq = SplitReference(binary.LittleEndian.Uint64(b[8:]))
		rec.ParentID, rec.ParentSeq = SplitReference(binary.LittleEndian.Uint64(b[24:]))
		b = b[40:]
	}
	rec.USN = binary.LittleEndian.Uint64(b[0:])
	rec.Timestamp = binary.LittleEndian.Uint64(b[8:])
	rec.Reason = Reason(binary.LittleEndian.Uint32(b[16:]))
	rec.SourceInfo = binary.LittleEndian.Uint32(b[20:])
	rec.SecurityID = binary.LittleEndian.Uint32(b[24:])
	rec.Attributes = Attribute(binary.LittleEndian.Uint32(b[28:]))
	rec.NameLength = binary.LittleEndian.Uint16(b[32:])
	rec.NameOffset = binary.LittleEndian.Uint16(b[34:])

	if int(rec.NameOffset) != size {
		return nil, NotARecord, nil
	}
	if !validTimestamp(rec.Timestamp) || rec.USN > MaxUSN || rec.Reason == 0 ||
		rec.NameLength%2 != 0 || rec.NameLength >= MaxNameLength {
		return rec, Corrupt, nil
	}
	if uint32(rec.NameOffset)+uint32(rec.NameLength) > length {
		return rec, Corrupt, nil
	}

	name := make([]byte, rec.NameLength)
	ok, err = c.read(name, offset+int64(rec.NameOffset))
	if err != nil || !ok {
		return nil, NotARecord, err
	}
	rec.Name = DecodeName(name, rec.Attributes)

	if major == 2 {
		return rec, V2, nil
	}
	return rec, V3, nil
}

// Parse decodes a record from the start of b.
func Parse(b []byte) (*Record, Kind) {
	rec, kind, _ := NewCodec(bytes.NewReader(b), int64(len(b))).Decode(0)
	return rec, kind
}
