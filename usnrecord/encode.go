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

package usnrecord

import "encoding/binary"

// Encode serializes r as a USN_RECORD_V2, or as a USN_RECORD_V3 when
// r.MajorVersion is 3. Length, name length and name offset are derived
// from r.Name, which is written as is.
func Encode(r *Record) []byte {
	name := EncodeName(r.Name)
	header := HeaderSizeV2
	if r.MajorVersion == 3 {
		header = HeaderSizeV3
	}
	length := (header + len(name) + 7) &^ 7
	if length < MinLength {
		length = MinLength
	}

	b := make([]byte, length)
	binary.LittleEndian.PutUint32(b[0:], uint32(length))
	fileRef := r.FileID&idMask | uint64(r.FileSeq)<<48
	parentRef := r.ParentID&idMask | uint64(r.ParentSeq)<<48
	var body []byte
	if header == HeaderSizeV3 {
		binary.LittleEndian.PutUint16(b[4:], 3)
		binary.LittleEndian.PutUint64(b[8:], fileRef)
		binary.LittleEndian.PutUint64(b[24:], parentRef)
		body = b[40:]
	} else {
		binary.LittleEndian.PutUint16(b[4:], 2)
		binary.LittleEndian.PutUint64(b[8:], fileRef)
		binary.LittleEndian.PutUint64(b[16:], parentRef)
		body = b[24:]
	}
	binary.LittleEndian.PutUint64(body[0:], r.USN)
	binary.LittleEndian.PutUint64(body[8:], r.Timestamp)
	binary.LittleEndian.PutUint32(body[16:], uint32(r.Reason))
	binary.LittleEndian.PutUint32(body[20:], r.SourceInfo)
	binary.LittleEndian.PutUint32(body[24:], r.SecurityID)
	binary.LittleEndian.PutUint32(body[28:], uint32(r.Attributes))
	binary.LittleEndian.PutUint16(body[32:], uint16(len(name)))
	binary.LittleEndian.PutUint16(body[34:], uint16(header))
	copy(b[header:], name)
	return b
}
