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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// ErrNoRecords is returned by Scan if the image contains no USN_RECORD_V2.
var ErrNoRecords = errors.New("no usn records found, the image is not a usn journal")

// alignment is the step used to resynchronize on non-record bytes.
const alignment = 8

// A RecordSource returns the record for an update sequence number.
type RecordSource interface {
	Record(usn uint64) (*usnrecord.Record, error)
}

// Journal indexes the records of a journal image.
type Journal struct {
	codec   *usnrecord.Codec
	offsets map[uint64]int64

	// USNs lists every V2 record in image order, duplicates included.
	USNs []uint64
	// Corrupt lists the offsets of records that failed validation.
	Corrupt []int64
	// V3 and Unsupported count skipped records of other versions.
	V3          int
	Unsupported int
}

// NewJournal creates a Journal for size bytes of r.
func NewJournal(r io.ReaderAt, size int64) *Journal {
	return &Journal{
		codec:   usnrecord.NewCodec(r, size),
		offsets: map[uint64]int64{},
	}
}

// Size returns the image size.
func (j *Journal) Size() int64 { return j.codec.Size() }

// Scan walks the image and indexes all V2 records. Bytes that do not form a
// record are skipped in steps of 8 bytes. Offsets with less than the minimum
// record length left are not examined.
func (j *Journal) Scan() error {
	size := j.codec.Size()
	step := size / 10
	progress := step

	var offset int64
	for offset <= size-usnrecord.MinLength {
		if step > 0 && offset >= progress {
			log.WithField("offset", offset).Debugf("scanned %d%%", offset*100/size)
			progress += step
		}

		rec, kind, err := j.codec.Decode(offset)
		if err != nil {
			return err
		}
		switch kind {
		case usnrecord.NotARecord:
			offset += alignment
			continue
		case usnrecord.V2:
			j.offsets[rec.USN] = offset
			j.USNs = append(j.USNs, rec.USN)
		case usnrecord.Corrupt:
			log.WithFields(log.Fields{"offset": offset, "usn": rec.USN}).Debug("corrupt record")
			j.Corrupt = append(j.Corrupt, offset)
		case usnrecord.V3:
			log.WithField("offset", offset).Debug("skip usn record v3")
			j.V3++
		case usnrecord.Unsupported:
			log.WithField("offset", offset).Debug("skip unsupported usn record")
			j.Unsupported++
		}
		offset += int64(rec.Length)
	}

	if len(j.USNs) == 0 {
		return ErrNoRecords
	}
	log.WithFields(log.Fields{
		"records": len(j.USNs),
		"corrupt": len(j.Corrupt),
	}).Info("scanned journal")
	return nil
}

// Offset returns the image offset of a record.
func (j *Journal) Offset(usn uint64) (int64, bool) {
	offset, ok := j.offsets[usn]
	return offset, ok
}

// Record re-reads the record with the given update sequence number.
func (j *Journal) Record(usn uint64) (*usnrecord.Record, error) {
	offset, ok := j.offsets[usn]
	if !ok {
		return nil, errors.Errorf("usn %d not indexed", usn)
	}
	rec, kind, err := j.codec.Decode(offset)
	if err != nil {
		return nil, err
	}
	if kind != usnrecord.V2 {
		return nil, errors.Errorf("record at offset %d changed to %s", offset, kind)
	}
	return rec, nil
}
