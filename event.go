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
	"time"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// Event is one logical file system action, folded from one or more
// consecutive journal records.
type Event struct {
	USN        uint64
	Timestamp  uint64
	Records    int
	Reason     usnrecord.Reason
	Attributes usnrecord.Attribute
	Elapsed    time.Duration
	Name       string
	FileID     uint64
	ParentID   uint64

	// NewName and NewParentID hold the target of a rename or move.
	NewName     string
	NewParentID uint64

	// Path is the directory containing the file, set by ResolvePaths.
	Path string
}

func newEvent(rec *usnrecord.Record) *Event {
	return &Event{
		USN:        rec.USN,
		Timestamp:  rec.Timestamp,
		Records:    1,
		Reason:     rec.Reason,
		Attributes: rec.Attributes,
		Name:       rec.Name,
		FileID:     rec.FileID,
		ParentID:   rec.ParentID,
	}
}

// Time returns the timestamp of the first record.
func (e *Event) Time() time.Time {
	return usnrecord.FileTime(e.Timestamp)
}

// IsDirectory reports whether the event concerns a directory.
func (e *Event) IsDirectory() bool {
	return e.Attributes.Has(usnrecord.Directory)
}

// IsRename reports whether the event was classified as rename or move.
func (e *Event) IsRename() bool {
	return e.Reason == usnrecord.Rename || e.Reason == usnrecord.Move
}

// FullPath returns the path of the file, or only its name if the
// directory could not be resolved.
func (e *Event) FullPath() string {
	if e.Path == "" {
		return e.Name
	}
	return e.Path + e.Name
}

// elapsed returns the duration between two timestamps, never negative.
func elapsed(to, from uint64) time.Duration {
	if to < from {
		return 0
	}
	return usnrecord.Ticks(int64(to - from))
}
