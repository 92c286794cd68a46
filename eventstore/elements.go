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

package eventstore

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/forensicanalysis/usnanalytics"
	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// UsnEventType is the element type of packed journal events.
const UsnEventType = "usn-event"

const timeFormat = "2006-01-02T15:04:05.000000Z"

// JSONElement is a single entry in the database.
type JSONElement []byte

// Element is a decoded JSONElement.
type Element map[string]interface{}

func timestamp(ticks uint64) string {
	return usnrecord.FileTime(ticks).Format(timeFormat)
}

// UsnEvent is the stored form of a packed journal event.
type UsnEvent struct {
	ID          string
	Type        string
	USN         uint64
	Timestamp   string
	Records     int
	Elapsed     float64
	Name        string
	Reason      string
	Attributes  string
	FileID      uint64
	ParentID    uint64
	NewName     string
	NewParentID uint64
	Path        string
}

// NewUsnEvent converts a packed event.
func NewUsnEvent(event *usnanalytics.Event) *UsnEvent {
	e := &UsnEvent{
		ID:         UsnEventType + "--" + uuid.New().String(),
		Type:       UsnEventType,
		USN:        event.USN,
		Timestamp:  timestamp(event.Timestamp),
		Records:    event.Records,
		Elapsed:    event.Elapsed.Seconds(),
		Name:       event.Name,
		Reason:     event.Reason.String(),
		Attributes: event.Attributes.String(),
		FileID:     event.FileID,
		ParentID:   event.ParentID,
		Path:       event.Path,
	}
	if event.IsRename() {
		e.NewName = event.NewName
		e.NewParentID = event.NewParentID
	}
	return e
}

// File implements a STIX 2.1 File Object
type File struct {
	ID         string                 `json:"id"`
	Artifact   string                 `json:"artifact,omitempty"`
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Ctime      string                 `json:"ctime,omitempty"`
	Mtime      string                 `json:"mtime,omitempty"`
	Atime      string                 `json:"atime,omitempty"`
	Origin     map[string]interface{} `json:"origin,omitempty"`
	Errors     []interface{}          `json:"errors,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// NewFile creates a new STIX 2.1 File Object.
func NewFile() *File {
	return &File{ID: "file--" + uuid.New().String(), Type: "file"}
}

// AddError adds an error string to a File and returns this File.
func (i *File) AddError(err string) *File {
	log.WithField("file", i.Name).Warn(err)
	i.Errors = append(i.Errors, err)
	return i
}

func newFile(artifact string, event *usnanalytics.Event) *File {
	file := NewFile()
	file.Artifact = artifact
	file.Name = event.Name
	file.Origin = map[string]interface{}{
		"path": event.FullPath(),
		"usn":  event.USN,
	}
	file.Attributes = map[string]interface{}{
		"file_id":   event.FileID,
		"parent_id": event.ParentID,
		"reason":    event.Reason.String(),
	}
	if event.Name == usnrecord.Unconvertible {
		file.AddError("file name could not be decoded")
	}
	return file
}

// NewOpenedFile describes a file that was opened at the time of event.
func NewOpenedFile(event *usnanalytics.Event) *File {
	file := newFile("OpenedFile", event)
	file.Atime = timestamp(event.Timestamp)
	return file
}

// NewPrefetchFile describes the prefetch file of a program execution.
func NewPrefetchFile(execution *usnanalytics.Execution) *File {
	file := newFile("PrefetchFile", execution.Event)
	file.Mtime = timestamp(execution.Timestamp)
	file.Attributes["executable"] = execution.Executable
	file.Attributes["run_count"] = execution.Count
	return file
}

// Ingest stores the events and the files derived from them in one
// transaction and returns the number of elements.
func (store *EventStore) Ingest(events, opened []*usnanalytics.Event, executed []*usnanalytics.Execution) (int, error) {
	start := time.Now()
	elements := make([]interface{}, 0, len(events)+len(opened)+len(executed))
	for _, event := range events {
		elements = append(elements, NewUsnEvent(event))
	}
	for _, event := range opened {
		elements = append(elements, NewOpenedFile(event))
	}
	for _, execution := range executed {
		elements = append(elements, NewPrefetchFile(execution))
	}

	ids, err := store.InsertStructBatch(elements)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"elements": len(ids), "took": time.Since(start)}).Info("stored elements")
	return len(ids), nil
}
