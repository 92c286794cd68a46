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

// Package report writes the results of a journal analysis to an output
// directory as tab separated files and a text report.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/usnanalytics"
	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// Output file names.
const (
	RecordsPrefix = "usn_analytics_records-"
	ExecutedFile  = "usn_analytics_executed.csv"
	OpenedFile    = "usn_analytics_opened.csv"
	RawFile       = "usn_parse_all.csv"
	ReportFile    = "usn_analytics_report.txt"
)

// ErrOutputNotEmpty is returned by New for existing, non empty directories.
var ErrOutputNotEmpty = errors.New("output directory is not empty")

// Options configure the Writer.
type Options struct {
	UTC            bool
	Compress       bool
	RecordsPerFile int
	ListLimit      int
}

// Writer writes the result files into a single directory.
type Writer struct {
	fs   afero.Fs
	dir  string
	opts Options
}

// New prepares dir as output directory. The directory is created if it does
// not exist and must be empty otherwise.
func New(fs afero.Fs, dir string, opts Options) (*Writer, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, err
	}
	if exists {
		empty, err := afero.IsEmpty(fs, dir)
		if err != nil {
			return nil, err
		}
		if !empty {
			return nil, errors.Wrap(ErrOutputNotEmpty, dir)
		}
	} else if err := fs.MkdirAll(dir, 0775); err != nil {
		return nil, errors.Wrap(err, "could not create output directory")
	}

	if opts.RecordsPerFile <= 0 {
		opts.RecordsPerFile = 1000000
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 1024
	}
	return &Writer{fs: fs, dir: dir, opts: opts}, nil
}

func (w *Writer) create(name string) (*tsvFile, error) {
	return createFile(w.fs, filepath.Join(w.dir, name), w.opts.Compress)
}

func (w *Writer) timestamp(ticks uint64) string {
	return usnrecord.FormatTime(ticks, w.opts.UTC)
}

func (w *Writer) zone() string {
	return fmt.Sprintf("TimeStamp(%s)", usnrecord.Zone(w.opts.UTC))
}

func seconds(event *usnanalytics.Event) string {
	return fmt.Sprintf("%f", event.Elapsed.Seconds())
}

func u64(i uint64) string { return strconv.FormatUint(i, 10) }

// Records writes the events into files of at most RecordsPerFile rows. Each
// file is named after the timestamp of its first event. The names of the
// written files are returned.
func (w *Writer) Records(events []*usnanalytics.Event) (names []string, err error) {
	for start := 0; start < len(events); start += w.opts.RecordsPerFile {
		end := start + w.opts.RecordsPerFile
		if end > len(events) {
			end = len(events)
		}
		t := usnrecord.FileTime(events[start].Timestamp)
		if !w.opts.UTC {
			t = t.Local()
		}
		name, err := w.recordsName(t)
		if err != nil {
			return nil, err
		}
		name, err = w.records(name, events[start:end])
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	log.WithField("files", len(names)).Info("wrote records")
	return names, nil
}

// recordsName returns an unused file name for a records file starting at t.
// Files starting in the same second get a -N suffix.
func (w *Writer) recordsName(t time.Time) (string, error) {
	stem := RecordsPrefix + t.Format("20060102T150405")
	name := stem + ".csv"
	for n := 1; ; n++ {
		path := filepath.Join(w.dir, name)
		if w.opts.Compress {
			path += ".zst"
		}
		exists, err := afero.Exists(w.fs, path)
		if err != nil {
			return "", errors.Wrap(err, "could not check output file")
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-%d.csv", stem, n)
	}
}

func (w *Writer) records(name string, events []*usnanalytics.Event) (path string, err error) {
	file, err := w.create(name)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	err = file.Write("Usn", "Records", w.zone(), "TimeTaken", "FileName", "Reason", "FileAttr", "FileID", "ParentID", "Path")
	if err != nil {
		return "", err
	}
	for _, event := range events {
		err = file.Write(
			u64(event.USN),
			strconv.Itoa(event.Records),
			w.timestamp(event.Timestamp),
			seconds(event),
			event.Name,
			event.Reason.String(),
			event.Attributes.String(),
			u64(event.FileID),
			u64(event.ParentID),
			event.Path,
		)
		if err != nil {
			return "", err
		}
	}
	return file.name, nil
}

// Executed writes the prefetch based program executions.
func (w *Writer) Executed(executions []*usnanalytics.Execution) (err error) {
	file, err := w.create(ExecutedFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	err = file.Write("Usn", w.zone(), "ExeName", "ExeCount", "FileName", "Reason", "Records", "TimeTaken", "FileID")
	if err != nil {
		return err
	}
	for _, execution := range executions {
		err = file.Write(
			u64(execution.USN),
			w.timestamp(execution.Timestamp),
			execution.Executable,
			strconv.Itoa(execution.Count),
			execution.Name,
			execution.Reason.String(),
			strconv.Itoa(execution.Records),
			seconds(execution.Event),
			u64(execution.FileID),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Opened writes the events that indicate opened files.
func (w *Writer) Opened(opened []*usnanalytics.Event) (err error) {
	file, err := w.create(OpenedFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	err = file.Write("Usn", w.zone(), "Path", "FileName", "Reason", "Records", "TimeTaken", "FileID", "ParentID")
	if err != nil {
		return err
	}
	for _, event := range opened {
		err = file.Write(
			u64(event.USN),
			w.timestamp(event.Timestamp),
			event.Path,
			event.Name,
			event.Reason.String(),
			strconv.Itoa(event.Records),
			seconds(event),
			u64(event.FileID),
			u64(event.ParentID),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Raw writes every distinct record of the result without packing.
func (w *Writer) Raw(result *usnanalytics.Result) (err error) {
	file, err := w.create(RawFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	err = file.Write("Offset", "RecLength", "MajorVer", "MinorVer", "FileID", "FileSeq", "ParentID", "ParentSeq",
		"Usn", w.zone(), "Reason", "SourceInfo", "SecurityId", "FileAttr", "FileNameLength", "FileNameOffset", "FileName")
	if err != nil {
		return err
	}
	return result.Records(func(rec *usnrecord.Record) error {
		return file.Write(
			strconv.FormatInt(rec.Offset, 10),
			strconv.FormatUint(uint64(rec.Length), 10),
			strconv.Itoa(int(rec.MajorVersion)),
			strconv.Itoa(int(rec.MinorVersion)),
			u64(rec.FileID),
			strconv.Itoa(int(rec.FileSeq)),
			u64(rec.ParentID),
			strconv.Itoa(int(rec.ParentSeq)),
			u64(rec.USN),
			w.timestamp(rec.Timestamp),
			fmt.Sprintf("%s(%08x)", rec.Reason, uint32(rec.Reason)),
			strconv.FormatUint(uint64(rec.SourceInfo), 10),
			strconv.FormatUint(uint64(rec.SecurityID), 10),
			fmt.Sprintf("%s(%04x)", rec.Attributes, uint32(rec.Attributes)),
			strconv.Itoa(int(rec.NameLength)),
			strconv.Itoa(int(rec.NameOffset)),
			rec.Name,
		)
	})
}

// Content collects everything rendered into the text report. Nil sections
// are omitted.
type Content struct {
	Image      string
	Summary    *usnanalytics.Summary
	Executed   []usnanalytics.NameCount
	Opened     []usnanalytics.NameCount
	Suspicious *usnanalytics.Suspicious
}

// Report writes the text report.
func (w *Writer) Report(content *Content) error {
	f, err := w.fs.Create(filepath.Join(w.dir, ReportFile))
	if err != nil {
		return errors.Wrap(err, "could not create report")
	}
	if err := w.report(f, content); err != nil {
		f.Close() // nolint:errcheck
		return err
	}
	return f.Close()
}

func (w *Writer) report(out io.Writer, content *Content) error {
	var err error
	printf := func(format string, a ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(out, format, a...)
		}
	}

	if s := content.Summary; s != nil {
		printf("%s (%s)\n", content.Image, humanize.IBytes(uint64(s.Size)))
		printf("%8s corrupt records skipped\n", humanize.Comma(int64(s.Corrupt)))
		printf("%8s records found\n", humanize.Comma(int64(s.Found)))
		if s.Duplicates > 0 {
			printf("%8s duplicate records\n", humanize.Comma(int64(s.Duplicates)))
			printf("%8s unique records\n", humanize.Comma(int64(s.Unique)))
		}
		if s.V3 > 0 || s.Unsupported > 0 {
			printf("%8s records of version 3 or 4 skipped\n", humanize.Comma(int64(s.V3+s.Unsupported)))
		}
		if s.Packed > 0 {
			printf("%8s records after packing\n", humanize.Comma(int64(s.Packed)))
		}
		if err != nil {
			return err
		}

		if s.Packed > 0 {
			table := tablewriter.NewWriter(out)
			table.Header("Records", "DateTime", "USN")
			if err := table.Append(w.segmentRow(s.Overall)); err != nil {
				return errors.Wrap(err, "could not add usn range")
			}
			for _, segment := range s.Segments {
				if err := table.Append(w.segmentRow(segment)); err != nil {
					return errors.Wrap(err, "could not add usn range")
				}
			}
			if err := table.Render(); err != nil {
				return errors.Wrap(err, "could not render usn ranges")
			}
		}
	}

	if content.Executed != nil {
		printf("\n[Prefetch Exe Name] %d exe (name, count)\n", len(content.Executed))
		w.counts(printf, content.Executed)
	}
	if content.Opened != nil {
		printf("\n[File Open] %d files (name, count)\n", len(content.Opened))
		w.counts(printf, content.Opened)
	}
	if s := content.Suspicious; s != nil {
		for _, category := range s.Categories {
			printf("\n[%s] %d files (name, count)\n", category.Name, len(category.Files))
			w.counts(printf, category.Files)
		}
		printf("\n[PSEXESVC] %d files (timestamp, name)\n", len(s.PsExec))
		w.sightings(printf, s.PsExec)
		printf("\n[PAExec-] %d files (timestamp, name)\n", len(s.PAExec))
		w.sightings(printf, s.PAExec)
	}
	return err
}

func (w *Writer) segmentRow(segment usnanalytics.Segment) []string {
	return []string{
		humanize.Comma(int64(segment.Events)),
		w.timestamp(segment.Begin) + " - " + w.timestamp(segment.End),
		u64(segment.FirstUSN) + " - " + u64(segment.LastUSN),
	}
}

func (w *Writer) counts(printf func(string, ...interface{}), counts []usnanalytics.NameCount) {
	for i, entry := range counts {
		if i == w.opts.ListLimit {
			printf("reached %d files...skip the rest\n", w.opts.ListLimit)
			return
		}
		printf("%s, %d\n", entry.Name, entry.Count)
	}
}

func (w *Writer) sightings(printf func(string, ...interface{}), sightings []usnanalytics.Sighting) {
	for i, entry := range sightings {
		if i == w.opts.ListLimit {
			printf("reached %d files...skip the rest\n", w.opts.ListLimit)
			return
		}
		printf("%s, %s\n", w.timestamp(entry.Timestamp), entry.Name)
	}
}
