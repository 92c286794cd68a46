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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// Options configure Analyze.
type Options struct {
	// PageSize and PageCache configure the image cache, zero selects
	// the defaults.
	PageSize  int
	PageCache int
	// Aliases for well known directories, nil selects DefaultAliases.
	Aliases map[string]string
	// Raw only scans the journal and skips packing and path resolution.
	Raw bool
}

// Result of an analysis. It keeps the image open until Close is called.
type Result struct {
	Journal *Journal
	// USNs are the distinct update sequence numbers in increasing order.
	USNs   []uint64
	Events []*Event

	image *Image
}

// Duplicates returns the number of records found more than once.
func (r *Result) Duplicates() int {
	return len(r.Journal.USNs) - len(r.USNs)
}

// Records calls fn for every distinct record in usn order.
func (r *Result) Records(fn func(*usnrecord.Record) error) error {
	for _, usn := range r.USNs {
		rec, err := r.Journal.Record(usn)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the journal image.
func (r *Result) Close() error {
	return r.image.Close()
}

// Analyze scans the journal image name on fs, packs its records into events
// and resolves their paths.
func Analyze(fs afero.Fs, name string, opts Options) (*Result, error) {
	img, err := OpenImage(fs, name, opts.PageSize, opts.PageCache)
	if err != nil {
		return nil, err
	}

	journal := NewJournal(img, img.Size())
	if err := journal.Scan(); err != nil {
		img.Close() // nolint:errcheck
		return nil, errors.Wrap(err, name)
	}

	result := &Result{Journal: journal, USNs: SortUnique(journal.USNs), image: img}
	log.WithFields(log.Fields{
		"found":      len(journal.USNs),
		"duplicates": result.Duplicates(),
		"unique":     len(result.USNs),
	}).Info("sorted records")
	if opts.Raw {
		return result, nil
	}

	result.Events, err = Pack(journal, result.USNs)
	if err != nil {
		img.Close() // nolint:errcheck
		return nil, errors.Wrap(err, "could not pack records")
	}
	log.WithField("events", len(result.Events)).Info("packed records")

	aliases := opts.Aliases
	if aliases == nil {
		aliases = DefaultAliases
	}
	ResolvePaths(result.Events, aliases)
	return result, nil
}
