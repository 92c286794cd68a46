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
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// maxDepth bounds the parent walk to terminate on cyclic chains.
const maxDepth = 31

// DefaultAliases map well known directories to the directory they are
// linked below.
var DefaultAliases = map[string]string{
	"Public":   "Users",
	"Default":  "Users",
	"System32": "Windows",
	"Prefetch": "Windows",
}

type dirEntry struct {
	name   string
	parent uint64
	usn    uint64
}

// dirTable maps a directory id to its historical entries ordered by usn.
type dirTable map[uint64][]dirEntry

func (t dirTable) add(id uint64, entry dirEntry) {
	t[id] = append(t[id], entry)
}

func (t dirTable) sort() {
	for _, entries := range t {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].usn < entries[j].usn })
	}
}

// nearest returns the entry of id with the minimal absolute usn distance.
// On a tie the entry with the lower usn wins.
func (t dirTable) nearest(id, usn uint64) (dirEntry, bool) {
	entries := t[id]
	if len(entries) == 0 {
		return dirEntry{}, false
	}
	i := sort.Search(len(entries), func(k int) bool { return entries[k].usn >= usn })
	if i == len(entries) {
		return first(entries, entries[i-1].usn), true
	}
	if i == 0 {
		return entries[0], true
	}
	below, above := entries[i-1], entries[i]
	if usn-below.usn <= above.usn-usn {
		return first(entries, below.usn), true
	}
	return above, true
}

// first returns the earliest inserted entry with the given usn.
func first(entries []dirEntry, usn uint64) dirEntry {
	return entries[sort.Search(len(entries), func(k int) bool { return entries[k].usn >= usn })]
}

// resolve walks the parents of entry and returns its full path. The walk
// stops at the root, at an unknown parent or after maxDepth steps.
func (t dirTable) resolve(entry dirEntry) string {
	path := entry.name
	parent := entry.parent
	for depth := 0; depth < maxDepth; depth++ {
		if parent == usnrecord.Root {
			return usnrecord.Separator + path
		}
		candidate, ok := t.nearest(parent, entry.usn)
		if !ok {
			return path
		}
		path = candidate.name + path
		parent = candidate.parent
	}
	return path
}

// directories builds the historical directory table from the events.
func directories(events []*Event, aliases map[string]string) dirTable {
	dirs := dirTable{}
	for _, event := range events {
		name, parent := event.Name, event.ParentID
		if event.IsRename() {
			name, parent = event.NewName, event.NewParentID
		}
		if !event.IsDirectory() || name == "" || name == usnrecord.Unconvertible ||
			!strings.HasSuffix(name, usnrecord.Separator) || event.FileID == parent {
			continue
		}
		dirs.add(event.FileID, dirEntry{name: name, parent: parent, usn: event.USN})

		if alias, ok := aliases[strings.TrimSuffix(name, usnrecord.Separator)]; ok {
			dirs.add(event.FileID, dirEntry{name: alias + usnrecord.Separator, parent: usnrecord.Root})
		}
	}
	dirs.sort()
	return dirs
}

// ResolvePaths sets the Path of every event to the historical path of its
// parent directory at the time of the event. Directory names are taken from
// the directory events in the same sequence. Parents that cannot be
// resolved leave Path empty.
func ResolvePaths(events []*Event, aliases map[string]string) {
	dirs := directories(events, aliases)

	paths := dirTable{usnrecord.Root: {{name: usnrecord.Separator}}}
	for id, entries := range dirs {
		for _, entry := range entries {
			paths.add(id, dirEntry{name: dirs.resolve(entry), parent: entry.parent, usn: entry.usn})
		}
	}
	paths.sort()
	log.WithFields(log.Fields{"directories": len(dirs)}).Debug("resolved directory table")

	for _, event := range events {
		if entry, ok := paths.nearest(event.ParentID, event.USN); ok {
			event.Path = entry.name
		} else {
			event.Path = ""
		}
	}
}
