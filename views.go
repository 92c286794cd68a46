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

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// Execution is an event on a prefetch file, each creation or extension of
// a prefetch file marks one program run.
type Execution struct {
	*Event
	// Executable is the lower case program name from the prefetch file name.
	Executable string
	// Count is the number of runs recorded so far for this prefetch file.
	Count int
}

// NameCount is an entry of a name frequency table.
type NameCount struct {
	Name  string
	Count int
}

const (
	prefetchExtension = ".pf"
	minPrefetchName   = 16
)

// prefetchExecutable returns the program name encoded in a prefetch file
// name like CMD.EXE-4A81B364.pf.
func prefetchExecutable(name string) (string, bool) {
	if len(name) < minPrefetchName || !strings.HasSuffix(name, prefetchExtension) {
		return "", false
	}
	hyphen := strings.LastIndex(name, "-")
	if hyphen < 0 {
		return "", false
	}
	if rest := len(name) - hyphen - 1; rest < 8 || rest > 11 {
		return "", false
	}
	return strings.ToLower(name[:hyphen]), true
}

// Executed returns the events that created or extended a prefetch file.
func Executed(events []*Event) []*Execution {
	var executions []*Execution
	runs := map[string]int{}
	for _, event := range events {
		executable, ok := prefetchExecutable(event.Name)
		if !ok || event.Reason&(usnrecord.FileCreate|usnrecord.DataExtend) == 0 {
			continue
		}
		runs[event.Name]++
		executions = append(executions, &Execution{Event: event, Executable: executable, Count: runs[event.Name]})
	}
	return executions
}

// ExecutedNames returns the highest run count per program, sorted by name.
func ExecutedNames(executions []*Execution) []NameCount {
	counts := map[string]int{}
	for _, execution := range executions {
		if execution.Count > counts[execution.Executable] {
			counts[execution.Executable] = execution.Count
		}
	}
	return sortedCounts(counts)
}

// Opened returns the events that indicate a file was opened: changes to
// shortcut files and object id changes.
func Opened(events []*Event) []*Event {
	var opened []*Event
	for _, event := range events {
		if event.Reason&usnrecord.FileDelete != 0 {
			continue
		}
		if strings.HasSuffix(event.Name, ".lnk") {
			if event.Reason != usnrecord.SecurityChange|usnrecord.Close {
				opened = append(opened, event)
			}
		} else if event.Reason&usnrecord.ObjectIDChange != 0 {
			opened = append(opened, event)
		}
	}
	return opened
}

// OpenedNames counts the opened events per file name, sorted by name.
func OpenedNames(opened []*Event) []NameCount {
	counts := map[string]int{}
	for _, event := range opened {
		counts[event.Name]++
	}
	return sortedCounts(counts)
}

// Category groups file names by extension.
type Category struct {
	Name       string
	Extensions []string
	Files      []NameCount
}

// Sighting is a file name observed at a point in time.
type Sighting struct {
	Timestamp uint64
	Name      string
}

// Suspicious holds file names that are often related to attacks.
type Suspicious struct {
	Categories []*Category
	PsExec     []Sighting
	PAExec     []Sighting
}

func suspiciousCategories() []*Category {
	return []*Category{
		{Name: "job", Extensions: []string{".job"}},
		{Name: "exe", Extensions: []string{".exe"}},
		{Name: "dll", Extensions: []string{".dll"}},
		{Name: "scr", Extensions: []string{".scr"}},
		{Name: "ps1", Extensions: []string{".ps1"}},
		{Name: "vbe/vbs", Extensions: []string{".vba", ".vbe", ".vbs"}},
		{Name: "bat", Extensions: []string{".bat"}},
		{Name: "tck", Extensions: []string{".tck"}},
	}
}

// FindSuspicious collects executables, scripts, scheduled tasks and traces
// of remote execution tools.
func FindSuspicious(events []*Event) *Suspicious {
	suspicious := &Suspicious{Categories: suspiciousCategories()}
	counts := make([]map[string]int, len(suspicious.Categories))
	for i := range counts {
		counts[i] = map[string]int{}
	}
	psexec := map[uint64]string{}
	paexec := map[uint64]string{}

	for _, event := range events {
		if len(event.Name) < 5 || event.Reason == usnrecord.SecurityChange|usnrecord.Close {
			continue
		}
		lower := strings.ToLower(event.Name)
		for i, category := range suspicious.Categories {
			for _, extension := range category.Extensions {
				if strings.HasSuffix(lower, extension) {
					counts[i][event.Name]++
				}
			}
		}
		if strings.EqualFold(event.Name, "PSEXESVC.exe") {
			psexec[event.Timestamp] = event.Name
		}
		if strings.HasPrefix(event.Name, "PAExec-") {
			paexec[event.Timestamp] = event.Name
		}
	}

	for i, category := range suspicious.Categories {
		category.Files = sortedCounts(counts[i])
	}
	suspicious.PsExec = sortedSightings(psexec)
	suspicious.PAExec = sortedSightings(paexec)
	return suspicious
}

func sortedCounts(counts map[string]int) []NameCount {
	list := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		list = append(list, NameCount{Name: name, Count: count})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func sortedSightings(sightings map[uint64]string) []Sighting {
	list := make([]Sighting, 0, len(sightings))
	for ts, name := range sightings {
		list = append(list, Sighting{Timestamp: ts, Name: name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	return list
}
