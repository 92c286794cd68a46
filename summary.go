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

// DefaultGap is the usn distance that separates two journal segments.
const DefaultGap = 1048576

// Segment is a range of events without large usn gaps.
type Segment struct {
	Events   int
	FirstUSN uint64
	LastUSN  uint64
	Begin    uint64
	End      uint64
}

// Summary holds the counts of an analysis.
type Summary struct {
	Size        int64
	Corrupt     int
	Found       int
	Duplicates  int
	Unique      int
	V3          int
	Unsupported int
	Packed      int
	Overall     Segment
	Segments    []Segment
}

// Summarize counts the result and splits its events into segments at usn
// gaps larger than gap.
func Summarize(result *Result, gap uint64) *Summary {
	summary := &Summary{
		Size:        result.Journal.Size(),
		Corrupt:     len(result.Journal.Corrupt),
		Found:       len(result.Journal.USNs),
		Duplicates:  result.Duplicates(),
		Unique:      len(result.USNs),
		V3:          result.Journal.V3,
		Unsupported: result.Journal.Unsupported,
		Packed:      len(result.Events),
	}
	if len(result.Events) > 0 {
		first, last := result.Events[0], result.Events[len(result.Events)-1]
		summary.Overall = Segment{
			Events:   len(result.Events),
			FirstUSN: first.USN,
			LastUSN:  last.USN,
			Begin:    first.Timestamp,
			End:      last.Timestamp,
		}
	}
	summary.Segments = Segments(result.Events, gap)
	return summary
}

// Segments splits events wherever the usn of two consecutive events differs
// by more than gap.
func Segments(events []*Event, gap uint64) []Segment {
	var segments []Segment
	start := 0
	for i := 1; i <= len(events); i++ {
		if i < len(events) && events[i].USN-events[i-1].USN <= gap {
			continue
		}
		segments = append(segments, Segment{
			Events:   i - start,
			FirstUSN: events[start].USN,
			LastUSN:  events[i-1].USN,
			Begin:    events[start].Timestamp,
			End:      events[i-1].Timestamp,
		})
		start = i
	}
	return segments
}
