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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

// window is the maximal gap between two records of one event.
const window = 10000000 // 1s in 100ns ticks

// Pack folds the records for the sorted update sequence numbers into events.
//
// NTFS writes several records for one user visible action, e.g. OLDNAME,
// NEWNAME and NEWNAME|CLOSE for a rename. Pack runs a single forward pass
// that merges such bursts and keeps the union of all reasons and attributes
// and the accumulated elapsed time.
func Pack(src RecordSource, usns []uint64) ([]*Event, error) {
	p := &packer{
		src:      src,
		usns:     usns,
		consumed: map[int]struct{}{},
		records:  map[int]*usnrecord.Record{},
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.events, nil
}

type packer struct {
	src    RecordSource
	usns   []uint64
	events []*Event

	// consumed holds indices ahead of the cursor already merged into an
	// event, records caches lookahead reads.
	consumed map[int]struct{}
	records  map[int]*usnrecord.Record
}

func (p *packer) run() error {
	step := len(p.usns) / 10
	progress := step
	for i := 0; i < len(p.usns); i++ {
		if step > 0 && i >= progress {
			log.WithField("events", len(p.events)).Debugf("packed %d%%", i*100/len(p.usns))
			progress += step
		}

		if _, ok := p.consumed[i]; ok {
			p.forget(i)
			continue
		}
		base, err := p.record(i)
		if err != nil {
			return err
		}
		p.forget(i)

		if base.Reason == usnrecord.FileDelete|usnrecord.Close ||
			base.Reason == usnrecord.FileDelete|usnrecord.TransactedChange|usnrecord.Close {
			p.events = append(p.events, newEvent(base))
			continue
		}

		if j := p.next(i); j < len(p.usns) {
			next, err := p.record(j)
			if err != nil {
				return err
			}

			if base.Reason == usnrecord.SecurityChange && next.Reason == usnrecord.SecurityChange|usnrecord.Close {
				event := newEvent(base)
				event.Records++
				event.Elapsed = elapsed(next.Timestamp, base.Timestamp)
				event.Reason |= next.Reason
				event.Attributes |= next.Attributes
				p.consume(j)
				p.events = append(p.events, event)
				continue
			}

			if base.Reason&usnrecord.RenameOldName != 0 && next.Reason&usnrecord.RenameNewName != 0 {
				event, err := p.rename(base, next, j)
				if err != nil {
					return err
				}
				p.events = append(p.events, event)
				continue
			}
		}

		event, err := p.window(i, base)
		if err != nil {
			return err
		}
		p.emit(event)
	}
	return nil
}

// rename folds OLDNAME, NEWNAME and an optional NEWNAME|CLOSE record.
func (p *packer) rename(base, next *usnrecord.Record, j int) (*Event, error) {
	event := newEvent(base)
	if base.Name == next.Name {
		event.Reason = usnrecord.Move
		event.Name = fmt.Sprintf("%s (%d -> %d)", base.Name, base.ParentID, next.ParentID)
	} else {
		event.Reason = usnrecord.Rename
		event.Name = base.Name + " -> " + next.Name
	}
	event.NewName = next.Name
	event.NewParentID = next.ParentID
	event.Records++
	event.Elapsed = elapsed(next.Timestamp, base.Timestamp)
	event.Attributes |= next.Attributes
	p.consume(j)

	if k := p.next(j); k < len(p.usns) {
		closing, err := p.record(k)
		if err != nil {
			return nil, err
		}
		if closing.Reason == usnrecord.RenameNewName|usnrecord.Close && closing.FileID == base.FileID {
			event.Records++
			event.Elapsed += elapsed(closing.Timestamp, next.Timestamp)
			event.Attributes |= closing.Attributes
			p.consume(k)
		}
	}
	return event, nil
}

// window merges the following records of the same file that were written
// within one second of each other.
func (p *packer) window(i int, base *usnrecord.Record) (*Event, error) {
	event := newEvent(base)
	names := newTally(base.Name)
	last := base.Timestamp

	for j := p.next(i); j < len(p.usns); j = p.next(j) {
		candidate, err := p.record(j)
		if err != nil {
			return nil, err
		}
		if candidate.Timestamp < last || candidate.Timestamp-last >= window {
			break
		}

		if candidate.FileID == base.FileID {
			names.add(candidate.Name)
			if candidate.Reason&(usnrecord.RenameOldName|usnrecord.RenameNewName) != 0 {
				break
			}
			event.Records++
			event.Elapsed += elapsed(candidate.Timestamp, last)
			event.Reason |= candidate.Reason
			event.Attributes |= candidate.Attributes
			last = candidate.Timestamp
			p.consume(j)
			if candidate.Reason&usnrecord.FileDelete != 0 && candidate.Reason&usnrecord.Close != 0 {
				break
			}
		} else if p.repeats(event) {
			break
		}
	}

	event.Name = names.winner()
	return event, nil
}

// repeats reports whether the two last events have the shape of event.
func (p *packer) repeats(event *Event) bool {
	n := len(p.events)
	if n < 2 {
		return false
	}
	for _, prev := range p.events[n-2:] {
		if prev.Records != event.Records || prev.ParentID != event.ParentID ||
			prev.Reason != event.Reason || prev.Attributes != event.Attributes {
			return false
		}
	}
	return true
}

// emit appends event or merges it into the last event of the same file,
// parent, reason and attributes.
func (p *packer) emit(event *Event) {
	if n := len(p.events); n > 0 {
		last := p.events[n-1]
		if last.FileID == event.FileID && last.ParentID == event.ParentID &&
			last.Reason == event.Reason && last.Attributes == event.Attributes {
			last.Records += event.Records
			last.Elapsed = elapsed(event.Timestamp, last.Timestamp) + event.Elapsed
			return
		}
	}
	p.events = append(p.events, event)
}

// next returns the index of the first unconsumed record after i.
func (p *packer) next(i int) int {
	j := i + 1
	for j < len(p.usns) {
		if _, ok := p.consumed[j]; !ok {
			break
		}
		j++
	}
	return j
}

func (p *packer) consume(i int) {
	p.consumed[i] = struct{}{}
}

func (p *packer) forget(i int) {
	delete(p.consumed, i)
	delete(p.records, i)
}

func (p *packer) record(i int) (*usnrecord.Record, error) {
	if rec, ok := p.records[i]; ok {
		return rec, nil
	}
	rec, err := p.src.Record(p.usns[i])
	if err != nil {
		return nil, err
	}
	p.records[i] = rec
	return rec, nil
}

// tally counts names in order of appearance.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally(name string) *tally {
	t := &tally{counts: map[string]int{}}
	t.add(name)
	return t
}

func (t *tally) add(name string) {
	if _, ok := t.counts[name]; !ok {
		t.order = append(t.order, name)
	}
	t.counts[name]++
}

// winner returns the most frequent name, the first seen on a tie.
func (t *tally) winner() string {
	best, count := "", 0
	for _, name := range t.order {
		if t.counts[name] > count {
			best, count = name, t.counts[name]
		}
	}
	return best
}
