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

import (
	"fmt"
	"time"
)

const (
	// epochDelta is the number of seconds between 1601-01-01 and 1970-01-01.
	epochDelta     = 11644473600
	ticksPerSecond = 10000000

	minTimestamp = 946684800  // 2000-01-01
	maxTimestamp = 4102444800 // 2100-01-01
)

// TimeFormat renders timestamps with microsecond precision.
const TimeFormat = "2006/01/02 15:04:05.000000"

// FileTime converts 100ns ticks since 1601-01-01 to a UTC time.
func FileTime(ticks uint64) time.Time {
	secs := int64(ticks/ticksPerSecond) - epochDelta
	nsec := int64(ticks%ticksPerSecond) * 100
	return time.Unix(secs, nsec).UTC()
}

// ToFileTime converts t to 100ns ticks since 1601-01-01.
func ToFileTime(t time.Time) uint64 {
	return uint64(t.Unix()+epochDelta)*ticksPerSecond + uint64(t.Nanosecond()/100)
}

// Ticks converts a tick delta into a duration.
func Ticks(delta int64) time.Duration {
	return time.Duration(delta) * 100
}

func validTimestamp(ticks uint64) bool {
	secs := int64(ticks/ticksPerSecond) - epochDelta
	return secs >= minTimestamp && secs <= maxTimestamp
}

// FormatTime renders ticks in local time or UTC.
func FormatTime(ticks uint64, utc bool) string {
	t := FileTime(ticks)
	if !utc {
		t = t.Local()
	}
	return t.Format(TimeFormat)
}

// Zone returns the time zone designator (±hh:mm) used by FormatTime.
func Zone(utc bool) string {
	if utc {
		return "+00:00"
	}
	_, offset := time.Now().Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%c%02d:%02d", sign, offset/3600, offset%3600/60)
}
