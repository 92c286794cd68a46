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

// Package eventstore persists analysis results as JSON elements in a single
// sqlite file.
//
// The event store format
//
// The event store implements the following conventions:
//     - The store is a sqlite file with the application_id 1970499169 ("usna").
//     - All elements are kept as json objects in the fts5 table "elements".
//     - Every element has a "type" and an "id" of the form <type>--<uuid>.
//     - Elements of the type "usn-event" are packed change journal events.
//     - Elements of the type "file" are valid STIX 2.1 File Objects.
//     - Closing the store creates one view per element type with a column
//       for every field, e.g. SELECT name, path FROM "usn-event".
//
// Example
//
// Read all opened link files of an analysis:
//     usnanalytics element select file results.db
package eventstore
