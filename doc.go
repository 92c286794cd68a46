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

// Package usnanalytics reconstructs a chronological history of file system
// activity from a raw NTFS USN change journal ($UsnJrnl:$J) image.
//
// Analysis
//
// The analysis runs as a single synchronous pipeline:
//     Image      paged, read-only access to the journal image
//     Journal    finds and validates USN_RECORD_V2 entries by scanning
//     SortUnique orders the discovered update sequence numbers
//     Pack       folds bursts of records into one Event per logical action
//     ResolvePaths
//                rebuilds historical directory paths for every Event
//
// Derived views select executed programs (prefetch files), opened files
// (shortcuts and object id changes) and suspicious file names from the
// resulting events.
//
// Usage
//
//     result, err := usnanalytics.Analyze(afero.NewOsFs(), "$J", usnanalytics.Options{})
//     if err != nil {
//         return err
//     }
//     for _, event := range result.Events {
//         fmt.Println(event.FullPath(), event.Reason)
//     }
package usnanalytics
