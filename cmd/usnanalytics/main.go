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

// Package usnanalytics implements the usnanalytics command line tool that
// turns NTFS change journals into timelines and reports.
//     analyze   Analyze an extracted $UsnJrnl:$J file
//     element   Read the event store (get, select, all, search, insert, file)
//     validate  Validate an event store
//
// Usage
//
// Analyze a journal
//     usnanalytics analyze -o out $J
//     usnanalytics analyze -u --compress --store events.db -o out $J
// Write every record without packing
//     usnanalytics analyze -r -o raw $J
// Read stored events
//     usnanalytics element select usn-event --filter name=%.lnk events.db
//     usnanalytics element search bob events.db
//     usnanalytics element file usn_analytics_report.txt events.db
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/usnanalytics/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "usnanalytics",
		Short:         "Analyze NTFS change journals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(cmd.Analyze(), cmd.Element(), cmd.Validate())
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("usnanalytics failed")
		os.Exit(1)
	}
}
