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

package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/usnanalytics"
	"github.com/forensicanalysis/usnanalytics/config"
	"github.com/forensicanalysis/usnanalytics/eventstore"
	"github.com/forensicanalysis/usnanalytics/metrics"
	"github.com/forensicanalysis/usnanalytics/report"
)

// Analyze is the usnanalytics analyze commandline subcommand
func Analyze() *cobra.Command {
	var output, configFile string
	flags := &config.Config{}

	analyzeCommand := &cobra.Command{
		Use:   "analyze <$J>",
		Short: "Analyze an extracted $UsnJrnl:$J file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				var err error
				if cfg, err = config.Load(afero.NewOsFs(), configFile); err != nil {
					return err
				}
			}
			override(cmd, cfg, flags)

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			return run(afero.NewOsFs(), args[0], output, cfg)
		},
	}
	analyzeCommand.Flags().StringVarP(&output, "output", "o", "", "output directory, must be empty")
	analyzeCommand.Flags().BoolVarP(&flags.Raw, "raw", "r", false, "write every record without packing")
	analyzeCommand.Flags().BoolVarP(&flags.UTC, "utc", "u", false, "print timestamps in UTC")
	analyzeCommand.Flags().BoolVar(&flags.Compress, "compress", false, "compress csv files with zstd")
	analyzeCommand.Flags().StringVar(&flags.Store, "store", "", "also store the events in this sqlite file")
	analyzeCommand.Flags().StringVar(&flags.Metrics, "metrics", "", "write prometheus metrics to this file")
	analyzeCommand.Flags().StringVar(&flags.LogLevel, "log-level", "info", "log level")
	analyzeCommand.Flags().StringVar(&configFile, "config", "", "yaml config file")
	_ = analyzeCommand.MarkFlagRequired("output")
	return analyzeCommand
}

// override sets all config values whose flags were given.
func override(cmd *cobra.Command, cfg, flags *config.Config) {
	changed := cmd.Flags().Changed
	if changed("raw") {
		cfg.Raw = flags.Raw
	}
	if changed("utc") {
		cfg.UTC = flags.UTC
	}
	if changed("compress") {
		cfg.Compress = flags.Compress
	}
	if changed("store") {
		cfg.Store = flags.Store
	}
	if changed("metrics") {
		cfg.Metrics = flags.Metrics
	}
	if changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
}

func run(fs afero.Fs, image, output string, cfg *config.Config) error {
	start := time.Now()

	writer, err := report.New(fs, output, report.Options{
		UTC:            cfg.UTC,
		Compress:       cfg.Compress,
		RecordsPerFile: cfg.RecordsPerFile,
		ListLimit:      cfg.ListLimit,
	})
	if err != nil {
		return err
	}

	result, err := usnanalytics.Analyze(fs, image, cfg.Options())
	if err != nil {
		return err
	}
	defer result.Close()

	content := &report.Content{Image: image, Summary: usnanalytics.Summarize(result, cfg.USNGap)}
	if cfg.Raw {
		if err := writer.Raw(result); err != nil {
			return errors.Wrap(err, "could not write records")
		}
	} else if err := write(writer, result.Events, content); err != nil {
		return err
	}

	if err := writer.Report(content); err != nil {
		return err
	}
	if cfg.Store != "" {
		if err := persist(fs, cfg.Store, output, result.Events); err != nil {
			return err
		}
	}
	took := time.Since(start)
	if cfg.Metrics != "" {
		m := metrics.New()
		m.Observe(content.Summary, took)
		if err := m.WriteFile(cfg.Metrics); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"output": output, "took": took}).Info("analysis finished")
	return nil
}

func write(writer *report.Writer, events []*usnanalytics.Event, content *report.Content) error {
	if _, err := writer.Records(events); err != nil {
		return errors.Wrap(err, "could not write records")
	}

	executed := usnanalytics.Executed(events)
	if err := writer.Executed(executed); err != nil {
		return errors.Wrap(err, "could not write executed programs")
	}
	opened := usnanalytics.Opened(events)
	if err := writer.Opened(opened); err != nil {
		return errors.Wrap(err, "could not write opened files")
	}

	content.Executed = usnanalytics.ExecutedNames(executed)
	content.Opened = usnanalytics.OpenedNames(opened)
	content.Suspicious = usnanalytics.FindSuspicious(events)
	return nil
}

// persist stores the events and a copy of the output directory.
func persist(fs afero.Fs, storePath, output string, events []*usnanalytics.Event) error {
	store, err := eventstore.New(storePath)
	if err != nil {
		return err
	}
	if _, err := store.Ingest(events, usnanalytics.Opened(events), usnanalytics.Executed(events)); err != nil {
		store.Close() // nolint:errcheck
		return errors.Wrap(err, "could not store events")
	}
	if _, err := store.StoreDir(fs, output); err != nil {
		store.Close() // nolint:errcheck
		return errors.Wrap(err, "could not store output files")
	}
	return store.Close()
}

// Element is the usnanalytics element commandline subcommand
func Element() *cobra.Command {
	elementCommand := &cobra.Command{
		Use:   "element",
		Short: "Read the event store via the commandline",
	}
	elementCommand.AddCommand(getCommand(), selectCommand(), allCommand(), searchCommand(), insertCommand(), fileCommand())
	return elementCommand
}

// Validate is the usnanalytics validate commandline subcommand
func Validate() *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:   "validate <store>",
		Short: "Validate all elements of an event store",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := eventstore.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			flaws, err := store.Validate()
			if err != nil {
				return err
			}
			if len(flaws) == 0 {
				return nil
			}
			if err := printJSON(cmd, flaws); err != nil {
				return err
			}
			if noFail {
				return nil
			}
			return errors.Errorf("%d flaws found", len(flaws))
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func requireOneStore(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one store")
	}
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	return nil
}
