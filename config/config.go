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

// Package config loads the analysis configuration from YAML files.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/usnanalytics"
)

// Config holds all analysis settings.
type Config struct {
	UTC            bool              `yaml:"utc"`
	Raw            bool              `yaml:"raw"`
	Compress       bool              `yaml:"compress"`
	Store          string            `yaml:"store"`
	Metrics        string            `yaml:"metrics"`
	LogLevel       string            `yaml:"log_level"`
	RecordsPerFile int               `yaml:"records_per_file"`
	ListLimit      int               `yaml:"list_limit"`
	USNGap         uint64            `yaml:"usn_gap"`
	PageSize       int               `yaml:"page_size"`
	PageCache      int               `yaml:"page_cache"`
	Aliases        map[string]string `yaml:"aliases"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load reads a YAML configuration from path on fs. Unset values are filled
// with defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	c.setDefaults()
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RecordsPerFile == 0 {
		c.RecordsPerFile = 1000000
	}
	if c.ListLimit == 0 {
		c.ListLimit = 1024
	}
	if c.USNGap == 0 {
		c.USNGap = usnanalytics.DefaultGap
	}
	if c.PageSize == 0 {
		c.PageSize = usnanalytics.DefaultPageSize
	}
	if c.PageCache == 0 {
		c.PageCache = usnanalytics.DefaultPageCache
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
		for name, alias := range usnanalytics.DefaultAliases {
			c.Aliases[name] = alias
		}
	}
}

// Options returns the analysis options of the configuration.
func (c *Config) Options() usnanalytics.Options {
	return usnanalytics.Options{
		PageSize:  c.PageSize,
		PageCache: c.PageCache,
		Aliases:   c.Aliases,
		Raw:       c.Raw,
	}
}
