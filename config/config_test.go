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

package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/usnanalytics"
)

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "full.yml", []byte(`
utc: true
compress: true
log_level: debug
records_per_file: 10
list_limit: 5
usn_gap: 4096
metrics: /var/lib/node_exporter/usnanalytics.prom
aliases:
  Public: Users
  ProgramData: Users
`), 0644))
	require.NoError(t, afero.WriteFile(fs, "empty.yml", []byte(""), 0644))
	require.NoError(t, afero.WriteFile(fs, "invalid.yml", []byte("utc: [1"), 0644))

	tests := []struct {
		name    string
		path    string
		want    *Config
		wantErr bool
	}{
		{"full", "full.yml", &Config{
			UTC:            true,
			Compress:       true,
			LogLevel:       "debug",
			RecordsPerFile: 10,
			ListLimit:      5,
			USNGap:         4096,
			Metrics:        "/var/lib/node_exporter/usnanalytics.prom",
			PageSize:       usnanalytics.DefaultPageSize,
			PageCache:      usnanalytics.DefaultPageCache,
			Aliases:        map[string]string{"Public": "Users", "ProgramData": "Users"},
		}, false},
		{"empty", "empty.yml", Default(), false},
		{"invalid", "invalid.yml", nil, true},
		{"missing", "missing.yml", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(fs, tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 1000000, c.RecordsPerFile)
	assert.Equal(t, 1024, c.ListLimit)
	assert.Equal(t, uint64(usnanalytics.DefaultGap), c.USNGap)
	assert.Equal(t, usnanalytics.DefaultAliases, c.Aliases)

	c.Aliases["Foo"] = "Bar"
	assert.NotContains(t, usnanalytics.DefaultAliases, "Foo")

	opts := c.Options()
	assert.Equal(t, c.Aliases, opts.Aliases)
	assert.False(t, opts.Raw)
}
