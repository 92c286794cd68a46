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

package report

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/usnanalytics"
	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

var base = time.Date(2020, 5, 4, 10, 0, 0, 0, time.UTC)

func ticks(sec int) uint64 {
	return usnrecord.ToFileTime(base.Add(time.Duration(sec) * time.Second))
}

func events(n int) []*usnanalytics.Event {
	var list []*usnanalytics.Event
	for i := 0; i < n; i++ {
		list = append(list, &usnanalytics.Event{
			USN:        uint64(100 * (i + 1)),
			Timestamp:  ticks(i * 3600),
			Records:    2,
			Reason:     usnrecord.FileCreate | usnrecord.Close,
			Attributes: usnrecord.Archive,
			Elapsed:    1500 * time.Millisecond,
			Name:       `say "hi".txt`,
			FileID:     uint64(40 + i),
			ParentID:   5,
			Path:       `\`,
		})
	}
	return list
}

func newWriter(t *testing.T, opts Options) (afero.Fs, *Writer) {
	fs := afero.NewMemMapFs()
	w, err := New(fs, "out", opts)
	require.NoError(t, err)
	return fs, w
}

func lines(t *testing.T, fs afero.Fs, name string) []string {
	b, err := afero.ReadFile(fs, filepath.Join("out", name))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestNew(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := New(fs, "out", Options{})
	require.NoError(t, err)
	exists, err := afero.DirExists(fs, "out")
	require.NoError(t, err)
	assert.True(t, exists)

	// existing empty directory
	_, err = New(fs, "out", Options{})
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "out/x", []byte("x"), 0644))
	_, err = New(fs, "out", Options{})
	assert.ErrorIs(t, err, ErrOutputNotEmpty)
}

func TestWriter_Records(t *testing.T) {
	fs, w := newWriter(t, Options{UTC: true, RecordsPerFile: 2})

	names, err := w.Records(events(3))
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, filepath.Join("out", "usn_analytics_records-20200504T100000.csv"), names[0])
	assert.Equal(t, filepath.Join("out", "usn_analytics_records-20200504T120000.csv"), names[1])

	got := lines(t, fs, "usn_analytics_records-20200504T100000.csv")
	require.Len(t, got, 3)
	assert.Equal(t, `"Usn"	"Records"	"TimeStamp(+00:00)"	"TimeTaken"	"FileName"	"Reason"	"FileAttr"	"FileID"	"ParentID"	"Path"`, got[0])
	assert.Equal(t, `"100"	"2"	"2020/05/04 10:00:00.000000"	"1.500000"	"say ""hi"".txt"	"CREATE|CLOSE"	"ARCHIVE"	"40"	"5"	"\"`, got[1])

	assert.Len(t, lines(t, fs, "usn_analytics_records-20200504T120000.csv"), 2)
}

func TestWriter_Records_sameSecond(t *testing.T) {
	tests := []struct {
		name     string
		compress bool
		want     []string
	}{
		{"plain", false, []string{
			"usn_analytics_records-20200504T100000.csv",
			"usn_analytics_records-20200504T100000-1.csv",
			"usn_analytics_records-20200504T100000-2.csv",
		}},
		{"compressed", true, []string{
			"usn_analytics_records-20200504T100000.csv.zst",
			"usn_analytics_records-20200504T100000-1.csv.zst",
			"usn_analytics_records-20200504T100000-2.csv.zst",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, w := newWriter(t, Options{UTC: true, Compress: tt.compress, RecordsPerFile: 1})
			list := events(3)
			for _, event := range list {
				event.Timestamp = ticks(0)
			}

			names, err := w.Records(list)
			require.NoError(t, err)
			require.Len(t, names, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, filepath.Join("out", want), names[i])
				exists, err := afero.Exists(fs, names[i])
				require.NoError(t, err)
				assert.True(t, exists)
			}
			if !tt.compress {
				for _, name := range tt.want {
					assert.Len(t, lines(t, fs, name), 2)
				}
			}
		})
	}
}

func TestWriter_Records_compressed(t *testing.T) {
	fs, w := newWriter(t, Options{UTC: true, Compress: true})

	names, err := w.Records(events(1))
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.True(t, strings.HasSuffix(names[0], ".csv.zst"))

	f, err := fs.Open(names[0])
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	b, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `"Usn"	"Records"`))
}

func TestWriter_Executed(t *testing.T) {
	fs, w := newWriter(t, Options{UTC: true})
	event := events(1)[0]
	event.Name = "CMD.EXE-4A81B364.pf"

	err := w.Executed([]*usnanalytics.Execution{{Event: event, Executable: "cmd.exe", Count: 1}})
	require.NoError(t, err)

	got := lines(t, fs, ExecutedFile)
	require.Len(t, got, 2)
	assert.Equal(t, `"Usn"	"TimeStamp(+00:00)"	"ExeName"	"ExeCount"	"FileName"	"Reason"	"Records"	"TimeTaken"	"FileID"`, got[0])
	assert.Equal(t, `"100"	"2020/05/04 10:00:00.000000"	"cmd.exe"	"1"	"CMD.EXE-4A81B364.pf"	"CREATE|CLOSE"	"2"	"1.500000"	"40"`, got[1])
}

func TestWriter_Opened(t *testing.T) {
	fs, w := newWriter(t, Options{UTC: true})
	event := events(1)[0]
	event.Name = "doc.lnk"

	require.NoError(t, w.Opened([]*usnanalytics.Event{event}))

	got := lines(t, fs, OpenedFile)
	require.Len(t, got, 2)
	assert.Equal(t, `"Usn"	"TimeStamp(+00:00)"	"Path"	"FileName"	"Reason"	"Records"	"TimeTaken"	"FileID"	"ParentID"`, got[0])
	assert.Equal(t, `"100"	"2020/05/04 10:00:00.000000"	"\"	"doc.lnk"	"CREATE|CLOSE"	"2"	"1.500000"	"40"	"5"`, got[1])
}

func TestWriter_Raw(t *testing.T) {
	rec := &usnrecord.Record{
		MajorVersion: 2,
		FileID:       41,
		FileSeq:      3,
		ParentID:     5,
		ParentSeq:    5,
		USN:          100,
		Timestamp:    ticks(0),
		Reason:       usnrecord.FileCreate,
		Attributes:   usnrecord.Archive,
		Name:         "a.txt",
	}
	rec.FileID |= uint64(rec.FileSeq) << 48
	rec.ParentID |= uint64(rec.ParentSeq) << 48
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "$J", usnrecord.Encode(rec), 0644))

	result, err := usnanalytics.Analyze(fs, "$J", usnanalytics.Options{Raw: true})
	require.NoError(t, err)
	defer result.Close()

	w, err := New(fs, "out", Options{UTC: true})
	require.NoError(t, err)
	require.NoError(t, w.Raw(result))

	got := lines(t, fs, RawFile)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], `"Offset"	"RecLength"	"MajorVer"`))
	assert.Equal(t, `"0"	"72"	"2"	"0"	"41"	"3"	"5"	"5"	"100"	"2020/05/04 10:00:00.000000"	"CREATE(00000100)"	"0"	"0"	"ARCHIVE(0020)"	"10"	"60"	"a.txt"`, got[1])
}

func TestWriter_Report(t *testing.T) {
	fs, w := newWriter(t, Options{UTC: true, ListLimit: 2})

	list := events(2)
	suspicious := usnanalytics.FindSuspicious(list)
	suspicious.PsExec = []usnanalytics.Sighting{{Timestamp: ticks(0), Name: "PSEXESVC.exe"}}

	err := w.Report(&Content{
		Image: "$J",
		Summary: &usnanalytics.Summary{
			Size:    2048,
			Found:   4,
			Unique:  4,
			Packed:  2,
			Overall: usnanalytics.Segment{Events: 2, FirstUSN: 100, LastUSN: 200, Begin: ticks(0), End: ticks(3600)},
			Segments: []usnanalytics.Segment{
				{Events: 2, FirstUSN: 100, LastUSN: 200, Begin: ticks(0), End: ticks(3600)},
			},
		},
		Executed: []usnanalytics.NameCount{{Name: "cmd.exe", Count: 3}, {Name: "a.exe", Count: 1}, {Name: "b.exe", Count: 1}},
		Opened:   []usnanalytics.NameCount{},
		Suspicious: suspicious,
	})
	require.NoError(t, err)

	b, err := afero.ReadFile(fs, filepath.Join("out", ReportFile))
	require.NoError(t, err)
	report := string(b)
	assert.Contains(t, report, "$J (2.0 KiB)")
	assert.Contains(t, report, "4 records found")
	assert.Contains(t, report, "2 records after packing")
	assert.Contains(t, report, "100 - 200")
	upper := strings.ToUpper(report)
	assert.Contains(t, upper, "RECORDS")
	assert.Contains(t, upper, "DATETIME")
	assert.Contains(t, upper, "USN")
	assert.Equal(t, 2, strings.Count(report, "11:00:00.000000"))
	assert.Contains(t, report, "[Prefetch Exe Name] 3 exe (name, count)\ncmd.exe, 3\na.exe, 1\nreached 2 files...skip the rest\n")
	assert.Contains(t, report, "[File Open] 0 files (name, count)")
	assert.Contains(t, report, "[exe] 0 files (name, count)")
	assert.Contains(t, report, "[PSEXESVC] 1 files (timestamp, name)\n2020/05/04 10:00:00.000000, PSEXESVC.exe\n")
	assert.Contains(t, report, "[PAExec-] 0 files (timestamp, name)")
}
