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

package eventstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/usnanalytics"
	"github.com/forensicanalysis/usnanalytics/usnrecord"
)

var base = time.Date(2020, 5, 4, 10, 0, 0, 0, time.UTC)

func jsons(e Element) JSONElement {
	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return b
}

func decode(t *testing.T, element JSONElement) Element {
	e := Element{}
	require.NoError(t, json.Unmarshal(element, &e))
	return e
}

func testEvent(usn uint64, name, path string) *usnanalytics.Event {
	return &usnanalytics.Event{
		USN:        usn,
		Timestamp:  usnrecord.ToFileTime(base.Add(time.Duration(usn) * time.Second)),
		Records:    3,
		Reason:     usnrecord.FileCreate | usnrecord.DataExtend | usnrecord.Close,
		Attributes: usnrecord.Archive,
		Elapsed:    250 * time.Millisecond,
		Name:       name,
		FileID:     usn + 40,
		ParentID:   5,
		Path:       path,
	}
}

func newStore(t *testing.T) (string, *EventStore) {
	url := filepath.Join(t.TempDir(), "events.db")
	store, err := New(url)
	require.NoError(t, err)
	return url, store
}

func TestNew(t *testing.T) {
	existing, store := newStore(t)
	require.NoError(t, store.Close())

	tests := []struct {
		name    string
		url     string
		wantErr bool
		wantIs  error
	}{
		{"New", filepath.Join(t.TempDir(), "sub", "events.db"), false, nil},
		{"Memory", memory, false, nil},
		{"Existing", existing, true, ErrStoreExists},
		{"Wrong URL", "foo\x00bar", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

func TestOpen(t *testing.T) {
	existing, store := newStore(t)
	require.NoError(t, store.Close())

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte("this is not a sqlite database at all, just some text"), 0600))

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"Open", existing, false},
		{"Missing", filepath.Join(t.TempDir(), "missing.db"), true},
		{"No database", junk, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}

	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrStoreNotExists)
}

func TestEventStore_Insert(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()

	valid := Element{
		"type":      UsnEventType,
		"usn":       100,
		"timestamp": "2020-05-04T10:00:00.000000Z",
		"records":   1,
		"reason":    "CREATE",
	}

	tests := []struct {
		name    string
		element Element
		want    string
		wantErr bool
	}{
		{"Insert First", Element{"name": "foo", "type": "fo", "int": 0}, "fo--", false},
		{"Insert Second", Element{"name": "bar", "type": "ba", "int": 2}, "ba--", false},
		{"Insert Different Columns", Element{"name": "baz", "type": "ba", "float": 0.1}, "ba--", false},
		{"Insert Empty List", Element{"name": "bat", "type": "ba", "list": []string{}}, "ba--", false},
		{"Insert Element with nil", Element{"name": "bau", "type": "ba", "list": nil}, "ba--", false},
		{"Insert with id", Element{"id": "ba--1", "type": "ba"}, "ba--1", false},
		{"Insert usn-event", valid, "usn-event--", false},
		{"Missing type", Element{"name": "foo"}, "", true},
		{"Type field", Element{"type": "ba", "ba": 1}, "", true},
		{"Invalid usn-event", Element{"type": UsnEventType, "usn": 1}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Insert(jsons(tt.element))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got[:len(tt.want)])
		})
	}
}

func TestEventStore_InsertStruct(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()

	myfile := NewFile()
	myfile.Name = "test.txt"

	myfile2 := struct {
		Type string
		Name int
	}{"file", 1}

	myfile3 := File{Type: "file"}

	tests := []struct {
		name    string
		element interface{}
		wantErr bool
	}{
		{"valid", myfile, false},
		{"usn-event", NewUsnEvent(testEvent(100, "a.txt", `\`)), false},
		{"wrong schema", myfile2, true},
		{"empty file element", myfile3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.InsertStruct(tt.element)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventStore_InsertBatch(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()

	ids, err := store.InsertBatch(nil)
	assert.NoError(t, err)
	assert.Nil(t, ids)

	_, err = store.InsertBatch([]JSONElement{
		jsons(Element{"type": "foo", "name": "a"}),
		jsons(Element{"name": "b"}),
	})
	require.Error(t, err)

	all, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, all, "failed batch must be rolled back")

	ids, err = store.InsertBatch([]JSONElement{
		jsons(Element{"type": "foo", "name": "a"}),
		jsons(Element{"type": "foo", "name": "b"}),
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestEventStore_Get(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()

	id, err := store.Insert(jsons(Element{"type": "foo", "name": "a"}))
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       string
		wantName interface{}
		wantErr  bool
	}{
		{"Get element", id, "a", false},
		{"Get non existing", "foo--16b02a2b-d1a1-4e79-aad6-2f2c1c286818", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Get(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			e := decode(t, got)
			assert.Equal(t, tt.wantName, e["name"])
			assert.Equal(t, tt.id, e["id"])
		})
	}
}

func fill(t *testing.T, store *EventStore) {
	events := []*usnanalytics.Event{
		testEvent(100, "Users", `\`),
		testEvent(200, "bob", `\Users\`),
		testEvent(300, "doc.lnk", `\Users\bob\`),
	}
	executed := []*usnanalytics.Execution{{Event: testEvent(400, "CMD.EXE-4A81B364.pf", `\Windows\Prefetch\`), Executable: "cmd.exe", Count: 1}}
	n, err := store.Ingest(events, events[2:], executed)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestEventStore_Select(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()
	fill(t, store)

	tests := []struct {
		name         string
		elementType  string
		conditions   []map[string]string
		wantElements int
		wantErr      bool
	}{
		{"Select", UsnEventType, nil, 3, false},
		{"Select files", "file", nil, 2, false},
		{"Select with filter", UsnEventType, []map[string]string{{"name": "bob"}}, 1, false},
		{"Select with pattern", UsnEventType, []map[string]string{{"path": `\Users\%`}}, 2, false},
		{"Select with or", UsnEventType, []map[string]string{{"name": "bob"}, {"name": "Users"}}, 2, false},
		{"Select with nested field", "file", []map[string]string{{"attributes.executable": "cmd.exe"}}, 1, false},
		{"Select not existing", "xxx", nil, 0, false},
		{"Invalid field", UsnEventType, []map[string]string{{"name') --": "x"}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Select(tt.elementType, tt.conditions)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantElements)
		})
	}
}

func TestEventStore_All(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()
	fill(t, store)

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestEventStore_Search(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()
	fill(t, store)

	got, err := store.Search("bob")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestEventStore_Close_views(t *testing.T) {
	url, store := newStore(t)
	fill(t, store)
	require.NoError(t, store.Close())

	store, err := Open(url)
	require.NoError(t, err)
	defer store.Close()

	assert.Contains(t, store.types.all(), UsnEventType)
	assert.Contains(t, store.types.all()[UsnEventType], "file_id")

	got, err := store.Query("SELECT json_object('name', name, 'records', records) AS json FROM 'usn-event' ORDER BY usn")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Element{"name": "Users", "records": float64(3)}, decode(t, got[0]))

	got, err = store.Query(`SELECT json_object('exe', "attributes.executable") AS json FROM file WHERE "attributes.executable" IS NOT NULL`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Element{"exe": "cmd.exe"}, decode(t, got[0]))
}

func TestEventStore_Validate(t *testing.T) {
	_, store := newStore(t)
	defer store.Close()
	fill(t, store)

	flaws, err := store.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{}, flaws)

	_, err = store.Insert(jsons(Element{"id": "bar--1", "type": "foo"}))
	require.NoError(t, err)

	flaws, err = store.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"id bar--1 does not match type foo"}, flaws)
}
