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
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_typeMap(t *testing.T) {
	tests := []struct {
		name        string
		fields      map[string]interface{}
		wantColumns []string
		wantChanged bool
	}{
		{"add new", map[string]interface{}{"name": "a", "id": "b"}, []string{"id", "name", "type"}, true},
		{"add known", map[string]interface{}{"name": "c"}, []string{"name", "type"}, false},
		{"add nested", map[string]interface{}{"hashes.MD5": "d"}, []string{"hashes.MD5", "name", "type"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTypeMap()
			rm.add("file", "type")
			rm.add("file", "name")
			rm.reset()

			rm.addAll("file", tt.fields)
			assert.Equal(t, tt.wantChanged, rm.changed)
			assert.Equal(t, tt.wantColumns, rm.columns("file"))
		})
	}
}

func Test_typeMap_all(t *testing.T) {
	rm := newTypeMap()
	rm.add("file", "name")
	rm.add(UsnEventType, "usn")
	assert.Equal(t, map[string]map[string]bool{"file": {"name": true}, UsnEventType: {"usn": true}}, rm.all())
	assert.Nil(t, rm.columns("directory"))
}
