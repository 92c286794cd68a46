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
	"sort"
	"sync"
)

// typeMap records the fields seen per element type. A change marks the
// element views as outdated.
type typeMap struct {
	sync.RWMutex
	changed bool
	types   map[string]map[string]bool
}

func newTypeMap() *typeMap {
	return &typeMap{types: map[string]map[string]bool{}}
}

func (rm *typeMap) all() map[string]map[string]bool {
	rm.RLock()
	defer rm.RUnlock()
	return rm.types
}

// columns returns the sorted fields of elementType.
func (rm *typeMap) columns(elementType string) []string {
	rm.RLock()
	defer rm.RUnlock()
	var columns []string
	for field := range rm.types[elementType] {
		columns = append(columns, field)
	}
	sort.Strings(columns)
	return columns
}

func (rm *typeMap) add(elementType, field string) {
	rm.Lock()
	defer rm.Unlock()
	rm.insert(elementType, field)
}

func (rm *typeMap) addAll(elementType string, fields map[string]interface{}) {
	rm.Lock()
	defer rm.Unlock()
	for field := range fields {
		rm.insert(elementType, field)
	}
}

func (rm *typeMap) insert(elementType, field string) {
	if _, ok := rm.types[elementType]; !ok {
		rm.types[elementType] = map[string]bool{}
	}
	if !rm.types[elementType][field] {
		rm.types[elementType][field] = true
		rm.changed = true
	}
}

func (rm *typeMap) reset() {
	rm.Lock()
	rm.changed = false
	rm.Unlock()
}
