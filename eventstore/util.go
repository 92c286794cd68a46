/*
 * Copyright (c) 2020 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

package eventstore

import (
	"reflect"
	"strings"

	"github.com/stoewer/go-strcase"
)

// lower converts the keys of a struct map to snake case, recursively, and
// drops empty strings, lists, maps and nil pointers. Keys of nested maps that
// are already lower case, like STIX extension names, stay unchanged.
func lower(f interface{}) interface{} {
	switch f := f.(type) {
	case []interface{}:
		for i, item := range f {
			f[i] = lower(item)
		}
		return f
	case map[string]interface{}:
		m := make(map[string]interface{}, len(f))
		for key, value := range f {
			if isEmptyValue(reflect.ValueOf(value)) {
				continue
			}
			if strings.ToLower(key) != key {
				key = strcase.SnakeCase(key)
			}
			m[key] = lower(value)
		}
		return m
	default:
		return f
	}
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}
