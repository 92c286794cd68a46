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

package usnrecord

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

// Unconvertible replaces names that are not valid UTF-16.
const Unconvertible = "<Can't Convert>"

// Separator is appended to directory names.
const Separator = `\`

var nameReplacer = strings.NewReplacer(
	"/", "", ":", "", "*", "", "?", "", `"`, "", "<", "", ">", "",
	"|", "", `\`, "", "\t", "", "\r", "", "\n", "",
)

// DecodeName converts a little endian UTF-16 file name to UTF-8, removes
// characters that are invalid in Windows file names and marks directories
// with a trailing separator. Malformed surrogates yield Unconvertible.
func DecodeName(b []byte, attrs Attribute) string {
	name, ok := decodeUTF16(b)
	if !ok {
		return Unconvertible
	}
	name = nameReplacer.Replace(name)
	if attrs&Directory != 0 {
		name += Separator
	}
	return name
}

func decodeUTF16(b []byte) (string, bool) {
	var sb strings.Builder
	var high rune
	for i := 0; i+1 < len(b); i += 2 {
		c := rune(binary.LittleEndian.Uint16(b[i:]))
		switch {
		case high != 0:
			if c < 0xdc00 || c >= 0xe000 {
				return "", false
			}
			sb.WriteRune(utf16.DecodeRune(high, c))
			high = 0
		case c == 0:
			// NUL units carry no character
		case c >= 0xd800 && c < 0xdc00:
			high = c
		case c >= 0xdc00 && c < 0xe000:
			return "", false
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String(), true
}

// EncodeName converts name to little endian UTF-16.
func EncodeName(name string) []byte {
	units := utf16.Encode([]rune(name))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}
