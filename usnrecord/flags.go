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

import "strings"

// Reason is the USN_RECORD reason bitmask.
type Reason uint32

// Reason flags.
const (
	DataOverwrite       Reason = 0x00000001
	DataExtend          Reason = 0x00000002
	DataTruncation      Reason = 0x00000004
	NamedDataOverwrite  Reason = 0x00000010
	NamedDataExtend     Reason = 0x00000020
	NamedDataTruncation Reason = 0x00000040
	FileCreate          Reason = 0x00000100
	FileDelete          Reason = 0x00000200
	EAChange            Reason = 0x00000400
	SecurityChange      Reason = 0x00000800
	RenameOldName       Reason = 0x00001000
	RenameNewName       Reason = 0x00002000
	IndexableChange     Reason = 0x00004000
	BasicInfoChange     Reason = 0x00008000
	HardLinkChange      Reason = 0x00010000
	CompressionChange   Reason = 0x00020000
	EncryptionChange    Reason = 0x00040000
	ObjectIDChange      Reason = 0x00080000
	ReparsePointChange  Reason = 0x00100000
	StreamChange        Reason = 0x00200000
	TransactedChange    Reason = 0x00400000
	IntegrityChange     Reason = 0x00800000
	Rename              Reason = 0x01000000 // synthetic, set by correlation
	Move                Reason = 0x02000000 // synthetic, set by correlation
	Close               Reason = 0x80000000
)

var reasonNames = []struct {
	flag Reason
	name string
}{
	{FileCreate, "CREATE"},
	{DataExtend, "EXTEND"},
	{DataOverwrite, "OVERWRITE"},
	{DataTruncation, "TRUNC"},
	{FileDelete, "DELETE"},
	{RenameOldName, "OLDNAME"},
	{RenameNewName, "NEWNAME"},
	{BasicInfoChange, "INFO"},
	{SecurityChange, "SECURITY"},
	{ObjectIDChange, "OBJECTID"},
	{EAChange, "EA"},
	{CompressionChange, "COMPRESS"},
	{EncryptionChange, "ENCRYPT"},
	{HardLinkChange, "LINK"},
	{IndexableChange, "INDEX"},
	{ReparsePointChange, "REPARSE"},
	{StreamChange, "STREAM"},
	{NamedDataOverwrite, "NAMED_O"},
	{NamedDataExtend, "NAMED_E"},
	{NamedDataTruncation, "NAMED_T"},
	{TransactedChange, "TRANSACT"},
	{IntegrityChange, "INTEGRITY"},
	{Rename, "RENAME"},
	{Move, "MOVE"},
	{Close, "CLOSE"},
}

// Has reports whether all bits of flag are set.
func (r Reason) Has(flag Reason) bool { return r&flag == flag }

// Any reports whether at least one bit of flag is set.
func (r Reason) Any(flag Reason) bool { return r&flag != 0 }

// Names returns the names of all set flags.
func (r Reason) Names() []string {
	names := []string{}
	for _, n := range reasonNames {
		if r&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (r Reason) String() string {
	return strings.Join(r.Names(), "|")
}

// Attribute is the file attribute bitmask of a record.
type Attribute uint32

// Attribute flags.
const (
	ReadOnly           Attribute = 0x00000001
	Hidden             Attribute = 0x00000002
	System             Attribute = 0x00000004
	Directory          Attribute = 0x00000010
	Archive            Attribute = 0x00000020
	Device             Attribute = 0x00000040
	Normal             Attribute = 0x00000080
	Temporary          Attribute = 0x00000100
	SparseFile         Attribute = 0x00000200
	ReparsePoint       Attribute = 0x00000400
	Compressed         Attribute = 0x00000800
	Offline            Attribute = 0x00001000
	NotContentIndexed  Attribute = 0x00002000
	Encrypted          Attribute = 0x00004000
	IntegrityStream    Attribute = 0x00008000
	NoScrubData        Attribute = 0x00020000
	RecallOnOpen       Attribute = 0x00040000
	RecallOnDataAccess Attribute = 0x00400000
)

var attributeNames = []struct {
	flag Attribute
	name string
}{
	{ReadOnly, "RDONLY"},
	{Hidden, "HIDDEN"},
	{System, "SYSTEM"},
	{Directory, "FOLDER"},
	{Archive, "ARCHIVE"},
	{Device, "DEV"},
	{Normal, "NORMAL"},
	{Temporary, "TEMP"},
	{SparseFile, "SPARSE"},
	{ReparsePoint, "RP"},
	{Compressed, "COMP"},
	{Offline, "OFFLINE"},
	{NotContentIndexed, "NOINDEX"},
	{Encrypted, "CRYPT"},
	{IntegrityStream, "ISTREAM"},
	{NoScrubData, "NOSCRUB"},
	{RecallOnOpen, "RECALL_OPEN"},
	{RecallOnDataAccess, "RECALL_DATA"},
}

// Has reports whether all bits of flag are set.
func (a Attribute) Has(flag Attribute) bool { return a&flag == flag }

// Names returns the names of all set flags.
func (a Attribute) Names() []string {
	names := []string{}
	for _, n := range attributeNames {
		if a&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (a Attribute) String() string {
	return strings.Join(a.Names(), "|")
}
