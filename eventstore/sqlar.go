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
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"

	"crawshaw.io/sqlite/sqlitex"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Files are kept in the sqlar table, so they can be listed and extracted
// with "sqlite3 -A".
const sqlarTable = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- compressed content
);`

func normalizeFilename(name string) string {
	name = filepath.ToSlash(name)
	return strings.Trim(path.Clean("/"+name), "/")
}

// StoreFile adds the content of r as name. The content is zlib compressed
// unless that does not make it smaller.
func (store *EventStore) StoreFile(name string, r io.Reader, mode os.FileMode, mtime int64) error {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	data := content
	if compressed.Len() < len(content) {
		data = compressed.Bytes()
	}

	stmt, err := store.cursor.Prepare("INSERT OR REPLACE INTO sqlar (name, mode, mtime, sz, data) VALUES ($name, $mode, $mtime, $sz, $data)")
	if err != nil {
		return err
	}
	stmt.SetText("$name", normalizeFilename(name))
	stmt.SetInt64("$mode", int64(mode))
	stmt.SetInt64("$mtime", mtime)
	stmt.SetInt64("$sz", int64(len(content)))
	stmt.SetBytes("$data", data)
	if _, err := stmt.Step(); err != nil {
		stmt.Reset() // nolint:errcheck
		return errors.Wrapf(err, "could not store %s", name)
	}
	return stmt.Reset()
}

// LoadFile returns the content of the stored file name.
func (store *EventStore) LoadFile(name string) ([]byte, error) {
	stmt, err := store.cursor.Prepare("SELECT sz, data FROM sqlar WHERE name = $name")
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize() // nolint:errcheck
	stmt.SetText("$name", normalizeFilename(name))

	if hasRow, err := stmt.Step(); err != nil {
		return nil, err
	} else if !hasRow {
		return nil, errors.Wrap(os.ErrNotExist, name)
	}

	size := stmt.GetInt64("sz")
	data := make([]byte, stmt.GetLen("data"))
	stmt.GetBytes("data", data)
	if int64(len(data)) == size {
		return data, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "could not decompress %s", name)
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

// Files returns the names of all stored files.
func (store *EventStore) Files() ([]string, error) {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlar ORDER BY name")
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		names = append(names, stmt.GetText("name"))
	}
	return names, stmt.Finalize()
}

// StoreDir adds all regular files below dir on fs. Stored names are
// relative to dir.
func (store *EventStore) StoreDir(fs afero.Fs, dir string) (count int, err error) {
	defer sqlitex.Save(store.cursor)(&err)

	err = afero.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		f, err := fs.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := store.StoreFile(rel, f, info.Mode().Perm(), info.ModTime().Unix()); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"dir": dir, "files": count}).Info("stored files")
	return count, nil
}
