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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	storeVersion  = 1
	applicationID = 1970499169 // "usna"
	discriminator = "type"
	memory        = ":memory:"
)

// ErrStoreExists is returned by New for existing files.
var ErrStoreExists = errors.New("store already exists")

// ErrStoreNotExists is returned by Open for missing files.
var ErrStoreNotExists = errors.New("store does not exist")

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// The EventStore keeps change journal events and related file elements as
// JSON documents in a sqlite database. It is not safe for concurrent use.
type EventStore struct {
	cursor *sqlite.Conn
	types  *typeMap
}

// New creates a new event store at url.
func New(url string) (*EventStore, error) {
	return open(url, true)
}

// Open opens an existing event store.
func Open(url string) (*EventStore, error) {
	return open(url, false)
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err = stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	return exec(conn, "PRAGMA "+name+" = "+fmt.Sprint(i))
}

func exists(url string) (bool, error) {
	_, err := os.Stat(url)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func open(url string, create bool) (*EventStore, error) { // nolint:gocyclo
	if url != memory {
		found, err := exists(url)
		if err != nil {
			return nil, err
		}
		if create && found {
			return nil, errors.Wrap(ErrStoreExists, url)
		}
		if !create && !found {
			return nil, errors.Wrap(ErrStoreNotExists, url)
		}
		if create {
			if err := os.MkdirAll(filepath.Dir(url), 0750); err != nil {
				return nil, err
			}
			log.WithField("store", url).Info("creating store")
		}
	}

	conn, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, errors.Wrap(err, "could not open store")
	}

	store := &EventStore{cursor: conn, types: newTypeMap()}
	if create {
		err = store.init()
	} else {
		err = store.check()
	}
	if err == nil {
		err = store.setupTypes()
	}
	if err == nil {
		err = setupSchemaValidation()
	}
	if err != nil {
		conn.Close() // nolint:errcheck
		return nil, err
	}
	return store, nil
}

func (store *EventStore) init() error {
	if err := setPragma(store.cursor, "application_id", applicationID); err != nil {
		return err
	}
	if err := setPragma(store.cursor, "user_version", storeVersion); err != nil {
		return err
	}
	err := exec(store.cursor, "CREATE VIRTUAL TABLE `elements` "+
		"USING fts5(id UNINDEXED, json, insert_time UNINDEXED, tokenize=\"unicode61 tokenchars '/.'\")")
	if err != nil {
		return err
	}
	return exec(store.cursor, sqlarTable)
}

func (store *EventStore) check() error {
	id, err := pragma(store.cursor, "application_id")
	if err != nil {
		return err
	}
	if id != applicationID {
		return errors.Errorf("wrong file format (application_id is %d, requires %d)", id, applicationID)
	}

	version, err := pragma(store.cursor, "user_version")
	if err != nil {
		return err
	}
	if version != storeVersion {
		return errors.Errorf("wrong file format (user_version is %d, requires %d)", version, storeVersion)
	}
	return exec(store.cursor, sqlarTable)
}

/* ################################
#   API
################################ */

// Insert validates and adds a single element. Elements without an id get
// one of the form <type>--<uuid>.
func (store *EventStore) Insert(element JSONElement) (string, error) {
	flaws, err := validateSchema(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", errors.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	nested := map[string]interface{}{}
	if err := json.Unmarshal(element, &nested); err != nil {
		return "", err
	}
	fields := flatten(nested)

	elementType, ok := nested[discriminator].(string)
	if !ok {
		return "", errors.New("element requires type")
	}
	if _, ok := fields[elementType]; ok {
		return "", errors.Errorf("element must not contain a field '%s'", elementType)
	}

	id, ok := nested["id"].(string)
	if !ok {
		id = elementType + "--" + uuid.New().String()
		nested["id"] = id
		fields["id"] = id
		if element, err = json.Marshal(nested); err != nil {
			return "", err
		}
	}

	store.types.addAll(elementType, fields)

	query := "INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)"
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return "", errors.Wrapf(err, "could not prepare statement %s", query)
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err = stmt.Step(); err != nil {
		return "", errors.Wrapf(err, "could not exec statement %s", query)
	}
	return id, stmt.Reset()
}

// InsertBatch adds a set of elements in a single transaction. Either all or
// none of the elements are stored.
func (store *EventStore) InsertBatch(elements []JSONElement) (ids []string, err error) {
	if len(elements) == 0 {
		return nil, nil
	}
	defer sqlitex.Save(store.cursor)(&err)

	for _, element := range elements {
		id, err := store.Insert(element)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	log.WithField("elements", len(ids)).Debug("inserted batch")
	return ids, nil
}

// InsertStruct converts a Go struct to a map and inserts it.
func (store *EventStore) InsertStruct(element interface{}) (string, error) {
	ids, err := store.InsertStructBatch([]interface{}{element})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertStructBatch adds a list of structs. Field names are converted to
// snake case and empty fields are omitted.
func (store *EventStore) InsertStructBatch(elements []interface{}) ([]string, error) {
	var ms []JSONElement
	for _, element := range elements {
		m := lower(structs.Map(element)).(map[string]interface{})
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		ms = append(ms, b)
	}
	return store.InsertBatch(ms)
}

// Get retrieves a single element.
func (store *EventStore) Get(id string) (JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		return elements[0], nil
	}
	return nil, errors.Errorf("element %s does not exist", id)
}

// Query executes a sql query. The result rows need a json column.
func (store *EventStore) Query(query string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	return store.rowsToElements(stmt)
}

// Select retrieves all elements of elementType. Every condition maps field
// names to LIKE patterns that must all match; an element is returned if any
// condition matches.
func (store *EventStore) Select(elementType string, conditions []map[string]string) ([]JSONElement, error) {
	ands := []string{fmt.Sprintf("json_extract(json, '$.%s') = ?", discriminator)}
	args := []string{elementType}
	if elementType == "" {
		ands, args = nil, nil
	}

	var ors []string
	for _, condition := range conditions {
		keys := make([]string, 0, len(condition))
		for key := range condition {
			if !fieldName.MatchString(key) {
				return nil, errors.Errorf("invalid field name %q", key)
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var cond []string
		for _, key := range keys {
			cond = append(cond, fmt.Sprintf("json_extract(json, '$.%s') LIKE ?", key))
			args = append(args, condition[key])
		}
		if len(cond) > 0 {
			ors = append(ors, "("+strings.Join(cond, " AND ")+")")
		}
	}
	if len(ors) > 0 {
		ands = append(ands, "("+strings.Join(ors, " OR ")+")")
	}

	query := "SELECT json FROM `elements`"
	if len(ands) > 0 {
		query += " WHERE " + strings.Join(ands, " AND ") // #nosec
	}
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return nil, err
	}
	for i, arg := range args {
		stmt.BindText(i+1, arg)
	}
	return store.rowsToElements(stmt)
}

// Search runs a full text query on all elements.
func (store *EventStore) Search(q string) ([]JSONElement, error) {
	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE elements = $query ORDER BY rank")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$query", q)
	return store.rowsToElements(stmt)
}

// All returns every element.
func (store *EventStore) All() ([]JSONElement, error) {
	return store.Select("", nil)
}

// Close creates the element views and closes the database.
func (store *EventStore) Close() error {
	var err error
	if store.types.changed {
		err = store.createViews()
	}
	if cerr := store.cursor.Close(); err == nil {
		err = cerr
	}
	return err
}

func (store *EventStore) createViews() error {
	for typeName := range store.types.all() {
		if err := exec(store.cursor, fmt.Sprintf("DROP VIEW IF EXISTS '%s'", typeName)); err != nil {
			return err
		}
		var columns []string
		for _, field := range store.types.columns(typeName) {
			columns = append(columns, fmt.Sprintf("json_extract(json, '$.%s') as '%s'", field, field))
		}
		err := exec(store.cursor, fmt.Sprintf(
			"CREATE VIEW '%s' AS SELECT %s FROM elements WHERE json_extract(json, '$.%s') = '%s'",
			typeName, strings.Join(columns, ", "), discriminator, typeName,
		))
		if err != nil {
			return errors.Wrapf(err, "could not create view %s", typeName)
		}
	}
	return nil
}

/* ################################
#   Validate
################################ */

// Validate checks all elements for missing types, mismatching ids and schema
// violations.
func (store *EventStore) Validate() (flaws []string, err error) {
	flaws = []string{}
	elements, err := store.All()
	if err != nil {
		return nil, err
	}
	for _, element := range elements {
		elementFlaws, err := validateElement(element)
		if err != nil {
			return nil, err
		}
		flaws = append(flaws, elementFlaws...)
	}
	return flaws, nil
}

func validateElement(element JSONElement) ([]string, error) {
	flaws, err := validateSchema(element)
	if err != nil {
		return nil, err
	}

	elementType := gjson.GetBytes(element, discriminator).String()
	id := gjson.GetBytes(element, "id").String()
	if elementType != "" && !strings.HasPrefix(id, elementType+"--") {
		flaws = append(flaws, fmt.Sprintf("id %s does not match type %s", id, elementType))
	}
	return flaws, nil
}

/* ################################
#   Intern
################################ */

func (store *EventStore) rowsToElements(stmt *sqlite.Stmt) (elements []JSONElement, err error) {
	elements = []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Finalize() // nolint:errcheck
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Finalize()
}

func isElementView(name string) bool {
	if strings.HasPrefix(name, "sqlite") || strings.HasPrefix(name, "_") {
		return false
	}
	if name == "elements" || name == "sqlar" {
		return false
	}
	for _, suffix := range []string{"_data", "_idx", "_content", "_docsize", "_config"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}

// setupTypes reads the columns of existing views, so reopened stores keep
// all fields when their views are recreated.
func (store *EventStore) setupTypes() error {
	stmt, err := store.cursor.Prepare("SELECT name FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return err
	}
	var views []string
	for {
		if hasRow, err := stmt.Step(); err != nil {
			stmt.Finalize() // nolint:errcheck
			return err
		} else if !hasRow {
			break
		}
		if name := stmt.GetText("name"); isElementView(name) {
			views = append(views, name)
		}
	}
	if err := stmt.Finalize(); err != nil {
		return err
	}

	for _, name := range views {
		info, err := store.cursor.Prepare(fmt.Sprintf("PRAGMA table_info ('%s')", name))
		if err != nil {
			return err
		}
		for {
			if hasRow, err := info.Step(); err != nil {
				info.Finalize() // nolint:errcheck
				return err
			} else if !hasRow {
				break
			}
			store.types.add(name, info.GetText("name"))
		}
		if err := info.Finalize(); err != nil {
			return err
		}
	}
	store.types.reset()
	return nil
}

func exec(conn *sqlite.Conn, query string) error {
	stmt, err := conn.Prepare(query)
	if err != nil {
		return err
	}
	if _, err = stmt.Step(); err != nil {
		stmt.Finalize() // nolint:errcheck
		return err
	}
	return stmt.Finalize()
}
