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
	"context"
	_ "embed" // usn-event schema
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/stixgo"
)

const (
	usnEventSchemaID = "https://forensicanalysis.github.io/usnanalytics/schemas/usn-event.json"
	stixSchemaURL    = "http://raw.githubusercontent.com/oasis-open/cti-stix2-json-schemas/stix2.1/schemas/observables/%s.json"
)

//go:embed schemas/usn-event.json
var usnEventSchema []byte

var (
	schemaOnce sync.Once
	schemaErr  error
)

func setupSchemaValidation() error {
	schemaOnce.Do(func() {
		registry := jsonschema.GetSchemaRegistry()
		for name, content := range stixgo.FS {
			// convert to draft/2019-09
			content = bytes.Replace(content, []byte(`"definitions"`), []byte(`"$defs"`), -1)
			content = bytes.Replace(content, []byte(`"#/definitions/`), []byte(`"#/$defs/`), -1)
			content = bytes.Replace(content,
				[]byte(`"$schema": "http://json-schema.org/draft-07/schema#",`),
				[]byte(`"$schema": "https://json-schema.org/draft/2019-09/schema#",`),
				-1,
			)
			if err := register(registry, content); err != nil {
				schemaErr = errors.Wrapf(err, "could not load schema %s", name)
				return
			}
		}
		if err := register(registry, usnEventSchema); err != nil {
			schemaErr = errors.Wrap(err, "could not load usn-event schema")
		}
	})
	return schemaErr
}

func register(registry *jsonschema.SchemaRegistry, content []byte) error {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(content, schema); err != nil {
		return err
	}
	id := string(*schema.JSONProp("$id").(*jsonschema.ID))
	schema.Resolve(nil, id)
	registry.Register(schema)
	return nil
}

func schemaFor(elementType string) *jsonschema.Schema {
	id := fmt.Sprintf(stixSchemaURL, elementType)
	if elementType == UsnEventType {
		id = usnEventSchemaID
	}
	return jsonschema.GetSchemaRegistry().GetKnown(id)
}

// validateSchema returns the schema violations of element. Elements of types
// without a known schema are only checked for a type.
func validateSchema(element JSONElement) (flaws []string, err error) {
	if err := setupSchemaValidation(); err != nil {
		return nil, err
	}

	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return []string{"element needs to have a type"}, nil
	}

	schema := schemaFor(elementType.String())
	if schema == nil {
		return nil, nil
	}

	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr))
	}
	return flaws, nil
}
