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

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/usnanalytics/eventstore"
)

func withStore(fn func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := eventstore.Open(args[len(args)-1])
		if err != nil {
			return err
		}
		err = fn(cmd, args, store)
		if cerr := store.Close(); err == nil {
			err = cerr
		}
		return err
	}
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <store>",
		Short: "Retrieve a single element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			element, err := store.Get(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", element)
			return err
		}),
	}
}

func selectCommand() *cobra.Command {
	var filters []string
	var fields string
	selectCommand := &cobra.Command{
		Use:   "select <type> <store>",
		Short: "Retrieve a list of all elements of a specific type",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			conditions, err := parseFilters(filters)
			if err != nil {
				return err
			}
			elements, err := store.Select(args[0], conditions)
			if err != nil {
				return err
			}
			if fields != "" {
				elements = project(elements, strings.Split(fields, ","))
			}
			return printElements(cmd, elements)
		}),
	}
	selectCommand.Flags().StringArrayVar(&filters, "filter", nil, "field=pattern, all filters must match")
	selectCommand.Flags().StringVar(&fields, "fields", "", "comma separated list of fields to print")
	return selectCommand
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all <store>",
		Short: "Retrieve all elements",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			elements, err := store.All()
			if err != nil {
				return err
			}
			return printElements(cmd, elements)
		}),
	}
}

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query> <store>",
		Short: "Full text search over all elements",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			elements, err := store.Search(args[0])
			if err != nil {
				return err
			}
			return printElements(cmd, elements)
		}),
	}
}

func insertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <json> <store>",
		Short: "Insert an element",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			if !gjson.Valid(args[0]) {
				return errors.New("element is not valid json")
			}
			id, err := store.Insert(eventstore.JSONElement(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		}),
	}
}

func fileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "file [name] <store>",
		Short: "List stored output files or print one of them",
		Args:  cobra.RangeArgs(1, 2), //nolint:gomnd
		RunE: withStore(func(cmd *cobra.Command, args []string, store *eventstore.EventStore) error {
			if len(args) == 1 {
				files, err := store.Files()
				if err != nil {
					return err
				}
				return printJSON(cmd, files)
			}
			content, err := store.LoadFile(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		}),
	}
}

func parseFilters(filters []string) ([]map[string]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	condition := map[string]string{}
	for _, filter := range filters {
		parts := strings.SplitN(filter, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, errors.Errorf("filter %q must have the form field=pattern", filter)
		}
		condition[parts[0]] = parts[1]
	}
	return []map[string]string{condition}, nil
}

// project reduces elements to the given fields.
func project(elements []eventstore.JSONElement, fields []string) []eventstore.JSONElement {
	projected := make([]eventstore.JSONElement, 0, len(elements))
	for _, element := range elements {
		parts := make([]string, 0, len(fields))
		for i, value := range gjson.GetManyBytes(element, fields...) {
			if !value.Exists() {
				continue
			}
			key, _ := json.Marshal(fields[i])
			parts = append(parts, string(key)+":"+value.Raw)
		}
		projected = append(projected, eventstore.JSONElement("{"+strings.Join(parts, ",")+"}"))
	}
	return projected
}

func printElements(cmd *cobra.Command, elements []eventstore.JSONElement) error {
	raw := make([]json.RawMessage, len(elements))
	for i, element := range elements {
		raw[i] = json.RawMessage(element)
	}
	return printJSON(cmd, raw)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
	return err
}
