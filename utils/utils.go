// Package utils holds small helpers shared by the sift packages: building
// printable diagnostic messages and turning Go structs into object rows.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// MakePrintable joins the given values into a single human-readable message.
//
// Strings are written as-is, errors by their message, and every other value is
// rendered as compact JSON so that maps and slices (an offending condition leaf,
// a list of dimensions) show up in a form users can copy back into their config.
// Values that cannot be marshaled fall back to their %+v representation.
//
// Example:
//
//	MakePrintable("Illegal condition:", map[string]any{"relation": "eq"})
//	// Illegal condition: {"relation":"eq"}
func MakePrintable(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, printable(arg))
	}
	return strings.Join(parts, " ")
}

func printable(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "null"
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}

	b, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%+v", arg)
	}
	return string(b)
}

// StructToRow converts a struct (or pointer to struct) into an object row keyed
// by the struct's JSON field names.
//
// The record is marshaled to JSON and decoded back into a map, so `json` tags,
// `omitempty` and nested structs are honoured. Numbers come back as float64.
func StructToRow[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToRow: failed to marshal input record to JSON: %w", err)
	}

	var row map[string]any
	if err := json.Unmarshal(jsonBytes, &row); err != nil {
		return nil, fmt.Errorf("StructToRow: failed to unmarshal JSON to row: %w", err)
	}
	return row, nil
}

// StructsToRows applies StructToRow to every record, stopping at the first failure.
func StructsToRows[T any](records []T) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(records))
	for i, record := range records {
		row, err := StructToRow(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
