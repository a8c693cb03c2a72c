// Package dataset defines the tabular data source contract consumed by
// transforms, along with in-memory implementations for array rows and
// object rows.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// RawRow is a source's native per-record representation. Transforms pass raw
// rows through untouched, so the result holds the same row identity as the
// source.
type RawRow = any

// DimensionInfo describes one named column of a source.
type DimensionInfo struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Type  string `json:"type,omitempty"`
}

// Source is the data source contract used by transforms.
type Source interface {
	// DimensionInfoAll lists every dimension in index order.
	DimensionInfoAll() []DimensionInfo
	// DimensionInfo looks up a dimension by name, or by index when dim is an
	// integer.
	DimensionInfo(dim any) (DimensionInfo, bool)
	// HeaderCount is the number of header rows preceding the data rows.
	HeaderCount() int
	RawHeaderItem(i int) RawRow
	// Count is the number of data rows.
	Count() int
	RawDataItem(i int) RawRow
	// RetrieveItemValue reads the value of dimension dimIdx from row.
	RetrieveItemValue(row RawRow, dimIdx int) (any, error)
}

// ErrRowShape is returned when a row does not have the shape its source
// format requires.
var ErrRowShape = errors.New("row does not match source format")

// DimensionNames returns the names of dims in order.
func DimensionNames(dims []DimensionInfo) []string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	return names
}

// lookupDimension resolves dim against dims by name, or by index when dim is
// an integral number.
func lookupDimension(dims []DimensionInfo, byName map[string]int, dim any) (DimensionInfo, bool) {
	switch v := dim.(type) {
	case string:
		if i, ok := byName[v]; ok {
			return dims[i], true
		}
		if idx, err := strconv.Atoi(v); err == nil {
			return dimensionAt(dims, idx)
		}
		return DimensionInfo{}, false
	case int:
		return dimensionAt(dims, v)
	case int64:
		return dimensionAt(dims, int(v))
	case float64:
		if v != math.Trunc(v) {
			return DimensionInfo{}, false
		}
		return dimensionAt(dims, int(v))
	}
	return DimensionInfo{}, false
}

func dimensionAt(dims []DimensionInfo, idx int) (DimensionInfo, bool) {
	if idx < 0 || idx >= len(dims) {
		return DimensionInfo{}, false
	}
	return dims[idx], true
}

func buildDimensions(names []string) ([]DimensionInfo, map[string]int, error) {
	dims := make([]DimensionInfo, len(names))
	byName := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, nil, fmt.Errorf("dimension %d has an empty name", i)
		}
		if _, dup := byName[name]; dup {
			return nil, nil, fmt.Errorf("duplicate dimension name %q", name)
		}
		dims[i] = DimensionInfo{Name: name, Index: i}
		byName[name] = i
	}
	return dims, byName, nil
}
