package dataset

import (
	"fmt"
)

// Format is the layout of raw rows in a MemorySource.
type Format string

const (
	// FormatArrayRows rows are []any indexed by dimension index.
	FormatArrayRows Format = "arrayRows"
	// FormatObjectRows rows are map[string]any keyed by dimension name.
	FormatObjectRows Format = "objectRows"
)

// MemoryOptions configures a MemorySource.
type MemoryOptions struct {
	Format Format
	// Dimensions names the columns. For array rows it may be left empty when
	// HeaderCount > 0; names are then taken from the first header row.
	Dimensions []string
	// HeaderCount is the number of leading rows in data that are header rows.
	HeaderCount int
}

// MemorySource is a Source over a slice of raw rows held in memory.
type MemorySource struct {
	format Format
	dims   []DimensionInfo
	byName map[string]int
	header []RawRow
	data   []RawRow
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source over rows. The first opts.HeaderCount
// rows are header rows; the rest are data rows. Rows are not copied.
func NewMemorySource(opts MemoryOptions, rows []RawRow) (*MemorySource, error) {
	if opts.Format == "" {
		opts.Format = FormatArrayRows
	}
	if opts.Format != FormatArrayRows && opts.Format != FormatObjectRows {
		return nil, fmt.Errorf("unsupported source format %q", opts.Format)
	}
	if opts.HeaderCount < 0 || opts.HeaderCount > len(rows) {
		return nil, fmt.Errorf("header count %d out of range for %d rows", opts.HeaderCount, len(rows))
	}

	names := opts.Dimensions
	if len(names) == 0 && opts.Format == FormatArrayRows && opts.HeaderCount > 0 {
		var err error
		if names, err = namesFromHeader(rows[0]); err != nil {
			return nil, err
		}
	}
	dims, byName, err := buildDimensions(names)
	if err != nil {
		return nil, err
	}

	return &MemorySource{
		format: opts.Format,
		dims:   dims,
		byName: byName,
		header: rows[:opts.HeaderCount:opts.HeaderCount],
		data:   rows[opts.HeaderCount:],
	}, nil
}

// NewArraySource is shorthand for an array-row source with explicit dimensions.
func NewArraySource(dimensions []string, headerCount int, rows ...[]any) (*MemorySource, error) {
	raw := make([]RawRow, len(rows))
	for i, r := range rows {
		raw[i] = r
	}
	return NewMemorySource(MemoryOptions{Format: FormatArrayRows, Dimensions: dimensions, HeaderCount: headerCount}, raw)
}

// NewObjectSource is shorthand for an object-row source.
func NewObjectSource(dimensions []string, headerCount int, rows ...map[string]any) (*MemorySource, error) {
	raw := make([]RawRow, len(rows))
	for i, r := range rows {
		raw[i] = r
	}
	return NewMemorySource(MemoryOptions{Format: FormatObjectRows, Dimensions: dimensions, HeaderCount: headerCount}, raw)
}

// NewSourceLike builds a source with the same format, dimensions and header
// count as src over rows, where rows starts with src's header rows. It is
// used to chain transforms: each result becomes the next source.
func NewSourceLike(src Source, rows []RawRow) (Source, error) {
	if ls, ok := src.(interface {
		Like(rows []RawRow) (Source, error)
	}); ok {
		return ls.Like(rows)
	}
	var format Format
	if fs, ok := src.(interface{ Format() Format }); ok {
		format = fs.Format()
	} else {
		format = inferFormat(rows)
	}
	return NewMemorySource(MemoryOptions{
		Format:      format,
		Dimensions:  DimensionNames(src.DimensionInfoAll()),
		HeaderCount: src.HeaderCount(),
	}, rows)
}

// inferFormat picks object rows when the first row is a map.
func inferFormat(rows []RawRow) Format {
	if len(rows) > 0 {
		if _, ok := rows[0].(map[string]any); ok {
			return FormatObjectRows
		}
	}
	return FormatArrayRows
}

// Format returns the row layout.
func (s *MemorySource) Format() Format {
	return s.format
}

func (s *MemorySource) DimensionInfoAll() []DimensionInfo {
	out := make([]DimensionInfo, len(s.dims))
	copy(out, s.dims)
	return out
}

func (s *MemorySource) DimensionInfo(dim any) (DimensionInfo, bool) {
	return lookupDimension(s.dims, s.byName, dim)
}

func (s *MemorySource) HeaderCount() int {
	return len(s.header)
}

func (s *MemorySource) RawHeaderItem(i int) RawRow {
	return s.header[i]
}

func (s *MemorySource) Count() int {
	return len(s.data)
}

func (s *MemorySource) RawDataItem(i int) RawRow {
	return s.data[i]
}

func (s *MemorySource) RetrieveItemValue(row RawRow, dimIdx int) (any, error) {
	if dimIdx < 0 || dimIdx >= len(s.dims) {
		return nil, fmt.Errorf("dimension index %d out of range [0, %d)", dimIdx, len(s.dims))
	}
	switch s.format {
	case FormatObjectRows:
		obj, ok := row.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected map[string]any, got %T", ErrRowShape, row)
		}
		return obj[s.dims[dimIdx].Name], nil
	default:
		arr, ok := row.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected []any, got %T", ErrRowShape, row)
		}
		if dimIdx >= len(arr) {
			return nil, nil
		}
		return arr[dimIdx], nil
	}
}

func namesFromHeader(row RawRow) ([]string, error) {
	arr, ok := row.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: header row must be []any, got %T", ErrRowShape, row)
	}
	names := make([]string, len(arr))
	for i, v := range arr {
		names[i] = fmt.Sprint(v)
	}
	return names, nil
}
