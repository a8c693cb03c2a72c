package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemorySource_ArrayRows(t *testing.T) {
	src, err := NewArraySource([]string{"age", "city"}, 1,
		[]any{"Age", "City"},
		[]any{10, "x"},
		[]any{30},
	)
	require.NoError(t, err)

	assert.Equal(t, FormatArrayRows, src.Format())
	assert.Equal(t, 1, src.HeaderCount())
	assert.Equal(t, 2, src.Count())
	assert.Equal(t, []any{"Age", "City"}, src.RawHeaderItem(0))

	v, err := src.RetrieveItemValue(src.RawDataItem(0), 1)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = src.RetrieveItemValue(src.RawDataItem(1), 1)
	require.NoError(t, err)
	assert.Nil(t, v, "short rows read as missing values")
}

func TestNewMemorySource_DimensionsFromHeader(t *testing.T) {
	src, err := NewMemorySource(MemoryOptions{HeaderCount: 1}, []RawRow{
		[]any{"name", "score"},
		[]any{"a", 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []DimensionInfo{{Name: "name", Index: 0}, {Name: "score", Index: 1}}, src.DimensionInfoAll())
}

func TestNewMemorySource_ObjectRows(t *testing.T) {
	src, err := NewObjectSource([]string{"age", "city"}, 0,
		map[string]any{"age": 10, "city": "x"},
	)
	require.NoError(t, err)

	v, err := src.RetrieveItemValue(src.RawDataItem(0), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = src.RetrieveItemValue([]any{1, 2}, 0)
	assert.ErrorIs(t, err, ErrRowShape)
}

func TestNewMemorySource_Errors(t *testing.T) {
	_, err := NewMemorySource(MemoryOptions{Format: "columns"}, nil)
	assert.Error(t, err)

	_, err = NewMemorySource(MemoryOptions{HeaderCount: 2}, []RawRow{[]any{"a"}})
	assert.Error(t, err)

	_, err = NewArraySource([]string{"a", "a"}, 0)
	assert.Error(t, err)

	_, err = NewArraySource([]string{"a", ""}, 0)
	assert.Error(t, err)

	_, err = NewMemorySource(MemoryOptions{HeaderCount: 1}, []RawRow{map[string]any{"a": 1}})
	assert.ErrorIs(t, err, ErrRowShape)
}

func TestMemorySource_DimensionInfo(t *testing.T) {
	src, err := NewArraySource([]string{"age", "city"}, 0)
	require.NoError(t, err)

	tests := []struct {
		name string
		dim  any
		want int
		ok   bool
	}{
		{"by name", "city", 1, true},
		{"by int", 0, 0, true},
		{"by float", 1.0, 1, true},
		{"by numeric string", "1", 1, true},
		{"fractional", 0.5, 0, false},
		{"out of range", 2, 0, false},
		{"negative", -1, 0, false},
		{"unknown", "country", 0, false},
		{"unsupported", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := src.DimensionInfo(tt.dim)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, info.Index)
			}
		})
	}
}

func TestMemorySource_RetrieveOutOfRange(t *testing.T) {
	src, err := NewArraySource([]string{"a"}, 0, []any{1})
	require.NoError(t, err)

	_, err = src.RetrieveItemValue(src.RawDataItem(0), 3)
	assert.Error(t, err)

	_, err = src.RetrieveItemValue("not a row", 0)
	assert.ErrorIs(t, err, ErrRowShape)
}

func TestNewSourceLike(t *testing.T) {
	src, err := NewObjectSource([]string{"a"}, 1,
		map[string]any{"a": "A"},
		map[string]any{"a": 1},
		map[string]any{"a": 2},
	)
	require.NoError(t, err)

	kept := []RawRow{src.RawHeaderItem(0), src.RawDataItem(1)}
	next, err := NewSourceLike(src, kept)
	require.NoError(t, err)

	assert.Equal(t, 1, next.HeaderCount())
	assert.Equal(t, 1, next.Count())
	assert.Equal(t, src.DimensionInfoAll(), next.DimensionInfoAll())
	v, err := next.RetrieveItemValue(next.RawDataItem(0), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

type wrappedSource struct{ Source }

func TestNewSourceLike_InfersFormat(t *testing.T) {
	src, err := NewObjectSource([]string{"a"}, 0, map[string]any{"a": 1})
	require.NoError(t, err)

	next, err := NewSourceLike(wrappedSource{src}, []RawRow{map[string]any{"a": 7}})
	require.NoError(t, err)
	v, err := next.RetrieveItemValue(next.RawDataItem(0), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
