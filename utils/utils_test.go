package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email,omitempty"`
}

type label string

func (l label) String() string { return "label:" + string(l) }

func TestMakePrintable(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{"strings", []any{"Can not find", "dimension"}, "Can not find dimension"},
		{"map", []any{"Illegal condition:", map[string]any{"relation": "eq"}}, `Illegal condition: {"relation":"eq"}`},
		{"slice", []any{[]string{"age", "city"}}, `["age","city"]`},
		{"nil", []any{nil}, "null"},
		{"error", []any{errors.New("boom")}, "boom"},
		{"stringer", []any{label("x")}, "label:x"},
		{"number", []any{3.5}, "3.5"},
		{"unmarshalable", []any{func() {}}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MakePrintable(tt.args...)
			if tt.name == "unmarshalable" {
				assert.NotEmpty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructToRow(t *testing.T) {
	row, err := StructToRow(person{Name: "Ann", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann", "age": float64(30)}, row)

	row, err = StructToRow(&person{Name: "Bob", Email: "b@x"})
	require.NoError(t, err)
	assert.Equal(t, "b@x", row["email"])

	_, err = StructToRow((*person)(nil))
	assert.Error(t, err)
	_, err = StructToRow(42)
	assert.Error(t, err)
	_, err = StructToRow[any](nil)
	assert.Error(t, err)
}

func TestStructsToRows(t *testing.T) {
	rows, err := StructsToRows([]person{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1]["name"])

	_, err = StructsToRows([]any{person{}, 1})
	assert.ErrorContains(t, err, "record 1")
}
