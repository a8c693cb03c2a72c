package condition

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type row = map[string]any

var dimensionAttrs = map[string]bool{DimensionAttr: true}

// mapStrategy resolves leaves to map keys and counts strategy calls.
type mapStrategy struct {
	prepared int
	gets     int
	getErr   error
}

func (s *mapStrategy) PrepareGetValue(leaf Leaf) (string, error) {
	s.prepared++
	name, ok := leaf.Get(DimensionAttr).(string)
	if !ok {
		return "", errors.New("dimension must be a string")
	}
	return name, nil
}

func (s *mapStrategy) GetValue(r row, key string) (any, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return r[key], nil
}

func mustCompile(t *testing.T, doc any) (*Condition[string, row], *mapStrategy) {
	t.Helper()
	s := &mapStrategy{}
	c, err := Compile[string, row](doc, dimensionAttrs, s, nil)
	require.NoError(t, err)
	return c, s
}

func eval(t *testing.T, c *Condition[string, row], r row) bool {
	t.Helper()
	ok, err := c.Evaluate(r)
	require.NoError(t, err)
	return ok
}

var sampleRows = []row{
	{"age": 10, "city": "x"},
	{"age": 30, "city": "y"},
	{"age": 45, "city": "x"},
	{"age": nil, "city": nil},
}

func TestCompile_IdentityElements(t *testing.T) {
	and, _ := mustCompile(t, map[string]any{"and": []any{}})
	or, _ := mustCompile(t, map[string]any{"or": []any{}})

	for _, r := range sampleRows {
		assert.True(t, eval(t, and, r))
		assert.False(t, eval(t, or, r))
	}
}

func TestCompile_DoubleNegation(t *testing.T) {
	x := map[string]any{"dimension": "age", "relation": "gte", "value": 30}
	plain, _ := mustCompile(t, x)
	double, _ := mustCompile(t, map[string]any{"not": map[string]any{"not": x}})
	single, _ := mustCompile(t, map[string]any{"not": x})

	for _, r := range sampleRows {
		assert.Equal(t, eval(t, plain, r), eval(t, double, r))
		assert.Equal(t, !eval(t, plain, r), eval(t, single, r))
	}
}

func TestCompile_AndOr(t *testing.T) {
	doc := map[string]any{"and": []any{
		map[string]any{"dimension": "age", "relation": "gte", "value": 30},
		map[string]any{"dimension": "city", "relation": "eq", "value": "x"},
	}}
	c, s := mustCompile(t, doc)
	assert.Equal(t, 2, c.Leaves())
	assert.Equal(t, 2, s.prepared)

	var kept []row
	for _, r := range sampleRows {
		if eval(t, c, r) {
			kept = append(kept, r)
		}
	}
	assert.Equal(t, []row{{"age": 45, "city": "x"}}, kept)

	or, _ := mustCompile(t, map[string]any{"or": []any{
		map[string]any{"dimension": "city", "relation": "eq", "value": "x"},
	}})
	assert.True(t, eval(t, or, sampleRows[0]))
	assert.False(t, eval(t, or, sampleRows[1]))
	assert.True(t, eval(t, or, sampleRows[2]))
}

func TestCompile_ShortCircuit(t *testing.T) {
	t.Run("and stops at first false", func(t *testing.T) {
		c, s := mustCompile(t, map[string]any{"and": []any{
			map[string]any{"dimension": "age", "relation": "gt", "value": 100},
			map[string]any{"dimension": "city", "relation": "eq", "value": "x"},
		}})
		assert.False(t, eval(t, c, sampleRows[0]))
		assert.Equal(t, 1, s.gets)
	})

	t.Run("or stops at first true", func(t *testing.T) {
		c, s := mustCompile(t, map[string]any{"or": []any{
			map[string]any{"dimension": "city", "relation": "eq", "value": "x"},
			map[string]any{"dimension": "age", "relation": "gt", "value": 100},
		}})
		assert.True(t, eval(t, c, sampleRows[0]))
		assert.Equal(t, 1, s.gets)
	})
}

func TestCompile_PrepareCalledOncePerLeaf(t *testing.T) {
	c, s := mustCompile(t, map[string]any{"or": []any{
		map[string]any{"dimension": "age", "relation": "lt", "value": 20},
		map[string]any{"not": map[string]any{"dimension": "city", "relation": "eq", "value": "y"}},
	}})
	for i := 0; i < 5; i++ {
		for _, r := range sampleRows {
			_, err := c.Evaluate(r)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 2, s.prepared)
}

func TestCompile_Constants(t *testing.T) {
	c, s := mustCompile(t, true)
	assert.True(t, eval(t, c, row{}))
	assert.Equal(t, 0, s.prepared)

	c, _ = mustCompile(t, map[string]any{"and": []any{true, false}})
	assert.False(t, eval(t, c, row{}))
}

func TestCompile_ShorthandLeaf(t *testing.T) {
	c, _ := mustCompile(t, map[string]any{"dimension": "age", ">": 10, "lt": 40})
	assert.False(t, eval(t, c, row{"age": 10}))
	assert.True(t, eval(t, c, row{"age": 30}))
	assert.False(t, eval(t, c, row{"age": 45}))
}

func TestCompile_Parsers(t *testing.T) {
	t.Run("trim", func(t *testing.T) {
		c, _ := mustCompile(t, map[string]any{"dimension": "s", "relation": "eq", "value": "a", "parser": "trim"})
		assert.True(t, eval(t, c, row{"s": "  a "}))
		assert.False(t, eval(t, c, row{"s": "b"}))
	})

	t.Run("number", func(t *testing.T) {
		c, _ := mustCompile(t, map[string]any{"dimension": "n", "relation": "eq", "value": "7", "parser": "number"})
		assert.True(t, eval(t, c, row{"n": " 7 "}))
		assert.True(t, eval(t, c, row{"n": 7}))
		assert.False(t, eval(t, c, row{"n": "seven"}))
	})

	t.Run("time", func(t *testing.T) {
		c, _ := mustCompile(t, map[string]any{"dimension": "at", "relation": "gte", "value": "2020-01-01", "parser": "time"})
		assert.True(t, eval(t, c, row{"at": "2021-05-01T10:00:00Z"}))
		assert.False(t, eval(t, c, row{"at": "2019-12-31"}))
		assert.False(t, eval(t, c, row{"at": "not a date"}))
	})
}

func TestCompile_CustomOperator(t *testing.T) {
	even := func(literal any) (Comparator, error) {
		want, ok := literal.(bool)
		if !ok {
			return nil, errors.New("even expects a boolean")
		}
		return func(_ context.Context, v any) (bool, error) {
			n, ok := ToFloat64(v)
			return ok && (int(n)%2 == 0) == want, nil
		}, nil
	}
	opts := &Options{Operators: map[Op]OperatorFunc{"even": even}, Logger: zap.NewNop()}

	c, err := Compile[string, row](map[string]any{"dimension": "age", "relation": "even", "value": true}, dimensionAttrs, &mapStrategy{}, opts)
	require.NoError(t, err)
	assert.True(t, eval(t, c, row{"age": 30}))
	assert.False(t, eval(t, c, row{"age": 45}))

	_, err = Compile[string, row](map[string]any{"dimension": "age", "relation": "even", "value": "yes"}, dimensionAttrs, &mapStrategy{}, opts)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeInvalidLiteral, cfgErr.Code)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  any
		code string
	}{
		{"unknown relation", map[string]any{"dimension": "age", "relation": "near", "value": 1}, ErrCodeUnknownOperator},
		{"non numeric ordering literal", map[string]any{"dimension": "age", "relation": "gt", "value": "old"}, ErrCodeInvalidLiteral},
		{"invalid pattern", map[string]any{"dimension": "city", "relation": "reg", "value": "("}, ErrCodeInvalidLiteral},
		{"in without list", map[string]any{"dimension": "city", "relation": "in", "value": "x"}, ErrCodeInvalidLiteral},
		{"eq with list", map[string]any{"dimension": "city", "relation": "eq", "value": []any{"x"}}, ErrCodeInvalidLiteral},
		{"unknown parser", map[string]any{"dimension": "city", "relation": "eq", "value": "x", "parser": "upper"}, ErrCodeUnknownParser},
		{"prepare failure", map[string]any{"dimension": 3, "relation": "eq", "value": "x"}, ErrCodePrepareFailed},
		{"nested malformed", map[string]any{"and": []any{map[string]any{}}}, ErrCodeMalformedCondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mapStrategy{}
			c, err := Compile[string, row](tt.doc, dimensionAttrs, s, nil)
			assert.Nil(t, c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.code, cfgErr.Code)
			assert.Equal(t, 0, s.gets)
		})
	}
}

func TestCompile_PrepareErrorIsWrapped(t *testing.T) {
	_, err := Compile[string, row](map[string]any{"dimension": 3, "relation": "eq", "value": 1}, dimensionAttrs, &mapStrategy{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension must be a string")
}

func TestCompile_PrepareConfigurationErrorPassesThrough(t *testing.T) {
	want := NewConfigurationError("CUSTOM", nil, "nope")
	s := StrategyFuncs[int, row]{
		Prepare: func(Leaf) (int, error) { return 0, want },
		Get:     func(row, int) (any, error) { return nil, nil },
	}
	_, err := Compile[int, row](map[string]any{"dimension": "a", "relation": "eq", "value": 1}, dimensionAttrs, s, nil)
	assert.Same(t, want, err)
}

func TestEvaluate_PropagatesGetValueError(t *testing.T) {
	boom := errors.New("boom")
	s := &mapStrategy{getErr: boom}
	c, err := Compile[string, row](map[string]any{"not": map[string]any{"dimension": "age", "relation": "eq", "value": 1}}, dimensionAttrs, s, nil)
	require.NoError(t, err)

	ok, err := c.Evaluate(row{"age": 1})
	assert.False(t, ok)
	assert.Equal(t, boom, err)
}

func TestCompile_TypedNode(t *testing.T) {
	node := And(
		Where("age").Gte(30),
		Not(Where("city").In("y", "z")),
	)
	c, _ := mustCompile(t, node)
	assert.False(t, eval(t, c, sampleRows[0]))
	assert.False(t, eval(t, c, sampleRows[1]))
	assert.True(t, eval(t, c, sampleRows[2]))

	_, err := Compile[string, row](Node{Kind: KindNot}, dimensionAttrs, &mapStrategy{}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCompile_ScriptRelation(t *testing.T) {
	c, _ := mustCompile(t, Where("city").Script("value === 'x' || value === 'y'"))
	assert.True(t, eval(t, c, sampleRows[0]))
	assert.True(t, eval(t, c, sampleRows[1]))
	assert.False(t, eval(t, c, sampleRows[3]))

	_, err := Compile[string, row](map[string]any{"dimension": "age", "relation": "script", "value": "(("}, dimensionAttrs, &mapStrategy{}, nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrCodeInvalidLiteral, cfgErr.Code)
}
