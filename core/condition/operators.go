package condition

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Op names a relational operator.
type Op string

// Built-in relational operators.
const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpReg        Op = "reg"
	OpIn         Op = "in"
	OpNin        Op = "nin"
	OpContains   Op = "contains"
	OpStartsWith Op = "startswith"
	OpEndsWith   Op = "endswith"
)

var opAliases = map[string]Op{
	"=":   OpEq,
	"==":  OpEq,
	"neq": OpNe,
	"!=":  OpNe,
	"<>":  OpNe,
	"<":   OpLt,
	"<=":  OpLte,
	">":   OpGt,
	">=":  OpGte,
}

// NormalizeOp resolves symbolic and alternate spellings to the canonical Op.
func NormalizeOp(name string) Op {
	if op, ok := opAliases[name]; ok {
		return op
	}
	return Op(name)
}

// Comparator tests a (parsed) row value against the literal it was built for.
// Long-running comparators must stop when ctx is done.
type Comparator func(ctx context.Context, value any) (bool, error)

// OperatorFunc validates a literal operand at compile time and returns the
// Comparator used for every evaluation of that leaf.
type OperatorFunc func(literal any) (Comparator, error)

// Value parsers applied to both the fetched value and the literal.
const (
	ParserNumber = "number"
	ParserTrim   = "trim"
	ParserTime   = "time"
)

// ValueParser normalizes a value before comparison.
type ValueParser func(v any) any

var valueParsers = map[string]ValueParser{
	ParserNumber: parseNumber,
	ParserTrim:   parseTrim,
	ParserTime:   parseTime,
}

func defaultOperators() map[Op]OperatorFunc {
	return map[Op]OperatorFunc{
		OpEq:         equalOperator(false),
		OpNe:         equalOperator(true),
		OpLt:         orderOperator(func(a, b float64) bool { return a < b }),
		OpLte:        orderOperator(func(a, b float64) bool { return a <= b }),
		OpGt:         orderOperator(func(a, b float64) bool { return a > b }),
		OpGte:        orderOperator(func(a, b float64) bool { return a >= b }),
		OpReg:        regexOperator,
		OpIn:         membershipOperator(false),
		OpNin:        membershipOperator(true),
		OpContains:   stringOperator(strings.Contains),
		OpStartsWith: stringOperator(strings.HasPrefix),
		OpEndsWith:   stringOperator(strings.HasSuffix),
		OpScript:     scriptOperator,
	}
}

func equalOperator(negate bool) OperatorFunc {
	return func(literal any) (Comparator, error) {
		if _, isList := asList(literal); isList || isMap(literal) {
			return nil, fmt.Errorf("equality requires a scalar value, got %T", literal)
		}
		return func(_ context.Context, value any) (bool, error) {
			return LooseEqual(value, literal) != negate, nil
		}, nil
	}
}

func orderOperator(cmp func(a, b float64) bool) OperatorFunc {
	return func(literal any) (Comparator, error) {
		rval, ok := ToFloat64(literal)
		if !ok || math.IsNaN(rval) {
			return nil, fmt.Errorf("ordering requires a numeric value, got %T(%v)", literal, literal)
		}
		return func(_ context.Context, value any) (bool, error) {
			lval, ok := ToFloat64(value)
			if !ok || math.IsNaN(lval) {
				return false, nil
			}
			return cmp(lval, rval), nil
		}, nil
	}
}

func regexOperator(literal any) (Comparator, error) {
	pattern, ok := literal.(string)
	if !ok {
		return nil, fmt.Errorf("\"reg\" requires a string pattern, got %T", literal)
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return func(_ context.Context, value any) (bool, error) {
		if value == nil {
			return false, nil
		}
		return re.MatchString(stringify(value))
	}, nil
}

func membershipOperator(negate bool) OperatorFunc {
	return func(literal any) (Comparator, error) {
		set, ok := asList(literal)
		if !ok {
			return nil, fmt.Errorf("membership requires a list value, got %T", literal)
		}
		return func(_ context.Context, value any) (bool, error) {
			for _, item := range set {
				if LooseEqual(value, item) {
					return !negate, nil
				}
			}
			return negate, nil
		}, nil
	}
}

func stringOperator(test func(s, substr string) bool) OperatorFunc {
	return func(literal any) (Comparator, error) {
		needle, ok := literal.(string)
		if !ok {
			return nil, fmt.Errorf("string operator requires a string value, got %T", literal)
		}
		return func(_ context.Context, value any) (bool, error) {
			s, ok := value.(string)
			return ok && test(s, needle), nil
		}, nil
	}
}

// LooseEqual is the equality used by eq, ne, in and nin.
//
// nil equals only nil. When either side is a Go number and both sides convert
// to float64 the comparison is numeric, so 30 equals "30" and int64(30) equals
// 30.0. Otherwise strings and booleans compare exactly and anything else
// falls back to reflect.DeepEqual. NaN never equals anything.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) || isNumber(b) {
		fa, okA := ToFloat64(a)
		fb, okB := ToFloat64(b)
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func parseNumber(v any) any {
	if f, ok := ToFloat64(v); ok {
		return f
	}
	return math.NaN()
}

func parseTrim(v any) any {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime maps a value to Unix milliseconds as float64. Numbers are taken
// to already be Unix milliseconds.
func parseTime(v any) any {
	switch t := v.(type) {
	case time.Time:
		return float64(t.UnixMilli())
	case *time.Time:
		if t == nil {
			return math.NaN()
		}
		return float64(t.UnixMilli())
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return float64(parsed.UnixMilli())
			}
		}
		return math.NaN()
	}
	if isNumber(v) {
		f, _ := ToFloat64(v)
		return f
	}
	return math.NaN()
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func isMap(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Map
}
