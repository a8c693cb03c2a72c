package condition

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/asaidimu/go-sift/utils"
)

// Strategy connects the engine to whatever a relational leaf refers to.
//
// P is the payload resolved once per leaf at compile time; C is what gets
// handed to Evaluate (for the filter transform, the current raw row).
type Strategy[P any, C any] interface {
	// PrepareGetValue validates a leaf and resolves its value-getter
	// attributes. It is called exactly once per relational leaf.
	PrepareGetValue(leaf Leaf) (P, error)
	// GetValue fetches the value the leaf compares, from row.
	GetValue(row C, payload P) (any, error)
}

// StrategyFuncs adapts a pair of functions to the Strategy interface.
type StrategyFuncs[P any, C any] struct {
	Prepare func(leaf Leaf) (P, error)
	Get     func(row C, payload P) (any, error)
}

func (s StrategyFuncs[P, C]) PrepareGetValue(leaf Leaf) (P, error) {
	return s.Prepare(leaf)
}

func (s StrategyFuncs[P, C]) GetValue(row C, payload P) (any, error) {
	return s.Get(row, payload)
}

// Options configures compilation.
type Options struct {
	// Operators adds operators to, or overrides, the built-in table.
	Operators map[Op]OperatorFunc
	Logger    *zap.Logger
}

// DefaultOptions returns options with the built-in operator table only.
func DefaultOptions() *Options {
	return &Options{
		Operators: map[Op]OperatorFunc{},
		Logger:    zap.NewNop(),
	}
}

// Condition is a compiled, immutable condition tree.
type Condition[P any, C any] struct {
	root   evaluator[C]
	leaves int
}

// Evaluate reports whether the condition holds for row. Errors raised while
// fetching values are returned unchanged.
func (c *Condition[P, C]) Evaluate(row C) (bool, error) {
	return c.root.evaluate(context.Background(), row)
}

// EvaluateContext is Evaluate with a context that bounds long-running
// comparators such as script relations. When ctx ends mid-evaluation the
// context error is returned.
func (c *Condition[P, C]) EvaluateContext(ctx context.Context, row C) (bool, error) {
	return c.root.evaluate(ctx, row)
}

// Leaves returns the number of relational leaves in the tree.
func (c *Condition[P, C]) Leaves() int {
	return c.leaves
}

// Compile parses doc (see Parse) and binds every relational leaf through
// strategy. Any failure is a *ConfigurationError and no Condition is
// returned.
func Compile[P any, C any](doc any, getterAttrs map[string]bool, strategy Strategy[P, C], opts *Options) (*Condition[P, C], error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	operators := defaultOperators()
	for op, fn := range opts.Operators {
		operators[NormalizeOp(string(op))] = fn
	}

	p := &parser{getterAttrs: getterAttrs, operators: operators}
	node, err := p.parse(doc)
	if err != nil {
		return nil, err
	}

	c := &compiler[P, C]{strategy: strategy, operators: operators}
	root, err := c.compile(node)
	if err != nil {
		return nil, err
	}
	logger.Debug("Compiled condition", zap.Int("leaves", c.leaves))
	return &Condition[P, C]{root: root, leaves: c.leaves}, nil
}

type compiler[P any, C any] struct {
	strategy  Strategy[P, C]
	operators map[Op]OperatorFunc
	leaves    int
}

func (c *compiler[P, C]) compile(n Node) (evaluator[C], error) {
	switch n.Kind {
	case KindConst:
		return constNode[C]{value: n.Value}, nil
	case KindAnd, KindOr:
		children := make([]evaluator[C], 0, len(n.Children))
		for _, child := range n.Children {
			ev, err := c.compile(child)
			if err != nil {
				return nil, err
			}
			children = append(children, ev)
		}
		if n.Kind == KindAnd {
			return andNode[C]{children: children}, nil
		}
		return orNode[C]{children: children}, nil
	case KindNot:
		if len(n.Children) != 1 {
			return nil, malformed(n, "\"not\" must have exactly one operand.")
		}
		child, err := c.compile(n.Children[0])
		if err != nil {
			return nil, err
		}
		return notNode[C]{child: child}, nil
	case KindRelational:
		return c.compileLeaf(n)
	}
	return nil, malformed(n, "Unrecognized condition kind.")
}

func (c *compiler[P, C]) compileLeaf(n Node) (evaluator[C], error) {
	leaf := *n.Leaf

	payload, err := c.strategy.PrepareGetValue(leaf)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigurationError{
			Code:    ErrCodePrepareFailed,
			Message: utils.MakePrintable("Can not prepare condition", leaf),
			Leaf:    leaf,
			Err:     err,
		}
	}

	var parse ValueParser
	if leaf.Parser != "" {
		var ok bool
		if parse, ok = valueParsers[leaf.Parser]; !ok {
			return nil, NewConfigurationError(ErrCodeUnknownParser, leaf,
				fmt.Sprintf("Unknown parser \"%s\".", leaf.Parser), "\nIllegal condition:", leaf)
		}
	}

	comparators := make([]Comparator, 0, len(leaf.Predicates))
	for _, pred := range leaf.Predicates {
		op := NormalizeOp(string(pred.Op))
		build, ok := c.operators[op]
		if !ok {
			return nil, NewConfigurationError(ErrCodeUnknownOperator, leaf,
				fmt.Sprintf("Unknown relation \"%s\".", pred.Op), "\nIllegal condition:", leaf)
		}
		literal := pred.Value
		if parse != nil {
			literal = parseLiteral(parse, literal)
		}
		cmp, err := build(literal)
		if err != nil {
			return nil, &ConfigurationError{
				Code:    ErrCodeInvalidLiteral,
				Message: utils.MakePrintable(fmt.Sprintf("Illegal value for relation \"%s\".", op), "\nIllegal condition:", leaf),
				Leaf:    leaf,
				Err:     err,
			}
		}
		comparators = append(comparators, cmp)
	}

	c.leaves++
	return relationalNode[P, C]{
		payload:     payload,
		strategy:    c.strategy,
		parse:       parse,
		comparators: comparators,
	}, nil
}

// parseLiteral applies the leaf parser to a literal, element-wise for lists.
func parseLiteral(parse ValueParser, literal any) any {
	if list, ok := asList(literal); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = parse(item)
		}
		return out
	}
	return parse(literal)
}
