package condition

import "context"

type evaluator[C any] interface {
	evaluate(ctx context.Context, row C) (bool, error)
}

type constNode[C any] struct {
	value bool
}

func (n constNode[C]) evaluate(context.Context, C) (bool, error) {
	return n.value, nil
}

// andNode is true for an empty operand list.
type andNode[C any] struct {
	children []evaluator[C]
}

func (n andNode[C]) evaluate(ctx context.Context, row C) (bool, error) {
	for _, child := range n.children {
		ok, err := child.evaluate(ctx, row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// orNode is false for an empty operand list.
type orNode[C any] struct {
	children []evaluator[C]
}

func (n orNode[C]) evaluate(ctx context.Context, row C) (bool, error) {
	for _, child := range n.children {
		ok, err := child.evaluate(ctx, row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type notNode[C any] struct {
	child evaluator[C]
}

func (n notNode[C]) evaluate(ctx context.Context, row C) (bool, error) {
	ok, err := n.child.evaluate(ctx, row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

type relationalNode[P any, C any] struct {
	payload     P
	strategy    Strategy[P, C]
	parse       ValueParser
	comparators []Comparator
}

func (n relationalNode[P, C]) evaluate(ctx context.Context, row C) (bool, error) {
	value, err := n.strategy.GetValue(row, n.payload)
	if err != nil {
		return false, err
	}
	if n.parse != nil {
		value = n.parse(value)
	}
	for _, cmp := range n.comparators {
		ok, err := cmp(ctx, value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
