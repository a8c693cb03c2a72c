package condition

// DimensionAttr is the value-getter attribute used by Where.
const DimensionAttr = "dimension"

// LeafBuilder builds a relational leaf. It is not intended to be used
// directly but is part of the fluent API:
//
//	cond := And(
//		Where("age").Gte(30),
//		Where("city").Eq("x"),
//	)
type LeafBuilder struct {
	attr   string
	target any
	parser string
}

// Where begins a relational leaf on a dimension (by name or index).
func Where(dimension any) *LeafBuilder {
	return &LeafBuilder{attr: DimensionAttr, target: dimension}
}

// WhereAttr begins a relational leaf addressed through a custom value-getter
// attribute.
func WhereAttr(attr string, target any) *LeafBuilder {
	return &LeafBuilder{attr: attr, target: target}
}

// Parser sets the value parser (ParserNumber, ParserTrim, ParserTime).
func (lb *LeafBuilder) Parser(name string) *LeafBuilder {
	lb.parser = name
	return lb
}

// Is builds a leaf with an arbitrary (possibly custom) operator.
func (lb *LeafBuilder) Is(op Op, value any) Node {
	return Node{
		Kind: KindRelational,
		Leaf: &Leaf{
			Getter:     map[string]any{lb.attr: lb.target},
			Predicates: []Predicate{{Op: op, Value: value}},
			Parser:     lb.parser,
		},
	}
}

// Eq adds an equality condition.
func (lb *LeafBuilder) Eq(value any) Node { return lb.Is(OpEq, value) }

// Ne adds a not-equal condition.
func (lb *LeafBuilder) Ne(value any) Node { return lb.Is(OpNe, value) }

// Lt adds a less-than condition.
func (lb *LeafBuilder) Lt(value any) Node { return lb.Is(OpLt, value) }

// Lte adds a less-than-or-equal condition.
func (lb *LeafBuilder) Lte(value any) Node { return lb.Is(OpLte, value) }

// Gt adds a greater-than condition.
func (lb *LeafBuilder) Gt(value any) Node { return lb.Is(OpGt, value) }

// Gte adds a greater-than-or-equal condition.
func (lb *LeafBuilder) Gte(value any) Node { return lb.Is(OpGte, value) }

// Between is shorthand for a single leaf holding both gte and lte.
func (lb *LeafBuilder) Between(low, high any) Node {
	n := lb.Is(OpGte, low)
	n.Leaf.Predicates = append(n.Leaf.Predicates, Predicate{Op: OpLte, Value: high})
	return n
}

// Matches adds a regular expression condition (ECMAScript syntax).
func (lb *LeafBuilder) Matches(pattern string) Node { return lb.Is(OpReg, pattern) }

// Script adds a JavaScript expression over the row value, bound as "value".
func (lb *LeafBuilder) Script(expr string) Node { return lb.Is(OpScript, expr) }

// In checks that the value is one of values.
func (lb *LeafBuilder) In(values ...any) Node { return lb.Is(OpIn, values) }

// Nin checks that the value is none of values.
func (lb *LeafBuilder) Nin(values ...any) Node { return lb.Is(OpNin, values) }

// Contains checks that a string value contains s.
func (lb *LeafBuilder) Contains(s string) Node { return lb.Is(OpContains, s) }

// StartsWith checks that a string value starts with s.
func (lb *LeafBuilder) StartsWith(s string) Node { return lb.Is(OpStartsWith, s) }

// EndsWith checks that a string value ends with s.
func (lb *LeafBuilder) EndsWith(s string) Node { return lb.Is(OpEndsWith, s) }

// And combines nodes so that all must hold. And() is always true.
func And(nodes ...Node) Node {
	return Node{Kind: KindAnd, Children: append([]Node{}, nodes...)}
}

// Or combines nodes so that at least one must hold. Or() is always false.
func Or(nodes ...Node) Node {
	return Node{Kind: KindOr, Children: append([]Node{}, nodes...)}
}

// Not negates a node.
func Not(node Node) Node {
	return Node{Kind: KindNot, Children: []Node{node}}
}

// Const returns a constant condition.
func Const(value bool) Node {
	return Node{Kind: KindConst, Value: value}
}
