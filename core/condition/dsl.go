// Package condition implements the conditional expression engine: a small
// declarative language of relational comparisons composed with and/or/not,
// compiled once into an evaluable tree and evaluated against a caller-defined
// context (typically "the current row").
//
// A condition document is plain data, usually decoded from JSON or YAML:
//
//	{"and": [
//	    {"dimension": "age", "relation": "gte", "value": 30},
//	    {"not": {"dimension": "city", "relation": "in", "value": ["x", "y"]}}
//	]}
//
// The engine does not know what a "dimension" is. Callers supply the set of
// attributes that identify the value to fetch, and a Strategy that resolves
// those attributes at compile time and fetches values at evaluation time.
package condition

import (
	"encoding/json"
)

// Logical keys of a condition document.
const (
	KeyAnd = "and"
	KeyOr  = "or"
	KeyNot = "not"
)

// Reserved attributes of a relational leaf.
const (
	AttrRelation = "relation"
	AttrValue    = "value"
	AttrParser   = "parser"
)

// Kind identifies the shape of a Node.
type Kind int

const (
	KindRelational Kind = iota + 1
	KindAnd
	KindOr
	KindNot
	KindConst
)

func (k Kind) String() string {
	switch k {
	case KindRelational:
		return "relational"
	case KindAnd:
		return KeyAnd
	case KindOr:
		return KeyOr
	case KindNot:
		return KeyNot
	case KindConst:
		return "const"
	default:
		return "unknown"
	}
}

// Predicate is one operator applied to one literal operand.
type Predicate struct {
	Op    Op
	Value any
}

// Leaf is a relational node: a value-getter reference plus one or more
// predicates that must all hold for the fetched value.
type Leaf struct {
	// Getter holds the value-getter attributes, e.g. {"dimension": "age"}.
	Getter     map[string]any
	Predicates []Predicate
	Parser     string
}

// Has reports whether the leaf carries the value-getter attribute attr.
func (l Leaf) Has(attr string) bool {
	_, ok := l.Getter[attr]
	return ok
}

// Get returns the value-getter attribute attr, or nil.
func (l Leaf) Get(attr string) any {
	return l.Getter[attr]
}

// Document renders the leaf back to its plain document form. The first
// predicate is written as relation/value and the others as operator keys.
// A leaf that repeats an operator among those keys cannot be written as one
// map, so it becomes an "and" of single-predicate leaves.
func (l Leaf) Document() any {
	seen := make(map[Op]bool, len(l.Predicates))
	for _, p := range l.Predicates[min(1, len(l.Predicates)):] {
		if seen[p.Op] {
			children := make([]any, 0, len(l.Predicates))
			for _, p := range l.Predicates {
				single := Leaf{Getter: l.Getter, Predicates: []Predicate{p}, Parser: l.Parser}
				children = append(children, single.Document())
			}
			return map[string]any{KeyAnd: children}
		}
		seen[p.Op] = true
	}

	doc := make(map[string]any, len(l.Getter)+len(l.Predicates)+2)
	for k, v := range l.Getter {
		doc[k] = v
	}
	for i, p := range l.Predicates {
		if i == 0 {
			doc[AttrRelation] = string(p.Op)
			doc[AttrValue] = p.Value
			continue
		}
		doc[string(p.Op)] = p.Value
	}
	if l.Parser != "" {
		doc[AttrParser] = l.Parser
	}
	return doc
}

// MarshalJSON implements json.Marshaler.
func (l Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Document())
}

// Node is the typed form of a condition document. Exactly one of Leaf,
// Children or Value is meaningful, selected by Kind.
type Node struct {
	Kind Kind
	Leaf *Leaf
	// Children holds the operands of and/or, or the single operand of not.
	Children []Node
	Value    bool
}

// Document renders the node back to plain data suitable for JSON or YAML.
func (n Node) Document() any {
	switch n.Kind {
	case KindRelational:
		if n.Leaf == nil {
			return nil
		}
		return n.Leaf.Document()
	case KindAnd, KindOr:
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, c.Document())
		}
		return map[string]any{n.Kind.String(): children}
	case KindNot:
		if len(n.Children) != 1 {
			return map[string]any{KeyNot: nil}
		}
		return map[string]any{KeyNot: n.Children[0].Document()}
	case KindConst:
		return n.Value
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Document())
}
