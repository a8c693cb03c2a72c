package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// Parse converts a raw condition document into a Node.
//
// doc may be a Node, a *Node, a bool constant, or plain data as produced by
// encoding/json or yaml.v3 (map[string]any, []any and scalars). The keys of
// getterAttrs that map to true are treated as value-getter attributes of
// relational leaves; every other non-reserved key must name an operator.
//
// Malformed documents fail with a *ConfigurationError.
func Parse(doc any, getterAttrs map[string]bool) (Node, error) {
	p := &parser{getterAttrs: getterAttrs, operators: defaultOperators()}
	return p.parse(doc)
}

// ParseJSON decodes a JSON condition document and parses it.
func ParseJSON(data []byte, getterAttrs map[string]bool) (Node, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Node{}, &ConfigurationError{
			Code:    ErrCodeMalformedCondition,
			Message: "condition is not valid JSON",
			Err:     err,
		}
	}
	return Parse(doc, getterAttrs)
}

// ParseYAML decodes a YAML condition document and parses it.
func ParseYAML(data []byte, getterAttrs map[string]bool) (Node, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Node{}, &ConfigurationError{
			Code:    ErrCodeMalformedCondition,
			Message: "condition is not valid YAML",
			Err:     err,
		}
	}
	return Parse(doc, getterAttrs)
}

type parser struct {
	getterAttrs map[string]bool
	operators   map[Op]OperatorFunc
}

func (p *parser) parse(doc any) (Node, error) {
	switch v := doc.(type) {
	case nil:
		return Node{}, malformed(doc, "A condition must be specified.")
	case Node:
		return p.checkNode(v)
	case *Node:
		if v == nil {
			return Node{}, malformed(doc, "A condition must be specified.")
		}
		return p.checkNode(*v)
	case bool:
		return Node{Kind: KindConst, Value: v}, nil
	case map[string]any:
		return p.parseMap(v)
	case map[any]any:
		m := make(map[string]any, len(v))
		for key, val := range v {
			s, ok := key.(string)
			if !ok {
				return Node{}, malformed(fmt.Sprintf("%v", doc), "Condition keys must be strings.")
			}
			m[s] = val
		}
		return p.parseMap(m)
	}
	return Node{}, malformed(fmt.Sprintf("%v", doc), fmt.Sprintf("Illegal condition type %T.", doc))
}

func (p *parser) parseMap(m map[string]any) (Node, error) {
	if len(m) == 0 {
		return Node{}, malformed(m, "Condition must not be empty.")
	}

	var logical []string
	for _, key := range []string{KeyAnd, KeyOr, KeyNot} {
		if _, ok := m[key]; ok {
			logical = append(logical, key)
		}
	}

	if len(logical) > 1 {
		return Node{}, malformed(m, "Only one of \"and\", \"or\", \"not\" can be specified in a condition.")
	}
	if len(logical) == 1 {
		if len(m) > 1 {
			return Node{}, malformed(m, fmt.Sprintf("\"%s\" can not be combined with other attributes.", logical[0]))
		}
		return p.parseLogical(logical[0], m[logical[0]], m)
	}
	return p.parseRelational(m)
}

func (p *parser) parseLogical(key string, operand any, m map[string]any) (Node, error) {
	if key == KeyNot {
		child, err := p.parse(operand)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindNot, Children: []Node{child}}, nil
	}

	items, ok := asList(operand)
	if !ok {
		return Node{}, malformed(m, fmt.Sprintf("\"%s\" must be followed by a list of conditions.", key))
	}

	kind := KindAnd
	if key == KeyOr {
		kind = KindOr
	}
	children := make([]Node, 0, len(items))
	for _, item := range items {
		child, err := p.parse(item)
		if err != nil {
			return Node{}, err
		}
		children = append(children, child)
	}
	return Node{Kind: kind, Children: children}, nil
}

func (p *parser) parseRelational(m map[string]any) (Node, error) {
	leaf := &Leaf{Getter: make(map[string]any)}

	relation, hasRelation := m[AttrRelation]
	value, hasValue := m[AttrValue]

	// Sorted so shorthand predicates are evaluated in a stable order.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch {
		case p.getterAttrs[key]:
			leaf.Getter[key] = m[key]
		case key == AttrRelation || key == AttrValue:
		case key == AttrParser:
			name, ok := m[key].(string)
			if !ok {
				return Node{}, malformed(m, "\"parser\" must be a string.")
			}
			leaf.Parser = name
		default:
			op := NormalizeOp(key)
			if _, ok := p.operators[op]; !ok {
				return Node{}, malformed(m, fmt.Sprintf("Unknown attribute \"%s\" in relational condition.", key))
			}
			leaf.Predicates = append(leaf.Predicates, Predicate{Op: op, Value: m[key]})
		}
	}

	if hasRelation {
		name, ok := relation.(string)
		if !ok {
			return Node{}, malformed(m, "\"relation\" must be a string.")
		}
		leaf.Predicates = append([]Predicate{{Op: NormalizeOp(name), Value: value}}, leaf.Predicates...)
	} else if hasValue {
		return Node{}, malformed(m, "\"value\" is specified without a \"relation\".")
	}

	if len(leaf.Predicates) == 0 {
		return Node{}, malformed(m, "Relational condition must specify an operator.")
	}
	return Node{Kind: KindRelational, Leaf: leaf}, nil
}

// checkNode validates a typed Node tree with the same rules as documents.
func (p *parser) checkNode(n Node) (Node, error) {
	switch n.Kind {
	case KindConst:
		return n, nil
	case KindRelational:
		if n.Leaf == nil || len(n.Leaf.Predicates) == 0 {
			return Node{}, malformed(n, "Relational condition must specify an operator.")
		}
		for _, pred := range n.Leaf.Predicates {
			if _, ok := p.operators[NormalizeOp(string(pred.Op))]; !ok {
				return Node{}, NewConfigurationError(ErrCodeUnknownOperator, n,
					fmt.Sprintf("Unknown relation \"%s\".", pred.Op), "\nIllegal condition:", n)
			}
		}
		return n, nil
	case KindAnd, KindOr:
		for _, c := range n.Children {
			if _, err := p.checkNode(c); err != nil {
				return Node{}, err
			}
		}
		return n, nil
	case KindNot:
		if len(n.Children) != 1 {
			return Node{}, malformed(n, "\"not\" must have exactly one operand.")
		}
		if _, err := p.checkNode(n.Children[0]); err != nil {
			return Node{}, err
		}
		return n, nil
	}
	return Node{}, malformed(n, "Unrecognized condition kind.")
}

// asList accepts any slice type, so typed Go literals like []map[string]any
// or []Node work alongside decoded []any.
func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
