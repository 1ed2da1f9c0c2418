package rules

import (
	"encoding/json"
	"fmt"

	"beacon/pkg/cel"
	pkgerrors "beacon/pkg/errors"
)

// Compiler turns serialized rule trees into Nodes. It is safe for
// concurrent use.
type Compiler struct {
	cel *cel.Evaluator
}

func NewCompiler() (*Compiler, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &Compiler{cel: evaluator}, nil
}

// Compile parses a JSON rule tree.
func (c *Compiler) Compile(raw []byte) (Node, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, pkgerrors.ErrInvalidRule.WithCause(err).WithMessage("rules are not valid JSON")
	}
	return c.Parse(v)
}

// Parse builds a Node from an already decoded rule value. Shape detection
// checks and, or, not, expr and then the condition keys, in that order.
func (c *Compiler) Parse(v interface{}) (Node, error) {
	return c.parse(v, "$")
}

func (c *Compiler) parse(v interface{}, path string) (Node, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, invalid(path, "rule must be an object, got %T", v)
	}

	if sub, ok := obj[KeyAnd]; ok {
		rules, err := c.parseList(sub, path+"."+KeyAnd)
		if err != nil {
			return nil, err
		}
		return And{Rules: rules}, nil
	}

	if sub, ok := obj[KeyOr]; ok {
		rules, err := c.parseList(sub, path+"."+KeyOr)
		if err != nil {
			return nil, err
		}
		return Or{Rules: rules}, nil
	}

	if sub, ok := obj[KeyNot]; ok {
		rule, err := c.parse(sub, path+"."+KeyNot)
		if err != nil {
			return nil, err
		}
		return Not{Rule: rule}, nil
	}

	if src, ok := obj[KeyExpr]; ok {
		expression, ok := src.(string)
		if !ok {
			return nil, invalid(path, "expr must be a string, got %T", src)
		}
		predicate, err := c.cel.Compile(expression)
		if err != nil {
			return nil, pkgerrors.ErrInvalidRule.WithCause(err).WithDetail("path", path)
		}
		return Expr{Predicate: predicate}, nil
	}

	field, hasField := obj[KeyField]
	operator, hasOperator := obj[KeyOperator]
	value, hasValue := obj[KeyValue]
	if !hasField || !hasOperator || !hasValue {
		return Unmatched{}, nil
	}

	fieldName, ok := field.(string)
	if !ok {
		return nil, invalid(path, "field must be a string, got %T", field)
	}
	opName, ok := operator.(string)
	if !ok {
		return nil, invalid(path, "operator must be a string, got %T", operator)
	}

	return Condition{Field: fieldName, Operator: opName, Value: value}, nil
}

func (c *Compiler) parseList(v interface{}, path string) ([]Node, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, invalid(path, "expected a list of rules, got %T", v)
	}

	nodes := make([]Node, 0, len(items))
	for i, item := range items {
		node, err := c.parse(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func invalid(path, format string, args ...interface{}) error {
	return pkgerrors.ErrInvalidRule.WithDetail("path", path).WithMessage(format, args...)
}

// Validate walks the tree and reports every condition whose operator is not
// supported. Such conditions are kept in the tree and fail at evaluation.
func Validate(node Node) []error {
	var errs []error

	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case Condition:
			if _, ok := operators[n.Operator]; !ok {
				errs = append(errs, unsupportedOperator(n))
			}
		case And:
			for _, r := range n.Rules {
				walk(r)
			}
		case Or:
			for _, r := range n.Rules {
				walk(r)
			}
		case Not:
			walk(n.Rule)
		}
	}
	walk(node)

	return errs
}
