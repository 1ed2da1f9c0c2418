// Package rules evaluates campaign rule trees against event payloads.
//
// A rule tree is parsed once, at campaign load time, into a Node. Evaluation
// never mutates the tree and is safe for concurrent use.
package rules

import (
	"errors"
	"fmt"

	"beacon/pkg/cel"
)

const (
	OpEquals      = "equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpIn          = "in"
	OpBetween     = "between"
)

const (
	KeyAnd      = "and"
	KeyOr       = "or"
	KeyNot      = "not"
	KeyExpr     = "expr"
	KeyField    = "field"
	KeyOperator = "operator"
	KeyValue    = "value"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrIncomparable        = errors.New("incomparable types")
)

// Node is one of Condition, And, Or, Not, Expr or Unmatched.
type Node interface {
	node()
}

// Condition compares the payload value at Field with Value.
type Condition struct {
	Field    string
	Operator string
	Value    interface{}
}

type And struct {
	Rules []Node
}

type Or struct {
	Rules []Node
}

type Not struct {
	Rule Node
}

// Expr is a CEL predicate over the payload.
type Expr struct {
	Predicate *cel.Predicate
}

// Unmatched is a rule object that has none of the recognised shapes. It
// never matches.
type Unmatched struct{}

func (Condition) node() {}
func (And) node()       {}
func (Or) node()        {}
func (Not) node()       {}
func (Expr) node()      {}
func (Unmatched) node() {}

type EvaluationError struct {
	Field    string
	Operator string
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation error for field '%s' with operator '%s': %s: %v",
			e.Field, e.Operator, e.Message, e.Err)
	}
	return fmt.Sprintf("evaluation error for field '%s' with operator '%s': %s",
		e.Field, e.Operator, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
