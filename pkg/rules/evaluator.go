package rules

import (
	"context"
	"fmt"
)

// Evaluate reports whether payload satisfies the rule tree. It never fails:
// any evaluation error makes the whole tree non-matching.
func Evaluate(payload map[string]interface{}, node Node) bool {
	ok, err := Check(payload, node)
	if err != nil {
		return false
	}
	return ok
}

// Check is Evaluate with the error exposed, for callers that log it.
func Check(payload map[string]interface{}, node Node) (bool, error) {
	return CheckContext(context.Background(), payload, node)
}

// CheckContext evaluates the tree. and/or short-circuit left to right, so an
// erroring branch after a decisive one is never reached.
func CheckContext(ctx context.Context, payload map[string]interface{}, node Node) (bool, error) {
	switch n := node.(type) {
	case And:
		for _, r := range n.Rules {
			ok, err := CheckContext(ctx, payload, r)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case Or:
		for _, r := range n.Rules {
			ok, err := CheckContext(ctx, payload, r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := CheckContext(ctx, payload, n.Rule)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case Expr:
		if n.Predicate == nil {
			return false, fmt.Errorf("expr node has no compiled predicate")
		}
		return n.Predicate.Eval(ctx, payload)

	case Condition:
		return checkCondition(payload, n)

	case Unmatched, nil:
		return false, nil

	default:
		return false, fmt.Errorf("unknown rule node %T", node)
	}
}

func checkCondition(payload map[string]interface{}, c Condition) (bool, error) {
	op, ok := operators[c.Operator]
	if !ok {
		return false, unsupportedOperator(c)
	}

	fieldValue, ok := GetNestedValue(payload, c.Field)
	if !ok {
		return false, nil
	}

	result, err := op(fieldValue, coerce(fieldValue, c.Value))
	if err != nil {
		return false, &EvaluationError{
			Field:    c.Field,
			Operator: c.Operator,
			Message:  "operator execution failed",
			Err:      err,
		}
	}
	return result, nil
}
