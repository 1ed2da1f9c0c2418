package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type operatorFunc func(fieldValue, ruleValue interface{}) (bool, error)

var operators = map[string]operatorFunc{
	OpEquals:      operatorEquals,
	OpGreaterThan: operatorGreaterThan,
	OpLessThan:    operatorLessThan,
	OpContains:    operatorContains,
	OpIn:          operatorIn,
	OpBetween:     operatorBetween,
}

// SupportedOperators returns the operator names understood by conditions.
func SupportedOperators() []string {
	return []string{OpEquals, OpGreaterThan, OpLessThan, OpContains, OpIn, OpBetween}
}

func unsupportedOperator(c Condition) error {
	return &EvaluationError{
		Field:    c.Field,
		Operator: c.Operator,
		Message:  "operator is not supported, expected one of " + strings.Join(SupportedOperators(), ", "),
		Err:      ErrUnsupportedOperator,
	}
}

// coerce converts a string or bool rule value to a number when the payload
// value is numeric. Values that do not parse are returned unchanged.
func coerce(fieldValue, ruleValue interface{}) interface{} {
	if _, ok := toFloat64(fieldValue); !ok {
		return ruleValue
	}
	if _, ok := toFloat64(ruleValue); ok {
		return ruleValue
	}

	switch v := ruleValue.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	}
	return ruleValue
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func equal(a, b interface{}) bool {
	fa, aNum := toFloat64(a)
	fb, bNum := toFloat64(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two numbers or two strings.
func compare(a, b interface{}) (int, error) {
	fa, aNum := toFloat64(a)
	fb, bNum := toFloat64(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}

	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb), nil
	}

	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func stringify(v interface{}) string {
	if f, ok := toFloat64(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return "none"
	default:
		return fmt.Sprint(s)
	}
}

func operatorEquals(fieldValue, ruleValue interface{}) (bool, error) {
	return equal(fieldValue, ruleValue), nil
}

func operatorGreaterThan(fieldValue, ruleValue interface{}) (bool, error) {
	cmp, err := compare(fieldValue, ruleValue)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

func operatorLessThan(fieldValue, ruleValue interface{}) (bool, error) {
	cmp, err := compare(fieldValue, ruleValue)
	if err != nil {
		return false, err
	}
	return cmp < 0, nil
}

func operatorContains(fieldValue, ruleValue interface{}) (bool, error) {
	haystack := strings.ToLower(stringify(fieldValue))
	needle := strings.ToLower(stringify(ruleValue))
	return strings.Contains(haystack, needle), nil
}

func operatorIn(fieldValue, ruleValue interface{}) (bool, error) {
	switch v := ruleValue.(type) {
	case []interface{}:
		for _, item := range v {
			if equal(fieldValue, item) {
				return true, nil
			}
		}
		return false, nil

	case string:
		s, ok := fieldValue.(string)
		if !ok {
			return false, fmt.Errorf("'in' against a string requires a string field, got %T", fieldValue)
		}
		return strings.Contains(v, s), nil

	case map[string]interface{}:
		s, ok := fieldValue.(string)
		if !ok {
			return false, nil
		}
		_, found := v[s]
		return found, nil

	default:
		return false, fmt.Errorf("'in' requires a list value, got %T", ruleValue)
	}
}

func operatorBetween(fieldValue, ruleValue interface{}) (bool, error) {
	bounds, ok := ruleValue.([]interface{})
	if !ok || len(bounds) < 2 {
		return false, nil
	}

	lo, err := compare(bounds[0], fieldValue)
	if err != nil {
		return false, err
	}
	if lo > 0 {
		return false, nil
	}

	hi, err := compare(fieldValue, bounds[1])
	if err != nil {
		return false, err
	}
	return hi <= 0, nil
}
