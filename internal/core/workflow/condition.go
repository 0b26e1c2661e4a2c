package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Evaluate reports whether every condition holds for the payload.
// An empty condition list always holds. Unknown operators never hold.
// Evaluate has no side effects and is safe for concurrent use.
func Evaluate(conditions []Condition, payload Payload) bool {
	for _, condition := range conditions {
		if !evaluateSingle(condition, payload[condition.Field]) {
			return false
		}
	}
	return true
}

// ValidateConditions rejects condition records that are missing a field or operator
func ValidateConditions(conditions []Condition) error {
	for i, condition := range conditions {
		if strings.TrimSpace(condition.Field) == "" {
			return &ConditionEvaluationError{Index: i, Reason: "field is required"}
		}
		if strings.TrimSpace(string(condition.Operator)) == "" {
			return &ConditionEvaluationError{Index: i, Reason: "operator is required"}
		}
	}
	return nil
}

func evaluateSingle(condition Condition, fieldValue interface{}) bool {
	switch condition.Operator {
	case OperatorEquals:
		return strictEquals(fieldValue, condition.Value)

	case OperatorNotEquals:
		return !strictEquals(fieldValue, condition.Value)

	case OperatorContains:
		if condition.Value == nil {
			return false
		}
		return strings.Contains(stringify(fieldValue), stringify(condition.Value))

	case OperatorGreaterThan:
		a, okA := toNumber(fieldValue)
		b, okB := toNumber(condition.Value)
		return okA && okB && a > b

	case OperatorLessThan:
		a, okA := toNumber(fieldValue)
		b, okB := toNumber(condition.Value)
		return okA && okB && a < b

	default:
		return false
	}
}

// strictEquals compares without coercion across kinds. All numeric kinds are
// one kind here, since payloads decoded from JSON carry float64 while payloads
// built in Go may carry ints.
func strictEquals(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := numericValue(a); ok {
		nb, ok := numericValue(b)
		return ok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// numericValue accepts only values whose dynamic type is a number
func numericValue(v interface{}) (float64, bool) {
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

// toNumber coerces numbers and numeric strings; anything else is not numeric
func toNumber(v interface{}) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, !math.IsNaN(n)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
