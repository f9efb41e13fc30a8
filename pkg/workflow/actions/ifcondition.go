package actions

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

// ConditionExpression is one binary comparison; both operands may
// contain reference templates.
type ConditionExpression struct {
	LHS      interface{} `json:"lhs"`
	RHS      interface{} `json:"rhs"`
	Operator string      `json:"operator" validate:"required,oneof=EQUALS NOT_EQUALS GREATER_THAN GREATER_THAN_OR_EQUAL LESS_THAN LESS_THAN_OR_EQUAL"`
}

// IfCondition evaluates conditions[0] AND conditions[1] ... AND
// conditions[n-1] with short-circuit: the first false stops evaluation.
type IfCondition struct {
	Conditions []ConditionExpression `json:"conditions" validate:"dive"`
}

func (c IfCondition) Execute(_ context.Context, ec *ExecContext) (interface{}, error) {
	result := true
	for _, expr := range c.Conditions {
		lhs := refresolve.Resolve(expr.LHS, ec.State)
		rhs := refresolve.Resolve(expr.RHS, ec.State)

		var err error
		result, err = executeCondition(lhs, rhs, expr.Operator)
		if err != nil {
			return nil, err
		}
		if !result {
			break
		}
	}
	return map[string]interface{}{"condition_result": result}, nil
}

// castDown narrows a string operand as far as possible: "true"/"false"
// (case-insensitive) to bool, then signed-64-bit integer, then float.
// Non-strings pass through untouched.
func castDown(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}

	lowered := strings.ToLower(s)
	if lowered == "true" || lowered == "false" {
		return lowered == "true"
	}
	if n, err := strconv.ParseInt(lowered, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(lowered, 64); err == nil {
		return f
	}
	return value
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func isIntegral(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n <= math.MaxInt64 {
			return int64(n), true
		}
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	}
	return 0
}

// canonicalString renders a bool, number, or string operand as its
// textual form for string-typed comparison.
func canonicalString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func compareOrdered[T int64 | float64 | string](lhs, rhs T, operator string) bool {
	switch operator {
	case "EQUALS":
		return lhs == rhs
	case "NOT_EQUALS":
		return lhs != rhs
	case "GREATER_THAN":
		return lhs > rhs
	case "GREATER_THAN_OR_EQUAL":
		return lhs >= rhs
	case "LESS_THAN":
		return lhs < rhs
	case "LESS_THAN_OR_EQUAL":
		return lhs <= rhs
	}
	return false
}

func compareBools(lhs, rhs bool, operator string) bool {
	toInt := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	return compareOrdered(toInt(lhs), toInt(rhs), operator)
}

// executeCondition applies the operand typing rules: both sides are
// first cast down, then both bool means bool comparison, bool/number
// mixes promote to numeric (integer-preserving), any remaining mix of
// string/bool/number compares textually, and arrays/objects/nulls are
// invalid.
func executeCondition(lhs, rhs interface{}, operator string) (bool, error) {
	lhs = castDown(lhs)
	rhs = castDown(rhs)

	lhsBool, lhsIsBool := lhs.(bool)
	rhsBool, rhsIsBool := rhs.(bool)
	_, lhsIsString := lhs.(string)
	_, rhsIsString := rhs.(string)

	switch {
	case lhsIsBool && rhsIsBool:
		return compareBools(lhsBool, rhsBool, operator), nil

	case (lhsIsBool || isNumber(lhs)) && (rhsIsBool || isNumber(rhs)):
		lhsInt, lhsIntegral := isIntegral(lhs)
		rhsInt, rhsIntegral := isIntegral(rhs)
		if lhsIntegral && rhsIntegral {
			return compareOrdered(lhsInt, rhsInt, operator), nil
		}
		return compareOrdered(toFloat(lhs), toFloat(rhs), operator), nil

	case (lhsIsString || lhsIsBool || isNumber(lhs)) && (rhsIsString || rhsIsBool || isNumber(rhs)):
		return compareOrdered(canonicalString(lhs), canonicalString(rhs), operator), nil

	default:
		return false, apperr.New(apperr.InvalidComparison, "Invalid comparison: %T %s %T", lhs, operator, rhs)
	}
}
