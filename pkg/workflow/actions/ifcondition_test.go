package actions

import (
	"context"
	"testing"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/execstate"
)

func TestExecuteConditionTyping(t *testing.T) {
	tests := []struct {
		name     string
		lhs, rhs interface{}
		operator string
		want     bool
		wantErr  bool
	}{
		{name: "numbers less than", lhs: float64(10), rhs: float64(20), operator: "LESS_THAN", want: true},
		{name: "numbers greater than", lhs: float64(10), rhs: float64(20), operator: "GREATER_THAN", want: false},
		{name: "numbers equal", lhs: float64(10), rhs: float64(10), operator: "EQUALS", want: true},
		{name: "string numbers promote to numeric", lhs: "20", rhs: "34", operator: "LESS_THAN", want: true},
		{name: "string numbers not lexicographic", lhs: "100", rhs: "34", operator: "LESS_THAN", want: false},
		{name: "string number vs number", lhs: "10", rhs: float64(10), operator: "EQUALS", want: true},
		{name: "bool vs bool string", lhs: true, rhs: "true", operator: "EQUALS", want: true},
		{name: "bool vs uppercase bool string", lhs: true, rhs: "TRUE", operator: "EQUALS", want: true},
		{name: "plain strings equal", lhs: "test", rhs: "test", operator: "EQUALS", want: true},
		{name: "plain strings not equal", lhs: "test", rhs: "diff", operator: "NOT_EQUALS", want: true},
		{name: "string vs number string mismatch", lhs: "test", rhs: "1234", operator: "EQUALS", want: false},
		{name: "bools ordered", lhs: true, rhs: false, operator: "GREATER_THAN", want: true},
		{name: "float int promotion", lhs: 10.0, rhs: float64(10), operator: "EQUALS", want: true},
		{name: "bool promotes to number", lhs: false, rhs: float64(10), operator: "LESS_THAN", want: true},
		{name: "true is one", lhs: true, rhs: float64(0), operator: "GREATER_THAN", want: true},
		{name: "number vs string mixes textually", lhs: float64(7), rhs: "x7", operator: "EQUALS", want: false},
		{
			name:     "arrays are invalid",
			lhs:      []interface{}{1.0, 2.0, 3.0},
			rhs:      []interface{}{1.0, 2.0, 3.0},
			operator: "EQUALS",
			wantErr:  true,
		},
		{name: "null is invalid", lhs: nil, rhs: "x", operator: "EQUALS", wantErr: true},
		{
			name:     "objects are invalid",
			lhs:      map[string]interface{}{"a": 1.0},
			rhs:      map[string]interface{}{"a": 1.0},
			operator: "EQUALS",
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := executeCondition(tc.lhs, tc.rhs, tc.operator)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if !apperr.Is(err, apperr.InvalidComparison) {
					t.Fatalf("expected InvalidComparison, got %s", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != tc.want {
				t.Fatalf("executeCondition(%v, %v, %s) = %v, want %v", tc.lhs, tc.rhs, tc.operator, got, tc.want)
			}
		})
	}
}

func TestIfConditionShortCircuit(t *testing.T) {
	ec := &ExecContext{State: execstate.New()}

	// The second condition is false, so the invalid third condition is
	// never evaluated.
	node := IfCondition{Conditions: []ConditionExpression{
		{LHS: true, RHS: true, Operator: "EQUALS"},
		{LHS: float64(1), RHS: float64(2), Operator: "EQUALS"},
		{LHS: []interface{}{1.0}, RHS: []interface{}{1.0}, Operator: "EQUALS"},
	}}

	output, err := node.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	result := output.(map[string]interface{})
	if result["condition_result"] != false {
		t.Fatalf("condition_result = %v, want false", result["condition_result"])
	}
}

func TestIfConditionEmptyListIsTrue(t *testing.T) {
	ec := &ExecContext{State: execstate.New()}
	output, err := IfCondition{}.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if output.(map[string]interface{})["condition_result"] != true {
		t.Fatal("empty condition list should evaluate to true")
	}
}

func TestIfConditionResolvesReferences(t *testing.T) {
	state := execstate.New()
	state.Store("A", map[string]interface{}{"x": float64(1)})
	ec := &ExecContext{State: state}

	node := IfCondition{Conditions: []ConditionExpression{
		{LHS: "<<A.x>>", RHS: float64(1), Operator: "EQUALS"},
	}}
	output, err := node.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if output.(map[string]interface{})["condition_result"] != true {
		t.Fatal("reference-resolved condition should be true")
	}
}
