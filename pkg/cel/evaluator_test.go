package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "equality", expr: `payload.event_type == "purchase"`},
		{name: "numeric comparison", expr: `payload.amount > 100.0`},
		{name: "combined", expr: `payload.country == "US" && payload.amount >= 10.0`},
		{name: "membership", expr: `payload.plan in ["pro", "team"]`},
		{name: "syntax error", expr: `payload.amount >>> 1`, wantError: true},
		{name: "undefined variable", expr: `event.amount > 1.0`, wantError: true},
		{name: "non-bool result", expr: `payload.amount`, wantError: true},
		{name: "string result", expr: `"purchase"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPredicateEval(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	payload := map[string]interface{}{
		"event_type": "purchase",
		"amount":     150.0,
		"user": map[string]interface{}{
			"tier": "premium",
		},
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "match", expr: `payload.event_type == "purchase"`, want: true},
		{name: "no match", expr: `payload.event_type == "signup"`, want: false},
		{name: "nested field", expr: `payload.user.tier == "premium" && payload.amount > 100.0`, want: true},
		{name: "has guard on missing field", expr: `has(payload.coupon) && payload.coupon == "X"`, want: false},
		{name: "missing field errors", expr: `payload.coupon == "X"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := eval.Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, pred.Source())

			got, err := pred.Eval(context.Background(), payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicateEval_NilPayload(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	pred, err := eval.Compile(`size(payload) == 0`)
	require.NoError(t, err)

	got, err := pred.Eval(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, got)
}
