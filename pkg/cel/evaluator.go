package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles boolean CEL predicates over an event payload, exposed
// to expressions as the variable "payload".
type Evaluator struct {
	env *cel.Env
}

// Predicate is a compiled, reusable boolean expression.
type Predicate struct {
	source  string
	program cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, err := e.checkBool(expression)
	return err
}

func (e *Evaluator) checkBool(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("predicate must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

func (e *Evaluator) Compile(expression string) (*Predicate, error) {
	ast, err := e.checkBool(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Predicate{source: expression, program: program}, nil
}

func (p *Predicate) Source() string {
	return p.source
}

func (p *Predicate) Eval(ctx context.Context, payload map[string]interface{}) (bool, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}

	result, _, err := p.program.ContextEval(ctx, map[string]interface{}{
		"payload": payload,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
