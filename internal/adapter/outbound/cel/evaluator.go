// Package cel provides a CEL-based product filter.
//
// Filters are boolean expressions over the variables sku, name and
// price_cents, for example:
//
//	price_cents < 1000 && name.startsWith("Tea")
package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/catalog"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/failure"
)

// maxExpressionLength is the maximum allowed length for filter expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles product filter expressions.
type Evaluator struct {
	env *cel.Env
}

// NewProductEnvironment creates the CEL environment filters are checked against.
func NewProductEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("sku", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("price_cents", cel.IntType),
	)
}

// NewEvaluator creates a new filter evaluator.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewProductEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create product environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile validates expr and returns a predicate over products. Every
// rejection is a failure.ErrInvalidArgument error.
func (e *Evaluator) Compile(expr string) (catalog.Predicate, error) {
	if err := validate(expr); err != nil {
		return nil, failure.InvalidArgument("filter: %w", err)
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, failure.InvalidArgument("filter: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, failure.InvalidArgument("filter must be a boolean expression, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, failure.InvalidArgument("filter: %w", err)
	}

	return func(ctx context.Context, p catalog.Product) (bool, error) {
		return evaluate(ctx, prg, p)
	}, nil
}

func evaluate(ctx context.Context, prg cel.Program, p catalog.Product) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, map[string]any{
		"sku":         p.SKU,
		"name":        p.Name,
		"price_cents": p.PriceCents,
	})
	if err != nil {
		return false, failure.InvalidArgument("filter evaluation failed: %w", err)
	}

	match, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter did not return a boolean, got %T", result.Value())
	}
	return match, nil
}

func validate(expr string) error {
	if expr == "" {
		return fmt.Errorf("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	return validateNesting(expr)
}

// validateNesting checks that the expression does not exceed the maximum
// nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

var _ catalog.Filter = (*Evaluator)(nil)
