package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tessera-ai/reasonkit/tool"
)

// CalculatorTool evaluates a mathematical expression by walking a
// parsed, allow-listed AST (see calculator_ast.go / calculator_parser.go).
// No general-purpose expression library is used here deliberately: the
// allow-listed grammar is the security boundary, not a substitutable
// ambient concern (see DESIGN.md for the expr-lang/expr rejection rationale).
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (c *CalculatorTool) Name() string { return "calculator" }

func (c *CalculatorTool) Description() string {
	return "Evaluates a mathematical expression. Supports basic arithmetic, " +
		"trigonometric and logarithmic functions. Examples: '2 + 2', 'sqrt(16)', 'sin(pi/2)'."
}

func (c *CalculatorTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "The mathematical expression to evaluate, e.g. '2 + 2', 'sqrt(16)', 'sin(pi/2)'",
			},
		},
		"required": []any{"expression"},
	}
}

func (c *CalculatorTool) Execute(ctx context.Context, arguments map[string]any, ec tool.ExecutionContext) (tool.Result, error) {
	raw, _ := arguments["expression"].(string)
	expression := strings.TrimSpace(raw)
	if expression == "" {
		return tool.ErrorResult("expression must not be empty", nil), nil
	}

	node, err := parseExpression(expression)
	if err != nil {
		if errors.Is(err, errUnsafeExpression) {
			return tool.ErrorResult(fmt.Sprintf("unsafe_expression: %s", err), nil), nil
		}
		return tool.ErrorResult(fmt.Sprintf("syntax error: %s", err), nil), nil
	}

	value, err := node.eval()
	if err != nil {
		if errors.Is(err, errDivisionByZero) {
			return tool.ErrorResult("division_by_zero", nil), nil
		}
		if errors.Is(err, errUnsafeExpression) {
			return tool.ErrorResult(fmt.Sprintf("unsafe_expression: %s", err), nil), nil
		}
		return tool.ErrorResult(fmt.Sprintf("evaluation error: %s", err), nil), nil
	}

	return tool.SuccessResult(value, map[string]any{
		"expression":  expression,
		"result_type": resultType(value),
	}), nil
}

func resultType(v float64) string {
	if v == float64(int64(v)) && !strings.ContainsAny(strconv.FormatFloat(v, 'g', -1, 64), "eE") {
		return "int"
	}
	return "float"
}
