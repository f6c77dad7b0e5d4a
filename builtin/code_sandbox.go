package builtin

import (
	"context"
	"fmt"
	"strings"

	"go.starlark.net/lib/json"
	mathlib "go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/tessera-ai/reasonkit/tool"
)

// CodeSandboxTool executes a script in go.starlark.net, a Python-like
// language that is safe by construction (no reflection, no host
// filesystem/process primitives exist in the language at all). Before
// execution it still performs AST-level screening analogous to a
// Python sandbox's — module allow-listing, dangerous-call rejection,
// dunder-attribute rejection — adapted to Starlark's syntax tree
// (`load` takes the place of `import`).
type CodeSandboxTool struct{}

func NewCodeSandboxTool() *CodeSandboxTool { return &CodeSandboxTool{} }

func (c *CodeSandboxTool) Name() string { return "code_executor" }

func (c *CodeSandboxTool) Description() string {
	return "Executes code in a sandboxed environment. Supports a restricted subset of " +
		"standard library modules, with resource limits to ensure safety."
}

func (c *CodeSandboxTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The code to execute",
			},
			"language": map[string]any{
				"type":        "string",
				"enum":        []any{"python"},
				"description": "Programming language (only python is currently supported)",
			},
		},
		"required": []any{"code"},
	}
}

// sandboxAllowedModules mirrors code_executor.py's SAFE_MODULES, scoped
// to the modules go.starlark.net actually exposes.
var sandboxAllowedModules = map[string]bool{
	"math": true,
	"json": true,
	"time": true,
}

var sandboxDangerousCalls = map[string]bool{
	"exec": true, "eval": true, "compile": true, "__import__": true,
	"open": true, "input": true, "raw_input": true,
}

var sandboxDangerousAttrs = map[string]bool{
	"__dict__": true, "__class__": true, "__bases__": true,
	"__subclasses__": true, "__globals__": true, "__code__": true, "__closure__": true,
}

// screenSource walks the parsed syntax tree and rejects anything
// outside the allow-list, mirroring code_executor.py's _is_safe_code.
func screenSource(src string) error {
	file, err := syntax.Parse("<sandbox>", src, 0)
	if err != nil {
		return fmt.Errorf("unsafe_code: syntax error: %w", err)
	}

	var screenErr error
	syntax.Walk(file, func(n syntax.Node) bool {
		if screenErr != nil {
			return false
		}

		switch node := n.(type) {
		case *syntax.LoadStmt:
			module := strings.TrimSuffix(strings.TrimPrefix(node.Module.Value.(string), "./"), ".star")
			module = strings.SplitN(module, "/", 2)[0]
			if !sandboxAllowedModules[module] {
				screenErr = fmt.Errorf("unsafe_code: module %q is not in the allow-list", module)
				return false
			}
		case *syntax.CallExpr:
			if ident, ok := node.Fn.(*syntax.Ident); ok && sandboxDangerousCalls[ident.Name] {
				screenErr = fmt.Errorf("unsafe_code: call to %q is not permitted", ident.Name)
				return false
			}
		case *syntax.DotExpr:
			if sandboxDangerousAttrs[node.Name.Name] {
				screenErr = fmt.Errorf("unsafe_code: attribute access to %q is not permitted", node.Name.Name)
				return false
			}
		}
		return true
	})

	return screenErr
}

func (c *CodeSandboxTool) Execute(ctx context.Context, arguments map[string]any, ec tool.ExecutionContext) (tool.Result, error) {
	code, _ := arguments["code"].(string)
	code = strings.TrimSpace(code)
	language, _ := arguments["language"].(string)
	if language == "" {
		language = "python"
	}

	if code == "" {
		return tool.ErrorResult("code must not be empty", nil), nil
	}
	if language != "python" {
		return tool.ErrorResult(fmt.Sprintf("unsupported language: %s", language), nil), nil
	}

	if err := screenSource(code); err != nil {
		return tool.ErrorResult(err.Error(), nil), nil
	}

	var stdout strings.Builder
	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteString("\n")
		},
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(fmt.Sprintf("%s", ctx.Err()))
		case <-done:
		}
	}()
	defer close(done)

	predeclared := starlark.StringDict{
		"math": mathlib.Module,
		"json": json.Module,
		"time": time.Module,
	}

	// load('math', 'math') binds one of the predeclared modules under its
	// own name; screenSource has already rejected every other module.
	thread.Load = func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
		name := strings.TrimSuffix(strings.TrimPrefix(module, "./"), ".star")
		if v, ok := predeclared[name]; ok {
			return starlark.StringDict{name: v}, nil
		}
		return nil, fmt.Errorf("module %q is not available", module)
	}

	globals, err := starlark.ExecFile(thread, "<sandbox>", code, predeclared)
	if err != nil {
		if ee, ok := err.(*starlark.EvalError); ok {
			return tool.ErrorResult(fmt.Sprintf("runtime_error: %s", ee.Backtrace()), map[string]any{
				"stdout": stdout.String(),
			}), nil
		}
		return tool.ErrorResult(fmt.Sprintf("runtime_error: %s", err), map[string]any{
			"stdout": stdout.String(),
		}), nil
	}

	var outputParts []string
	if stdout.Len() > 0 {
		outputParts = append(outputParts, "output:\n"+stdout.String())
	}

	var resultValue starlark.Value
	if v, ok := globals["result"]; ok {
		resultValue = v
		outputParts = append(outputParts, "result: "+v.String())
	}

	if len(outputParts) == 0 {
		outputParts = append(outputParts, "code executed successfully (no output)")
	}

	metadata := map[string]any{"stdout": stdout.String()}
	if resultValue != nil {
		metadata["result"] = resultValue.String()
	}

	return tool.SuccessResult(strings.Join(outputParts, "\n\n"), metadata), nil
}
