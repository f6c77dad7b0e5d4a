// Package tool defines the contract every built-in and registered tool
// must satisfy (C4): name, description, JSON-Schema parameters, and a
// validated, timeout-bounded invocation, plus the name-keyed registry
// that catalogs tools for handoff to providers (C5).
package tool

import (
	"context"
	"fmt"
	"time"
)

// ExecutionContext carries caller-scoped metadata through to a tool's
// Execute call.
type ExecutionContext struct {
	UserID    string
	SessionID string
	Metadata  map[string]any
}

// Result is the envelope every tool invocation returns, success or
// failure alike — tools never return a bare Go error to their caller.
type Result struct {
	Success bool
	Output  any
	Error   string
	Metadata map[string]any
}

// SuccessResult builds a successful Result.
func SuccessResult(output any, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{Success: true, Output: output, Metadata: metadata}
}

// ErrorResult builds a failed Result.
func ErrorResult(err string, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{Success: false, Error: err, Metadata: metadata}
}

// String renders a Result the way it is embedded into a conversation
// message for the model to read.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprint(r.Output)
	}
	return "Error: " + r.Error
}

// Category groups related tools for Registry.ListByCategory.
type Category string

const (
	CategoryComputation    Category = "computation"
	CategoryFileSystem     Category = "file_system"
	CategoryNetwork        Category = "network"
	CategoryCodeExecution  Category = "code_execution"
	CategoryDataProcessing Category = "data_processing"
	CategoryUtilities      Category = "utilities"
)

// Tool is the contract every callable capability satisfies.
type Tool interface {
	Name() string
	Description() string
	// Parameters is a JSON-Schema object with at least type=object,
	// properties, and required.
	Parameters() map[string]any
	Execute(ctx context.Context, arguments map[string]any, ec ExecutionContext) (Result, error)
}

// DefaultTimeout is applied by SafeExecute when the caller doesn't
// specify one.
const DefaultTimeout = 30 * time.Second

// SafeExecute validates arguments against t's schema, enforces timeout
// via cooperative cancellation, and converts any unexpected failure
// into a failed Result — a validation miss or runtime panic never
// escapes as a thrown error.
func SafeExecute(ctx context.Context, t Tool, arguments map[string]any, ec ExecutionContext, timeout time.Duration) (result Result) {
	if err := ValidateArguments(t.Parameters(), arguments); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments for tool '%s': %s", t.Name(), err), nil)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := t.Execute(runCtx, arguments, ec)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-runCtx.Done():
		if runCtx.Err() == context.DeadlineExceeded {
			return ErrorResult(fmt.Sprintf("Tool execution timed out after %s", timeout), nil)
		}
		return ErrorResult(fmt.Sprintf("Tool execution failed: %s", runCtx.Err()), nil)
	case o := <-done:
		if o.err != nil {
			return ErrorResult(fmt.Sprintf("Tool execution failed: %s", o.err), nil)
		}
		return o.result
	}
}
