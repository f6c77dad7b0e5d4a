// Package toolexec implements the tool executor (C6): safe invocation
// with timeout and argument validation, sequential or parallel
// multi-call dispatch, and an execution-record ring buffer with
// aggregate statistics.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-ai/reasonkit/llm"
	"github.com/tessera-ai/reasonkit/tool"
)

// MaxHistory is the ring-buffer capacity; the oldest record is dropped
// once exceeded.
const MaxHistory = 1000

// ExecutionRecord is one entry of tool telemetry.
type ExecutionRecord struct {
	ToolName      string
	Arguments     map[string]any
	Result        tool.Result
	ExecutionTime time.Duration
	Timestamp     time.Time
	Context       tool.ExecutionContext
}

// Executor dispatches tool invocations against a Registry, recording
// telemetry and enforcing per-call timeouts.
type Executor struct {
	registry *tool.Registry

	mu      sync.Mutex
	history []ExecutionRecord

	metrics *metrics
}

// New constructs an Executor bound to registry.
func New(registry *tool.Registry) *Executor {
	return &Executor{registry: registry, metrics: newMetrics()}
}

var (
	globalOnce     sync.Once
	globalExecutor *Executor
)

// GlobalExecutor returns a lazily-initialized, process-wide Executor
// bound to tool.GlobalRegistry(). Like that registry, it is a
// package-level convenience handle, not something the engine depends
// on internally.
func GlobalExecutor() *Executor {
	globalOnce.Do(func() { globalExecutor = New(tool.GlobalRegistry()) })
	return globalExecutor
}

// Execute looks up name, invokes SafeExecute, and records the outcome.
func (e *Executor) Execute(ctx context.Context, name string, arguments map[string]any, ec tool.ExecutionContext, timeout time.Duration) tool.Result {
	start := time.Now()

	t, err := e.registry.Get(name)
	if err != nil {
		result := tool.ErrorResult(fmt.Sprintf("Tool '%s' not found in registry", name), nil)
		e.record(name, arguments, result, 0, ec)
		return result
	}

	slog.Info("executing tool", "tool", name, "arguments", arguments)

	result := tool.SafeExecute(ctx, t, arguments, ec, timeout)

	elapsed := time.Since(start)
	e.record(name, arguments, result, elapsed, ec)
	e.metrics.observe(name, result.Success, elapsed)

	slog.Info("tool executed", "tool", name, "duration", elapsed, "success", result.Success)

	return result
}

// ExecuteMultiple fans calls out either sequentially or concurrently.
// Concurrent mode dispatches all calls simultaneously and collects
// results preserving the input order.
func (e *Executor) ExecuteMultiple(ctx context.Context, calls []llm.ToolCall, ec tool.ExecutionContext, parallel bool, timeout time.Duration) ([]tool.Result, error) {
	results := make([]tool.Result, len(calls))

	if !parallel {
		for i, call := range calls {
			args, err := call.Args()
			if err != nil {
				results[i] = tool.ErrorResult(fmt.Sprintf("Failed to parse arguments: %s", err), nil)
				continue
			}
			results[i] = e.Execute(ctx, call.Name, args, ec, timeout)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			args, err := call.Args()
			if err != nil {
				results[i] = tool.ErrorResult(fmt.Sprintf("Failed to parse arguments: %s", err), nil)
				return nil
			}
			results[i] = e.Execute(gctx, call.Name, args, ec, timeout)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ExecuteFromLLMCall accepts a tool call whose arguments may still be a
// JSON string, decodes it, and dispatches.
func (e *Executor) ExecuteFromLLMCall(ctx context.Context, call llm.ToolCall, ec tool.ExecutionContext, timeout time.Duration) tool.Result {
	var arguments map[string]any

	switch v := call.Arguments.(type) {
	case nil:
		arguments = map[string]any{}
	case map[string]any:
		arguments = v
	case string:
		raw := v
		if raw == "" {
			raw = "{}"
		}
		if err := json.Unmarshal([]byte(raw), &arguments); err != nil {
			return tool.ErrorResult(fmt.Sprintf("Failed to parse arguments: %s", err), nil)
		}
	default:
		decoded, err := call.Args()
		if err != nil {
			return tool.ErrorResult(fmt.Sprintf("Failed to parse arguments: %s", err), nil)
		}
		arguments = decoded
	}

	return e.Execute(ctx, call.Name, arguments, ec, timeout)
}

func (e *Executor) record(name string, arguments map[string]any, result tool.Result, elapsed time.Duration, ec tool.ExecutionContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, ExecutionRecord{
		ToolName:      name,
		Arguments:     arguments,
		Result:        result,
		ExecutionTime: elapsed,
		Timestamp:     time.Now(),
		Context:       ec,
	})

	if len(e.history) > MaxHistory {
		e.history = e.history[len(e.history)-MaxHistory:]
	}
}

// Filter selects a subset of History by tool name and/or a record-count
// limit (the Limit most recent records are kept, returned oldest first).
type Filter struct {
	ToolName string
	Limit    int
}

// History returns execution records matching filter.
func (e *Executor) History(filter Filter) []ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	records := e.history
	if filter.ToolName != "" {
		filtered := make([]ExecutionRecord, 0, len(records))
		for _, r := range records {
			if r.ToolName == filter.ToolName {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[len(records)-filter.Limit:]
	}

	out := make([]ExecutionRecord, len(records))
	copy(out, records)
	return out
}

func (e *Executor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// ToolStats is the per-tool breakdown in Statistics.
type ToolStats struct {
	Count           int
	Success         int
	Failed          int
	AverageDuration time.Duration
}

// Statistics is the aggregate view over the execution history.
type Statistics struct {
	Total              int
	Successful         int
	Failed             int
	SuccessRate        float64
	AverageDuration    time.Duration
	ByTool             map[string]ToolStats
}

// Statistics computes aggregate stats over the current history.
func (e *Executor) Statistics() Statistics {
	e.mu.Lock()
	records := make([]ExecutionRecord, len(e.history))
	copy(records, e.history)
	e.mu.Unlock()

	if len(records) == 0 {
		return Statistics{ByTool: map[string]ToolStats{}}
	}

	var successful int
	var totalDuration time.Duration
	byTool := make(map[string]ToolStats)

	for _, r := range records {
		if r.Result.Success {
			successful++
		}
		totalDuration += r.ExecutionTime

		st := byTool[r.ToolName]
		st.Count++
		if r.Result.Success {
			st.Success++
		} else {
			st.Failed++
		}
		st.AverageDuration += r.ExecutionTime
		byTool[r.ToolName] = st
	}

	for name, st := range byTool {
		if st.Count > 0 {
			st.AverageDuration /= time.Duration(st.Count)
		}
		byTool[name] = st
	}

	total := len(records)
	return Statistics{
		Total:           total,
		Successful:      successful,
		Failed:          total - successful,
		SuccessRate:     float64(successful) / float64(total),
		AverageDuration: totalDuration / time.Duration(total),
		ByTool:          byTool,
	}
}
