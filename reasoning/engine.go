package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-ai/reasonkit/conversation"
	"github.com/tessera-ai/reasonkit/llm"
	"github.com/tessera-ai/reasonkit/tool"
	"github.com/tessera-ai/reasonkit/toolexec"
)

var tracer = otel.Tracer("reasonkit/reasoning")

// perToolTimeout is the per-tool-call execution budget, fixed
// regardless of the chain-level Config.Timeout.
const perToolTimeout = 30 * time.Second

// Engine runs the ReAct loop: it alternates provider calls with tool
// dispatch against a single ReasoningChain until a termination
// predicate fires.
type Engine struct {
	provider llm.Adapter
	executor *toolexec.Executor
	registry *tool.Registry
	config   Config

	mu       sync.RWMutex
	observer StepObserver
}

// New constructs an Engine. provider must already be Open()-able by
// the caller; the engine calls Open/Close once per Solve call so a
// single Engine can serve many concurrent chains.
func New(provider llm.Adapter, executor *toolexec.Executor, registry *tool.Registry, cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{
		provider: provider,
		executor: executor,
		registry: registry,
		config:   cfg,
	}
}

// SetStepObserver installs (or clears, with nil) the step-event
// callback. Safe to call concurrently with Solve.
func (e *Engine) SetStepObserver(observer StepObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = observer
}

func (e *Engine) notify(step ReasoningStep) {
	e.mu.RLock()
	observer := e.observer
	e.mu.RUnlock()

	if observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in reasoning step observer", "recovered", r)
		}
	}()
	observer(step)
}

// Solve runs the ReAct loop for task, returning once a termination
// predicate fires or ctx is cancelled.
func (e *Engine) Solve(ctx context.Context, task string, taskContext map[string]any, model string) Result {
	ctx, span := tracer.Start(ctx, "reasoning.Solve", trace.WithAttributes(
		attribute.String("reasonkit.task", task),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	chain := ReasoningChain{
		ChainID:   uuid.NewString(),
		Task:      task,
		Status:    StatusInProgress,
		StartedAt: time.Now(),
		Metadata:  taskContext,
	}

	availableTools := toolNames(e.registry)
	systemMessage := conversation.CreateReActSystemMessage(availableTools)
	conv := conversation.New(
		conversation.WithSystemMessage(systemMessage),
		conversation.WithMaxMessages(e.config.MaxIterations*4),
	)
	conv.AddUserMessage(task)

	toolDefinitions := toolDefinitionsFrom(e.registry)

	e.provider.Open()
	defer e.provider.Close()

	stopReason, errMsg := e.loop(ctx, &chain, conv, toolDefinitions, model)

	chain.CompletedAt = time.Now()
	if stopReason == StopCompleted {
		chain.Status = StatusCompleted
	} else {
		chain.Status = StatusFailed
	}

	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.SetAttributes(attribute.String("reasonkit.stop_reason", string(stopReason)))

	return resultFromChain(chain, stopReason, errMsg)
}

func (e *Engine) loop(ctx context.Context, chain *ReasoningChain, conv *conversation.Manager, toolDefinitions []llm.ToolDefinition, model string) (StopReason, string) {
	for iteration := 0; iteration < e.config.MaxIterations; iteration++ {
		if e.config.Verbose {
			slog.Info("reasoning iteration", "chain", chain.ChainID, "iteration", iteration+1, "of", e.config.MaxIterations)
		}

		if reason, stop := e.checkStopConditions(chain); stop {
			return reason, ""
		}

		select {
		case <-ctx.Done():
			return StopTimeout, ""
		default:
		}

		response, err := e.getLLMResponse(ctx, conv, toolDefinitions, model)
		if err != nil {
			if ctx.Err() != nil {
				return StopTimeout, ""
			}
			errMsg := fmt.Sprintf("error during reasoning: %s", err)
			e.appendStep(chain, ReasoningStep{
				StepID:    uuid.NewString(),
				StepType:  StepError,
				Status:    StatusFailed,
				Content:   errMsg,
				Timestamp: time.Now(),
			})
			return StopError, errMsg
		}

		assistant := response.Message

		if assistant.Content != "" {
			if answer, ok := conversation.ExtractFinalAnswer(assistant.Content, e.config.StopPhrases); ok {
				e.appendStep(chain, ReasoningStep{
					StepID:    uuid.NewString(),
					StepType:  StepAnswer,
					Status:    StatusCompleted,
					Content:   answer,
					Timestamp: time.Now(),
				})
				chain.FinalAnswer = answer
				return StopCompleted, ""
			}

			e.appendStep(chain, ReasoningStep{
				StepID:    uuid.NewString(),
				StepType:  StepThought,
				Status:    StatusCompleted,
				Content:   assistant.Content,
				Timestamp: time.Now(),
			})
		}

		conv.AddAssistantMessage(assistant.Content, assistant.ToolCalls)

		if len(assistant.ToolCalls) > 0 {
			e.handleToolCalls(ctx, chain, conv, assistant.ToolCalls)
		} else if iteration >= e.config.MaxIterations-1 {
			return StopMaxIterations, ""
		}
	}

	return StopMaxIterations, ""
}

func (e *Engine) getLLMResponse(ctx context.Context, conv *conversation.Manager, toolDefinitions []llm.ToolDefinition, model string) (*llm.LLMResponse, error) {
	req := llm.LLMRequest{
		Model:       model,
		Messages:    conv.Messages(),
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
	}
	if len(toolDefinitions) > 0 {
		req.Tools = toolDefinitions
		req.ToolChoice = &llm.ToolChoice{Mode: "auto"}
	}
	return e.provider.Complete(ctx, req)
}

func (e *Engine) handleToolCalls(ctx context.Context, chain *ReasoningChain, conv *conversation.Manager, calls []llm.ToolCall) {
	for _, call := range calls {
		args, _ := call.Args()

		e.appendStep(chain, ReasoningStep{
			StepID:   uuid.NewString(),
			StepType: StepToolCall,
			Status:   StatusInProgress,
			ToolCall: &ToolCallStep{
				ToolName:   call.Name,
				Arguments:  args,
				ToolCallID: call.ID,
			},
			Timestamp: time.Now(),
		})

		start := time.Now()
		result := e.executor.Execute(ctx, call.Name, args, tool.ExecutionContext{}, perToolTimeout)
		elapsed := time.Since(start)

		content := conversation.FormatToolResultForLLM(call.Name, result.Success, result.Output, result.Error)

		e.appendStep(chain, ReasoningStep{
			StepID:   uuid.NewString(),
			StepType: StepToolResult,
			Status:   StatusCompleted,
			Content:  content,
			ToolResult: &ToolResultStep{
				ToolName:      call.Name,
				ToolCallID:    call.ID,
				Success:       result.Success,
				Output:        result.Output,
				Error:         result.Error,
				ExecutionTime: elapsed,
			},
			Timestamp: time.Now(),
		})

		conv.AddToolResult(call.ID, call.Name, content)
	}
}

func (e *Engine) checkStopConditions(chain *ReasoningChain) (StopReason, bool) {
	if chain.toolCallCount() >= e.config.MaxToolCalls {
		return StopMaxToolCalls, true
	}
	if chain.isComplete() {
		return StopCompleted, true
	}
	return StopCompleted, false
}

func (e *Engine) appendStep(chain *ReasoningChain, step ReasoningStep) {
	chain.addStep(step)
	e.notify(step)
}

func toolNames(registry *tool.Registry) []string {
	tools := registry.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

func toolDefinitionsFrom(registry *tool.Registry) []llm.ToolDefinition {
	schemas := registry.ExportSchemas()
	out := make([]llm.ToolDefinition, len(schemas))
	for i, s := range schemas {
		out[i] = llm.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out
}
