// Package reasoning drives the iteration-bounded Thought→Action→
// Observation loop: it submits provider requests, dispatches tool
// calls, appends steps to a chain, and terminates on a fixed set of
// stop conditions.
package reasoning

import "time"

type StepType string

const (
	StepThought     StepType = "thought"
	StepToolCall    StepType = "tool_call"
	StepToolResult  StepType = "tool_result"
	StepObservation StepType = "observation"
	StepAnswer      StepType = "answer"
	StepError       StepType = "error"
)

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusCompleted  StepStatus = "completed"
	StatusFailed     StepStatus = "failed"
)

// ToolCallStep records a tool invocation's name, arguments, and the
// provider-issued call ID it answers.
type ToolCallStep struct {
	ToolName   string
	Arguments  map[string]any
	ToolCallID string
}

// ToolResultStep records a tool invocation's outcome.
type ToolResultStep struct {
	ToolName      string
	ToolCallID    string
	Success       bool
	Output        any
	Error         string
	ExecutionTime time.Duration
}

// ReasoningStep is a single append-only entry in a ReasoningChain.
type ReasoningStep struct {
	StepID     string
	StepType   StepType
	Status     StepStatus
	Content    string
	ToolCall   *ToolCallStep
	ToolResult *ToolResultStep
	Timestamp  time.Time
	Metadata   map[string]any
}

// ReasoningChain is the append-only record of one solve() call.
// Steps must never be removed or reordered once appended.
type ReasoningChain struct {
	ChainID     string
	Task        string
	Steps       []ReasoningStep
	Status      StepStatus
	FinalAnswer string
	StartedAt   time.Time
	CompletedAt time.Time
	Metadata    map[string]any
}

func (c *ReasoningChain) addStep(step ReasoningStep) {
	c.Steps = append(c.Steps, step)
}

func (c *ReasoningChain) lastStep() (ReasoningStep, bool) {
	if len(c.Steps) == 0 {
		return ReasoningStep{}, false
	}
	return c.Steps[len(c.Steps)-1], true
}

func (c *ReasoningChain) stepsByType(t StepType) []ReasoningStep {
	var out []ReasoningStep
	for _, s := range c.Steps {
		if s.StepType == t {
			out = append(out, s)
		}
	}
	return out
}

func (c *ReasoningChain) isComplete() bool {
	return c.Status == StatusCompleted || c.Status == StatusFailed
}

func (c *ReasoningChain) toolCallCount() int {
	return len(c.stepsByType(StepToolCall))
}

func (c *ReasoningChain) executionTime() time.Duration {
	if c.StartedAt.IsZero() || c.CompletedAt.IsZero() {
		return 0
	}
	return c.CompletedAt.Sub(c.StartedAt)
}

// StopReason is why a chain's loop exited.
type StopReason string

const (
	StopCompleted     StopReason = "completed"
	StopMaxIterations StopReason = "max_iterations"
	StopMaxToolCalls  StopReason = "max_tool_calls"
	StopTimeout       StopReason = "timeout"
	StopError         StopReason = "error"
	// StopUserInterrupt and StopNoProgress are reserved stop reasons:
	// the design leaves room for them but nothing in this engine
	// raises them today.
	StopUserInterrupt StopReason = "user_interrupt"
	StopNoProgress    StopReason = "no_progress"
)

// Config configures a single Engine.Solve call.
type Config struct {
	MaxIterations int
	MaxToolCalls  int
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	StopPhrases   []string
	Verbose       bool
}

// DefaultStopPhrases mirrors the original prototype's English and
// Chinese terminal markers.
var DefaultStopPhrases = []string{
	"Final Answer:",
	"FINAL ANSWER:",
	"最终答案：",
	"答案：",
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		MaxToolCalls:  20,
		Timeout:       300 * time.Second,
		Temperature:   0.7,
		MaxTokens:     2000,
		StopPhrases:   DefaultStopPhrases,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxToolCalls <= 0 {
		c.MaxToolCalls = d.MaxToolCalls
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if len(c.StopPhrases) == 0 {
		c.StopPhrases = d.StopPhrases
	}
}

// Stats summarizes a finished chain.
type Stats struct {
	TotalSteps    int
	ToolCalls     int
	ExecutionTime time.Duration
	Iterations    int
}

// Result is the outcome of a Solve call.
type Result struct {
	Chain       ReasoningChain
	Success     bool
	FinalAnswer string
	StopReason  StopReason
	Error       string
	Stats       Stats
}

func resultFromChain(chain ReasoningChain, stopReason StopReason, errMsg string) Result {
	return Result{
		Chain:       chain,
		Success:     stopReason == StopCompleted && errMsg == "",
		FinalAnswer: chain.FinalAnswer,
		StopReason:  stopReason,
		Error:       errMsg,
		Stats: Stats{
			TotalSteps:    len(chain.Steps),
			ToolCalls:     chain.toolCallCount(),
			ExecutionTime: chain.executionTime(),
			Iterations:    len(chain.stepsByType(StepThought)),
		},
	}
}

// StepObserver is invoked after every step append. It must not mutate
// the chain; the engine recovers panics and logs errors from it
// rather than letting them interrupt the reasoning loop.
type StepObserver func(ReasoningStep)
