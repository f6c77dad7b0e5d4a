package llm

import (
	"context"
	"iter"
	"strconv"
)

// Adapter is the per-provider translator between the unified schema and
// a concrete wire dialect. Every method that touches the network must be
// called within an open HTTP scope (see Open/Close below); calling one
// outside a scope returns precondition_violated.
type Adapter interface {
	ProviderName() string
	SupportedModels() []string
	SupportsToolCalling() bool
	SupportsStructuredOutput() bool

	// Open acquires the adapter's HTTP client scope. Must be paired with
	// Close on every exit path.
	Open()
	Close() error

	Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error)

	// StreamComplete returns a lazy, restartable-per-call sequence of
	// chunks. The underlying HTTP scope stays open until the consumer
	// drains the sequence or ctx is cancelled.
	StreamComplete(ctx context.Context, req LLMRequest) iter.Seq[StreamChunk]
}

// synthesizeToolCallID produces a deterministic fallback ID for backends
// that don't echo one back.
func synthesizeToolCallID(index int) string {
	return "call_" + strconv.Itoa(index)
}
