package llm

// GrokAdapter is Dialect D: structurally identical to Dialect A, served
// from a different host. It is OpenAIAdapter configured against xAI's
// OpenAI-compatible endpoint rather than a distinct wire codec.
type GrokAdapter = OpenAIAdapter

func NewGrokProvider(apiKey, model string) *GrokAdapter {
	return newOpenAICompatible("grok", apiKey, model, "https://api.x.ai")
}
