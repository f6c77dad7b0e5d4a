package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tessera-ai/reasonkit/internal/httpclient"
	"github.com/tessera-ai/reasonkit/tool"
)

// WebSearchTool is a thin wrapper over the DuckDuckGo Instant Answer
// API. It is specified only at the capability level — a real search
// integration is an external collaborator, not part of the reasoning
// engine's hard engineering.
type WebSearchTool struct {
	client  *httpclient.Client
	baseURL string
}

func NewWebSearchTool(client *httpclient.Client) *WebSearchTool {
	return &WebSearchTool{client: client, baseURL: "https://api.duckduckgo.com/"}
}

func (w *WebSearchTool) Name() string { return "web_search" }

func (w *WebSearchTool) Description() string {
	return "Searches the web for information. Returns titles, URLs, and snippets for matching results."
}

func (w *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
			"num_results": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default: 5, max: 20)",
			},
		},
		"required": []any{"query"},
	}
}

type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

type duckduckgoTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

type duckduckgoResponse struct {
	Heading        string            `json:"Heading"`
	Abstract       string            `json:"Abstract"`
	AbstractURL    string            `json:"AbstractURL"`
	AbstractSource string            `json:"AbstractSource"`
	RelatedTopics  []duckduckgoTopic `json:"RelatedTopics"`
}

func (w *WebSearchTool) Execute(ctx context.Context, arguments map[string]any, ec tool.ExecutionContext) (tool.Result, error) {
	query, _ := arguments["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return tool.ErrorResult("query must not be empty", nil), nil
	}

	numResults := 5
	if n, ok := arguments["num_results"].(float64); ok {
		numResults = int(n)
	}
	if numResults < 1 || numResults > 20 {
		return tool.ErrorResult("num_results must be between 1 and 20", nil), nil
	}

	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("search request failed: %s", err), nil), nil
	}

	resp, err := w.client.Do(ctx, req)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("search failed: %s", err), nil), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tool.ErrorResult(fmt.Sprintf("search request failed: HTTP %d", resp.StatusCode), nil), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("search failed: %s", err), nil), nil
	}

	var payload duckduckgoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return tool.ErrorResult(fmt.Sprintf("search failed: invalid response: %s", err), nil), nil
	}

	var results []searchResult
	if payload.Abstract != "" {
		heading := payload.Heading
		if heading == "" {
			heading = "Answer"
		}
		source := payload.AbstractSource
		if source == "" {
			source = "DuckDuckGo"
		}
		results = append(results, searchResult{
			Title:   heading,
			Snippet: payload.Abstract,
			URL:     payload.AbstractURL,
			Source:  source,
		})
	}

	for _, topic := range payload.RelatedTopics {
		if len(results) >= numResults {
			break
		}
		if topic.Text == "" {
			continue
		}
		title := "Related"
		if parts := strings.SplitN(topic.Text, " - ", 2); len(parts) == 2 {
			title = parts[0]
		}
		results = append(results, searchResult{
			Title:   title,
			Snippet: topic.Text,
			URL:     topic.FirstURL,
			Source:  "DuckDuckGo",
		})
	}

	if len(results) > numResults {
		results = results[:numResults]
	}

	return tool.SuccessResult(results, map[string]any{
		"query":       query,
		"num_results": len(results),
	}), nil
}
