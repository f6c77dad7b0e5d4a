package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/reasonkit/internal/httpclient"
	"github.com/tessera-ai/reasonkit/tool"
)

func newWebSearchTestTool(t *testing.T, handler http.HandlerFunc) (*WebSearchTool, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	w := NewWebSearchTool(httpclient.Open())
	w.baseURL = srv.URL + "/"
	return w, srv.Close
}

func TestWebSearchReturnsAbstractAndRelatedTopics(t *testing.T) {
	w, closeSrv := newWebSearchTestTool(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		_, _ = rw.Write([]byte(`{
			"Heading": "Go",
			"Abstract": "Go is a programming language.",
			"AbstractURL": "https://go.dev",
			"AbstractSource": "Wikipedia",
			"RelatedTopics": [
				{"Text": "Gopher - a mascot", "FirstURL": "https://go.dev/gopher"}
			]
		}`))
	})
	defer closeSrv()

	res, err := w.Execute(context.Background(), map[string]any{"query": "golang"}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	results, ok := res.Output.([]searchResult)
	require.True(t, ok)
	require.Len(t, results, 2)

	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "Wikipedia", results[0].Source)
	assert.Equal(t, "Gopher", results[1].Title)
}

func TestWebSearchEmptyQuery(t *testing.T) {
	w := NewWebSearchTool(httpclient.Open())
	res, err := w.Execute(context.Background(), map[string]any{"query": "  "}, tool.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, res.Success, "expected empty query to fail")
}

func TestWebSearchNumResultsOutOfRange(t *testing.T) {
	w := NewWebSearchTool(httpclient.Open())
	res, err := w.Execute(context.Background(), map[string]any{"query": "x", "num_results": float64(50)}, tool.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, res.Success, "expected out-of-range num_results to fail")
}

func TestWebSearchNumResultsCapsResultCount(t *testing.T) {
	w, closeSrv := newWebSearchTestTool(t, func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`{
			"RelatedTopics": [
				{"Text": "one", "FirstURL": "https://a"},
				{"Text": "two", "FirstURL": "https://b"},
				{"Text": "three", "FirstURL": "https://c"}
			]
		}`))
	})
	defer closeSrv()

	res, err := w.Execute(context.Background(), map[string]any{"query": "x", "num_results": float64(2)}, tool.ExecutionContext{})
	require.NoError(t, err)
	results := res.Output.([]searchResult)
	assert.Len(t, results, 2)
}

func TestWebSearchNonOKStatus(t *testing.T) {
	w, closeSrv := newWebSearchTestTool(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	})
	defer closeSrv()

	res, err := w.Execute(context.Background(), map[string]any{"query": "x"}, tool.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, res.Success, "expected non-200 response to fail")
}
