package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterDuplicateWithoutOverride(t *testing.T) {
	r := NewRegistry()
	t1 := &stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}
	t2 := &stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}
	require.NoError(t, r.Register(t1, CategoryComputation, false))
	assert.Error(t, r.Register(t2, CategoryComputation, false))
}

func TestRegistryRegisterDuplicateWithOverride(t *testing.T) {
	r := NewRegistry()
	t1 := &stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}
	t2 := &stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}
	_ = r.Register(t1, CategoryComputation, false)
	require.NoError(t, r.Register(t2, CategoryComputation, true))

	got, err := r.Get("calc")
	require.NoError(t, err)
	assert.Equal(t, Tool(t2), got, "expected the overriding registration to win")
}

func TestRegistryRegisterEmptyName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&stubTool{name: ""}, "", false))
}

func TestRegistryGetNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryListSortedByName(t *testing.T) {
	r := NewRegistry()
	names := []string{"zeta", "alpha", "mike"}
	for _, n := range names {
		_ = r.Register(&stubTool{name: n, schema: objectSchema(nil, map[string]any{})}, CategoryUtilities, false)
	}
	list := r.List()
	require.Len(t, list, 3)

	want := []string{"alpha", "mike", "zeta"}
	for i, tl := range list {
		assert.Equal(t, want[i], tl.Name())
	}
}

func TestRegistryListByCategory(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}, CategoryComputation, false)
	_ = r.Register(&stubTool{name: "search", schema: objectSchema(nil, map[string]any{})}, CategoryNetwork, false)

	comp := r.ListByCategory(CategoryComputation)
	require.Len(t, comp, 1)
	assert.Equal(t, "calc", comp[0].Name())
}

func TestRegistryUnregisterRemovesFromCategory(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "calc", schema: objectSchema(nil, map[string]any{})}, CategoryComputation, false)
	require.NoError(t, r.Unregister("calc"))

	assert.Empty(t, r.ListByCategory(CategoryComputation), "expected category membership to be cleared on unregister")

	_, err := r.Get("calc")
	assert.Error(t, err, "expected tool to be gone after unregister")
}

func TestRegistryExportSchemas(t *testing.T) {
	r := NewRegistry()
	schema := objectSchema([]any{"x"}, map[string]any{"x": map[string]any{"type": "string"}})
	_ = r.Register(&stubTool{name: "t1", schema: schema}, CategoryUtilities, false)

	entries := r.ExportSchemas()
	require.Len(t, entries, 1)
	assert.Equal(t, "t1", entries[0].Name)
}

func TestRegistryCount(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	_ = r.Register(&stubTool{name: "t1", schema: objectSchema(nil, map[string]any{})}, CategoryUtilities, false)
	assert.Equal(t, 1, r.Count())
}

func TestGlobalRegistryReturnsSameInstance(t *testing.T) {
	a := GlobalRegistry()
	b := GlobalRegistry()
	assert.Same(t, a, b, "expected GlobalRegistry to return the same process-wide instance")
}
