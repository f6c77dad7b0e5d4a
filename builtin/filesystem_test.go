package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-ai/reasonkit/tool"
)

func newFSTestTool(t *testing.T, allowDelete bool) *FilesystemTool {
	t.Helper()
	dir := t.TempDir()
	ft, err := NewFilesystemTool(&FilesystemConfig{WorkspaceRoot: dir, AllowDelete: allowDelete})
	require.NoError(t, err)
	return ft
}

func TestFilesystemWriteThenRead(t *testing.T) {
	ft := newFSTestTool(t, false)
	ctx := context.Background()

	res, err := ft.Execute(ctx, map[string]any{"operation": "write", "path": "notes.txt", "content": "hello"}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = ft.Execute(ctx, map[string]any{"operation": "read", "path": "notes.txt"}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "hello", res.Output)
}

func TestFilesystemAppend(t *testing.T) {
	ft := newFSTestTool(t, false)
	ctx := context.Background()
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "log.txt", "content": "a"}, tool.ExecutionContext{})
	_, _ = ft.Execute(ctx, map[string]any{"operation": "append", "path": "log.txt", "content": "b"}, tool.ExecutionContext{})

	res, _ := ft.Execute(ctx, map[string]any{"operation": "read", "path": "log.txt"}, tool.ExecutionContext{})
	assert.Equal(t, "ab", res.Output)
}

func TestFilesystemPathEscapeViaDotDot(t *testing.T) {
	ft := newFSTestTool(t, false)
	res, err := ft.Execute(context.Background(), map[string]any{"operation": "read", "path": "../../etc/passwd"}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.False(t, res.Success, "expected path escape to be rejected")
	assert.Contains(t, res.Error, "path_escape")
}

func TestFilesystemPathEscapeViaSymlink(t *testing.T) {
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))

	dir := t.TempDir()
	linkPath := filepath.Join(dir, "escape")
	if err := os.Symlink(outside, linkPath); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	ft, err := NewFilesystemTool(&FilesystemConfig{WorkspaceRoot: dir})
	require.NoError(t, err)

	res, _ := ft.Execute(context.Background(), map[string]any{"operation": "read", "path": "escape/secret.txt"}, tool.ExecutionContext{})
	require.False(t, res.Success, "expected symlink-based escape to be rejected")
	assert.Contains(t, res.Error, "path_escape")
}

func TestFilesystemDeleteRequiresAllowDelete(t *testing.T) {
	ft := newFSTestTool(t, false)
	ctx := context.Background()
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "f.txt", "content": "x"}, tool.ExecutionContext{})

	res, _ := ft.Execute(ctx, map[string]any{"operation": "delete", "path": "f.txt"}, tool.ExecutionContext{})
	assert.False(t, res.Success, "expected delete to be rejected when AllowDelete is false")
}

func TestFilesystemDeleteNonEmptyDirectory(t *testing.T) {
	ft := newFSTestTool(t, true)
	ctx := context.Background()
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "dir/f.txt", "content": "x"}, tool.ExecutionContext{})

	res, _ := ft.Execute(ctx, map[string]any{"operation": "delete", "path": "dir"}, tool.ExecutionContext{})
	require.False(t, res.Success, "expected directory_not_empty rejection")
	assert.Contains(t, res.Error, "directory_not_empty")
}

func TestFilesystemDeleteAllowed(t *testing.T) {
	ft := newFSTestTool(t, true)
	ctx := context.Background()
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "gone.txt", "content": "x"}, tool.ExecutionContext{})

	res, err := ft.Execute(ctx, map[string]any{"operation": "delete", "path": "gone.txt"}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.True(t, res.Success)

	existsRes, _ := ft.Execute(ctx, map[string]any{"operation": "exists", "path": "gone.txt"}, tool.ExecutionContext{})
	assert.Equal(t, false, existsRes.Output)
}

func TestFilesystemExists(t *testing.T) {
	ft := newFSTestTool(t, false)
	ctx := context.Background()

	res, _ := ft.Execute(ctx, map[string]any{"operation": "exists", "path": "absent.txt"}, tool.ExecutionContext{})
	assert.Equal(t, false, res.Output)

	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "present.txt", "content": "x"}, tool.ExecutionContext{})
	res, _ = ft.Execute(ctx, map[string]any{"operation": "exists", "path": "present.txt"}, tool.ExecutionContext{})
	assert.Equal(t, true, res.Output)
}

func TestFilesystemList(t *testing.T) {
	ft := newFSTestTool(t, false)
	ctx := context.Background()
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "a.txt", "content": "x"}, tool.ExecutionContext{})
	_, _ = ft.Execute(ctx, map[string]any{"operation": "write", "path": "sub/b.txt", "content": "y"}, tool.ExecutionContext{})

	res, err := ft.Execute(ctx, map[string]any{"operation": "list", "path": "."}, tool.ExecutionContext{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Metadata["count"])
}

func TestFilesystemMissingOperationOrPath(t *testing.T) {
	ft := newFSTestTool(t, false)
	res, _ := ft.Execute(context.Background(), map[string]any{"operation": "read"}, tool.ExecutionContext{})
	assert.False(t, res.Success, "expected failure when path is missing")
}

func TestDecodeFilesystemConfigFromRawMap(t *testing.T) {
	raw := map[string]any{
		"workspace_root":     "/tmp/ws",
		"max_file_size":      2048,
		"allow_delete":       true,
		"allowed_extensions": ".txt,.md",
	}
	cfg, err := DecodeFilesystemConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ws", cfg.WorkspaceRoot)
	assert.EqualValues(t, 2048, cfg.MaxFileSize)
	assert.True(t, cfg.AllowDelete)
	assert.Equal(t, []string{".txt", ".md"}, cfg.AllowedExtensions)
}
