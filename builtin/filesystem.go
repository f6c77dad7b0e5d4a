package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/tessera-ai/reasonkit/tool"
)

// FilesystemConfig follows a secure-defaults style, extended to cover
// the full read/write/append/list/exists/delete surface rather than
// just writes.
type FilesystemConfig struct {
	WorkspaceRoot     string   `mapstructure:"workspace_root"`
	MaxFileSize       int64    `mapstructure:"max_file_size"`
	AllowDelete       bool     `mapstructure:"allow_delete"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

// DecodeFilesystemConfig decodes a raw tool-config map (as parsed from a
// YAML tools file) into a FilesystemConfig, the same way provider
// metadata bags are decoded in llm.ProviderConfig.
func DecodeFilesystemConfig(raw map[string]any) (*FilesystemConfig, error) {
	var cfg FilesystemConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return nil, fmt.Errorf("build filesystem config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode filesystem tool config: %w", err)
	}
	return &cfg, nil
}

func (c *FilesystemConfig) setDefaults() {
	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = "./"
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 1048576
	}
}

// FilesystemTool confines every operation to a configured workspace
// root: after resolving symlinks, the absolute path must have the
// workspace root as a prefix or the call fails with path_escape.
type FilesystemTool struct {
	config *FilesystemConfig
	root   string
}

func NewFilesystemTool(cfg *FilesystemConfig) (*FilesystemTool, error) {
	if cfg == nil {
		cfg = &FilesystemConfig{}
	}
	cfg.setDefaults()

	root, err := filepath.Abs(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("filesystem tool: invalid workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return &FilesystemTool{config: cfg, root: root}, nil
}

func (f *FilesystemTool) Name() string { return "filesystem" }

func (f *FilesystemTool) Description() string {
	return "Reads, writes, appends to, lists, checks existence of, and optionally deletes " +
		"files within a confined workspace directory. All paths are relative to the workspace root."
}

func (f *FilesystemTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []any{"read", "write", "append", "list", "exists", "delete"},
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Path relative to the workspace root",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content to write or append (required for write/append)",
			},
		},
		"required": []any{"operation", "path"},
	}
}

// resolve returns the absolute path for a workspace-relative path, or
// a path_escape error if it resolves outside the workspace root.
func (f *FilesystemTool) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(f.root, rel))

	// Resolve symlinks on the longest existing prefix, so a path through a
	// symlinked directory is checked even when its last part does not
	// exist yet (e.g. a write of a new file).
	checkPath := cleaned
	for dir, rest := cleaned, ""; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			checkPath = filepath.Join(resolved, rest)
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}

	if checkPath != f.root && !strings.HasPrefix(checkPath, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path_escape: %q resolves outside the workspace root", rel)
	}
	return cleaned, nil
}

func (f *FilesystemTool) Execute(ctx context.Context, arguments map[string]any, ec tool.ExecutionContext) (tool.Result, error) {
	op, _ := arguments["operation"].(string)
	rel, _ := arguments["path"].(string)
	if op == "" || rel == "" {
		return tool.ErrorResult("operation and path are required", nil), nil
	}

	full, err := f.resolve(rel)
	if err != nil {
		return tool.ErrorResult(err.Error(), nil), nil
	}

	switch op {
	case "read":
		return f.read(full, rel)
	case "write":
		content, _ := arguments["content"].(string)
		return f.write(full, rel, content, false)
	case "append":
		content, _ := arguments["content"].(string)
		return f.write(full, rel, content, true)
	case "list":
		return f.list(full, rel)
	case "exists":
		return f.exists(full, rel)
	case "delete":
		return f.delete(full, rel)
	default:
		return tool.ErrorResult(fmt.Sprintf("unknown operation: %s", op), nil), nil
	}
}

func (f *FilesystemTool) read(full, rel string) (tool.Result, error) {
	info, err := os.Stat(full)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("read failed: %v", err), nil), nil
	}
	if info.IsDir() {
		return tool.ErrorResult(fmt.Sprintf("%q is a directory", rel), nil), nil
	}
	if info.Size() > f.config.MaxFileSize {
		return tool.ErrorResult(fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), f.config.MaxFileSize), nil), nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("read failed: %v", err), nil), nil
	}
	return tool.SuccessResult(string(data), map[string]any{"path": rel, "size": len(data)}), nil
}

func (f *FilesystemTool) write(full, rel, content string, append bool) (tool.Result, error) {
	if len(content) > int(f.config.MaxFileSize) {
		return tool.ErrorResult(fmt.Sprintf("content too large: %d bytes (max %d)", len(content), f.config.MaxFileSize), nil), nil
	}
	if len(f.config.AllowedExtensions) > 0 && !f.extensionAllowed(rel) {
		return tool.ErrorResult(fmt.Sprintf("file extension %s not allowed", filepath.Ext(rel)), nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return tool.ErrorResult(fmt.Sprintf("failed to create directory: %v", err), nil), nil
	}

	if append {
		file, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return tool.ErrorResult(fmt.Sprintf("append failed: %v", err), nil), nil
		}
		defer file.Close()
		if _, err := file.WriteString(content); err != nil {
			return tool.ErrorResult(fmt.Sprintf("append failed: %v", err), nil), nil
		}
		return tool.SuccessResult(fmt.Sprintf("appended %d bytes to %s", len(content), rel), map[string]any{"path": rel, "size": len(content)}), nil
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return tool.ErrorResult(fmt.Sprintf("write failed: %v", err), nil), nil
	}
	return tool.SuccessResult(fmt.Sprintf("wrote %d bytes to %s", len(content), rel), map[string]any{"path": rel, "size": len(content)}), nil
}

func (f *FilesystemTool) extensionAllowed(rel string) bool {
	ext := filepath.Ext(rel)
	for _, allowed := range f.config.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (f *FilesystemTool) list(full, rel string) (tool.Result, error) {
	entries, err := os.ReadDir(full)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("list failed: %v", err), nil), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}

	return tool.SuccessResult(strings.Join(names, "\n"), map[string]any{"path": rel, "count": len(names)}), nil
}

func (f *FilesystemTool) exists(full, rel string) (tool.Result, error) {
	_, err := os.Stat(full)
	exists := err == nil
	return tool.SuccessResult(exists, map[string]any{"path": rel}), nil
}

func (f *FilesystemTool) delete(full, rel string) (tool.Result, error) {
	if !f.config.AllowDelete {
		return tool.ErrorResult("delete is not permitted by this tool instance", nil), nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("delete failed: %v", err), nil), nil
	}

	if info.IsDir() {
		entries, err := os.ReadDir(full)
		if err != nil {
			return tool.ErrorResult(fmt.Sprintf("delete failed: %v", err), nil), nil
		}
		if len(entries) > 0 {
			return tool.ErrorResult(fmt.Sprintf("directory_not_empty: %q is not empty", rel), nil), nil
		}
	}

	if err := os.Remove(full); err != nil {
		return tool.ErrorResult(fmt.Sprintf("delete failed: %v", err), nil), nil
	}
	return tool.SuccessResult(fmt.Sprintf("deleted %s", rel), map[string]any{"path": rel}), nil
}
