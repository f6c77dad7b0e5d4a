// Command reasonctl drives a single reasoning chain from the command
// line: load provider config, register the built-in tools, run one
// Solve call, and print the resulting chain. It is not an HTTP server —
// just enough wiring to exercise the engine end to end.
//
// Usage:
//
//	reasonctl solve "what is 2+2?"
//	reasonctl solve --provider anthropic --model claude-3-5-sonnet-20241022 "..."
//	reasonctl providers
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/tessera-ai/reasonkit/builtin"
	"github.com/tessera-ai/reasonkit/internal/httpclient"
	"github.com/tessera-ai/reasonkit/internal/tracing"
	"github.com/tessera-ai/reasonkit/llm"
	"github.com/tessera-ai/reasonkit/reasoning"
	"github.com/tessera-ai/reasonkit/tool"
	"github.com/tessera-ai/reasonkit/toolexec"
)

// CLI defines the command-line interface.
type CLI struct {
	Solve     SolveCmd     `cmd:"" help:"Run a single reasoning chain against a task."`
	Providers ProvidersCmd `cmd:"" help:"List configured LLM provider instances."`

	Config string `short:"c" help:"Path to llm_providers.yaml (defaults to the standard search path)." type:"path"`
}

// SolveCmd runs one reasoning chain and prints the resulting steps.
type SolveCmd struct {
	Task string `arg:"" help:"The task to solve."`

	Provider      string `help:"Provider instance id to use (defaults to the registry default)."`
	Model         string `help:"Model name override."`
	MaxIterations int    `name:"max-iterations" help:"Iteration cap." default:"10"`
	MaxToolCalls  int    `name:"max-tool-calls" help:"Tool-call cap." default:"20"`
	Workspace     string `help:"Workspace root for the filesystem tool." default:"./workspace" type:"path"`
	AllowDelete   bool   `name:"allow-delete" help:"Permit the filesystem tool to delete files."`
	Tools         string `help:"Path to a tools.yaml overriding built-in tool defaults (e.g. filesystem)." type:"path"`
	Verbose       bool   `help:"Log each reasoning iteration."`
}

func (c *SolveCmd) Run(cli *CLI) error {
	registry, err := loadProviderRegistry(cli.Config)
	if err != nil {
		return err
	}

	adapter, err := selectProvider(registry, c.Provider)
	if err != nil {
		return err
	}

	toolRegistry, err := registerBuiltinTools(c.Workspace, c.AllowDelete, c.Tools)
	if err != nil {
		return err
	}
	executor := toolexec.New(toolRegistry)

	cfg := reasoning.DefaultConfig()
	cfg.MaxIterations = c.MaxIterations
	cfg.MaxToolCalls = c.MaxToolCalls
	cfg.Verbose = c.Verbose

	engine := reasoning.New(adapter, executor, toolRegistry, cfg)
	engine.SetStepObserver(func(step reasoning.ReasoningStep) {
		fmt.Printf("[%s] %s\n", step.StepType, step.Content)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	model := c.Model
	result := engine.Solve(ctx, c.Task, nil, model)

	fmt.Println()
	fmt.Printf("stop_reason: %s\n", result.StopReason)
	if result.Success {
		fmt.Printf("answer: %s\n", result.FinalAnswer)
	} else if result.Error != "" {
		fmt.Printf("error: %s\n", result.Error)
	}
	fmt.Printf("steps: %d  tool_calls: %d  elapsed: %s\n", result.Stats.TotalSteps, result.Stats.ToolCalls, result.Stats.ExecutionTime)

	if !result.Success && result.StopReason != reasoning.StopCompleted {
		os.Exit(1)
	}
	return nil
}

// ProvidersCmd lists the provider instances resolved from config.
type ProvidersCmd struct{}

func (c *ProvidersCmd) Run(cli *CLI) error {
	registry, err := loadProviderRegistry(cli.Config)
	if err != nil {
		return err
	}
	for _, a := range registry.List() {
		fmt.Printf("%s  tools=%v  structured_output=%v\n", a.ProviderName(), a.SupportsToolCalling(), a.SupportsStructuredOutput())
	}
	return nil
}

func loadProviderRegistry(configPath string) (*llm.Registry, error) {
	if configPath != "" {
		cfg, err := llm.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		return llm.Build(cfg)
	}
	return llm.LoadOrDefault()
}

func selectProvider(registry *llm.Registry, id string) (llm.Adapter, error) {
	if id != "" {
		return registry.Get(id)
	}
	return registry.Default()
}

// registerBuiltinTools wires every tool from builtin/ into a fresh
// Registry: calculator, code sandbox, filesystem, and web search.
func registerBuiltinTools(workspace string, allowDelete bool, toolsConfigPath string) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	if err := registry.Register(builtin.NewCalculatorTool(), tool.CategoryComputation, false); err != nil {
		return nil, err
	}
	if err := registry.Register(builtin.NewCodeSandboxTool(), tool.CategoryCodeExecution, false); err != nil {
		return nil, err
	}

	fsConfig := &builtin.FilesystemConfig{
		WorkspaceRoot: workspace,
		AllowDelete:   allowDelete,
	}
	if toolsConfigPath != "" {
		override, err := loadFilesystemToolConfig(toolsConfigPath)
		if err != nil {
			return nil, err
		}
		if override != nil {
			fsConfig = override
		}
	}
	fsTool, err := builtin.NewFilesystemTool(fsConfig)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(fsTool, tool.CategoryFileSystem, false); err != nil {
		return nil, err
	}

	searchClient := httpclient.Open()
	if err := registry.Register(builtin.NewWebSearchTool(searchClient), tool.CategoryNetwork, false); err != nil {
		return nil, err
	}

	return registry, nil
}

// loadFilesystemToolConfig reads the "filesystem" entry of a tools.yaml
// (a map of tool name to a raw config map) and decodes it into a
// FilesystemConfig. Returns nil if the file has no "filesystem" entry.
func loadFilesystemToolConfig(path string) (*builtin.FilesystemConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools config %s: %w", path, err)
	}

	var tools map[string]map[string]any
	if err := yaml.Unmarshal(raw, &tools); err != nil {
		return nil, fmt.Errorf("parse tools config %s: %w", path, err)
	}

	fsRaw, ok := tools["filesystem"]
	if !ok {
		return nil, nil
	}
	return builtin.DecodeFilesystemConfig(fsRaw)
}

func main() {
	_, shutdownTracing, err := tracing.Init(context.Background(), "reasonctl", tracing.DefaultMaxSpans)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tracing disabled: %v\n", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("reasonctl"),
		kong.Description("Drive a single agentic reasoning chain from the command line."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
