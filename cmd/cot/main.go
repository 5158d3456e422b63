// Command cot solves an arithmetic word problem by letting a language model
// reason step by step while every calculation goes through the cot-tools
// MCP server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cot-calculator/agent"
	"cot-calculator/config"
	"cot-calculator/console"
	"cot-calculator/gateway"
	"cot-calculator/llm"
	"cot-calculator/toolserver"
)

type flags struct {
	problem   string
	provider  string
	model     string
	toolsCmd  string
	timeout   time.Duration
	temp      float64
	maxTokens int
	maxTurns  int
	inProcess bool
	verbose   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "cot [problem]",
		Short:        "Chain-of-thought calculator driven by a language model",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.problem, "problem", "p", "", "problem to solve (default from COT_PROBLEM)")
	fs.StringVar(&f.provider, "provider", "", "model provider: gemini, openai, anthropic, groq, deepseek, openrouter, together, zai, ollama")
	fs.StringVarP(&f.model, "model", "m", "", "model name (provider default when empty)")
	fs.StringVar(&f.toolsCmd, "tools-cmd", "", "command that starts the tool server (default from COT_TOOLS_COMMAND)")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-query model timeout (default from MODEL_TIMEOUT)")
	fs.Float64Var(&f.temp, "temperature", 0, "sampling temperature, 0 to 2 (default from LLM_TEMPERATURE)")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "reply token limit (default from LLM_MAX_TOKENS)")
	fs.IntVar(&f.maxTurns, "max-turns", 0, "stop after this many model queries (0 = unlimited)")
	fs.BoolVar(&f.inProcess, "in-process", false, "run the tools inside this process instead of launching cot-tools")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging and event timings")
	return cmd
}

func run(cmd *cobra.Command, f flags, args []string) error {
	logger, atom, err := config.NewLogger("info")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)
	applyFlags(cmd, f, args, cfg)
	if err := config.SetLevel(atom, cfg.LogLevel); err != nil {
		logger.Warn("ignoring log level", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := llm.NewChain(ctx, cfg.ProviderConfig(), cfg.Fallbacks)
	if err != nil {
		return fmt.Errorf("model provider: %w", err)
	}
	logger.Info("model ready", zap.String("provider", model.Name()), zap.String("model", cfg.Model))

	tools, err := openTools(ctx, cfg, f.inProcess, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := tools.Close(); err != nil {
			logger.Debug("closing tool session", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	renderer := console.NewRenderer(out, console.Options{Verbose: f.verbose})

	loop, err := agent.NewLoop(agent.Options{
		Problem:          cfg.Problem,
		Model:            model,
		Tools:            tools,
		ModelTimeout:     cfg.ModelTimeout,
		SelfCheckTimeout: cfg.SelfCheckTimeout,
		MaxTurns:         cfg.MaxTurns,
		Generate:         cfg.GenerateOptions(),
		Logger:           logger.Named("agent"),
		Observer:         renderer.Observe,
	})
	if err != nil {
		return err
	}

	renderer.Start(cfg.Problem)
	res, err := loop.Run(ctx)
	if f.verbose {
		renderer.Summary(res)
	}
	return err
}

// applyFlags lets explicitly set flags and a positional problem override the
// environment.
func applyFlags(cmd *cobra.Command, f flags, args []string, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("problem") {
		cfg.Problem = f.problem
	} else if len(args) > 0 {
		cfg.Problem = strings.Join(args, " ")
	}
	if fs.Changed("provider") {
		cfg.Provider = strings.ToLower(strings.TrimSpace(f.provider))
		if !fs.Changed("model") && cfg.Provider != "gemini" {
			cfg.Model = ""
		}
	}
	if fs.Changed("model") {
		cfg.Model = f.model
	}
	if fs.Changed("tools-cmd") {
		parts := strings.Fields(f.toolsCmd)
		if len(parts) > 0 {
			cfg.ToolsCommand = parts[0]
			cfg.ToolsArgs = parts[1:]
		} else {
			cfg.ToolsCommand = ""
		}
	}
	if fs.Changed("timeout") {
		cfg.ModelTimeout = f.timeout
		cfg.SelfCheckTimeout = f.timeout
	}
	if fs.Changed("temperature") {
		cfg.Temperature = f.temp
	}
	if fs.Changed("max-tokens") {
		cfg.MaxTokens = f.maxTokens
	}
	if fs.Changed("max-turns") {
		cfg.MaxTurns = f.maxTurns
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

// toolSession is the loop's tool surface plus Close.
type toolSession interface {
	agent.Tools
	io.Closer
}

func openTools(ctx context.Context, cfg *config.Config, inProcess bool, logger *zap.Logger) (toolSession, error) {
	if inProcess {
		ts := toolserver.New(toolserver.Options{
			Logger:  logger.Named("tools"),
			Display: os.Stderr,
			Cache:   toolserver.NewResultCache(cfg.CacheTTL, cfg.CacheMaxEntries),
		})
		c, err := client.NewInProcessClient(ts.MCPServer())
		if err != nil {
			return nil, fmt.Errorf("in-process tools: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("in-process tools: %w", err)
		}
		g, err := gateway.New(ctx, c, logger.Named("gateway"))
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		return g, nil
	}

	g, err := gateway.Open(ctx, gateway.Options{
		Command: cfg.ToolsCommand,
		Args:    cfg.ToolsArgs,
		Stderr:  os.Stderr,
		Logger:  logger.Named("gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("tool server: %w", err)
	}
	return g, nil
}
