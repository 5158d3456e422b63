// Command cot-tools serves the calculator tools (show_reasoning, calculate,
// verify, fallback_reasoning) over MCP, on stdio by default or over SSE.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cot-calculator/config"
	"cot-calculator/toolserver"
)

type flags struct {
	transport string
	port      string
	baseURL   string
	cacheTTL  int
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
		Use:          "cot-tools",
		Short:        "MCP tool server for the chain-of-thought calculator",
		Version:      toolserver.ServerVersion,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.transport, "transport", "stdio", "transport mode: stdio or sse")
	fs.StringVar(&f.port, "port", config.DefaultPort, "port for the SSE server (sse only)")
	fs.StringVar(&f.baseURL, "base-url", "", "base URL for the SSE server (default http://localhost:<port>)")
	fs.IntVar(&f.cacheTTL, "cache-ttl", 0, "seconds to cache calculate/verify results (0 disables)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func serve(cmd *cobra.Command, f flags) error {
	logger, atom, err := config.NewLogger("info")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)
	applyFlags(cmd, f, cfg)
	if err := config.SetLevel(atom, cfg.LogLevel); err != nil {
		logger.Warn("ignoring log level", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cache := toolserver.NewResultCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	ts := toolserver.New(toolserver.Options{
		Logger:  logger.Named("tools"),
		Display: os.Stderr,
		Cache:   cache,
	})
	s := ts.MCPServer()

	logger.Info("starting tool server",
		zap.String("transport", cfg.Transport),
		zap.Duration("cache_ttl", cfg.CacheTTL))

	switch cfg.Transport {
	case "sse":
		baseURL := cfg.SSEBaseURL()
		sse := server.NewSSEServer(s,
			server.WithBaseURL(baseURL),
			server.WithKeepAlive(true),
		)
		logger.Info("serving SSE",
			zap.String("addr", ":"+cfg.Port),
			zap.String("sse_endpoint", baseURL+"/sse"),
			zap.String("message_endpoint", baseURL+"/message"))
		if err := http.ListenAndServe(":"+cfg.Port, sse); err != nil {
			return fmt.Errorf("SSE server: %w", err)
		}
		return nil

	default:
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("transport") {
		cfg.Transport = f.transport
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("base-url") {
		cfg.MCPBaseURL = f.baseURL
	}
	if fs.Changed("cache-ttl") && f.cacheTTL >= 0 {
		cfg.CacheTTL = time.Duration(f.cacheTTL) * time.Second
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}
