package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/api/handlers"
	"github.com/BaSui01/genflow/catalog"
	"github.com/BaSui01/genflow/config"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/internal/ctxkeys"
	"github.com/BaSui01/genflow/internal/mcpserver"
	"github.com/BaSui01/genflow/internal/telemetry"
	"github.com/BaSui01/genflow/internal/tlsutil"
	"github.com/BaSui01/genflow/types"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "genflow",
		Short:         "Registry of schema-validated structured generation flows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warn for one-shot commands")

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newBatchCmd(opts),
		newFlowsCmd(),
		newCheckCmd(opts),
		newMCPCmd(opts),
		newHealthCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliApp 为一次性命令加载配置并组装运行时，日志输出到 stderr
func cliApp(opts *rootOptions) (*config.Config, *App, *zap.Logger, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, _ := initLogger(cliLogConfig(cfg.Log, opts.verbose))
	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, app, logger, nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, MCP SSE transport and metrics servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, level := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			logger.Info("starting genflow",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tp, err := telemetry.Init(ctx, cfg.Telemetry, logger)
			if err != nil {
				logger.Warn("telemetry init failed, continuing without exporters", zap.Error(err))
				tp = nil
			}

			srv, err := NewServer(cfg, opts.configPath, logger, level, tp)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

// =============================================================================
// ▶️ run 命令
// =============================================================================

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		input   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <flow>",
		Short: "Invoke one flow and print its validated output",
		Long: `Invoke one flow and print its validated output as JSON.

--input takes a JSON object, @path to read it from a file, or - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, app, logger, err := cliApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			data, err := readSource(cmd, input)
			if err != nil {
				return err
			}
			obj, err := flow.DecodeInput(data)
			if err != nil {
				return types.NewError(types.ErrInputValidation, "input is not a JSON object").
					WithFlow(args[0]).
					WithFields(types.FieldError{Constraint: "json", Message: err.Error()}).
					WithCause(err)
			}

			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Flows.Timeout
			}
			ctx := ctxkeys.WithTransport(cmd.Context(), "cli")
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := app.Invoker.Invoke(ctx, args[0], obj)
			if err != nil {
				_ = writeIndented(cmd.OutOrStdout(), map[string]any{"success": false, "error": errorInfo(err)})
				return err
			}
			return writeIndented(cmd.OutOrStdout(), res.Output)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Flow input: JSON object, @file or - for stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Invocation timeout (defaults to flows.timeout)")
	return cmd
}

// =============================================================================
// 📦 batch 命令
// =============================================================================

// batchItem 是 batch 命令的单条输出
type batchItem struct {
	Flow    string              `json:"flow"`
	Success bool                `json:"success"`
	Output  json.RawMessage     `json:"output,omitempty"`
	Error   *handlers.ErrorInfo `json:"error,omitempty"`
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Invoke several flows concurrently",
		Long: `Invoke several flows concurrently and print one result per call, in order.

--file names a JSON array of {"flow": "...", "input": {...}} objects; - reads it from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, app, logger, err := cliApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			src := file
			if src != "-" {
				src = "@" + src
			}
			data, err := readSource(cmd, src)
			if err != nil {
				return err
			}
			var calls []flow.Call
			if err := json.Unmarshal(data, &calls); err != nil {
				return fmt.Errorf("batch file must be a JSON array of calls: %w", err)
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Flows.BatchLimit
			}

			ctx := ctxkeys.WithTransport(cmd.Context(), "cli")
			results := flow.InvokeAll(ctx, timeoutInvoker{next: app.Invoker, timeout: cfg.Flows.Timeout}, calls, limit)

			items := make([]batchItem, len(results))
			for i, r := range results {
				items[i] = batchItem{Flow: r.Call.Flow, Success: r.Err == nil}
				if r.Err != nil {
					items[i].Error = errorInfo(r.Err)
				} else {
					items[i].Output = r.Result.Raw
				}
			}
			if err := writeIndented(cmd.OutOrStdout(), items); err != nil {
				return err
			}
			if failed := flow.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d calls failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Path to a JSON array of calls, or - for stdin")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum concurrent calls (defaults to flows.batch_limit)")
	return cmd
}

// timeoutInvoker 为每次调用单独施加超时
type timeoutInvoker struct {
	next    flow.Invoker
	timeout time.Duration
}

func (t timeoutInvoker) Invoke(ctx context.Context, name string, input map[string]any) (*flow.Result, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.Invoke(ctx, name, input)
}

// =============================================================================
// 📋 flows 命令
// =============================================================================

func newFlowsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List the built-in flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descs := catalog.NewRegistry().List()
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), descs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODALITIES\tDESCRIPTION")
			for _, d := range descs {
				mods := make([]string, 0, len(d.ResponseModalities))
				for _, m := range d.ResponseModalities {
					mods = append(mods, string(m))
				}
				if len(mods) == 0 {
					mods = append(mods, "TEXT")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, strings.Join(mods, ","), d.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full descriptors with schemas as JSON")
	return cmd
}

// =============================================================================
// ✅ check 命令
// =============================================================================

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the flow definitions and the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failures := 0

			reg := flow.NewRegistry()
			for _, def := range catalog.Definitions() {
				if err := reg.Register(def); err != nil {
					failures++
					kind := "error"
					if flow.IsConfigurationError(err) {
						kind = string(types.ErrSchemaConfiguration)
					}
					fmt.Fprintf(out, "FAIL  flow %s: %s: %v\n", def.Name, kind, err)
					continue
				}
				fmt.Fprintf(out, "ok    flow %s\n", def.Name)
			}

			if _, err := loadConfig(opts.configPath); err != nil {
				failures++
				fmt.Fprintf(out, "FAIL  config: %v\n", err)
			} else {
				fmt.Fprintln(out, "ok    config")
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			return nil
		},
	}
}

// =============================================================================
// 🔌 mcp 命令
// =============================================================================

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve every flow as an MCP tool over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, app, logger, err := cliApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv := mcpserver.New(app.Registry, app.Invoker,
				mcpserver.WithImplementation(cfg.MCP.Name, Version),
				mcpserver.WithTimeout(cfg.Flows.Timeout),
				mcpserver.WithLogger(logger),
			)
			logger.Info("serving MCP over stdio", zap.Int("tools", len(srv.Tools())))
			return srv.ServeStdio()
		},
	}
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func newHealthCmd() *cobra.Command {
	var (
		addr  string
		ready bool
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the health of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/health"
			if ready {
				path = "/ready"
			}
			client := tlsutil.SecureHTTPClient(5 * time.Second)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, strings.TrimSuffix(addr, "/")+path, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check failed: status %d", resp.StatusCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Service is healthy")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Server address")
	cmd.Flags().BoolVar(&ready, "ready", false, "Check readiness instead of liveness")
	return cmd
}

// =============================================================================
// 📦 version 命令
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "genflow %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
		},
	}
}

// =============================================================================
// 🔧 输出辅助
// =============================================================================

// readSource 读取 - (stdin)、@path 或字面量
func readSource(cmd *cobra.Command, src string) ([]byte, error) {
	switch {
	case src == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(src, "@"):
		return os.ReadFile(strings.TrimPrefix(src, "@"))
	default:
		return []byte(src), nil
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errorInfo 保留完整的错误细节，命令行调用方可直接查看字段违规
func errorInfo(err error) *handlers.ErrorInfo {
	te, ok := types.AsError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			te = types.NewError(types.ErrTimeout, err.Error())
		} else {
			te = types.NewError(types.ErrInternalError, err.Error())
		}
	}
	return &handlers.ErrorInfo{
		Code:      string(te.Code),
		Message:   te.Message,
		Fields:    te.Fields,
		Retryable: te.Retryable,
	}
}
