package main

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/api/handlers"
	"github.com/BaSui01/genflow/config"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/internal/mcpserver"
	"github.com/BaSui01/genflow/internal/metrics"
	"github.com/BaSui01/genflow/internal/server"
	"github.com/BaSui01/genflow/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// skipAuthPaths 无需鉴权的探活与版本端点
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// Server 是 genflow 的主服务器：API（含可选 MCP SSE）与 Metrics 双端口
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel

	app       *App
	collector *metrics.Collector
	registry  *prometheus.Registry
	telemetry *telemetry.Providers

	handler        http.Handler
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 限流器清理 goroutine 的生命周期
	limiterCtx    context.Context
	limiterCancel context.CancelFunc
}

// NewServer 组装服务器，不绑定端口
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel, tp *telemetry.Providers) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		level:      level,
		telemetry:  tp,
		registry:   prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollectorWith(s.registry, "genflow", logger)

	observers := []flow.Observer{s.collector.Observer(), telemetry.NewFlowTracer(tp.Tracer())}
	if meter, err := telemetry.NewFlowMeter(tp.Meter()); err != nil {
		logger.Warn("otel flow metrics disabled", zap.Error(err))
	} else {
		observers = append(observers, meter)
	}

	app, err := NewApp(cfg, logger, observers...)
	if err != nil {
		return nil, fmt.Errorf("failed to init flows: %w", err)
	}
	s.app = app

	s.limiterCtx, s.limiterCancel = context.WithCancel(context.Background())
	s.handler = s.buildHandler()

	s.httpManager = server.NewManager("api", s.handler, server.ConfigFrom(cfg.Server, cfg.Server.HTTPPort), logger)
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
		metricsCfg := server.ConfigFrom(cfg.Server, cfg.Server.MetricsPort)
		metricsCfg.TLSCertFile, metricsCfg.TLSKeyFile = "", ""
		s.metricsManager = server.NewManager("metrics", mux, metricsCfg, logger)
	}
	return s, nil
}

// Handler 返回带完整中间件链的 API handler
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewRegistryCheck(s.app.Registry))
	for _, name := range s.app.Backends.List() {
		if b, ok := s.app.Backends.Get(name); ok {
			health.RegisterCheck(handlers.NewBackendCheck(b))
		}
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// Flow API
	// ========================================
	flows := handlers.NewFlowHandler(s.app.Registry, s.app.Invoker, s.logger,
		handlers.WithInvokeTimeout(s.cfg.Flows.Timeout),
		handlers.WithMaxBodyBytes(s.cfg.Server.MaxBodyBytes),
	)
	flows.Register(mux)

	// ========================================
	// MCP 工具（SSE 传输）
	// ========================================
	var mcpPaths []string
	if s.cfg.MCP.Enabled {
		base := strings.TrimSuffix(s.cfg.MCP.BasePath, "/")
		tools := mcpserver.New(s.app.Registry, s.app.Invoker,
			mcpserver.WithImplementation(s.cfg.MCP.Name, Version),
			mcpserver.WithTimeout(s.cfg.Flows.Timeout),
			mcpserver.WithLogger(s.logger),
		)
		mux.Handle(base+"/", tools.SSEHandler(base))
		mcpPaths = []string{base + "/sse", base + "/message"}
		s.logger.Info("MCP SSE transport mounted",
			zap.String("base_path", base),
			zap.Int("tools", len(tools.Tools())),
		)
	}

	// ========================================
	// 构建中间件链
	// ========================================
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector, mcpPaths...),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(s.limiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		Auth(s.cfg.Server, skipAuthPaths, s.logger),
	)
}

// =============================================================================
// 🚀 运行
// =============================================================================

// Run 启动全部服务并阻塞到 ctx 结束，随后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	defer s.limiterCancel()

	if s.configPath != "" {
		watcher, err := config.NewWatcher(config.NewLoader().WithConfigPath(s.configPath),
			config.WithWatcherLogger(s.logger))
		if err != nil {
			return err
		}
		watcher.OnReload(s.applyReload)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	managers := []*server.Manager{s.httpManager}
	if s.metricsManager != nil {
		managers = append(managers, s.metricsManager)
	}

	s.logger.Info("starting servers",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.cfg.Server.TLSEnabled()),
		zap.Bool("mcp", s.cfg.MCP.Enabled),
		zap.Int("flows", s.app.Registry.Len()),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	err := server.Run(ctx, s.logger, managers...)

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if terr := s.telemetry.Shutdown(shutdownCtx); terr != nil {
		s.logger.Warn("telemetry shutdown error", zap.Error(terr))
	}
	s.logger.Info("graceful shutdown completed")
	return err
}

// applyReload 应用热更新：日志级别立即生效，其余字段需重启
func (s *Server) applyReload(next *config.Config) {
	level := parseLevel(next.Log.Level)
	if s.level.Level() != level {
		s.level.SetLevel(level)
		s.logger.Info("log level changed", zap.String("level", level.String()))
	}
	if !reflect.DeepEqual(next.Server, s.cfg.Server) || next.LLM != s.cfg.LLM || next.Flows != s.cfg.Flows ||
		next.MCP != s.cfg.MCP || next.Telemetry != s.cfg.Telemetry {
		s.logger.Warn("configuration changed outside the log section, restart required to apply it")
	}
}
