package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/catalog"
	"github.com/BaSui01/genflow/config"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
	"github.com/BaSui01/genflow/llm/providers/gemini"
)

// newBackend 按配置创建生成式后端，测试中可替换
var newBackend = func(cfg config.LLMConfig, logger *zap.Logger) (llm.Backend, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewBackend(providers.GeminiConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				Model:   cfg.Model,
				Timeout: cfg.Timeout,
			},
			ImageModel: cfg.ImageModel,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// App 是一次进程内共享的 flow 运行时：注册表、后端、执行器与调用入口
type App struct {
	Registry *flow.Registry
	Backends *llm.BackendRegistry
	Backend  llm.Backend
	Executor *flow.Executor
	// Invoker 在启用重试时包装 Executor
	Invoker flow.Invoker
	Retry   flow.RetryPolicy
}

// NewApp 组装内置 flow 与配置的后端
func NewApp(cfg *config.Config, logger *zap.Logger, observers ...flow.Observer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := newBackend(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	backends := llm.NewBackendRegistry()
	backends.Register(backend.Name(), backend)
	if err := backends.SetDefault(backend.Name()); err != nil {
		return nil, err
	}

	reg := flow.NewRegistry()
	if err := catalog.Register(reg); err != nil {
		return nil, err
	}
	reg.Seal()

	opts := []flow.ExecutorOption{flow.WithLogger(logger)}
	for _, o := range observers {
		opts = append(opts, flow.WithObserver(o))
	}
	exec := flow.NewExecutor(reg, backend, opts...)

	policy := cfg.Flows.Retry.RetryPolicy()
	if policy.Enabled() {
		logger.Info("caller retry enabled",
			zap.Uint64("max_retries", policy.MaxRetries),
			zap.Duration("base_delay", policy.BaseDelay),
			zap.Duration("max_delay", policy.MaxDelay),
		)
	}

	return &App{
		Registry: reg,
		Backends: backends,
		Backend:  backend,
		Executor: exec,
		Invoker:  policy.Wrap(exec),
		Retry:    policy,
	}, nil
}
