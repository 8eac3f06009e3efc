// =============================================================================
// genflow 主入口
// =============================================================================
// 结构化生成流程注册表的服务与命令行入口
//
// 使用方法:
//
//	genflow serve --config config.yaml           # 启动 HTTP / MCP / Metrics 服务
//	genflow run keywordResearch --input '{"topic":"go"}' # 调用单个 flow
//	genflow batch --file calls.json              # 并发调用多个 flow
//	genflow flows                                # 列出内置 flow
//	genflow check                                # 校验 flow 定义与配置
//	genflow mcp                                  # 以 stdio 方式提供 MCP 工具
//	genflow health --addr http://localhost:8080  # 健康检查
//	genflow version                              # 显示版本信息
// =============================================================================

// @title genflow API
// @version 1.0.0
// @description Registry of schema-validated structured generation flows.
// @description
// @description ## Features
// @description - Typed flows with JSON Schema input and output validation
// @description - Prompt templates with named placeholders
// @description - Image flows returning media as data URIs
// @description - MCP tool surface over SSE and stdio

// @contact.name genflow Team
// @contact.url https://github.com/BaSui01/genflow

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"fmt"
	"os"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
