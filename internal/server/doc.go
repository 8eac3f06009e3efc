// 版权所有 2026 GenFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与多服务器协同运行。

# 核心类型

  - Manager：封装 net/http.Server，持有监听器与异步错误通道，
    提供 Start/Shutdown/Errors 等生命周期方法。配置了证书时
    使用 tlsutil 的加固设置以 HTTPS 提供服务。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时与 TLS 文件。ConfigFrom 由 config.ServerConfig 构造。

# 主要能力

  - Run：同时启动 API 与指标服务器，阻塞到 ctx 结束（通常由
    signal.NotifyContext 取消）或任一服务器异常退出，然后逆序关闭。
*/
package server
