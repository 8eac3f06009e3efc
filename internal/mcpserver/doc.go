// Package mcpserver 把注册表中的每个 flow 暴露为 MCP 工具。
//
// 工具名即 flow 名，输入 schema 直接取自 flow 描述符。成功时返回
// 输出对象的 JSON 文本（图像 flow 另附 image 内容），失败时返回
// 带 code/message/fields 的 JSON 工具错误。支持 SSE 与 stdio 两种传输。
package mcpserver
