// Copyright 2026 GenFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 提供 Google Gemini 的 Backend 实现。该包直接对接
Gemini REST API（generativelanguage.googleapis.com），自行处理请求构建、
响应解析与安全设置透传。

# 核心结构体

  - Backend：持有 http.Client 与 GeminiConfig，使用 x-goog-api-key 请求头认证
  - geminiRequest / geminiResponse：Gemini 原生请求/响应结构
  - geminiPart：文本、inlineData（base64 内联媒体）、fileData（远程媒体）

# 构造函数

  - NewBackend(cfg, logger)：默认文本模型 gemini-2.0-flash，
    请求 IMAGE 模态时默认使用 gemini-2.0-flash-preview-image-generation

# 支持能力

  - generateContent（/v1beta/models/{model}:generateContent）
  - responseModalities 与 safetySettings 透传
  - 返回的 inlineData 图片解析为 llm.Media
  - promptFeedback.blockReason 映射为 LLM_CONTENT_FILTERED
  - HealthCheck（列出模型）
*/
package gemini
