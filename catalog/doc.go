// Copyright 2026 GenFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package catalog 定义 genflow 内置的五个结构化生成流程。

# 概述

每个流程由严格的输入 Schema、绑定到输入的提示模板（或渲染函数）
以及严格的输出 Schema 组成，注册到同一个 flow.Registry 中：

  - generateMetaTags: 根据关键词与页面内容生成 title、description、keywords
  - removeBackground: 以图片 data URI 作为媒体附件，返回去除背景后的 PNG data URI
  - keywordResearch: 根据主题生成关键词及其搜索量、难度估计
  - checkPlagiarism: 估计文本原创度并列出可疑来源
  - checkBacklinks: 生成域名的模拟外链画像

# Schema 来源

四个文本流程的 Schema 由输入输出结构体的 jsonschema 标签生成
（schema.MustFor），removeBackground 使用构建器声明 data-uri 格式。

# 使用示例

	reg := catalog.NewRegistry()
	exec := flow.NewExecutor(reg, backend, flow.WithLogger(logger))
	out, err := catalog.CheckBacklinksOf(ctx, exec, catalog.BacklinkInput{Domain: "example.com"})
*/
package catalog
