// Copyright 2026 GenFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 genflow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertContains / AssertEventuallyTrue
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockBackend（llm.Backend 模拟），支持 Builder 模式、
    脚本化响应队列、延迟与错误注入
  - testutil/fixtures: 五个流程的预置后端输出、PNG 媒体样例与输入样例

# 使用示例

	ctx := testutil.TestContext(t)
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	exec := flow.NewExecutor(catalog.NewRegistry(), backend)
	res, err := exec.Invoke(ctx, "checkBacklinks", map[string]any{"domain": "example.com"})
	require.NoError(t, err)
*/
package testutil
