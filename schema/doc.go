// Copyright 2026 GenFlow Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 schema 提供 Flow 输入/输出的声明式 Schema 建模、反射生成、自检与校验能力。

校验是纯函数：对不合规的候选值始终返回结构化的字段级错误列表，从不 panic；
Schema 自身有缺陷（未知类型、非法正则、未知格式、required 字段未声明等）
则返回 SchemaError，属于配置错误而非输入错误。

# 主要类型

  - JSONSchema: Schema 定义，支持 object/array/enum/数值与字符串约束
  - Validator: 内置格式校验（uri/hostname/email/uuid/date-time/ipv4/data-uri 等）
  - SchemaGenerator: 通过反射从 Go 类型生成 JSONSchema，支持 jsonschema 标签
  - ParseError / ValidationErrors: 字段路径定位的校验结果，数组元素按下标定位
  - SchemaError: Schema 配置缺陷

# 典型用法

	s := schema.NewObjectSchema().
		AddProperty("topic", schema.NewStringSchema().WithMinLength(3)).
		AddRequired("topic")
	if err := schema.CheckSchema(s); err != nil { // 启动期失败 }
	err := schema.NewValidator().ValidateValue(input, s)
*/
package schema
