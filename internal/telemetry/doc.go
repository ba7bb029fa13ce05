// Copyright (c) askall Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化，为批次与平台 span
// 以及批次耗时等 OTel 指标配置 OTLP 导出。resource 记录运行模式、
// 平台列表与浏览器模式；ask 模式总是采样唯一的批次。禁用时保持全局
// noop 实现，不连接任何外部服务。
package telemetry
