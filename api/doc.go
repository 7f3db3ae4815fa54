// Package api 定义 HTTP API 的请求与响应 DTO。
//
// 所有端点挂载在 /api/v1 前缀下，响应统一使用 handlers 包的
// Response 信封：{success, data, error, timestamp}。
// DTO 与领域类型（agent/orchestration/discussion）解耦，
// 字段变更不会泄漏到 API 契约。
package api
