// Package handlers 实现 HTTP API 的处理器层。
//
// 所有处理器共享 common.go 的响应信封与错误映射：
//
//   - Response{success, data, error, timestamp, request_id}
//   - types.Error 错误码统一映射到 HTTP 状态码
//
// 处理器按资源划分：
//
//   - HealthHandler        存活/就绪/版本探针
//   - AgentHandler         可用 Agent 目录
//   - ChatHandler          单 Agent 会话聊天
//   - OrchestrationHandler 同步多 Agent 讨论
//   - DiscussionHandler    异步讨论 + WebSocket 事件流
//
// 路由注册在 cmd/agora 中完成，处理器自身只依赖领域服务。
package handlers
