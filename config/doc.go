// Package config 提供 Agora 的配置管理功能。
//
// 支持从默认值、YAML 文件和环境变量加载配置，
// 优先级为 默认值 → 文件 → 环境变量。
package config
