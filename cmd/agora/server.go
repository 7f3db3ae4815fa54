package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/agorahq/agora/agent"
	"github.com/agorahq/agora/api/handlers"
	"github.com/agorahq/agora/config"
	"github.com/agorahq/agora/discussion"
	"github.com/agorahq/agora/internal/cache"
	"github.com/agorahq/agora/internal/database"
	"github.com/agorahq/agora/internal/metrics"
	"github.com/agorahq/agora/internal/server"
	"github.com/agorahq/agora/internal/telemetry"
	"github.com/agorahq/agora/llm"
	"github.com/agorahq/agora/llm/factory"
	"github.com/agorahq/agora/orchestration"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Agora 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	collector         *metrics.Collector
	cacheManager      *cache.Manager
	pool              *database.PoolManager
	telemetry         *telemetry.Providers
	provider          llm.Provider
	registry          *agent.Registry
	orchManager       *orchestration.Manager
	discussionManager *discussion.Manager

	// Handlers
	healthHandler        *handlers.HealthHandler
	agentHandler         *handlers.AgentHandler
	chatHandler          *handlers.ChatHandler
	orchestrationHandler *handlers.OrchestrationHandler
	discussionHandler    *handlers.DiscussionHandler

	// Rate limiter 清理 goroutine 的生命周期
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 按依赖顺序初始化组件并启动 HTTP 与 Metrics 服务器
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("agora", s.logger)

	if err := s.initTelemetry(); err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}
	s.initHandlers()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("llm_provider", s.provider.Name()),
	)
	return nil
}

// =============================================================================
// 🔧 初始化
// =============================================================================

// initTelemetry 初始化 OpenTelemetry（未启用时为空操作）
func (s *Server) initTelemetry() error {
	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		return err
	}
	s.telemetry = providers
	return nil
}

// initComponents 初始化 LLM Provider、缓存、数据库与各管理器
func (s *Server) initComponents() error {
	provider, err := newProvider(s.cfg.LLM, s.cfg.Agent.Model, s.logger)
	if err != nil {
		return err
	}
	s.provider = provider

	// Redis（可选）：讨论状态存储、状态镜像缓存
	if s.cfg.Redis.Enabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			DefaultTTL:   s.cfg.Redis.DefaultTTL,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		}, s.collector, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.cacheManager = mgr
	}

	// 数据库（可选）：终态讨论归档
	if s.cfg.Discussion.ArchiveEnabled {
		pool, err := database.Open(s.cfg.Database, s.collector, s.logger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		s.pool = pool
	}

	s.registry = agent.NewRegistry(buildCatalog(s.cfg.Agent), s.cfg.Agent.PromptsDir, provider, s.logger)

	s.orchManager = orchestration.NewManager(orchestration.Config{
		TerminationMarkers: s.cfg.Orchestration.TerminationMarkers,
		SelectorModel:      s.cfg.Orchestration.SelectorModel,
	}, s.registry, provider, s.logger)

	// 讨论状态存储：Redis 启用时用 Redis，否则内存
	var store discussion.Store
	if s.cacheManager != nil {
		store = discussion.NewRedisStore(s.cacheManager.Client(), s.cfg.Discussion.RetentionTTL)
	} else {
		store = discussion.NewMemoryStore()
	}
	var archive discussion.Store
	if s.pool != nil {
		gormStore := discussion.NewGormStore(s.pool.DB())
		if err := gormStore.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate archive schema: %w", err)
		}
		archive = gormStore
	}

	hub := discussion.NewHub(s.cfg.Discussion.SubscriberBuffer, s.collector, s.logger)

	s.discussionManager = discussion.NewManager(discussion.ManagerConfig{
		DefaultRounds:  s.cfg.Orchestration.DefaultRounds,
		Timeout:        s.cfg.Discussion.Timeout,
		StatusCacheTTL: s.cfg.Discussion.StatusCacheTTL,
	}, store, archive, hub, s.orchManager, s.registry, s.cacheManager, s.collector, s.logger)

	return nil
}

// initHandlers 初始化所有 handlers 并注册就绪检查
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewProviderCheck(s.provider))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cacheManager.Ping))
	}
	if s.pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.pool.Ping))
	}

	s.agentHandler = handlers.NewAgentHandler(s.registry, s.logger)
	s.chatHandler = handlers.NewChatHandler(s.registry, s.collector, s.logger)
	s.orchestrationHandler = handlers.NewOrchestrationHandler(
		s.orchManager, s.registry, s.cfg.Orchestration.DefaultRounds, s.logger)
	s.discussionHandler = handlers.NewDiscussionHandler(
		s.discussionManager, wsOriginPatterns(s.cfg.Server.CORSAllowedOrigins), s.logger)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 组装路由与中间件链并启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	s.healthHandler.Register(mux)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	s.agentHandler.Register(mux)
	s.chatHandler.Register(mux)
	s.orchestrationHandler.Register(mux)
	s.discussionHandler.Register(mux)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing("agora/http"))
	}
	middlewares = append(middlewares,
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx.Done(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
	if s.cfg.Auth.Enabled {
		if s.cfg.Auth.JWTSecret != "" {
			middlewares = append(middlewares,
				JWTAuth(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer, skipAuthPaths, s.logger))
		} else {
			middlewares = append(middlewares,
				APIKeyAuth(s.cfg.Auth.APIKeys, skipAuthPaths, s.logger))
		}
	}
	handler := Chain(mux, middlewares...)

	// WriteTimeout 为 0：WebSocket 推流连接不能受写超时约束
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    0,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 在独立端口暴露 Prometheus 指标
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务。
// 顺序：HTTP → Metrics → 缓存/数据库 → 遥测。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Database shutdown error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}

// =============================================================================
// 🧩 组件构建
// =============================================================================

// newProvider 按配置通过 factory 构建 LLM Provider，
// 未指定 provider 名称时默认 openai。
func newProvider(cfg config.LLMConfig, defaultModel string, logger *zap.Logger) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is required")
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	return factory.NewProviderFromConfig(name, factory.ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   defaultModel,
		Timeout: cfg.Timeout,
		Extra:   map[string]any{"organization": cfg.Organization},
	}, logger)
}

// wsOriginPatterns 把 CORS 来源列表转换为 WebSocket 握手用的主机模式。
// WebSocket 的来源校验按主机名匹配，因此取每个来源 URL 的 Host 部分；
// "*" 与无法解析出 Host 的条目原样保留。
func wsOriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// buildCatalog 在内置画像表上应用全局 Agent 配置覆盖
func buildCatalog(cfg config.AgentConfig) map[agent.AgentType]agent.Config {
	catalog := agent.DefaultCatalog()
	for t, c := range catalog {
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		if cfg.Temperature > 0 {
			c.Temperature = float32(cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			c.MaxTokens = cfg.MaxTokens
		}
		if cfg.TokenBudget > 0 {
			c.TokenBudget = cfg.TokenBudget
		}
		catalog[t] = c
	}
	return catalog
}
