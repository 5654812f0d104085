// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/depovault/pkg/cache"
	"github.com/yeisme/depovault/pkg/configs"
	"github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/jobs"
	"github.com/yeisme/depovault/pkg/internal/storage"
	"github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/metrics"
	"github.com/yeisme/depovault/pkg/middleware"
	"github.com/yeisme/depovault/pkg/scheduler"
	"github.com/yeisme/depovault/pkg/tracing"
)

type App struct {
	Engine    *gin.Engine
	Manager   *storage.Manager
	Scheduler *scheduler.Scheduler
	config    *configs.AppConfig
}

func NewApp(configPath string) *App {
	ctx := contextPkg.Background()
	engine := gin.New()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	// 初始化追踪
	config := configs.GetConfig()
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.CORSMiddleware(config.Server),
		middleware.AuthMiddleware(config.Auth),
		middleware.RoleMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.CircuitBreakerMiddleware(config.CircuitBreaker),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.SchedulerMiddleware(sched),
		recordCacheMiddleware(manager),
	)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	return &App{
		Engine:    engine,
		Manager:   manager,
		Scheduler: sched,
		config:    config,
	}
}

func (a *App) Run() error {
	a.Scheduler.Start()
	defer func() { _ = a.Scheduler.Shutdown() }()

	return a.Engine.Run(fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port))
}

// WorkerContext 返回挂好存储管理器的基础 context，供后台 worker 使用.
func (a *App) WorkerContext() contextPkg.Context {
	return context.WithStorageManager(contextPkg.Background(), a.Manager)
}

// recordCacheMiddleware 对已发布记录与统计的读路由做响应缓存.
// 记录修订不可变，短 TTL 足以挡住热点读；其余路径全部跳过.
func recordCacheMiddleware(manager *storage.Manager) gin.HandlerFunc {
	cfg := middleware.DefaultCacheConfig(cache.NewCache(manager.KV.KVStore))
	cfg.Skipper = func(c *gin.Context) bool {
		p := c.Request.URL.Path

		return !strings.HasPrefix(p, "/api/v1/records") && p != "/api/v1/stats"
	}

	return middleware.CacheMiddleware(cfg)
}
