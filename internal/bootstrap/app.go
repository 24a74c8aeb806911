package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/DauBapp/WebCoCaro-DACN/internal/handler/http"
	wsHandler "github.com/DauBapp/WebCoCaro-DACN/internal/handler/websocket"
	"github.com/DauBapp/WebCoCaro-DACN/internal/hub"
	gormpersistence "github.com/DauBapp/WebCoCaro-DACN/internal/infra/persistence/gorm"
	"github.com/DauBapp/WebCoCaro-DACN/internal/infra/persistence/memory"
	"github.com/DauBapp/WebCoCaro-DACN/internal/infra/setup"
	redisstate "github.com/DauBapp/WebCoCaro-DACN/internal/infra/state/redis"
	"github.com/DauBapp/WebCoCaro-DACN/internal/middleware"
	"github.com/DauBapp/WebCoCaro-DACN/internal/registry"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
	"github.com/DauBapp/WebCoCaro-DACN/internal/service"
	"github.com/DauBapp/WebCoCaro-DACN/internal/tasks"
	"github.com/DauBapp/WebCoCaro-DACN/internal/worker"
)

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // memory 驱动时为 nil
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	Worker      *worker.WorkerServer
	Scheduler   *worker.Scheduler
	Hub         *hub.Hub
	HttpServer  *http.Server

	hubCancel context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	var (
		db          *gorm.DB
		userRepo    repository.UserRepository
		historyRepo repository.HistoryRepository
	)
	if cfg.DB.Driver == setup.DriverMemory {
		log.Warn("DB_DRIVER=memory: users and game history are not persisted across restarts")
		userRepo = memory.NewUserRepository()
		historyRepo = memory.NewHistoryRepository()
	} else {
		db, err = setup.InitDB(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		log.Info("Database migrated")
		userRepo = gormpersistence.NewGormUserRepository(db)
		historyRepo = gormpersistence.NewGormHistoryRepository(db)
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Services 和 Hub
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	historyService := service.NewHistoryService(historyRepo, stateRepo, cfg.HistoryKeep, cfg.HistoryPageSize)

	hubInstance := hub.NewHub(stateRepo, cfg.WSRateLimitMax, time.Second)
	gameService := service.NewGameService(registry.New(), historyRepo, historyService, hubInstance, tasks.NewEnqueuer(asynqClient))
	hubInstance.SetDispatcher(gameService)
	log.Info("Services initialized")

	// 5. 后台任务
	workerServer := worker.NewWorkerServer(redisOpt, historyService, log)
	scheduler, err := worker.NewScheduler(redisOpt, cfg.HistoryPruneSchedule, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// 6. 路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := NewRouter(cfg, Handlers{
		Auth:      httpHandler.NewAuthHandler(authService),
		Rooms:     httpHandler.NewRoomHandler(gameService),
		History:   httpHandler.NewHistoryHandler(historyService),
		WebSocket: wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSAllowedOrigin),
	}, stateRepo)

	app := &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		Worker:      workerServer,
		Scheduler:   scheduler,
		Hub:         hubInstance,
		HttpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // 已由 LoadConfig 校验
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

// Handlers 路由用到的所有 HTTP 处理器
type Handlers struct {
	Auth      *httpHandler.AuthHandler
	Rooms     *httpHandler.RoomHandler
	History   *httpHandler.HistoryHandler
	WebSocket *wsHandler.WebSocketHandler
}

// NewRouter 组装 Gin 引擎。除注册、登录和 /ping 外都需要 JWT。
func NewRouter(cfg *Config, h Handlers, limiter repository.StateRepository) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSAllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimitMax, cfg.RateLimitWindow))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
	}

	authed := api.Group("", middleware.Auth(cfg.JWTSecret))
	{
		authed.GET("/me", h.Auth.Me)
		authed.GET("/rooms", h.Rooms.List)
		authed.GET("/rooms/:roomId/exists", h.Rooms.Exists)
		authed.GET("/history", h.History.List)
		authed.GET("/history/:gameId/moves", h.History.Moves)
	}

	router.GET("/ws", middleware.Auth(cfg.JWTSecret), h.WebSocket.HandleConnection)
	return router
}

// Start 启动 Hub、后台任务和 HTTP 服务器
func (a *App) Start() error {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.Hub.Run(hubCtx)
	a.Log.Info("Hub routine started")

	if err := a.Worker.Start(); err != nil {
		return err
	}
	if err := a.Scheduler.Start(); err != nil {
		return err
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭所有 WebSocket 连接
	if a.hubCancel != nil {
		a.hubCancel()
	}

	// 3. 后台任务
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.Worker != nil {
		a.Worker.Shutdown()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	// 4. Redis 和数据库
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
