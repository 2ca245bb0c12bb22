package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noob-master-cell/esn-sub001/internal/api"
	"github.com/noob-master-cell/esn-sub001/internal/api/handler"
	custommw "github.com/noob-master-cell/esn-sub001/internal/api/middleware"
	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/config"
	"github.com/noob-master-cell/esn-sub001/internal/infrastructure/postgres"
	redisinfra "github.com/noob-master-cell/esn-sub001/internal/infrastructure/redis"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/metrics"
	"github.com/noob-master-cell/esn-sub001/internal/worker"
)

func main() {
	// 設定読み込み
	cfg := config.Load()

	// ロガー初期化
	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()

	logger.Info("アプリケーションを起動します", zap.String("env", cfg.Env))

	// メトリクス初期化
	m := metrics.Init()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	if err := postgres.RunMigrations(db.DB, "migrations"); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		logger.Warn("Redis接続の確認に失敗しました（ロックなしで継続）", zap.Error(err))
	}
	cancel()

	// インフラ層
	txManager := postgres.NewTxManager(db)
	eventRepo := postgres.NewEventRepository(db)
	regRepo := postgres.NewRegistrationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	ledger := postgres.NewCapacityLedger(db)
	lockManager := redisinfra.NewLockManager(redisClient)
	capCache := redisinfra.NewCapacityCache(redisClient)

	// アプリケーション層
	promotionService := application.NewPromotionService(txManager, regRepo, ledger, lockManager, capCache)
	admissionService := application.NewAdmissionService(txManager, regRepo, eventRepo, userRepo, ledger, lockManager, capCache, promotionService)
	eventService := application.NewEventService(txManager, eventRepo, regRepo, promotionService, capCache)

	// 昇格リコンサイラー起動
	reconciler := worker.NewPromotionReconciler(promotionService, eventRepo, cfg.Worker.PromotionInterval)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go reconciler.Start(workerCtx)

	// ハンドラー
	eventHandler := handler.NewEventHandler(eventService, admissionService)
	registrationHandler := handler.NewRegistrationHandler(admissionService)
	healthHandler := handler.NewHealthHandler(map[string]handler.Checker{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) },
	})

	// Echo設定
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	custommw.SetupMiddleware(e)
	e.Use(custommw.PrometheusMiddleware(m))

	// ルーティング
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())

	v1 := e.Group("/api/v1")

	v1.POST("/events", eventHandler.Create)
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.GET("/events/:id/capacity", eventHandler.Capacity)
	v1.PUT("/events/:id", eventHandler.Update)
	v1.DELETE("/events/:id", eventHandler.Delete)
	v1.POST("/events/:id/publish", eventHandler.Publish)
	v1.POST("/events/:id/open", eventHandler.OpenRegistration)
	v1.POST("/events/:id/close", eventHandler.CloseRegistration)
	v1.GET("/events/:id/registrations", registrationHandler.ListByEvent)

	v1.POST("/registrations", registrationHandler.Create)
	v1.GET("/registrations", registrationHandler.ListMine)
	v1.GET("/registrations/:id", registrationHandler.GetByID)
	v1.DELETE("/registrations/:id", registrationHandler.Cancel)
	v1.POST("/registrations/:id/attend", registrationHandler.Attend)

	// サーバー起動
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("サーバーを起動します", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// ワーカー停止
	workerCancel()
	reconciler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
