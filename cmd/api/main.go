package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Triplerush/ReMarketBackend/internal/api"
	"github.com/Triplerush/ReMarketBackend/internal/api/handler"
	custommiddleware "github.com/Triplerush/ReMarketBackend/internal/api/middleware"
	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/config"
	"github.com/Triplerush/ReMarketBackend/internal/domain/event"
	"github.com/Triplerush/ReMarketBackend/internal/infrastructure/postgres"
	"github.com/Triplerush/ReMarketBackend/internal/infrastructure/redis"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/logger"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/metrics"
	"github.com/Triplerush/ReMarketBackend/internal/worker"
)

func main() {
	// .env ファイルの読み込み（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	// ロガー初期化
	log := logger.NewLogger(cfg.Server.Env)
	logger.Set(log)
	defer logger.Sync()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		log.Warn("マイグレーション実行に失敗", zap.Error(err))
	}

	// Redis接続（失敗してもキャッシュ・イベント通知なしで起動する）
	var (
		listingCache *redis.ListingCache
		publisher    *redis.Publisher
	)
	redisClient := redis.NewClient(&cfg.Redis)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redis.Ping(pingCtx, redisClient); err != nil {
		log.Warn("Redis接続に失敗、キャッシュなしで起動", zap.Error(err))
		redisClient = nil
	} else {
		listingCache = redis.NewListingCache(redisClient)
		publisher = redis.NewPublisher(redisClient, cfg.Redis.EventChannel)
		defer redisClient.Close()
	}
	pingCancel()

	// メトリクス初期化
	m := metrics.Init()

	// リポジトリ
	listingRepo := postgres.NewListingRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	txManager := postgres.NewTxManager(db)

	// サービス
	var (
		snapshotCache application.ListingSnapshotCache
		statusCache   application.ListingCache
		eventPub      event.Publisher
	)
	if listingCache != nil {
		snapshotCache = listingCache
		statusCache = listingCache
	}
	if publisher != nil {
		eventPub = publisher
	}
	listingService := application.NewListingService(listingRepo, snapshotCache)
	reservationService := application.NewReservationService(
		txManager, listingRepo, txnRepo, eventPub, statusCache, m)

	// ハンドラー
	listingHandler := handler.NewListingHandler(listingService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	healthHandler := handler.NewHealthHandler()

	// Echo設定
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))

	// ルーティング
	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.GET("/listings", listingHandler.List)
	v1.GET("/listings/:id", listingHandler.GetByID)

	auth := v1.Group("", custommiddleware.JWTAuth(cfg.Auth.JWTSecret))
	auth.POST("/listings", listingHandler.Create)
	auth.GET("/listings/mine", listingHandler.ListMine)
	auth.PUT("/listings/:id", listingHandler.Update)
	auth.DELETE("/listings/:id", listingHandler.Delete)
	auth.POST("/listings/:id/approve", listingHandler.Approve)
	auth.POST("/listings/:id/reject", listingHandler.Reject)
	auth.POST("/reservations", reservationHandler.Reserve)
	auth.GET("/reservations", reservationHandler.ListMine)
	auth.GET("/reservations/all", reservationHandler.ListAll)
	auth.GET("/reservations/:id", reservationHandler.GetByID)
	auth.POST("/reservations/:listingID/complete", reservationHandler.Complete)
	auth.POST("/reservations/:listingID/cancel", reservationHandler.Cancel)

	// メトリクスエンドポイント
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommiddleware.MetricsBasicAuth())

	// バックグラウンドワーカー
	workerCtx, workerCancel := context.WithCancel(context.Background())
	reconciler := worker.NewStatsReconciler(listingRepo, txnRepo, m, cfg.Worker.StatsInterval)
	go reconciler.Start(workerCtx)

	// サーバー起動
	go func() {
		addr := ":" + cfg.Server.Port
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")

	workerCancel()
	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
