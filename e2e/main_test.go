package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Triplerush/ReMarketBackend/internal/api"
	"github.com/Triplerush/ReMarketBackend/internal/api/handler"
	custommiddleware "github.com/Triplerush/ReMarketBackend/internal/api/middleware"
	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/config"
	"github.com/Triplerush/ReMarketBackend/internal/infrastructure/postgres"
	redisinfra "github.com/Triplerush/ReMarketBackend/internal/infrastructure/redis"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo      *echo.Echo
	JWTSecret string
	Cleanup   func()
}

// NewTestServer はテスト用サーバーを作成
// DBまたはRedisが起動していない場合はテストをスキップする
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	if err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
		t.Logf("マイグレーション実行エラー: %v", err)
	}

	redisClient := redisinfra.NewClient(&cfg.Redis)
	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := redisinfra.Ping(pingCtx, redisClient); err != nil {
		db.Close()
		t.Skipf("Redis接続エラー: %v", err)
	}

	listingCache := redisinfra.NewListingCache(redisClient)
	publisher := redisinfra.NewPublisher(redisClient, cfg.Redis.EventChannel)

	listingRepo := postgres.NewListingRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	txManager := postgres.NewTxManager(db)

	listingService := application.NewListingService(listingRepo, listingCache)
	reservationService := application.NewReservationService(
		txManager, listingRepo, txnRepo, publisher, listingCache, nil)

	listingHandler := handler.NewListingHandler(listingService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	healthHandler := handler.NewHealthHandler()

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommiddleware.SetupMiddleware(e)

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

	cleanup := func() {
		db.Exec("TRUNCATE TABLE transactions, listings CASCADE")
		redisClient.FlushDB(context.Background())
		redisClient.Close()
		db.Close()
	}

	return &TestServer{Echo: e, JWTSecret: cfg.Auth.JWTSecret, Cleanup: cleanup}
}

// Token は指定ユーザーのテスト用JWTを発行する
func (s *TestServer) Token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.JWTSecret))
	if err != nil {
		t.Fatalf("トークン発行エラー: %v", err)
	}
	return signed
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}
