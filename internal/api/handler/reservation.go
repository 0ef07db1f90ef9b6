package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Triplerush/ReMarketBackend/internal/api"
	"github.com/Triplerush/ReMarketBackend/internal/api/middleware"
	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type ReserveRequest struct {
	ListingID      string `json:"listing_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	IdempotencyKey string `json:"idempotency_key" example:"order-2026-001"`
}

type TransactionResponse struct {
	ID          string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ListingID   string     `json:"listing_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	BuyerID     string     `json:"buyer_id" example:"user-123"`
	SellerID    string     `json:"seller_id" example:"user-456"`
	Price       int        `json:"price" example:"1200000"`
	Status      string     `json:"status" example:"reserved"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toTransactionResponse(t *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID: t.ID, ListingID: t.ListingID, BuyerID: t.BuyerID, SellerID: t.SellerID,
		Price: t.Price, Status: string(t.Status),
		CompletedAt: t.CompletedAt, CancelledAt: t.CancelledAt, CreatedAt: t.CreatedAt,
	}
}

// Reserve godoc
// @Summary 出品を予約
// @Description 承認済みの出品を予約します。並行予約では1人だけが成功します
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body ReserveRequest true "予約情報"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse "自己購入は不可"
// @Failure 409 {object} api.ErrorResponse "他の購入者が先に予約済み"
// @Failure 422 {object} api.ErrorResponse "予約できない状態"
// @Router /reservations [post]
func (h *ReservationHandler) Reserve(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req ReserveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	t, err := h.service.Reserve(c.Request().Context(), application.ReserveInput{
		ListingID:      req.ListingID,
		Buyer:          a,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(t))
}

// Complete godoc
// @Summary 売却を確定
// @Description 予約中の出品を売却済みにします（出品者または管理者のみ）
// @Tags reservations
// @Produce json
// @Param listingID path string true "出品ID"
// @Success 200 {object} TransactionResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse
// @Router /reservations/{listingID}/complete [post]
func (h *ReservationHandler) Complete(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	t, err := h.service.Complete(c.Request().Context(), c.Param("listingID"), a)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約を取り消し、出品を承認済みに戻します（冪等）
// @Tags reservations
// @Produce json
// @Param listingID path string true "出品ID"
// @Success 204 "No Content"
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{listingID}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	if err := h.service.Cancel(c.Request().Context(), c.Param("listingID"), a); err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// GetByID godoc
// @Summary トランザクションを取得
// @Description 指定IDのトランザクションを取得します（当事者または管理者のみ）
// @Tags reservations
// @Produce json
// @Param id path string true "トランザクションID"
// @Success 200 {object} TransactionResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	t, err := h.service.GetTransaction(c.Request().Context(), c.Param("id"), a)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

// ListMine godoc
// @Summary 自分のトランザクション一覧を取得
// @Description ログインユーザーが購入者または出品者であるトランザクション一覧を取得します
// @Tags reservations
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} TransactionResponse
// @Router /reservations [get]
func (h *ReservationHandler) ListMine(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	transactions, err := h.service.ListUserTransactions(c.Request().Context(), a.ID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toTransactionResponses(transactions))
}

// ListAll godoc
// @Summary 全トランザクション一覧を取得
// @Description 全トランザクション一覧を取得します（管理者のみ）
// @Tags reservations
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} TransactionResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /reservations/all [get]
func (h *ReservationHandler) ListAll(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	transactions, err := h.service.ListAllTransactions(c.Request().Context(), a, limit, offset)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toTransactionResponses(transactions))
}

func toTransactionResponses(transactions []*transaction.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, len(transactions))
	for i, t := range transactions {
		resp[i] = toTransactionResponse(t)
	}
	return resp
}
