package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Triplerush/ReMarketBackend/internal/api"
	"github.com/Triplerush/ReMarketBackend/internal/api/middleware"
	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
)

type ListingHandler struct {
	service ListingServiceInterface
}

func NewListingHandler(s ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: s}
}

type CreateListingRequest struct {
	Brand       string   `json:"brand" validate:"required" example:"Rolex"`
	Model       string   `json:"model" validate:"required" example:"Submariner"`
	Description string   `json:"description" example:"2020年購入、目立つ傷なし"`
	Price       int      `json:"price" validate:"gte=0" example:"1200000"`
	ImageURLs   []string `json:"image_urls" example:"https://example.com/img1.jpg"`
}

type UpdateListingRequest struct {
	Brand       *string  `json:"brand,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *int     `json:"price,omitempty" validate:"omitempty,gte=0"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

type ListingResponse struct {
	ID          string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SellerID    string    `json:"seller_id" example:"user-456"`
	Brand       string    `json:"brand" example:"Rolex"`
	Model       string    `json:"model" example:"Submariner"`
	Description string    `json:"description"`
	Price       int       `json:"price" example:"1200000"`
	ImageURLs   []string  `json:"image_urls"`
	Status      string    `json:"status" example:"approved"`
	Version     int       `json:"version" example:"0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toListingResponse(l *listing.Listing) ListingResponse {
	return ListingResponse{
		ID: l.ID, SellerID: l.SellerID, Brand: l.Brand, Model: l.Model,
		Description: l.Description, Price: l.Price, ImageURLs: l.ImageURLs,
		Status: string(l.Status), Version: l.Version,
		CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
	}
}

// Create godoc
// @Summary 出品を作成
// @Description 承認待ちの出品を作成します
// @Tags listings
// @Accept json
// @Produce json
// @Param request body CreateListingRequest true "出品情報"
// @Success 201 {object} ListingResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /listings [post]
func (h *ListingHandler) Create(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	l, err := h.service.CreateListing(c.Request().Context(), application.CreateListingInput{
		SellerID:    a.ID,
		Brand:       req.Brand,
		Model:       req.Model,
		Description: req.Description,
		Price:       req.Price,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, toListingResponse(l))
}

// GetByID godoc
// @Summary 出品を取得
// @Description 指定IDの出品を取得します
// @Tags listings
// @Produce json
// @Param id path string true "出品ID"
// @Success 200 {object} ListingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /listings/{id} [get]
func (h *ListingHandler) GetByID(c echo.Context) error {
	l, err := h.service.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

// List godoc
// @Summary 購入可能な出品一覧を取得
// @Description 承認済みの出品一覧を取得します
// @Tags listings
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ListingResponse
// @Router /listings [get]
func (h *ListingHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	listings, err := h.service.ListListings(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toListingResponses(listings))
}

// ListMine godoc
// @Summary 自分の出品一覧を取得
// @Description ログインユーザーの出品一覧を取得します（状態を問わない）
// @Tags listings
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ListingResponse
// @Router /listings/mine [get]
func (h *ListingHandler) ListMine(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	listings, err := h.service.ListSellerListings(c.Request().Context(), a.ID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toListingResponses(listings))
}

// Update godoc
// @Summary 出品を更新
// @Description 出品のカタログ項目を更新します（所有者または管理者のみ、状態は変更不可）
// @Tags listings
// @Accept json
// @Produce json
// @Param id path string true "出品ID"
// @Param request body UpdateListingRequest true "更新内容"
// @Success 200 {object} ListingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /listings/{id} [put]
func (h *ListingHandler) Update(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req UpdateListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	l, err := h.service.UpdateListing(c.Request().Context(), application.UpdateListingInput{
		ID:          c.Param("id"),
		Actor:       a,
		Brand:       req.Brand,
		Model:       req.Model,
		Description: req.Description,
		Price:       req.Price,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

// Approve godoc
// @Summary 出品を承認
// @Description 承認待ちの出品を承認します（管理者のみ）
// @Tags listings
// @Produce json
// @Param id path string true "出品ID"
// @Success 200 {object} ListingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse
// @Router /listings/{id}/approve [post]
func (h *ListingHandler) Approve(c echo.Context) error {
	return h.moderate(c, h.service.ApproveListing)
}

// Reject godoc
// @Summary 出品を却下
// @Description 承認待ちの出品を却下します（管理者のみ）
// @Tags listings
// @Produce json
// @Param id path string true "出品ID"
// @Success 200 {object} ListingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse
// @Router /listings/{id}/reject [post]
func (h *ListingHandler) Reject(c echo.Context) error {
	return h.moderate(c, h.service.RejectListing)
}

// Delete godoc
// @Summary 出品を削除
// @Description 出品を論理削除します（所有者または管理者のみ）
// @Tags listings
// @Produce json
// @Param id path string true "出品ID"
// @Success 204 "No Content"
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /listings/{id} [delete]
func (h *ListingHandler) Delete(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	if err := h.service.DeleteListing(c.Request().Context(), c.Param("id"), a); err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHandler) moderate(c echo.Context, fn func(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error)) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	l, err := fn(c.Request().Context(), c.Param("id"), a)
	if err != nil {
		return echo.NewHTTPError(api.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func toListingResponses(listings []*listing.Listing) []ListingResponse {
	resp := make([]ListingResponse, len(listings))
	for i, l := range listings {
		resp[i] = toListingResponse(l)
	}
	return resp
}
