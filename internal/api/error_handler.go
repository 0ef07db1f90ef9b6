package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/policy"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
	"github.com/Triplerush/ReMarketBackend/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// HTTPStatus はドメインエラーをHTTPステータスコードに対応付ける
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, listing.ErrListingNotFound),
		errors.Is(err, transaction.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrActorRequired),
		errors.Is(err, policy.ErrSelfPurchase),
		errors.Is(err, policy.ErrNotSellerOrAdmin),
		errors.Is(err, policy.ErrNotParticipant),
		errors.Is(err, policy.ErrNotOwnerOrAdmin),
		errors.Is(err, policy.ErrAdminOnly):
		return http.StatusForbidden
	case errors.Is(err, listing.ErrListingNotApproved),
		errors.Is(err, listing.ErrListingNotReserved),
		errors.Is(err, listing.ErrListingNotPending),
		errors.Is(err, transaction.ErrTransactionAlreadyCompleted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrReservationConflict),
		errors.Is(err, listing.ErrVersionConflict),
		errors.Is(err, transaction.ErrIdempotencyKeyAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, listing.ErrSellerIDRequired),
		errors.Is(err, listing.ErrBrandRequired),
		errors.Is(err, listing.ErrModelRequired),
		errors.Is(err, listing.ErrInvalidPrice),
		errors.Is(err, listing.ErrNoEditableFields),
		errors.Is(err, transaction.ErrListingIDRequired),
		errors.Is(err, transaction.ErrBuyerIDRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if status := HTTPStatus(err); status != http.StatusInternalServerError {
		code = status
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
