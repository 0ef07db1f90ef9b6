package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Triplerush/ReMarketBackend/internal/api/middleware"
	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/policy"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
)

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) Reserve(ctx context.Context, input application.ReserveInput) (*transaction.Transaction, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockReservationService) Complete(ctx context.Context, listingID string, a actor.Actor) (*transaction.Transaction, error) {
	args := m.Called(ctx, listingID, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockReservationService) Cancel(ctx context.Context, listingID string, a actor.Actor) error {
	args := m.Called(ctx, listingID, a)
	return args.Error(0)
}

func (m *MockReservationService) GetTransaction(ctx context.Context, id string, a actor.Actor) (*transaction.Transaction, error) {
	args := m.Called(ctx, id, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockReservationService) ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockReservationService) ListAllTransactions(ctx context.Context, a actor.Actor, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, a, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

var testBuyer = actor.Actor{ID: "user-123", Role: actor.RoleUser}

func reservedTransaction() *transaction.Transaction {
	now := time.Now()
	return &transaction.Transaction{
		ID:        "txn-123",
		ListingID: "listing-123",
		BuyerID:   "user-123",
		SellerID:  "user-456",
		Price:     1200000,
		Status:    transaction.StatusReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReservationHandler_Reserve(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に予約できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		expected := reservedTransaction()
		mockService.On("Reserve", mock.Anything, application.ReserveInput{
			ListingID:      "listing-123",
			Buyer:          testBuyer,
			IdempotencyKey: "order-1",
		}).Return(expected, nil)

		body := `{"listing_id":"listing-123","idempotency_key":"order-1"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp TransactionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, expected.ID, resp.ID)
		assert.Equal(t, "reserved", resp.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("listing_idなしは400", func(t *testing.T) {
		mockService := new(MockReservationService)
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		mockService.AssertNotCalled(t, "Reserve")
	})

	t.Run("認証なしは401", func(t *testing.T) {
		mockService := new(MockReservationService)
		body := `{"listing_id":"listing-123"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("競合負けは409", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, application.ErrReservationConflict)

		body := `{"listing_id":"listing-123"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})

	t.Run("承認されていない出品は422", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, listing.ErrListingNotApproved)

		body := `{"listing_id":"listing-123"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	})

	t.Run("自己購入は403", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, policy.ErrSelfPurchase)

		body := `{"listing_id":"listing-123"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Reserve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestReservationHandler_Complete(t *testing.T) {
	e := NewTestEcho()
	seller := actor.Actor{ID: "user-456", Role: actor.RoleUser}

	t.Run("出品者が売却を確定できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		completed := reservedTransaction()
		now := time.Now()
		completed.Status = transaction.StatusCompleted
		completed.CompletedAt = &now
		mockService.On("Complete", mock.Anything, "listing-123", seller).Return(completed, nil)

		req := httptest.NewRequest(http.MethodPost, "/reservations/listing-123/complete", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("listingID")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, seller)

		h := NewReservationHandler(mockService)
		err := h.Complete(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	})

	t.Run("当事者以外は403", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Complete", mock.Anything, "listing-123", testBuyer).
			Return(nil, policy.ErrNotSellerOrAdmin)

		req := httptest.NewRequest(http.MethodPost, "/reservations/listing-123/complete", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("listingID")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Complete(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestReservationHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("予約をキャンセルできる", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Cancel", mock.Anything, "listing-123", testBuyer).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/reservations/listing-123/cancel", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("listingID")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Cancel(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("存在しない出品は404", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("Cancel", mock.Anything, "missing", testBuyer).
			Return(listing.ErrListingNotFound)

		req := httptest.NewRequest(http.MethodPost, "/reservations/missing/cancel", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("listingID")
		c.SetParamValues("missing")
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.Cancel(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestReservationHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("当事者はトランザクションを取得できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		expected := reservedTransaction()
		mockService.On("GetTransaction", mock.Anything, "txn-123", testBuyer).Return(expected, nil)

		req := httptest.NewRequest(http.MethodGet, "/reservations/txn-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("txn-123")
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("第三者は403", func(t *testing.T) {
		mockService := new(MockReservationService)
		other := actor.Actor{ID: "user-999", Role: actor.RoleUser}
		mockService.On("GetTransaction", mock.Anything, "txn-123", other).
			Return(nil, policy.ErrNotParticipant)

		req := httptest.NewRequest(http.MethodGet, "/reservations/txn-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("txn-123")
		middleware.SetActor(c, other)

		h := NewReservationHandler(mockService)
		err := h.GetByID(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestReservationHandler_ListMine(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockReservationService)
	mockService.On("ListUserTransactions", mock.Anything, testBuyer.ID, 10, 0).
		Return([]*transaction.Transaction{reservedTransaction()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/reservations?limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetActor(c, testBuyer)

	h := NewReservationHandler(mockService)
	err := h.ListMine(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestReservationHandler_ListAll(t *testing.T) {
	e := NewTestEcho()

	t.Run("管理者は全件取得できる", func(t *testing.T) {
		mockService := new(MockReservationService)
		admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}
		mockService.On("ListAllTransactions", mock.Anything, admin, 0, 0).
			Return([]*transaction.Transaction{reservedTransaction()}, nil)

		req := httptest.NewRequest(http.MethodGet, "/reservations/all", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, admin)

		h := NewReservationHandler(mockService)
		err := h.ListAll(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("一般ユーザーは403", func(t *testing.T) {
		mockService := new(MockReservationService)
		mockService.On("ListAllTransactions", mock.Anything, testBuyer, 0, 0).
			Return(nil, policy.ErrAdminOnly)

		req := httptest.NewRequest(http.MethodGet, "/reservations/all", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testBuyer)

		h := NewReservationHandler(mockService)
		err := h.ListAll(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}
