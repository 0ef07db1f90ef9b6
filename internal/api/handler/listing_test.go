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
)

// MockListingService はListingServiceInterfaceのモック
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, input application.CreateListingInput) (*listing.Listing, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingService) GetListing(ctx context.Context, id string) (*listing.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, limit, offset int) ([]*listing.Listing, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockListingService) ListSellerListings(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Listing, error) {
	args := m.Called(ctx, sellerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, input application.UpdateListingInput) (*listing.Listing, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingService) ApproveListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error) {
	args := m.Called(ctx, id, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingService) RejectListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error) {
	args := m.Called(ctx, id, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, id string, a actor.Actor) error {
	args := m.Called(ctx, id, a)
	return args.Error(0)
}

var testSeller = actor.Actor{ID: "user-456", Role: actor.RoleUser}

func approvedListing() *listing.Listing {
	now := time.Now()
	return &listing.Listing{
		ID:        "listing-123",
		SellerID:  "user-456",
		Brand:     "Rolex",
		Model:     "Submariner",
		Price:     1200000,
		Status:    listing.StatusApproved,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestListingHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に出品を作成できる", func(t *testing.T) {
		mockService := new(MockListingService)
		created := approvedListing()
		created.Status = listing.StatusPending
		mockService.On("CreateListing", mock.Anything, application.CreateListingInput{
			SellerID: testSeller.ID,
			Brand:    "Rolex",
			Model:    "Submariner",
			Price:    1200000,
		}).Return(created, nil)

		body := `{"brand":"Rolex","model":"Submariner","price":1200000}`
		req := httptest.NewRequest(http.MethodPost, "/listings", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testSeller)

		h := NewListingHandler(mockService)
		err := h.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
		mockService.AssertExpectations(t)
	})

	t.Run("必須項目なしは400", func(t *testing.T) {
		mockService := new(MockListingService)
		body := `{"brand":"Rolex"}`
		req := httptest.NewRequest(http.MethodPost, "/listings", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		middleware.SetActor(c, testSeller)

		h := NewListingHandler(mockService)
		err := h.Create(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		mockService.AssertNotCalled(t, "CreateListing")
	})
}

func TestListingHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("出品を取得できる", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("GetListing", mock.Anything, "listing-123").Return(approvedListing(), nil)

		req := httptest.NewRequest(http.MethodGet, "/listings/listing-123", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")

		h := NewListingHandler(mockService)
		err := h.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ListingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "listing-123", resp.ID)
	})

	t.Run("存在しない出品は404", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("GetListing", mock.Anything, "missing").
			Return(nil, listing.ErrListingNotFound)

		req := httptest.NewRequest(http.MethodGet, "/listings/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		h := NewListingHandler(mockService)
		err := h.GetByID(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestListingHandler_List(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockListingService)
	mockService.On("ListListings", mock.Anything, 20, 0).
		Return([]*listing.Listing{approvedListing()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/listings?limit=20", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewListingHandler(mockService)
	err := h.List(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []ListingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestListingHandler_Update(t *testing.T) {
	e := NewTestEcho()

	t.Run("所有者がカタログ項目を更新できる", func(t *testing.T) {
		mockService := new(MockListingService)
		updated := approvedListing()
		updated.Price = 1100000
		newPrice := 1100000
		mockService.On("UpdateListing", mock.Anything, application.UpdateListingInput{
			ID:    "listing-123",
			Actor: testSeller,
			Price: &newPrice,
		}).Return(updated, nil)

		body := `{"price":1100000}`
		req := httptest.NewRequest(http.MethodPut, "/listings/listing-123", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, testSeller)

		h := NewListingHandler(mockService)
		err := h.Update(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"price":1100000`)
	})

	t.Run("所有者以外は403", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("UpdateListing", mock.Anything, mock.Anything).
			Return(nil, policy.ErrNotOwnerOrAdmin)

		body := `{"description":"updated"}`
		req := httptest.NewRequest(http.MethodPut, "/listings/listing-123", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, actor.Actor{ID: "user-999", Role: actor.RoleUser})

		h := NewListingHandler(mockService)
		err := h.Update(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestListingHandler_Moderation(t *testing.T) {
	e := NewTestEcho()
	admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}

	t.Run("管理者が出品を承認できる", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("ApproveListing", mock.Anything, "listing-123", admin).
			Return(approvedListing(), nil)

		req := httptest.NewRequest(http.MethodPost, "/listings/listing-123/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, admin)

		h := NewListingHandler(mockService)
		err := h.Approve(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	})

	t.Run("一般ユーザーの承認は403", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("ApproveListing", mock.Anything, "listing-123", testSeller).
			Return(nil, policy.ErrAdminOnly)

		req := httptest.NewRequest(http.MethodPost, "/listings/listing-123/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, testSeller)

		h := NewListingHandler(mockService)
		err := h.Approve(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})

	t.Run("承認待ちでない出品の却下は422", func(t *testing.T) {
		mockService := new(MockListingService)
		mockService.On("RejectListing", mock.Anything, "listing-123", admin).
			Return(nil, listing.ErrListingNotPending)

		req := httptest.NewRequest(http.MethodPost, "/listings/listing-123/reject", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("listing-123")
		middleware.SetActor(c, admin)

		h := NewListingHandler(mockService)
		err := h.Reject(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	})
}

func TestListingHandler_Delete(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockListingService)
	mockService.On("DeleteListing", mock.Anything, "listing-123", testSeller).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/listings/listing-123", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("listing-123")
	middleware.SetActor(c, testSeller)

	h := NewListingHandler(mockService)
	err := h.Delete(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	mockService.AssertExpectations(t)
}
