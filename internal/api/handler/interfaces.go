package handler

import (
	"context"

	"github.com/Triplerush/ReMarketBackend/internal/application"
	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
	"github.com/Triplerush/ReMarketBackend/internal/domain/listing"
	"github.com/Triplerush/ReMarketBackend/internal/domain/transaction"
)

// ListingServiceInterface は出品サービスのインターフェース
type ListingServiceInterface interface {
	CreateListing(ctx context.Context, input application.CreateListingInput) (*listing.Listing, error)
	GetListing(ctx context.Context, id string) (*listing.Listing, error)
	ListListings(ctx context.Context, limit, offset int) ([]*listing.Listing, error)
	ListSellerListings(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Listing, error)
	UpdateListing(ctx context.Context, input application.UpdateListingInput) (*listing.Listing, error)
	ApproveListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error)
	RejectListing(ctx context.Context, id string, a actor.Actor) (*listing.Listing, error)
	DeleteListing(ctx context.Context, id string, a actor.Actor) error
}

// ReservationServiceInterface は予約調停サービスのインターフェース
type ReservationServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*transaction.Transaction, error)
	Complete(ctx context.Context, listingID string, a actor.Actor) (*transaction.Transaction, error)
	Cancel(ctx context.Context, listingID string, a actor.Actor) error
	GetTransaction(ctx context.Context, id string, a actor.Actor) (*transaction.Transaction, error)
	ListUserTransactions(ctx context.Context, userID string, limit, offset int) ([]*transaction.Transaction, error)
	ListAllTransactions(ctx context.Context, a actor.Actor, limit, offset int) ([]*transaction.Transaction, error)
}
