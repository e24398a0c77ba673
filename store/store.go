// Package store declares the persistence contract the marketplace services
// depend on. mongostore is the production implementation and memstore backs
// local runs and tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrTxnUnsupported means the deployment cannot run multi-document
	// transactions (e.g. a standalone mongod). No write was applied.
	ErrTxnUnsupported = errors.New("store: multi-document transactions unsupported")
	// ErrWriteConflict means a concurrent transaction touched the same
	// documents and the driver gave up retrying.
	ErrWriteConflict = errors.New("store: write conflict")
)

// HireWriter holds the conditional writes a hire is made of. Each method is
// atomic on its own; grouping them is up to the caller.
type HireWriter interface {
	// AssignGigIfOpen moves the gig from OPEN to ASSIGNED and records the
	// winning bid. It reports false when the gig was not OPEN.
	AssignGigIfOpen(ctx context.Context, gigID, bidID primitive.ObjectID, at time.Time) (bool, error)
	// MarkBidHired moves a PENDING bid to HIRED.
	MarkBidHired(ctx context.Context, bidID primitive.ObjectID, at time.Time) (bool, error)
	// RejectPendingBids moves every PENDING bid of the gig except keep to REJECTED.
	RejectPendingBids(ctx context.Context, gigID, keep primitive.ObjectID, at time.Time) (int64, error)
}

type GigStore interface {
	InsertGig(ctx context.Context, gig *models.Gig) error
	FindGig(ctx context.Context, id primitive.ObjectID) (*models.Gig, error)
	FindGigView(ctx context.Context, id primitive.ObjectID) (*models.GigView, error)
	// SearchOpenGigs lists OPEN gigs, newest first, optionally filtered by a
	// case-insensitive match on title or description.
	SearchOpenGigs(ctx context.Context, query string) ([]models.GigView, error)
	ListGigsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Gig, error)
	// GigsNeedingRepair lists ASSIGNED gigs whose hired bid is not HIRED yet
	// or that still have PENDING bids.
	GigsNeedingRepair(ctx context.Context) ([]models.Gig, error)
}

type BidStore interface {
	// InsertBid returns ErrDuplicate when the (gigId, freelancerId) pair exists.
	InsertBid(ctx context.Context, bid *models.Bid) error
	FindBid(ctx context.Context, id primitive.ObjectID) (*models.Bid, error)
	FindBidView(ctx context.Context, id primitive.ObjectID) (*models.BidView, error)
	FindBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID primitive.ObjectID) (*models.Bid, error)
	// ListBidsForGig joins the bidder, newest first.
	ListBidsForGig(ctx context.Context, gigID primitive.ObjectID) ([]models.BidView, error)
	// ListBidsByFreelancer joins the gig, newest first.
	ListBidsByFreelancer(ctx context.Context, freelancerID primitive.ObjectID) ([]models.BidView, error)
}

type UserStore interface {
	// InsertUser returns ErrDuplicate when the email is taken.
	InsertUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TxFunc runs inside a transaction. Returning an error aborts it.
type TxFunc func(ctx context.Context, w HireWriter) error

type Store interface {
	GigStore
	BidStore
	UserStore
	HireWriter

	// WithTransaction runs fn with a writer whose writes become visible
	// together or not at all. It returns ErrTxnUnsupported when the
	// deployment has no multi-document isolation.
	WithTransaction(ctx context.Context, fn TxFunc) error
	// SupportsTransactions probes the deployment.
	SupportsTransactions(ctx context.Context) (bool, error)
}
