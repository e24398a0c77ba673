// Package bids accepts bids on open gigs and serves bid listings. Hiring
// itself lives in package hire.
package bids

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/apperr"
	"gigmarket/guard"
	"gigmarket/models"
	"gigmarket/store"
	"gigmarket/utils"
)

const (
	MsgGigNotFound  = "gig not found"
	MsgGigNotOpen   = "gig is no longer open"
	MsgOwnGig       = "cannot bid on your own gig"
	MsgAlreadyBid   = "you have already bid on this gig"
	MsgNotGigOwner  = "not authorized to view these bids"
	MsgUnauthorized = "unauthorized access"
)

type SubmitInput struct {
	GigID   string   `json:"gigId" validate:"required"`
	Message string   `json:"message" validate:"required"`
	Price   *float64 `json:"price" validate:"required,gte=0"`
}

// Gate decides whether a bid may be created.
type Gate struct {
	st  store.Store
	now func() time.Time
}

func NewGate(st store.Store) *Gate {
	return &Gate{st: st, now: time.Now}
}

// SubmitBid records actor's bid on in.GigID. The pre-check against an
// existing bid only gives a friendlier error; the unique index on
// (gigId, freelancerId) is what rejects concurrent duplicates.
func (g *Gate) SubmitBid(ctx context.Context, actor string, in SubmitInput) (*models.BidView, error) {
	freelancer, ok := guard.ObjectID(actor)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, MsgUnauthorized)
	}
	in.Message = strings.TrimSpace(in.Message)
	in.GigID = strings.TrimSpace(in.GigID)
	if err := utils.Validate(&in); err != nil {
		return nil, err
	}

	gigID, ok := guard.ObjectID(in.GigID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
	}
	gig, err := g.st.FindGig(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
		}
		return nil, apperr.InternalErr(err)
	}
	if gig.Status != models.GigOpen {
		return nil, apperr.New(apperr.InvalidState, MsgGigNotOpen)
	}
	if guard.IsOwner(freelancer, gig) {
		return nil, apperr.New(apperr.InvalidState, MsgOwnGig)
	}

	if _, err := g.st.FindBidByGigAndFreelancer(ctx, gig.ID, freelancer); err == nil {
		return nil, apperr.New(apperr.Conflict, MsgAlreadyBid)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.InternalErr(err)
	}

	now := g.now().UTC()
	bid := &models.Bid{
		ID:           primitive.NewObjectID(),
		GigID:        gig.ID,
		FreelancerID: freelancer,
		Message:      in.Message,
		Price:        *in.Price,
		Status:       models.BidPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.st.InsertBid(ctx, bid); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, MsgAlreadyBid, err)
		}
		return nil, apperr.InternalErr(err)
	}

	view, err := g.st.FindBidView(ctx, bid.ID)
	if err != nil {
		// the bid exists; answer with what we wrote
		return &models.BidView{Bid: *bid, Gig: gig.Summary()}, nil
	}
	return view, nil
}

// ListBidsForGig returns the bids on a gig, newest first. Only the owner may
// see them.
func (g *Gate) ListBidsForGig(ctx context.Context, actor, gigID string) ([]models.BidView, error) {
	oid, ok := guard.ObjectID(gigID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
	}
	gig, err := g.st.FindGig(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
		}
		return nil, apperr.InternalErr(err)
	}
	if !guard.IsOwner(actor, gig) {
		return nil, apperr.New(apperr.Forbidden, MsgNotGigOwner)
	}

	list, err := g.st.ListBidsForGig(ctx, gig.ID)
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	return nonNil(list), nil
}

// ListMyBids returns actor's bids joined with their gigs.
func (g *Gate) ListMyBids(ctx context.Context, actor string) ([]models.BidView, error) {
	oid, ok := guard.ObjectID(actor)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, MsgUnauthorized)
	}
	list, err := g.st.ListBidsByFreelancer(ctx, oid)
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	return nonNil(list), nil
}

func nonNil(list []models.BidView) []models.BidView {
	if list == nil {
		return []models.BidView{}
	}
	return list
}
