package bids

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/apperr"
	"gigmarket/memstore"
	"gigmarket/models"
)

func price(v float64) *float64 { return &v }

type env struct {
	st         *memstore.Store
	gate       *Gate
	owner      *models.User
	freelancer *models.User
	gig        *models.Gig
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	owner := &models.User{ID: primitive.NewObjectID(), Name: "Owner", Email: "owner@example.com"}
	freelancer := &models.User{ID: primitive.NewObjectID(), Name: "Dev", Email: "dev@example.com"}
	require.NoError(t, st.InsertUser(ctx, owner))
	require.NoError(t, st.InsertUser(ctx, freelancer))
	gig := &models.Gig{ID: primitive.NewObjectID(), Title: "API work", Description: "go", Budget: 300,
		OwnerID: owner.ID, Status: models.GigOpen, CreatedAt: time.Now()}
	require.NoError(t, st.InsertGig(ctx, gig))
	return &env{st: st, gate: NewGate(st), owner: owner, freelancer: freelancer, gig: gig}
}

func (e *env) bidCount(t *testing.T) int {
	t.Helper()
	list, err := e.st.ListBidsForGig(context.Background(), e.gig.ID)
	require.NoError(t, err)
	return len(list)
}

func TestSubmitBid(t *testing.T) {
	e := newEnv(t)

	view, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "  I can do it  ", Price: price(250),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BidPending, view.Status)
	assert.Equal(t, "I can do it", view.Message)
	assert.Equal(t, 250.0, view.Price)
	assert.Equal(t, e.freelancer.ID, view.FreelancerID)
	require.NotNil(t, view.Freelancer)
	assert.Equal(t, "Dev", view.Freelancer.Name)
	require.NotNil(t, view.Gig)
	assert.Equal(t, "API work", view.Gig.Title)
}

func TestSubmitBidZeroPriceAllowed(t *testing.T) {
	e := newEnv(t)
	_, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "free", Price: price(0),
	})
	assert.NoError(t, err)
}

func TestSubmitBidOnAssignedGig(t *testing.T) {
	e := newEnv(t)
	ok, err := e.st.AssignGigIfOpen(context.Background(), e.gig.ID, primitive.NewObjectID(), time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "late", Price: price(10),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	assert.Equal(t, MsgGigNotOpen, apperr.Message(err))
	assert.Zero(t, e.bidCount(t))
}

func TestSubmitBidOnOwnGig(t *testing.T) {
	e := newEnv(t)
	_, err := e.gate.SubmitBid(context.Background(), e.owner.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "me", Price: price(10),
	})
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
	assert.Equal(t, MsgOwnGig, apperr.Message(err))
	assert.Zero(t, e.bidCount(t))
}

func TestSubmitBidTwice(t *testing.T) {
	e := newEnv(t)
	in := SubmitInput{GigID: e.gig.ID.Hex(), Message: "one", Price: price(10)}
	_, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), in)
	require.NoError(t, err)

	_, err = e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), in)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, MsgAlreadyBid, apperr.Message(err))
	assert.Equal(t, 1, e.bidCount(t))
}

func TestConcurrentDuplicateSubmits(t *testing.T) {
	e := newEnv(t)
	in := SubmitInput{GigID: e.gig.ID.Hex(), Message: "race", Price: price(10)}

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), in)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, e.bidCount(t))
}

func TestSubmitBidValidation(t *testing.T) {
	e := newEnv(t)
	cases := map[string]SubmitInput{
		"missing gig":    {Message: "x", Price: price(1)},
		"blank message":  {GigID: e.gig.ID.Hex(), Message: "   ", Price: price(1)},
		"missing price":  {GigID: e.gig.ID.Hex(), Message: "x"},
		"negative price": {GigID: e.gig.ID.Hex(), Message: "x", Price: price(-5)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), in)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
		})
	}
	assert.Zero(t, e.bidCount(t))
}

func TestSubmitBidUnknownGig(t *testing.T) {
	e := newEnv(t)
	for _, id := range []string{"nope", primitive.NewObjectID().Hex()} {
		_, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
			GigID: id, Message: "x", Price: price(1),
		})
		require.Error(t, err)
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	}
}

func TestListBidsForGigOwnerOnly(t *testing.T) {
	e := newEnv(t)
	_, err := e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "x", Price: price(1),
	})
	require.NoError(t, err)

	list, err := e.gate.ListBidsForGig(context.Background(), e.owner.ID.Hex(), e.gig.ID.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Freelancer)
	assert.Equal(t, "dev@example.com", list[0].Freelancer.Email)

	_, err = e.gate.ListBidsForGig(context.Background(), e.freelancer.ID.Hex(), e.gig.ID.Hex())
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = e.gate.ListBidsForGig(context.Background(), e.owner.ID.Hex(), primitive.NewObjectID().Hex())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestListMyBids(t *testing.T) {
	e := newEnv(t)
	list, err := e.gate.ListMyBids(context.Background(), e.freelancer.ID.Hex())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = e.gate.SubmitBid(context.Background(), e.freelancer.ID.Hex(), SubmitInput{
		GigID: e.gig.ID.Hex(), Message: "x", Price: price(1),
	})
	require.NoError(t, err)

	list, err = e.gate.ListMyBids(context.Background(), e.freelancer.ID.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Gig)
	assert.Equal(t, models.GigOpen, list[0].Gig.Status)
	assert.Equal(t, 300.0, list[0].Gig.Budget)
}
