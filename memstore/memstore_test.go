package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/models"
	"gigmarket/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedGig(t *testing.T, s *Store, owner primitive.ObjectID) *models.Gig {
	t.Helper()
	g := &models.Gig{ID: primitive.NewObjectID(), Title: "Logo", Description: "vector logo", Budget: 100,
		OwnerID: owner, Status: models.GigOpen, CreatedAt: t0}
	require.NoError(t, s.InsertGig(context.Background(), g))
	return g
}

func seedBid(t *testing.T, s *Store, gig primitive.ObjectID) *models.Bid {
	t.Helper()
	b := &models.Bid{ID: primitive.NewObjectID(), GigID: gig, FreelancerID: primitive.NewObjectID(),
		Message: "hi", Price: 90, Status: models.BidPending, CreatedAt: t0}
	require.NoError(t, s.InsertBid(context.Background(), b))
	return b
}

func TestInsertBidEnforcesOneBidPerFreelancer(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGig(t, s, primitive.NewObjectID())
	b := seedBid(t, s, g.ID)

	dup := &models.Bid{GigID: g.ID, FreelancerID: b.FreelancerID, Message: "again", Status: models.BidPending}
	assert.ErrorIs(t, s.InsertBid(ctx, dup), store.ErrDuplicate)

	got, err := s.FindBidByGigAndFreelancer(ctx, g.ID, b.FreelancerID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestConcurrentDuplicateInsertsKeepOne(t *testing.T) {
	s := New()
	g := seedGig(t, s, primitive.NewObjectID())
	freelancer := primitive.NewObjectID()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InsertBid(context.Background(), &models.Bid{GigID: g.ID, FreelancerID: freelancer, Status: models.BidPending})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	list, err := s.ListBidsForGig(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAssignGigIfOpenIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGig(t, s, primitive.NewObjectID())
	first, second := primitive.NewObjectID(), primitive.NewObjectID()

	ok, err := s.AssignGigIfOpen(ctx, g.ID, first, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AssignGigIfOpen(ctx, g.ID, second, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := s.FindGig(ctx, g.ID)
	assert.Equal(t, models.GigAssigned, got.Status)
	require.NotNil(t, got.HiredBidID)
	assert.Equal(t, first, *got.HiredBidID)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGig(t, s, primitive.NewObjectID())
	winner := seedBid(t, s, g.ID)
	other := seedBid(t, s, g.ID)

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(ctx context.Context, w store.HireWriter) error {
		_, _ = w.AssignGigIfOpen(ctx, g.ID, winner.ID, t0)
		_, _ = w.MarkBidHired(ctx, winner.ID, t0)
		_, _ = w.RejectPendingBids(ctx, g.ID, winner.ID, t0)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	gig, _ := s.FindGig(ctx, g.ID)
	assert.Equal(t, models.GigOpen, gig.Status)
	assert.Nil(t, gig.HiredBidID)
	for _, id := range []primitive.ObjectID{winner.ID, other.ID} {
		b, _ := s.FindBid(ctx, id)
		assert.Equal(t, models.BidPending, b.Status)
	}
}

func TestTransactionCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGig(t, s, primitive.NewObjectID())
	winner := seedBid(t, s, g.ID)
	other := seedBid(t, s, g.ID)

	err := s.WithTransaction(ctx, func(ctx context.Context, w store.HireWriter) error {
		if _, err := w.AssignGigIfOpen(ctx, g.ID, winner.ID, t0); err != nil {
			return err
		}
		if _, err := w.MarkBidHired(ctx, winner.ID, t0); err != nil {
			return err
		}
		n, err := w.RejectPendingBids(ctx, g.ID, winner.ID, t0)
		assert.EqualValues(t, 1, n)
		return err
	})
	require.NoError(t, err)

	b, _ := s.FindBid(ctx, winner.ID)
	assert.Equal(t, models.BidHired, b.Status)
	b, _ = s.FindBid(ctx, other.ID)
	assert.Equal(t, models.BidRejected, b.Status)
}

func TestWithoutTransactions(t *testing.T) {
	s := New(WithoutTransactions())
	ok, err := s.SupportsTransactions(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	called := false
	err = s.WithTransaction(context.Background(), func(context.Context, store.HireWriter) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, store.ErrTxnUnsupported)
	assert.False(t, called)
}

func TestSearchOpenGigs(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := &models.User{Name: "Ana", Email: "Ana@Example.com"}
	require.NoError(t, s.InsertUser(ctx, owner))

	older := &models.Gig{Title: "Write a blog post", Description: "tech", OwnerID: owner.ID, Status: models.GigOpen, CreatedAt: t0}
	recent := &models.Gig{Title: "Design", Description: "A LOGO for my blog", OwnerID: owner.ID, Status: models.GigOpen, CreatedAt: t0.Add(time.Hour)}
	closed := &models.Gig{Title: "Blog theme", OwnerID: owner.ID, Status: models.GigAssigned, CreatedAt: t0}
	for _, g := range []*models.Gig{older, recent, closed} {
		require.NoError(t, s.InsertGig(ctx, g))
	}

	got, err := s.SearchOpenGigs(ctx, "BLOG")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recent.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
	require.NotNil(t, got[0].Owner)
	assert.Equal(t, "Ana", got[0].Owner.Name)

	all, err := s.SearchOpenGigs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsersAreUniqueByEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertUser(ctx, &models.User{Name: "a", Email: "a@x.io"}))
	assert.ErrorIs(t, s.InsertUser(ctx, &models.User{Name: "b", Email: "A@X.io"}), store.ErrDuplicate)

	u, err := s.FindUserByEmail(ctx, "A@x.IO")
	require.NoError(t, err)
	assert.Equal(t, "a", u.Name)
}

func TestGigsNeedingRepair(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := seedGig(t, s, primitive.NewObjectID())
	winner := seedBid(t, s, g.ID)
	seedBid(t, s, g.ID)

	ok, err := s.AssignGigIfOpen(ctx, g.ID, winner.ID, t0)
	require.NoError(t, err)
	require.True(t, ok)

	stale, err := s.GigsNeedingRepair(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, g.ID, stale[0].ID)

	_, _ = s.MarkBidHired(ctx, winner.ID, t0)
	_, _ = s.RejectPendingBids(ctx, g.ID, winner.ID, t0)
	stale, err = s.GigsNeedingRepair(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
