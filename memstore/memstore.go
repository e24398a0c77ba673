// Package memstore is an in-process store.Store. It backs STORE=memory runs
// and the service tests, and can impersonate a deployment without
// multi-document transactions.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/models"
	"gigmarket/store"
)

type Option func(*Store)

// WithoutTransactions makes WithTransaction fail the way a standalone
// mongod does.
func WithoutTransactions() Option {
	return func(s *Store) { s.noTxn = true }
}

type bidKey struct {
	gig, freelancer primitive.ObjectID
}

type Store struct {
	mu     sync.RWMutex
	gigs   map[primitive.ObjectID]models.Gig
	bids   map[primitive.ObjectID]models.Bid
	byPair map[bidKey]primitive.ObjectID
	users  map[primitive.ObjectID]models.User
	emails map[string]primitive.ObjectID

	noTxn bool
	// failure drills
	txnErr     error
	bidWrites  error
	afterPoint func()
}

var _ store.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		gigs:   make(map[primitive.ObjectID]models.Gig),
		bids:   make(map[primitive.ObjectID]models.Bid),
		byPair: make(map[bidKey]primitive.ObjectID),
		users:  make(map[primitive.ObjectID]models.User),
		emails: make(map[string]primitive.ObjectID),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FailTransactions makes every WithTransaction call return err without
// running its function. Pass nil to clear.
func (s *Store) FailTransactions(err error) {
	s.mu.Lock()
	s.txnErr = err
	s.mu.Unlock()
}

// FailBidWrites makes MarkBidHired and RejectPendingBids return err. Pass nil
// to clear.
func (s *Store) FailBidWrites(err error) {
	s.mu.Lock()
	s.bidWrites = err
	s.mu.Unlock()
}

// OnAssign registers a hook that runs right after a successful
// AssignGigIfOpen, outside the lock.
func (s *Store) OnAssign(fn func()) {
	s.mu.Lock()
	s.afterPoint = fn
	s.mu.Unlock()
}

// --- transactions ---------------------------------------------------------

// WithTransaction holds the write lock for the whole of fn, so readers see
// either none or all of its writes. Failed transactions are rolled back from
// an undo log.
func (s *Store) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	s.mu.RLock()
	noTxn, txnErr := s.noTxn, s.txnErr
	s.mu.RUnlock()
	if noTxn {
		return store.ErrTxnUnsupported
	}
	if txnErr != nil {
		return txnErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txWriter{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) SupportsTransactions(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.noTxn, nil
}

type txWriter struct {
	s    *Store
	undo []func()
}

func (t *txWriter) AssignGigIfOpen(_ context.Context, gigID, bidID primitive.ObjectID, at time.Time) (bool, error) {
	prev, ok := t.s.gigs[gigID]
	if !t.s.assignLocked(gigID, bidID, at) {
		return false, nil
	}
	if ok {
		t.undo = append(t.undo, func() { t.s.gigs[gigID] = prev })
	}
	return true, nil
}

func (t *txWriter) MarkBidHired(_ context.Context, bidID primitive.ObjectID, at time.Time) (bool, error) {
	if t.s.bidWrites != nil {
		return false, t.s.bidWrites
	}
	prev := t.s.bids[bidID]
	if !t.s.hireLocked(bidID, at) {
		return false, nil
	}
	t.undo = append(t.undo, func() { t.s.bids[bidID] = prev })
	return true, nil
}

func (t *txWriter) RejectPendingBids(_ context.Context, gigID, keep primitive.ObjectID, at time.Time) (int64, error) {
	if t.s.bidWrites != nil {
		return 0, t.s.bidWrites
	}
	prev := make([]models.Bid, 0)
	for _, b := range t.s.bids {
		if b.GigID == gigID && b.ID != keep && b.Status == models.BidPending {
			prev = append(prev, b)
		}
	}
	n := t.s.rejectLocked(gigID, keep, at)
	t.undo = append(t.undo, func() {
		for _, b := range prev {
			t.s.bids[b.ID] = b
		}
	})
	return n, nil
}

func (t *txWriter) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// --- hire writes outside a transaction ------------------------------------

func (s *Store) AssignGigIfOpen(ctx context.Context, gigID, bidID primitive.ObjectID, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	ok := s.assignLocked(gigID, bidID, at)
	hook := s.afterPoint
	s.mu.Unlock()

	if ok && hook != nil {
		hook()
	}
	return ok, nil
}

func (s *Store) MarkBidHired(ctx context.Context, bidID primitive.ObjectID, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bidWrites != nil {
		return false, s.bidWrites
	}
	return s.hireLocked(bidID, at), nil
}

func (s *Store) RejectPendingBids(ctx context.Context, gigID, keep primitive.ObjectID, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bidWrites != nil {
		return 0, s.bidWrites
	}
	return s.rejectLocked(gigID, keep, at), nil
}

func (s *Store) assignLocked(gigID, bidID primitive.ObjectID, at time.Time) bool {
	g, ok := s.gigs[gigID]
	if !ok || g.Status != models.GigOpen {
		return false
	}
	hired := bidID
	g.Status = models.GigAssigned
	g.HiredBidID = &hired
	g.UpdatedAt = at
	s.gigs[gigID] = g
	return true
}

func (s *Store) hireLocked(bidID primitive.ObjectID, at time.Time) bool {
	b, ok := s.bids[bidID]
	if !ok || b.Status != models.BidPending {
		return false
	}
	b.Status = models.BidHired
	b.UpdatedAt = at
	s.bids[bidID] = b
	return true
}

func (s *Store) rejectLocked(gigID, keep primitive.ObjectID, at time.Time) int64 {
	var n int64
	for id, b := range s.bids {
		if b.GigID != gigID || id == keep || b.Status != models.BidPending {
			continue
		}
		b.Status = models.BidRejected
		b.UpdatedAt = at
		s.bids[id] = b
		n++
	}
	return n
}

// --- gigs -------------------------------------------------------------------

func (s *Store) InsertGig(_ context.Context, gig *models.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gig.ID.IsZero() {
		gig.ID = primitive.NewObjectID()
	}
	if _, exists := s.gigs[gig.ID]; exists {
		return store.ErrDuplicate
	}
	s.gigs[gig.ID] = *gig
	return nil
}

func (s *Store) FindGig(_ context.Context, id primitive.ObjectID) (*models.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gigs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &g, nil
}

func (s *Store) FindGigView(_ context.Context, id primitive.ObjectID) (*models.GigView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gigs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.GigView{Gig: g, Owner: s.userSummaryLocked(g.OwnerID)}, nil
}

func (s *Store) SearchOpenGigs(_ context.Context, query string) ([]models.GigView, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.GigView{}
	for _, g := range s.gigs {
		if g.Status != models.GigOpen {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Title), q) &&
			!strings.Contains(strings.ToLower(g.Description), q) {
			continue
		}
		out = append(out, models.GigView{Gig: g, Owner: s.userSummaryLocked(g.OwnerID)})
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) ListGigsByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Gig{}
	for _, g := range s.gigs {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) GigsNeedingRepair(context.Context) ([]models.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Gig{}
	for _, g := range s.gigs {
		if g.Status != models.GigAssigned || g.HiredBidID == nil {
			continue
		}
		for _, b := range s.bids {
			if b.GigID != g.ID {
				continue
			}
			if b.Status == models.BidPending || (b.ID == *g.HiredBidID && b.Status != models.BidHired) {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

// --- bids -------------------------------------------------------------------

func (s *Store) InsertBid(_ context.Context, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bidKey{gig: bid.GigID, freelancer: bid.FreelancerID}
	if _, exists := s.byPair[key]; exists {
		return store.ErrDuplicate
	}
	if bid.ID.IsZero() {
		bid.ID = primitive.NewObjectID()
	}
	s.bids[bid.ID] = *bid
	s.byPair[key] = bid.ID
	return nil
}

func (s *Store) FindBid(_ context.Context, id primitive.ObjectID) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) FindBidView(_ context.Context, id primitive.ObjectID) (*models.BidView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.BidView{
		Bid:        b,
		Freelancer: s.userSummaryLocked(b.FreelancerID),
		Gig:        s.gigSummaryLocked(b.GigID),
	}, nil
}

func (s *Store) FindBidByGigAndFreelancer(_ context.Context, gigID, freelancerID primitive.ObjectID) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[bidKey{gig: gigID, freelancer: freelancerID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	b := s.bids[id]
	return &b, nil
}

func (s *Store) ListBidsForGig(_ context.Context, gigID primitive.ObjectID) ([]models.BidView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.BidView{}
	for _, b := range s.bids {
		if b.GigID == gigID {
			out = append(out, models.BidView{Bid: b, Freelancer: s.userSummaryLocked(b.FreelancerID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s *Store) ListBidsByFreelancer(_ context.Context, freelancerID primitive.ObjectID) ([]models.BidView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.BidView{}
	for _, b := range s.bids {
		if b.FreelancerID == freelancerID {
			out = append(out, models.BidView{Bid: b, Gig: s.gigSummaryLocked(b.GigID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

// --- users ------------------------------------------------------------------

func (s *Store) InsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, taken := s.emails[email]; taken {
		return store.ErrDuplicate
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	s.emails[email] = user.ID
	return nil
}

func (s *Store) FindUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) userSummaryLocked(id primitive.ObjectID) *models.UserSummary {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return u.Summary()
}

func (s *Store) gigSummaryLocked(id primitive.ObjectID) *models.GigSummary {
	g, ok := s.gigs[id]
	if !ok {
		return nil
	}
	return g.Summary()
}

// newer orders by creation time descending; ObjectIDs break ties.
func newer(a, b time.Time, ida, idb primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return ida.Hex() > idb.Hex()
}
