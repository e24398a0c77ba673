// Package hire moves a gig from OPEN to ASSIGNED, hires one bid and rejects
// the rest. Concurrent hires on the same gig are decided by a conditional
// update on the gig status; loading and authorization are not synchronized.
package hire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"gigmarket/apperr"
	"gigmarket/guard"
	"gigmarket/models"
	"gigmarket/store"
)

const (
	MsgBidNotFound     = "bid not found"
	MsgGigNotFound     = "gig not found"
	MsgForbidden       = "not authorized to hire for this gig"
	MsgAlreadyAssigned = "gig already assigned — concurrent hire"
	MsgBidNotPending   = "bid is no longer pending"
)

type Mode string

const (
	// ModeAuto uses transactions and falls back to sequential writes the
	// first time the store reports they are unsupported.
	ModeAuto        Mode = "auto"
	ModeTransaction Mode = "transaction"
	ModeSequential  Mode = "sequential"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeTransaction, ModeSequential:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown hire strategy %q", s)
	}
}

// Notifier delivers the "hired" event. It must not block for long and has no
// way to fail the hire.
type Notifier interface {
	NotifyHired(ctx context.Context, freelancerID string, gig *models.GigSummary, bid *models.BidView)
}

type Result struct {
	Gig *models.Gig     `json:"gig"`
	Bid *models.BidView `json:"bid"`
}

type Coordinator struct {
	st       store.Store
	notifier Notifier
	queue    Queue
	mode     Mode

	primary  AtomicHireStrategy
	fallback AtomicHireStrategy
	// noTxn latches once the store has reported it cannot run transactions.
	noTxn atomic.Bool

	now func() time.Time
}

func NewCoordinator(st store.Store, notifier Notifier, queue Queue, mode Mode) *Coordinator {
	return &Coordinator{
		st:       st,
		notifier: notifier,
		queue:    queue,
		mode:     mode,
		primary:  NewTransactional(st),
		fallback: NewSequential(st),
		now:      time.Now,
	}
}

// Probe asks the store whether it supports transactions. In auto mode a
// negative answer selects the sequential strategy up front; per-call
// detection stays in place either way.
func (c *Coordinator) Probe(ctx context.Context) {
	if c.mode != ModeAuto {
		log.Printf("[Hire] strategy fixed to %s", c.Strategy().Name())
		return
	}
	ok, err := c.st.SupportsTransactions(ctx)
	if err != nil {
		log.Printf("[Hire] transaction probe failed, keeping %s: %v", c.primary.Name(), err)
		return
	}
	if !ok {
		c.noTxn.Store(true)
	}
	log.Printf("[Hire] using %s strategy", c.Strategy().Name())
}

// Strategy returns the strategy the next hire will try first.
func (c *Coordinator) Strategy() AtomicHireStrategy {
	switch {
	case c.mode == ModeSequential:
		return c.fallback
	case c.mode == ModeAuto && c.noTxn.Load():
		return c.fallback
	default:
		return c.primary
	}
}

// Hire makes actor's gig hire the freelancer behind bidID.
func (c *Coordinator) Hire(ctx context.Context, actor, bidID string) (*Result, error) {
	bid, gig, err := c.load(ctx, bidID)
	if err != nil {
		return nil, err
	}

	if !guard.IsOwner(actor, gig) {
		return nil, apperr.New(apperr.Forbidden, MsgForbidden)
	}
	if gig.Status != models.GigOpen {
		return nil, apperr.New(apperr.Conflict, MsgAlreadyAssigned)
	}
	if bid.Status != models.BidPending {
		return nil, apperr.New(apperr.InvalidState, MsgBidNotPending)
	}

	plan := Plan{GigID: gig.ID, BidID: bid.ID, At: c.now().UTC()}
	out, err := c.apply(ctx, plan)
	finished := false
	if err != nil {
		if !out.Assigned {
			return nil, classify(err)
		}
		// The gig is ours but the bid writes did not land. That is for
		// the reconciler, not the caller.
		if finished = c.finishedElsewhere(ctx, plan, err); !finished {
			c.deferRepair(ctx, plan, err)
		}
	}

	res := c.result(ctx, gig, bid, plan, out)
	log.Printf("[Hire] gig %s assigned to bid %s (rejected %d)", gig.ID.Hex(), bid.ID.Hex(), out.Rejected)

	// A reconciler that completed this hire has already sent the event.
	if res.Bid.Status == models.BidHired && !finished {
		c.notify(ctx, res)
	}
	return res, nil
}

// finishedElsewhere reports whether the winning bid was found already HIRED
// after the gig was assigned to it, which only the reconciler does.
func (c *Coordinator) finishedElsewhere(ctx context.Context, p Plan, err error) bool {
	if !errors.Is(err, errBidNotPending) {
		return false
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	b, ferr := c.st.FindBid(rctx, p.BidID)
	return ferr == nil && b.Status == models.BidHired
}

func (c *Coordinator) load(ctx context.Context, bidID string) (*models.Bid, *models.Gig, error) {
	oid, ok := guard.ObjectID(bidID)
	if !ok {
		return nil, nil, apperr.New(apperr.NotFound, MsgBidNotFound)
	}
	bid, err := c.st.FindBid(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, MsgBidNotFound)
		}
		return nil, nil, apperr.InternalErr(err)
	}
	gig, err := c.st.FindGig(ctx, bid.GigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, MsgGigNotFound)
		}
		return nil, nil, apperr.InternalErr(err)
	}
	return bid, gig, nil
}

func (c *Coordinator) apply(ctx context.Context, p Plan) (Outcome, error) {
	s := c.Strategy()
	out, err := s.Apply(ctx, p)
	if err == nil || s != c.primary || c.mode != ModeAuto || !errors.Is(err, store.ErrTxnUnsupported) {
		return out, err
	}

	// Nothing was written by the failed attempt; replay the same plan.
	if c.noTxn.CompareAndSwap(false, true) {
		log.Printf("[Hire] transactions unsupported by store, switching to %s strategy", c.fallback.Name())
	}
	return c.fallback.Apply(ctx, p)
}

func classify(err error) error {
	switch {
	case errors.Is(err, errGigTaken), errors.Is(err, store.ErrWriteConflict):
		return apperr.Wrap(apperr.Conflict, MsgAlreadyAssigned, err)
	case errors.Is(err, errBidNotPending):
		return apperr.Wrap(apperr.InvalidState, MsgBidNotPending, err)
	default:
		return apperr.InternalErr(err)
	}
}

func (c *Coordinator) deferRepair(ctx context.Context, p Plan, cause error) {
	log.Printf("[Hire] gig %s assigned to bid %s but bid updates failed: %v", p.GigID.Hex(), p.BidID.Hex(), cause)
	if c.queue == nil {
		return
	}
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.queue.Push(qctx, p.GigID.Hex()); err != nil {
		log.Printf("[Hire] could not queue gig %s for reconciliation: %v", p.GigID.Hex(), err)
	}
}

// result re-reads the gig and the joined bid. A failed read does not undo a
// committed hire, so it degrades to the state implied by the outcome.
func (c *Coordinator) result(ctx context.Context, gig *models.Gig, bid *models.Bid, p Plan, out Outcome) *Result {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	res := &Result{}
	if g, err := c.st.FindGig(rctx, gig.ID); err == nil {
		res.Gig = g
	} else {
		log.Printf("[Hire] re-read gig %s: %v", gig.ID.Hex(), err)
		g := *gig
		hired := p.BidID
		g.Status, g.HiredBidID, g.UpdatedAt = models.GigAssigned, &hired, p.At
		res.Gig = &g
	}

	if v, err := c.st.FindBidView(rctx, bid.ID); err == nil {
		res.Bid = v
	} else {
		log.Printf("[Hire] re-read bid %s: %v", bid.ID.Hex(), err)
		b := *bid
		if out.Hired {
			b.Status, b.UpdatedAt = models.BidHired, p.At
		}
		res.Bid = &models.BidView{Bid: b, Gig: res.Gig.Summary()}
	}
	return res
}

func (c *Coordinator) notify(ctx context.Context, res *Result) {
	summary := &models.GigSummary{ID: res.Gig.ID, Title: res.Gig.Title, Budget: res.Gig.Budget}
	safeNotify(context.WithoutCancel(ctx), c.notifier, summary, res.Bid)
}

// safeNotify shields the caller from anything the notifier does.
func safeNotify(ctx context.Context, n Notifier, gig *models.GigSummary, bid *models.BidView) {
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hire] notifier panicked: %v", r)
		}
	}()
	n.NotifyHired(ctx, guard.ID(bid.FreelancerID), gig, bid)
}
