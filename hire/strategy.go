package hire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/store"
)

var (
	// errGigTaken means the conditional update found the gig no longer OPEN.
	errGigTaken = errors.New("gig is no longer open")
	// errBidNotPending means the gig was assigned but the chosen bid could not
	// be moved to HIRED.
	errBidNotPending = errors.New("bid is no longer pending")
)

// Plan names the gig, the winning bid and the write timestamp.
type Plan struct {
	GigID primitive.ObjectID
	BidID primitive.ObjectID
	At    time.Time
}

// Outcome records how far a hire got. Assigned is true once the conditional
// update on the gig has committed (or would commit with its transaction).
type Outcome struct {
	Assigned bool
	Hired    bool
	Rejected int64
}

// AtomicHireStrategy applies a hire plan to the store. Implementations differ
// only in how the writes of hireSteps are grouped.
type AtomicHireStrategy interface {
	Name() string
	Apply(ctx context.Context, p Plan) (Outcome, error)
}

// hireSteps is the hire itself. The conditional update on the gig status is
// the only serialization point: whoever moves the gig off OPEN first owns it.
// Inside a transaction the first failed write ends the attempt; otherwise the
// siblings are rejected even when the winning bid could not be marked.
func hireSteps(ctx context.Context, w store.HireWriter, p Plan, inTxn bool) (Outcome, error) {
	var out Outcome

	assigned, err := w.AssignGigIfOpen(ctx, p.GigID, p.BidID, p.At)
	if err != nil {
		return out, fmt.Errorf("assign gig: %w", err)
	}
	if !assigned {
		return out, errGigTaken
	}
	out.Assigned = true

	hired, err := w.MarkBidHired(ctx, p.BidID, p.At)
	switch {
	case err != nil:
		err = fmt.Errorf("mark bid hired: %w", err)
	case !hired:
		err = errBidNotPending
	default:
		out.Hired = true
	}
	if err != nil && inTxn {
		return out, err
	}

	n, rerr := w.RejectPendingBids(ctx, p.GigID, p.BidID, p.At)
	if rerr != nil {
		return out, errors.Join(err, fmt.Errorf("reject pending bids: %w", rerr))
	}
	out.Rejected = n
	return out, err
}

// Transactional runs the hire inside one multi-document transaction.
type Transactional struct {
	st store.Store
}

func NewTransactional(st store.Store) *Transactional { return &Transactional{st: st} }

func (t *Transactional) Name() string { return "transaction" }

func (t *Transactional) Apply(ctx context.Context, p Plan) (Outcome, error) {
	var out Outcome
	err := t.st.WithTransaction(ctx, func(ctx context.Context, w store.HireWriter) error {
		// The driver may retry this function; only the last attempt counts.
		o, err := hireSteps(ctx, w, p, true)
		out = o
		return err
	})
	if err != nil {
		// Aborted: none of the writes are visible.
		return Outcome{}, err
	}
	return out, nil
}

// Sequential runs the same steps as independent single-document writes. The
// gig update still decides the winner, but a failure after it leaves the gig
// ASSIGNED with some of its bids still PENDING.
type Sequential struct {
	w store.HireWriter
}

func NewSequential(w store.HireWriter) *Sequential { return &Sequential{w: w} }

func (s *Sequential) Name() string { return "sequential" }

func (s *Sequential) Apply(ctx context.Context, p Plan) (Outcome, error) {
	return hireSteps(ctx, s.w, p, false)
}
