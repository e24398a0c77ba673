package hire

import (
	"context"
	"log"
	"time"

	"gigmarket/guard"
	"gigmarket/models"
	"gigmarket/store"
)

const drainBatch = 100

// Reconciler finishes hires whose bid updates never landed: the gig is
// ASSIGNED with a recorded winner, but the winner is not HIRED yet or other
// bids are still PENDING. Every write it issues is conditional, so running it
// against a healthy gig is a no-op.
//
// Gigs found by scanning are left alone until grace has passed since their
// last update, so a hire still writing its bids is not finished twice. Queued
// gigs were reported by a hire that already gave up and are repaired at once.
type Reconciler struct {
	st       store.Store
	queue    Queue
	notifier Notifier
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewReconciler(st store.Store, queue Queue, notifier Notifier, interval, grace time.Duration) *Reconciler {
	return &Reconciler{st: st, queue: queue, notifier: notifier, interval: interval, grace: grace, now: time.Now}
}

// Run repairs on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[Reconcile] running every %s", r.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconcile] stopped")
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				log.Printf("[Reconcile] pass failed after %d repairs: %v", n, err)
			} else if n > 0 {
				log.Printf("[Reconcile] repaired %d gigs", n)
			}
		}
	}
}

// RunOnce drains the queue, scans for stale gigs and repairs each one.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	seen := make(map[string]bool)
	var gigs []models.Gig

	if r.queue != nil {
		ids, err := r.queue.Drain(ctx, drainBatch)
		if err != nil {
			log.Printf("[Reconcile] drain queue: %v", err)
		}
		for _, id := range ids {
			oid, ok := guard.ObjectID(id)
			if !ok || seen[oid.Hex()] {
				continue
			}
			g, err := r.st.FindGig(ctx, oid)
			if err != nil {
				log.Printf("[Reconcile] load queued gig %s: %v", id, err)
				continue
			}
			seen[oid.Hex()] = true
			gigs = append(gigs, *g)
		}
	}

	stale, err := r.st.GigsNeedingRepair(ctx)
	if err != nil {
		return 0, err
	}
	settled := r.now().Add(-r.grace)
	for _, g := range stale {
		if seen[g.ID.Hex()] || g.UpdatedAt.After(settled) {
			continue
		}
		seen[g.ID.Hex()] = true
		gigs = append(gigs, g)
	}

	repaired := 0
	for i := range gigs {
		ok, err := r.repair(ctx, &gigs[i])
		if err != nil {
			return repaired, err
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}

func (r *Reconciler) repair(ctx context.Context, gig *models.Gig) (bool, error) {
	if gig.Status != models.GigAssigned || gig.HiredBidID == nil {
		return false, nil
	}
	winner := *gig.HiredBidID
	at := r.now().UTC()

	hired, err := r.st.MarkBidHired(ctx, winner, at)
	if err != nil {
		return false, err
	}
	rejected, err := r.st.RejectPendingBids(ctx, gig.ID, winner, at)
	if err != nil {
		return hired, err
	}
	if !hired && rejected == 0 {
		return false, nil
	}
	log.Printf("[Reconcile] gig %s: hired=%t rejected=%d", gig.ID.Hex(), hired, rejected)

	if hired && r.notifier != nil {
		if v, err := r.st.FindBidView(ctx, winner); err == nil {
			safeNotify(ctx, r.notifier, &models.GigSummary{ID: gig.ID, Title: gig.Title, Budget: gig.Budget}, v)
		}
	}
	return true, nil
}
