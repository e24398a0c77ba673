// Package notify pushes marketplace events to users' live websocket
// sessions. Delivery is best effort: nothing is stored or retried, and a user
// with no open session simply misses the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"gigmarket/models"
)

// Relay fans events out to every process serving sessions.
type Relay interface {
	Publish(ctx context.Context, env *models.Envelope) error
}

type Dispatcher struct {
	hub   *Hub
	relay Relay
	now   func() time.Time
}

// NewDispatcher delivers through relay when one is given and straight to hub
// otherwise.
func NewDispatcher(hub *Hub, relay Relay) *Dispatcher {
	return &Dispatcher{hub: hub, relay: relay, now: time.Now}
}

func (d *Dispatcher) NotifyHired(ctx context.Context, freelancerID string, gig *models.GigSummary, bid *models.BidView) {
	payload := models.HiredPayload{
		Message: fmt.Sprintf("You have been hired for \"%s\"!", gig.Title),
		Gig:     gig,
		Bid:     bid,
	}
	d.Emit(ctx, freelancerID, models.EventHired, payload)
}

// Emit sends event on channel. Errors are logged, never returned.
func (d *Dispatcher) Emit(ctx context.Context, channel, event string, payload any) {
	if channel == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Notify] marshal %s payload: %v", event, err)
		return
	}
	env := &models.Envelope{
		ID:      uuid.New().String(),
		Channel: channel,
		Event:   event,
		Data:    data,
		SentAt:  d.now().UTC(),
	}

	if d.relay != nil {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		err := d.relay.Publish(rctx, env)
		cancel()
		if err == nil {
			return
		}
		log.Printf("[Notify] relay publish failed, delivering locally: %v", err)
	}
	d.Deliver(env)
}

// Deliver pushes env to the sessions this process holds.
func (d *Dispatcher) Deliver(env *models.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Notify] marshal envelope: %v", err)
		return
	}
	if !d.hub.Publish(env.Channel, frame) {
		log.Printf("[Notify] dropped %s event for %s", env.Event, env.Channel)
	}
}
