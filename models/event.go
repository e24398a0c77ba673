package models

import (
	"encoding/json"
	"time"
)

const EventHired = "hired"

// HiredPayload is delivered to the winning freelancer's live sessions.
type HiredPayload struct {
	Message string      `json:"message"`
	Gig     *GigSummary `json:"gig"`
	Bid     *BidView    `json:"bid"`
}

// Envelope is the frame pushed over a session and relayed between processes.
type Envelope struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	SentAt  time.Time       `json:"sentAt"`
}
