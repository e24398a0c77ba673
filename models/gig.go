package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GigStatus string

const (
	GigOpen     GigStatus = "OPEN"
	GigAssigned GigStatus = "ASSIGNED"
)

type Gig struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Budget      float64            `json:"budget" bson:"budget"`
	OwnerID     primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	Status      GigStatus          `json:"status" bson:"status"`
	// HiredBidID is written by the same conditional update that assigns the gig.
	HiredBidID *primitive.ObjectID `json:"hiredBidId,omitempty" bson:"hiredBidId,omitempty"`
	CreatedAt  time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// GigSummary is the gig as seen from a bid or a notification.
type GigSummary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Title  string             `json:"title" bson:"title"`
	Budget float64            `json:"budget" bson:"budget"`
	Status GigStatus          `json:"status,omitempty" bson:"status,omitempty"`
}

// GigView is a gig joined with its owner.
type GigView struct {
	Gig   `bson:",inline"`
	Owner *UserSummary `json:"owner,omitempty" bson:"owner,omitempty"`
}

func (g *Gig) Summary() *GigSummary {
	return &GigSummary{ID: g.ID, Title: g.Title, Budget: g.Budget, Status: g.Status}
}
