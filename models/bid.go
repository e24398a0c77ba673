package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BidStatus string

const (
	BidPending  BidStatus = "PENDING"
	BidHired    BidStatus = "HIRED"
	BidRejected BidStatus = "REJECTED"
)

type Bid struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	GigID        primitive.ObjectID `json:"gigId" bson:"gigId"`
	FreelancerID primitive.ObjectID `json:"freelancerId" bson:"freelancerId"`
	Message      string             `json:"message" bson:"message"`
	Price        float64            `json:"price" bson:"price"`
	Status       BidStatus          `json:"status" bson:"status"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// BidView is a bid joined with its bidder and its gig, as returned to clients.
type BidView struct {
	Bid        `bson:",inline"`
	Freelancer *UserSummary `json:"freelancer,omitempty" bson:"freelancer,omitempty"`
	Gig        *GigSummary  `json:"gig,omitempty" bson:"gig,omitempty"`
}
