// Package gigs lets clients post gigs and browse open ones.
package gigs

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/apperr"
	"gigmarket/guard"
	"gigmarket/models"
	"gigmarket/store"
	"gigmarket/utils"
)

const MsgGigNotFound = "gig not found"

type CreateInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Budget      *float64 `json:"budget" validate:"required,gte=0"`
}

type Service struct {
	st  store.Store
	now func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{st: st, now: time.Now}
}

// Create posts a new OPEN gig owned by actor.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*models.GigView, error) {
	owner, ok := guard.ObjectID(actor)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "unauthorized request")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := utils.Validate(&in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	gig := &models.Gig{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Budget:      *in.Budget,
		OwnerID:     owner,
		Status:      models.GigOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.st.InsertGig(ctx, gig); err != nil {
		return nil, apperr.InternalErr(err)
	}

	view, err := s.st.FindGigView(ctx, gig.ID)
	if err != nil {
		return &models.GigView{Gig: *gig}, nil
	}
	return view, nil
}

// Search lists OPEN gigs, newest first. A non-empty query matches title or
// description case-insensitively.
func (s *Service) Search(ctx context.Context, query string) ([]models.GigView, error) {
	list, err := s.st.SearchOpenGigs(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	if list == nil {
		list = []models.GigView{}
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.GigView, error) {
	oid, ok := guard.ObjectID(id)
	if !ok {
		return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
	}
	view, err := s.st.FindGigView(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, MsgGigNotFound)
		}
		return nil, apperr.InternalErr(err)
	}
	return view, nil
}

// Mine lists every gig actor has posted, whatever its status.
func (s *Service) Mine(ctx context.Context, actor string) ([]models.Gig, error) {
	owner, ok := guard.ObjectID(actor)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "unauthorized access")
	}
	list, err := s.st.ListGigsByOwner(ctx, owner)
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	if list == nil {
		list = []models.Gig{}
	}
	return list, nil
}
