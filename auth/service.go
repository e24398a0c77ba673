// Package auth registers users and issues the tokens every other route
// checks.
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"gigmarket/apperr"
	"gigmarket/guard"
	"gigmarket/middleware"
	"gigmarket/models"
	"gigmarket/store"
	"gigmarket/utils"
)

const (
	MsgUserExists   = "User already exists"
	MsgBadLogin     = "Invalid email or password"
	MsgUserNotFound = "user not found"
)

// TokenRegistry remembers the last token issued per user and revokes tokens
// on logout. Pair it with middleware.JWT.Revoked so revoked tokens are
// refused.
type TokenRegistry interface {
	Save(ctx context.Context, userID, token string) error
	Revoke(ctx context.Context, userID, tokenID string, expires time.Time) error
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed-in user and the token that proves it.
type Session struct {
	User    *models.UserSummary
	Token   string
	Expires time.Time
}

type Service struct {
	users  store.UserStore
	jwt    *middleware.JWT
	tokens TokenRegistry
	cost   int
	now    func() time.Time
}

// NewService returns a Service. tokens may be nil.
func NewService(users store.UserStore, jwt *middleware.JWT, tokens TokenRegistry) *Service {
	return &Service{users: users, jwt: jwt, tokens: tokens, cost: bcrypt.DefaultCost, now: time.Now}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := utils.Validate(&in); err != nil {
		return nil, err
	}

	if _, err := s.users.FindUserByEmail(ctx, in.Email); err == nil {
		return nil, apperr.New(apperr.Conflict, MsgUserExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.InternalErr(err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	now := s.now().UTC()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      in.Name,
		Email:     in.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, MsgUserExists, err)
		}
		return nil, apperr.InternalErr(err)
	}
	log.Printf("[Auth] registered user %s", user.ID.Hex())
	return s.issue(ctx, user)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := utils.Validate(&in); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, MsgBadLogin)
		}
		return nil, apperr.InternalErr(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, apperr.New(apperr.Unauthorized, MsgBadLogin)
	}
	return s.issue(ctx, user)
}

// Logout revokes the caller's token. Failure to reach the registry is
// logged; the cookie is cleared regardless.
func (s *Service) Logout(ctx context.Context, claims *middleware.Claims) {
	if s.tokens == nil || claims == nil || claims.UserID == "" {
		return
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := s.tokens.Revoke(ctx, claims.UserID, claims.ID, expires); err != nil {
		log.Printf("[Auth] revoke token for %s: %v", claims.UserID, err)
	}
}

func (s *Service) Me(ctx context.Context, userID string) (*models.UserSummary, error) {
	oid, ok := guard.ObjectID(userID)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "Not authorized, token failed")
	}
	user, err := s.users.FindUser(ctx, oid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, MsgUserNotFound)
		}
		return nil, apperr.InternalErr(err)
	}
	return user.Summary(), nil
}

func (s *Service) issue(ctx context.Context, user *models.User) (*Session, error) {
	token, expires, err := s.jwt.Issue(user.ID.Hex(), user.Name)
	if err != nil {
		return nil, apperr.InternalErr(err)
	}
	if s.tokens != nil {
		if err := s.tokens.Save(ctx, user.ID.Hex(), token); err != nil {
			log.Printf("[Auth] store token for %s: %v", user.ID.Hex(), err)
		}
	}
	return &Session{User: user.Summary(), Token: token, Expires: expires}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
