package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gigmarket/apperr"
	"gigmarket/memstore"
	"gigmarket/middleware"
)

type memTokens struct {
	mu      sync.Mutex
	tokens  map[string]string
	revoked map[string]time.Time
	err     error
}

func (m *memTokens) Save(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tokens[userID] = token
	return nil
}

func (m *memTokens) Revoke(_ context.Context, userID, tokenID string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	m.revoked[tokenID] = expires
	return nil
}

func (m *memTokens) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func newTestService() (*Service, *memTokens, *middleware.JWT) {
	jwt := middleware.NewJWT([]byte("secret"), time.Hour)
	tokens := &memTokens{tokens: map[string]string{}, revoked: map[string]time.Time{}}
	jwt.Revoked = tokens
	svc := NewService(memstore.New(), jwt, tokens)
	svc.cost = bcrypt.MinCost
	return svc, tokens, jwt
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens, jwt := newTestService()
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.COM ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sess.User.Email)
	assert.Equal(t, sess.Token, tokens.tokens[sess.User.ID.Hex()])

	claims, err := jwt.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID.Hex(), claims.UserID)

	_, err = svc.Register(ctx, RegisterInput{Name: "Ana2", Email: "ana@example.com", Password: "hunter22"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	got, err := svc.Login(ctx, LoginInput{Email: "ANA@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, got.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	assert.Equal(t, MsgBadLogin, apperr.Message(err))

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "hunter22"})
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	me, err := svc.Me(ctx, sess.User.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Ana", me.Name)

	svc.Logout(ctx, claims)
	assert.NotContains(t, tokens.tokens, sess.User.ID.Hex())
	assert.WithinDuration(t, claims.ExpiresAt.Time, tokens.revoked[claims.ID], time.Second)

	_, err = jwt.Verify(ctx, sess.Token)
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()
	for _, in := range []RegisterInput{
		{Email: "a@b.co", Password: "secret1"},
		{Name: "a", Email: "not-an-email", Password: "secret1"},
		{Name: "a", Email: "a@b.co", Password: "short"},
	} {
		_, err := svc.Register(context.Background(), in)
		assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err), "%+v", in)
	}
}

func TestTokenRegistryFailureDoesNotBlockLogin(t *testing.T) {
	svc, tokens, _ := newTestService()
	tokens.err = errors.New("redis down")

	sess, err := svc.Register(context.Background(), RegisterInput{Name: "b", Email: "b@b.co", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestAuthHandlers(t *testing.T) {
	svc, _, jwt := newTestService()
	h := NewHandlers(svc, jwt, time.Second)
	router := httprouter.New()
	router.POST("/api/auth/register", h.Register)
	router.POST("/api/auth/logout", h.Logout)
	router.GET("/api/auth/me", jwt.Authenticate(h.Me))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"Cy","email":"cy@example.com","password":"secret1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, cookie.Value, body["token"])
	assert.Equal(t, "cy@example.com", body["email"])

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: cookie.Value})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Cy"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: cookie.Value})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)

	// the old token no longer opens protected routes
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: cookie.Value})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
