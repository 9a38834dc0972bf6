package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunogmenezes/financeiro/auth"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// mapUserStore is an in-memory auth.UserStore.
type mapUserStore struct {
	users map[string]auth.User // keyed by id
}

func newMapUserStore() *mapUserStore {
	return &mapUserStore{users: make(map[string]auth.User)}
}

func (m *mapUserStore) CreateUser(_ context.Context, u auth.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mapUserStore) GetUser(_ context.Context, id string) (auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *mapUserStore) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (m *mapUserStore) UpdateUser(_ context.Context, u auth.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return auth.ErrUserNotFound
	}
	m.users[u.ID] = u
	return nil
}

func newTestService() *auth.Service {
	return auth.NewService(newMapUserStore(), "test-secret")
}

// =============================================================================
// REGISTRATION AND LOGIN
// =============================================================================

func TestService_RegisterLoginRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "hunter22", u.PasswordHash, "password must be hashed")

	token, logged, err := svc.Login(ctx, "bruno@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, logged.ID)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "bruno@example.com", "different")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestService_Register_MissingFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, tc := range []struct{ name, email, password string }{
		{"", "a@b.com", "pw"},
		{"Bruno", "", "pw"},
		{"Bruno", "a@b.com", ""},
	} {
		_, err := svc.Register(ctx, tc.name, tc.email, tc.password)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
}

func TestService_Login_BadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "bruno@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// Unknown email looks identical to a wrong password.
	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestService_SetWhatsApp(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)

	updated, err := svc.SetWhatsApp(ctx, u.ID, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", updated.WhatsApp)

	got, err := svc.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "5511999990000", got.WhatsApp)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestMiddleware_InjectsIdentity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "bruno@example.com", "hunter22")
	require.NoError(t, err)

	var got auth.Identity
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "Bruno", got.Name)
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	svc := newTestService()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := svc.Middleware(next)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMiddleware_RejectsForeignSecret(t *testing.T) {
	issuer := auth.NewService(newMapUserStore(), "secret-a")
	verifier := auth.NewService(newMapUserStore(), "secret-b")
	ctx := context.Background()

	_, err := issuer.Register(ctx, "Bruno", "bruno@example.com", "hunter22")
	require.NoError(t, err)
	token, _, err := issuer.Login(ctx, "bruno@example.com", "hunter22")
	require.NoError(t, err)

	handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
