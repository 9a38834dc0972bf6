/*
Package auth handles user registration, login and request authentication.

Passwords are stored as bcrypt hashes. Login issues an HS256 JWT carrying
the user id and name; Middleware validates the Bearer token and injects
the authenticated user into the request context, where handlers pick it
up as the acting owner. Sessions last seven days.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("missing or invalid token")
)

// User is a registered owner of accounts and entries.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	WhatsApp     string // phone number for payment reminders, optional
	CreatedAt    time.Time
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, u User) error
}

// Service implements registration and login on top of a UserStore.
type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

func NewService(store UserStore, secret string) *Service {
	return &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    7 * 24 * time.Hour,
		now:    time.Now,
	}
}

// Register creates a user. The email must be unused.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	if name == "" || email == "" || password == "" {
		return User{}, fmt.Errorf("%w: name, email and password are required", ErrInvalidCredentials)
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login verifies the credentials and returns a signed token plus the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"name": u.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", User{}, fmt.Errorf("sign token: %w", err)
	}
	return token, u, nil
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}

// SetWhatsApp stores the reminder phone number on the user's profile.
func (s *Service) SetWhatsApp(ctx context.Context, userID, number string) (User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	u.WhatsApp = number
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// =============================================================================
// REQUEST CONTEXT
// =============================================================================

type contextKey struct{}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID string
	Name   string
}

// FromContext returns the authenticated identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity injects an identity; used by Middleware and by tests that
// bypass token issuance.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware validates the Authorization bearer token and injects the
// identity into the request context. Requests without a valid token get
// 401 before reaching any handler.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		name, _ := claims["name"].(string)
		if sub == "" {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: sub, Name: name})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
