// Package auth resolves bearer credentials to requesters and evaluates their
// capabilities.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/outpost-sh/outpost/internal/instance"
	"github.com/outpost-sh/outpost/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type contextKey string

const requesterContextKey contextKey = "requester"

const tokenTTL = 24 * time.Hour

// Claims are the JWT claims carried by an issued token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Gate authenticates bearer tokens against the user store and builds
// requesters with their capability data loaded.
type Gate struct {
	users  store.Store
	secret []byte
}

func NewGate(users store.Store, secret []byte) *Gate {
	return &Gate{users: users, secret: secret}
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies a username/password pair and issues a token.
func (g *Gate) Login(username, password string) (string, error) {
	user, err := g.users.GetUserByUsername(username)
	if err != nil {
		return "", err
	}
	if user == nil || !CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return g.IssueToken(user)
}

// IssueToken creates a signed JWT for a user.
func (g *Gate) IssueToken(user *store.User) (string, error) {
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Authenticate resolves a bearer token to a Requester, loading the user's
// per-instance view grants so permission checks are pure afterwards.
func (g *Gate) Authenticate(tokenString string) (*Requester, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	user, err := g.users.GetUser(claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	viewable, err := g.users.ListViewableInstances(user.ID)
	if err != nil {
		return nil, err
	}
	set := make(map[instance.ID]struct{}, len(viewable))
	for _, id := range viewable {
		set[instance.ID(id)] = struct{}{}
	}

	return &Requester{
		UID:       user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CanCreate: user.CanCreate,
		CanDelete: user.CanDelete,
		ViewAll:   user.ViewAll,
		viewable:  set,
	}, nil
}

// Middleware authenticates the Authorization bearer header and injects the
// requester into the request context. Requests without a valid credential are
// rejected before any handler runs.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w, "invalid authorization header")
			return
		}

		requester, err := g.Authenticate(parts[1])
		if err != nil {
			unauthorized(w, "token error")
			return
		}

		ctx := context.WithValue(r.Context(), requesterContextKey, requester)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"kind":"Unauthorized","detail":"` + detail + `"}`))
}

// FromContext retrieves the requester placed by Middleware, or nil.
func FromContext(ctx context.Context) *Requester {
	requester, ok := ctx.Value(requesterContextKey).(*Requester)
	if !ok {
		return nil
	}
	return requester
}
