package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/blogapi/internal/logger"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

var logg = logger.New()

type contextKey string

const UserCtxKey = contextKey("user")

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims carried by access and refresh tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// IssueToken signs a token of the given type for user.
func IssueToken(secret []byte, user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseAccessToken validates an access token and returns the actor it names.
func ParseAccessToken(secret []byte, raw string) (*models.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != TokenAccess {
		return nil, errors.New("not an access token")
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid user_id in token")
	}
	return &models.User{ID: claims.UserID, Username: claims.Username}, nil
}

// UserLookup resolves the user a token names. It must return
// store.ErrNotFound for a user that no longer exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticate attaches the actor from a Bearer token, when one is present.
// Requests without an Authorization header pass through as anonymous; a
// malformed or invalid token, or one whose user was deleted, is rejected
// with 401.
func Authenticate(secret []byte, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid Authorization header")
				return
			}

			claimed, err := ParseAccessToken(secret, parts[1])
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			actor, err := users.GetUserByID(r.Context(), claimed.ID)
			if errors.Is(err, store.ErrNotFound) {
				unauthorized(w, "user not found")
				return
			}
			if err != nil {
				logg.Error("middleware", "Failed to resolve token user", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Internal server error", Code: models.CodeInternal})
				return
			}

			ctx := context.WithValue(r.Context(), UserCtxKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentActor(r.Context()); !ok {
			unauthorized(w, "Authentication credentials were not provided")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentActor returns the authenticated actor of the request, if any.
func CurrentActor(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(UserCtxKey).(*models.User)
	return u, ok && u != nil
}

// Extracting user_id in handler
func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := CurrentActor(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg, Code: models.CodeUnauthenticated})
}
