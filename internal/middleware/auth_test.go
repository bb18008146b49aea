package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

// usersWithAlice returns a store holding the user the test tokens name.
func usersWithAlice() *store.MockStore {
	st := store.NewMock()
	st.Users["u1"] = models.User{ID: "u1", Username: "alice"}
	return st
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := CurrentActor(r.Context()); ok {
			_, _ = w.Write([]byte(u.ID + ":" + u.Username))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func do(t *testing.T, h http.Handler, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	tok, err := IssueToken(secret, &models.User{ID: "u1", Username: "alice"}, TokenAccess, time.Hour)
	require.NoError(t, err)

	rec := do(t, Authenticate(secret, usersWithAlice())(echoActor()), "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:alice", rec.Body.String())
}

func TestAuthenticate_NoHeaderIsAnonymous(t *testing.T) {
	rec := do(t, Authenticate(secret, usersWithAlice())(echoActor()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestAuthenticate_Rejections(t *testing.T) {
	user := &models.User{ID: "u1", Username: "alice"}
	refresh, err := IssueToken(secret, user, TokenRefresh, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, user, TokenAccess, -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other-secret"), user, TokenAccess, time.Hour)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{TokenType: TokenAccess}).SignedString(secret)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong scheme":   "Basic abc",
		"garbage":        "Bearer not-a-jwt",
		"refresh token":  "Bearer " + refresh,
		"expired":        "Bearer " + expired,
		"wrong secret":   "Bearer " + foreign,
		"missing userid": "Bearer " + noUser,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, Authenticate(secret, usersWithAlice())(echoActor()), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), models.CodeUnauthenticated)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	h := Authenticate(secret, usersWithAlice())(RequireAuth(echoActor()))

	rec := do(t, h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := IssueToken(secret, &models.User{ID: "u1", Username: "alice"}, TokenAccess, time.Hour)
	require.NoError(t, err)
	rec = do(t, h, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	id, ok := UserIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	tok, err := IssueToken(secret, &models.User{ID: "gone", Username: "ghost"}, TokenAccess, time.Hour)
	require.NoError(t, err)

	rec := do(t, Authenticate(secret, usersWithAlice())(echoActor()), "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeUnauthenticated)
}

func TestAuthenticate_LookupFailure(t *testing.T) {
	st := usersWithAlice()
	st.ShouldFail = true
	tok, err := IssueToken(secret, &models.User{ID: "u1", Username: "alice"}, TokenAccess, time.Hour)
	require.NoError(t, err)

	rec := do(t, Authenticate(secret, st)(echoActor()), "Bearer "+tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), models.CodeInternal)
}
