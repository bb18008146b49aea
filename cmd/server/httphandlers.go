package server

import (
	"errors"
	"net/http"
	"regexp"

	"example.com/blogapi/internal/middleware"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

const minPasswordLen = 8

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// --- HTTP Handlers ---

// createUserHandler registers a user.
// Expects JSON body: {"username": "example", "password": "..."}
// Returns 201 with {"id": ..., "username": ...}
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		writeError(w, "http/users", err)
		return
	}

	if !usernamePattern.MatchString(body.Username) {
		logg.Info("http/users", "Invalid username")
		writeError(w, "http/users", models.NewValidationError("username must be 1-150 letters, digits or @.+-_"))
		return
	}
	if len(body.Password) < minPasswordLen {
		writeError(w, "http/users", models.NewValidationError("password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, "http/users", models.NewInternalError(err))
		return
	}

	user, err := s.store.CreateUser(r.Context(), body.Username, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		writeError(w, "http/users", models.NewValidationError("a user with that username already exists"))
		return
	}
	if err != nil {
		writeError(w, "http/users", err)
		return
	}

	logg.Info("http/users", "User created successfully with user_id="+user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// createTokenHandler exchanges credentials for an access/refresh token pair.
// Expects JSON body: {"username": "example", "password": "..."}
func (s *Server) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, "http/auth", err)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), body.Username)
	if err != nil {
		writeError(w, "http/auth", err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		logg.Info("http/auth", "Rejected login attempt")
		writeError(w, "http/auth", models.NewUnauthenticatedError("No active account found with the given credentials"))
		return
	}

	access, err := middleware.IssueToken(s.jwtSecret, user, middleware.TokenAccess, s.accessTTL)
	if err != nil {
		writeError(w, "http/auth", models.NewInternalError(err))
		return
	}
	refresh, err := middleware.IssueToken(s.jwtSecret, user, middleware.TokenRefresh, s.refreshTTL)
	if err != nil {
		writeError(w, "http/auth", models.NewInternalError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

// deleteMeHandler deletes the calling user. Posts, comments and follow edges
// are removed by the cascade worker via a user_deleted event. The event goes
// out before the row is deleted so a failed publish leaves the account in
// place and the request can be retried.
func (s *Server) deleteMeHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentActor(r.Context())

	if err := s.publish(models.Event{Type: models.EventUserDeleted, UserID: actor.ID}); err != nil {
		writeError(w, "http/users", err)
		return
	}

	if err := s.store.DeleteUser(r.Context(), actor.ID); err != nil {
		writeError(w, "http/users", err)
		return
	}

	logg.Info("http/users", "User deleted user_id="+actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

// listFollowsHandler lists the caller's subscriptions.
// Query parameters: ?search=<part of a username>
func (s *Server) listFollowsHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.CurrentActor(r.Context())

	follows, err := s.follows.ListFor(r.Context(), actor, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, "http/follow", err)
		return
	}
	writeJSON(w, http.StatusOK, follows)
}

// createFollowHandler makes the caller follow another user.
// Expects JSON body: {"following": "username"}; the subscriber is always the
// token's user.
func (s *Server) createFollowHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Following string `json:"following"`
	}
	if err := decodeOptionalBody(r, &body); err != nil {
		logg.Error("http/follow", "Invalid request body", err)
		writeError(w, "http/follow", err)
		return
	}

	actor, _ := middleware.CurrentActor(r.Context())
	follow, err := s.follows.Create(r.Context(), actor, body.Following)
	if err != nil {
		if models.HasCode(err, models.CodeValidation) {
			logg.Info("http/follow", "Follow rejected: "+err.Error())
		}
		writeError(w, "http/follow", err)
		return
	}

	logg.Info("http/follow", "User "+actor.Username+" followed "+follow.Target)
	writeJSON(w, http.StatusCreated, follow)
}
