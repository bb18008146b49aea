package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	appkafka "example.com/blogapi/internal/broker"
	"example.com/blogapi/internal/logger"
	"example.com/blogapi/internal/middleware"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"example.com/blogapi/internal/subscription"
)

type Server struct {
	store       store.StoreInterface
	kafkaWriter appkafka.KafkaWriter
	follows     *subscription.Service
	jwtSecret   []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

// Options carries the token settings.
type Options struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

var logg = logger.New()

func New(st store.StoreInterface, writer appkafka.KafkaWriter, opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Server{
		store:       st,
		kafkaWriter: writer,
		follows:     subscription.NewService(st),
		jwtSecret:   opts.JWTSecret,
		accessTTL:   opts.AccessTTL,
		refreshTTL:  opts.RefreshTTL,
	}
}

// inlineCascader is implemented by stores whose deletes already remove
// dependent rows, so a lost cascade event costs nothing.
type inlineCascader interface {
	CascadesOnDelete() bool
}

// publish sends a cascade event. A write failure is fatal to the request
// unless the store cascades on its own.
func (s *Server) publish(ev models.Event) error {
	err := appkafka.Publish(s.kafkaWriter, ev)
	if err == nil {
		return nil
	}
	if c, ok := s.store.(inlineCascader); ok && c.CascadesOnDelete() {
		logg.Error("server", "Failed to write Kafka message, store cascades inline", err)
		return nil
	}
	logg.Error("server", "Failed to write Kafka message", err)
	return models.NewInternalError(err)
}

// Routes builds the /api/v1 handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth

	// Public endpoints: registration and token issuance
	mux.HandleFunc("POST /api/v1/users", s.createUserHandler)
	mux.HandleFunc("POST /api/v1/auth/jwt/create", s.createTokenHandler)
	mux.Handle("DELETE /api/v1/users/me", auth(http.HandlerFunc(s.deleteMeHandler)))

	// Posts and comments: reads are open, writes go through authz
	mux.HandleFunc("GET /api/v1/posts", s.listPostsHandler)
	mux.HandleFunc("POST /api/v1/posts", s.createPostHandler)
	mux.HandleFunc("GET /api/v1/posts/{id}", s.getPostHandler)
	mux.HandleFunc("PUT /api/v1/posts/{id}", s.updatePostHandler)
	mux.HandleFunc("PATCH /api/v1/posts/{id}", s.updatePostHandler)
	mux.HandleFunc("DELETE /api/v1/posts/{id}", s.deletePostHandler)

	mux.HandleFunc("GET /api/v1/posts/{post_id}/comments", s.listCommentsHandler)
	mux.HandleFunc("POST /api/v1/posts/{post_id}/comments", s.createCommentHandler)
	mux.HandleFunc("GET /api/v1/posts/{post_id}/comments/{id}", s.getCommentHandler)
	mux.HandleFunc("PUT /api/v1/posts/{post_id}/comments/{id}", s.updateCommentHandler)
	mux.HandleFunc("PATCH /api/v1/posts/{post_id}/comments/{id}", s.updateCommentHandler)
	mux.HandleFunc("DELETE /api/v1/posts/{post_id}/comments/{id}", s.deleteCommentHandler)

	// Groups are read-only for everyone
	mux.HandleFunc("GET /api/v1/groups", s.listGroupsHandler)
	mux.HandleFunc("GET /api/v1/groups/{id}", s.getGroupHandler)
	rejectGroups := methodNotAllowed("GET, HEAD, OPTIONS", "Groups are read-only")
	mux.HandleFunc("/api/v1/groups", rejectGroups)
	mux.HandleFunc("/api/v1/groups/{id}", rejectGroups)

	mux.Handle("GET /api/v1/follow", auth(http.HandlerFunc(s.listFollowsHandler)))
	mux.Handle("POST /api/v1/follow", auth(http.HandlerFunc(s.createFollowHandler)))

	for path, allow := range map[string]string{
		"/api/v1/users":                         "POST",
		"/api/v1/users/me":                      "DELETE",
		"/api/v1/auth/jwt/create":               "POST",
		"/api/v1/posts":                         "GET, HEAD, POST",
		"/api/v1/posts/{id}":                    "GET, HEAD, PUT, PATCH, DELETE",
		"/api/v1/posts/{post_id}/comments":      "GET, HEAD, POST",
		"/api/v1/posts/{post_id}/comments/{id}": "GET, HEAD, PUT, PATCH, DELETE",
		"/api/v1/follow":                        "GET, HEAD, POST",
	} {
		mux.HandleFunc(path, methodNotAllowed(allow, "Method not allowed"))
	}

	mux.HandleFunc("/", notFoundHandler)

	return middleware.Authenticate(s.jwtSecret, s.store)(mux)
}

// Run starts the HTTP(S) server and shuts it down gracefully when ctx ends.
// TLS is used when both certFile and keyFile are set.
func Run(ctx context.Context, s *Server, addr, certFile, keyFile string) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
