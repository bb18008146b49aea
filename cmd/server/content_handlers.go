package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"example.com/blogapi/internal/authz"
	config "example.com/blogapi/internal/init"
	"example.com/blogapi/internal/middleware"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
)

// postInput is the writable part of a post. Pointers tell PATCH which fields
// were sent.
type postInput struct {
	Text  *string `json:"text"`
	Image *string `json:"image"`
}

type commentInput struct {
	Text *string `json:"text"`
}

func actorOf(r *http.Request) *models.User {
	u, _ := middleware.CurrentActor(r.Context())
	return u
}

func requireText(text *string) error {
	if text == nil || strings.TrimSpace(*text) == "" {
		return models.NewValidationError("text: this field is required")
	}
	return nil
}

// --- Posts ---

// listPostsHandler lists posts, newest first.
// Query parameters: ?limit=10&offset=20 switch to a paginated envelope.
func (s *Server) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts(r.Context())
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	if p, ok := paginate(r, posts); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// createPostHandler publishes a post authored by the caller.
// Expects JSON body: {"text": "...", "image": "optional path"}
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	if err := authz.Authorize(actor, r.Method, nil, false); err != nil {
		logg.Info("http/posts", "Unauthorized post creation attempt")
		writeError(w, "http/posts", err)
		return
	}

	var in postInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	if err := requireText(in.Text); err != nil {
		writeError(w, "http/posts", err)
		return
	}

	post := &models.Post{
		ID:       uuid.NewString(),
		Text:     *in.Text,
		PubDate:  time.Now().UTC(),
		AuthorID: actor.ID,
		Author:   actor.Username,
	}
	if in.Image != nil {
		post.Image = *in.Image
	}

	if err := s.store.CreatePost(r.Context(), post); err != nil {
		writeError(w, "http/posts", err)
		return
	}

	logg.Info("http/posts", "Post created successfully by user_id="+actor.ID)
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.store.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// postForWrite loads the post for an unsafe request and runs the object
// check. A missing post is handed to the gate as nil and denied.
func (s *Server) postForWrite(ctx context.Context, r *http.Request) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, r.PathValue("id"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := authz.Authorize(actorOf(r), r.Method, post, true); err != nil {
		return nil, err
	}
	return post, nil
}

// updatePostHandler serves PUT (text required) and PATCH (any subset).
func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.postForWrite(r.Context(), r)
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}

	var in postInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	if r.Method == http.MethodPut || in.Text != nil {
		if err := requireText(in.Text); err != nil {
			writeError(w, "http/posts", err)
			return
		}
		post.Text = *in.Text
	}
	if in.Image != nil {
		post.Image = *in.Image
	} else if r.Method == http.MethodPut {
		post.Image = ""
	}

	if err := s.store.UpdatePost(r.Context(), post); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.postForWrite(r.Context(), r)
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}

	if err := s.publish(models.Event{Type: models.EventPostDeleted, PostID: post.ID}); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	if err := s.store.DeletePost(r.Context(), post.ID); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Comments ---

// commentPost resolves the post named in the path. Its absence is a routing
// failure (404), not a validation one.
func (s *Server) commentPost(r *http.Request) (*models.Post, error) {
	id := r.PathValue("post_id")
	post, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, err
}

func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.commentPost(r)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	comments, err := s.store.ListComments(r.Context(), post.ID)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// createCommentHandler attaches a comment to the post in the path; any post
// field in the body is ignored.
func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	if err := authz.Authorize(actor, r.Method, nil, false); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	post, err := s.commentPost(r)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}

	var in commentInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	if err := requireText(in.Text); err != nil {
		writeError(w, "http/comments", err)
		return
	}

	comment := &models.Comment{
		ID:       uuid.NewString(),
		Text:     *in.Text,
		Created:  time.Now().UTC(),
		AuthorID: actor.ID,
		Author:   actor.Username,
		PostID:   post.ID,
	}
	if err := s.store.CreateComment(r.Context(), comment); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) getCommentHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.commentPost(r)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	comment, err := s.store.GetComment(r.Context(), post.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) commentForWrite(r *http.Request) (*models.Comment, error) {
	post, err := s.commentPost(r)
	if err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(r.Context(), post.ID, r.PathValue("id"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := authz.Authorize(actorOf(r), r.Method, comment, true); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Server) updateCommentHandler(w http.ResponseWriter, r *http.Request) {
	comment, err := s.commentForWrite(r)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}

	var in commentInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	if r.Method == http.MethodPut || in.Text != nil {
		if err := requireText(in.Text); err != nil {
			writeError(w, "http/comments", err)
			return
		}
		comment.Text = *in.Text
	}

	if err := s.store.UpdateComment(r.Context(), comment); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	comment, err := s.commentForWrite(r)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	if err := s.store.DeleteComment(r.Context(), comment.PostID, comment.ID); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Groups ---

func (s *Server) listGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		writeError(w, "http/groups", err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) getGroupHandler(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/groups", err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// SeedGroups creates the configured groups. Groups whose slug is already taken
// are left as they are, so seeding is safe on every start.
func SeedGroups(ctx context.Context, st store.StoreInterface, seeds []config.GroupSeed) error {
	for _, seed := range seeds {
		g := &models.Group{
			Title:       seed.Title,
			Slug:        seed.Slug,
			Description: seed.Description,
		}
		if g.Slug == "" {
			g.Slug = slug.Make(seed.Title)
		}
		if g.Slug == "" {
			logg.Info("groups", "Skipping group seed without title or slug")
			continue
		}

		err := st.CreateGroup(ctx, g)
		if errors.Is(err, store.ErrDuplicate) {
			logg.Debug("groups", "Group "+g.Slug+" already exists")
			continue
		}
		if err != nil {
			return err
		}
		logg.Info("groups", "Group "+g.Slug+" created")
	}
	return nil
}
