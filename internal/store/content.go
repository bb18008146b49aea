package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"example.com/blogapi/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- Post operations ---

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO posts (post_id, author_id, author_username, body, pub_date, image)
		VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Author, post.Text, post.PubDate, post.Image)
	batch.Query(`INSERT INTO posts_by_author (author_id, post_id) VALUES (?, ?)`,
		post.AuthorID, post.ID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}

	logg.Info("store", "Post added to posts table (post content anonymized)")
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	p := models.Post{ID: id}
	err := s.Session.Query(`
		SELECT author_id, author_username, body, pub_date, image
		FROM posts WHERE post_id = ?`,
		id,
	).WithContext(ctx).Scan(&p.AuthorID, &p.Author, &p.Text, &p.PubDate, &p.Image)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get post", err)
		return nil, err
	}
	return &p, nil
}

// ListPosts returns every post, newest first.
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	iter := s.Session.Query(`
		SELECT post_id, author_id, author_username, body, pub_date, image
		FROM posts`,
	).WithContext(ctx).Iter()

	var res []models.Post
	var p models.Post
	for iter.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Text, &p.PubDate, &p.Image) {
		res = append(res, p)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list posts", err)
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].PubDate.After(res[j].PubDate) })
	return res, nil
}

// UpdatePost rewrites the mutable fields; pub_date and author are left alone.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	applied, err := s.Session.Query(`
		UPDATE posts SET body = ?, image = ? WHERE post_id = ? IF EXISTS`,
		post.Text, post.Image, post.ID,
	).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
	if err != nil {
		logg.Error("store", "Failed to update post", err)
	}
	return casUpdateResult(applied, err)
}

// DeletePost removes the post rows; its comments follow via PurgePost.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, id)
	batch.Query(`DELETE FROM posts_by_author WHERE author_id = ? AND post_id = ?`, p.AuthorID, id)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return err
	}
	return nil
}

func (s *Store) PurgePost(ctx context.Context, postID string) error {
	iter := s.Session.Query(
		`SELECT comment_id, author_id FROM comments WHERE post_id = ?`, postID,
	).WithContext(ctx).Iter()

	var commentID, authorID string
	for iter.Scan(&commentID, &authorID) {
		if err := s.Session.Query(
			`DELETE FROM comments_by_author WHERE author_id = ? AND post_id = ? AND comment_id = ?`,
			authorID, postID, commentID,
		).WithContext(ctx).Exec(); err != nil {
			_ = iter.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list comments for purge", err)
		return err
	}

	if err := s.Session.Query(`DELETE FROM comments WHERE post_id = ?`, postID).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to purge comments", err)
		return err
	}
	return nil
}

// --- Comment operations ---

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO comments (post_id, comment_id, author_id, author_username, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.PostID, c.ID, c.AuthorID, c.Author, c.Text, c.Created)
	batch.Query(`INSERT INTO comments_by_author (author_id, post_id, comment_id) VALUES (?, ?, ?)`,
		c.AuthorID, c.PostID, c.ID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add comment", err)
		return err
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, postID, id string) (*models.Comment, error) {
	c := models.Comment{ID: id, PostID: postID}
	err := s.Session.Query(`
		SELECT author_id, author_username, body, created_at
		FROM comments WHERE post_id = ? AND comment_id = ?`,
		postID, id,
	).WithContext(ctx).Scan(&c.AuthorID, &c.Author, &c.Text, &c.Created)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get comment", err)
		return nil, err
	}
	return &c, nil
}

// ListComments returns the comments of a post, oldest first.
func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	iter := s.Session.Query(`
		SELECT comment_id, author_id, author_username, body, created_at
		FROM comments WHERE post_id = ?`,
		postID,
	).WithContext(ctx).Iter()

	var res []models.Comment
	var id, authorID, author, body string
	var created time.Time
	for iter.Scan(&id, &authorID, &author, &body, &created) {
		res = append(res, models.Comment{
			ID:       id,
			PostID:   postID,
			AuthorID: authorID,
			Author:   author,
			Text:     body,
			Created:  created,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list comments", err)
		return nil, err
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Created.Before(res[j].Created) })
	return res, nil
}

func (s *Store) UpdateComment(ctx context.Context, c *models.Comment) error {
	applied, err := s.Session.Query(`
		UPDATE comments SET body = ? WHERE post_id = ? AND comment_id = ? IF EXISTS`,
		c.Text, c.PostID, c.ID,
	).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
	if err != nil {
		logg.Error("store", "Failed to update comment", err)
	}
	return casUpdateResult(applied, err)
}

// casUpdateResult maps an UPDATE ... IF EXISTS outcome: a row deleted in the
// meantime is not applied and reads as ErrNotFound.
func casUpdateResult(applied bool, err error) error {
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, postID, id string) error {
	c, err := s.GetComment(ctx, postID, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM comments WHERE post_id = ? AND comment_id = ?`, postID, id)
	batch.Query(`DELETE FROM comments_by_author WHERE author_id = ? AND post_id = ? AND comment_id = ?`,
		c.AuthorID, postID, id)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete comment", err)
		return err
	}
	return nil
}

// --- Group operations ---

// CreateGroup claims the slug with a lightweight transaction; a taken slug
// returns ErrDuplicate.
func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO topic_groups_by_slug (slug, group_id)
		VALUES (?, ?) IF NOT EXISTS`,
		g.Slug, g.ID,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to claim group slug", err)
		return err
	}
	if !applied {
		return ErrDuplicate
	}

	if err := s.Session.Query(`
		INSERT INTO topic_groups (group_id, title, slug, description)
		VALUES (?, ?, ?, ?)`,
		g.ID, g.Title, g.Slug, g.Description,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to create group", err)
		return err
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	g := models.Group{ID: id}
	err := s.Session.Query(
		`SELECT title, slug, description FROM topic_groups WHERE group_id = ?`,
		id,
	).WithContext(ctx).Scan(&g.Title, &g.Slug, &g.Description)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get group", err)
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	iter := s.Session.Query(
		`SELECT group_id, title, slug, description FROM topic_groups`,
	).WithContext(ctx).Iter()

	var res []models.Group
	var g models.Group
	for iter.Scan(&g.ID, &g.Title, &g.Slug, &g.Description) {
		res = append(res, g)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list groups", err)
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Slug < res[j].Slug })
	return res, nil
}
