package store

import (
	"context"
	"errors"
	"sort"

	"example.com/blogapi/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- User operations ---

// GetUserByUsername returns the user registered under username.
// If the user does not exist, it returns nil without an error.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_username WHERE username = ?`,
		username,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		logg.Error("store", "Failed to query user by username", err)
		return nil, err
	}

	u, err := s.GetUserByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// username row written but main row gone: deletion in flight
		return nil, nil
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u := models.User{ID: id}
	err := s.Session.Query(
		`SELECT username, password_hash FROM users WHERE user_id = ?`,
		id,
	).WithContext(ctx).Scan(&u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to query user by id", err)
		return nil, err
	}
	return &u, nil
}

// CreateUser registers username. The username claim is a lightweight
// transaction, so concurrent registrations of one name yield ErrDuplicate for
// all but one caller.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	id := uuid.NewString()

	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users_by_username (username, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		username, id,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to create username entry", err)
		return nil, err
	}
	if !applied {
		return nil, ErrDuplicate
	}

	err = s.Session.Query(`
		INSERT INTO users (user_id, username, password_hash)
		VALUES (?, ?, ?)`,
		id, username, passwordHash,
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return nil, err
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return &models.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// DeleteUser removes the account rows. Dependent rows are removed by PurgeUser,
// driven by the user_deleted event.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM users WHERE user_id = ?`, id)
	batch.Query(`DELETE FROM users_by_username WHERE username = ?`, u.Username)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete user", err)
		return err
	}

	logg.Info("store", "User deleted (user ID anonymized)")
	return nil
}

// --- Follow operations ---

func (s *Store) FollowExists(ctx context.Context, subscriberID, targetID string) (bool, error) {
	var id string
	err := s.Session.Query(
		`SELECT followee_id FROM follows WHERE user_id = ? AND followee_id = ?`,
		subscriberID, targetID,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return false, nil
		}
		logg.Error("store", "Failed to check follow relationship", err)
		return false, err
	}
	return true, nil
}

// followInsert is one statement of InsertFollow.
type followInsert struct {
	stmt string
	lwt  bool
}

// followInserts lists the InsertFollow statements in execution order. The
// reverse index goes first: it is idempotent, and an orphan index row whose
// LWT lost is harmless, while an edge without its index would survive the
// target's PurgeUser.
func followInserts() []followInsert {
	return []followInsert{
		{stmt: `INSERT INTO followers_by_followee (followee_id, user_id) VALUES (?, ?)`},
		{stmt: `
		INSERT INTO follows (user_id, followee_id, user_username, followee_username)
		VALUES (?, ?, ?, ?) IF NOT EXISTS`, lwt: true},
	}
}

// InsertFollow writes the edge with IF NOT EXISTS; a lost race surfaces as
// ErrDuplicate.
func (s *Store) InsertFollow(ctx context.Context, f models.Follow) error {
	for _, ins := range followInserts() {
		if !ins.lwt {
			if err := s.Session.Query(ins.stmt, f.TargetID, f.SubscriberID).WithContext(ctx).Exec(); err != nil {
				logg.Error("store", "Failed to index follower", err)
				return err
			}
			continue
		}

		applied, err := s.Session.Query(ins.stmt,
			f.SubscriberID, f.TargetID, f.Subscriber, f.Target,
		).WithContext(ctx).MapScanCAS(make(map[string]interface{}))
		if err != nil {
			logg.Error("store", "Failed to create follow relationship", err)
			return err
		}
		if !applied {
			return ErrDuplicate
		}
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

func (s *Store) ListFollowsBySubscriber(ctx context.Context, subscriberID string) ([]models.Follow, error) {
	iter := s.Session.Query(`
		SELECT followee_id, user_username, followee_username
		FROM follows WHERE user_id = ?`,
		subscriberID,
	).WithContext(ctx).Iter()

	var res []models.Follow
	var targetID, subscriber, target string
	for iter.Scan(&targetID, &subscriber, &target) {
		res = append(res, models.Follow{
			SubscriberID: subscriberID,
			TargetID:     targetID,
			Subscriber:   subscriber,
			Target:       target,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list follows", err)
		return nil, err
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Target < res[j].Target })
	return res, nil
}

// --- Cascades ---

func (s *Store) PurgeUser(ctx context.Context, userID string) error {
	postIDs, err := s.scanIDs(ctx, `SELECT post_id FROM posts_by_author WHERE author_id = ?`, userID)
	if err != nil {
		return err
	}
	for _, pid := range postIDs {
		if err := s.PurgePost(ctx, pid); err != nil {
			return err
		}
		if err := s.Session.Query(`DELETE FROM posts WHERE post_id = ?`, pid).WithContext(ctx).Exec(); err != nil {
			logg.Error("store", "Failed to purge post", err)
			return err
		}
	}
	if err := s.Session.Query(`DELETE FROM posts_by_author WHERE author_id = ?`, userID).WithContext(ctx).Exec(); err != nil {
		return err
	}

	iter := s.Session.Query(
		`SELECT post_id, comment_id FROM comments_by_author WHERE author_id = ?`, userID,
	).WithContext(ctx).Iter()
	var postID, commentID string
	for iter.Scan(&postID, &commentID) {
		if err := s.Session.Query(
			`DELETE FROM comments WHERE post_id = ? AND comment_id = ?`, postID, commentID,
		).WithContext(ctx).Exec(); err != nil {
			_ = iter.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list comments by author", err)
		return err
	}
	if err := s.Session.Query(`DELETE FROM comments_by_author WHERE author_id = ?`, userID).WithContext(ctx).Exec(); err != nil {
		return err
	}

	followees, err := s.scanIDs(ctx, `SELECT followee_id FROM follows WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	for _, fid := range followees {
		if err := s.Session.Query(
			`DELETE FROM followers_by_followee WHERE followee_id = ? AND user_id = ?`, fid, userID,
		).WithContext(ctx).Exec(); err != nil {
			return err
		}
	}
	if err := s.Session.Query(`DELETE FROM follows WHERE user_id = ?`, userID).WithContext(ctx).Exec(); err != nil {
		return err
	}

	followers, err := s.scanIDs(ctx, `SELECT user_id FROM followers_by_followee WHERE followee_id = ?`, userID)
	if err != nil {
		return err
	}
	for _, fid := range followers {
		if err := s.Session.Query(
			`DELETE FROM follows WHERE user_id = ? AND followee_id = ?`, fid, userID,
		).WithContext(ctx).Exec(); err != nil {
			return err
		}
	}
	if err := s.Session.Query(`DELETE FROM followers_by_followee WHERE followee_id = ?`, userID).WithContext(ctx).Exec(); err != nil {
		return err
	}

	logg.Info("store", "User content purged (user ID anonymized)")
	return nil
}

func (s *Store) scanIDs(ctx context.Context, stmt string, key string) ([]string, error) {
	iter := s.Session.Query(stmt, key).WithContext(ctx).Iter()
	var id string
	var res []string
	for iter.Scan(&id) {
		res = append(res, id)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to scan ids", err)
		return nil, err
	}
	return res, nil
}
