package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/blogapi/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLStore implements StoreInterface on a relational database through gorm.
// The composite primary key on follows and the unique indexes on usernames and
// group slugs are the uniqueness constraints; foreign keys cascade deletes.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQL opens driver ("postgres" or "sqlite") at dsn and migrates the schema.
func NewSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "file::memory:?_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one connection keeps an in-memory database shared and serialises writers
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Group{}, &models.Follow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logg.Info("store", "Connected to "+driver+" database")
	return &SQLStore{DB: db}, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- User operations ---

func (s *SQLStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u := &models.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		logg.Error("store", "Failed to create user", err)
		return nil, err
	}
	return u, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logg.Error("store", "Failed to query user by username", err)
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// DeleteUser removes the user and, in the same transaction, everything that
// references it.
func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purgeUser(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Follow operations ---

func (s *SQLStore) FollowExists(ctx context.Context, subscriberID, targetID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Follow{}).
		Where("subscriber_id = ? AND target_id = ?", subscriberID, targetID).
		Count(&n).Error
	if err != nil {
		logg.Error("store", "Failed to check follow relationship", err)
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) InsertFollow(ctx context.Context, f models.Follow) error {
	f.SubscriberRef, f.TargetRef = nil, nil
	if err := s.DB.WithContext(ctx).Create(&f).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		logg.Error("store", "Failed to create follow relationship", err)
		return err
	}
	return nil
}

func (s *SQLStore) ListFollowsBySubscriber(ctx context.Context, subscriberID string) ([]models.Follow, error) {
	var res []models.Follow
	err := s.DB.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("target_username").
		Find(&res).Error
	if err != nil {
		logg.Error("store", "Failed to list follows", err)
		return nil, err
	}
	return res, nil
}

// --- Post operations ---

func (s *SQLStore) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Omit("User").Create(post).Error
}

func (s *SQLStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *SQLStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	var res []models.Post
	if err := s.DB.WithContext(ctx).Order("pub_date DESC").Order("id").Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLStore) UpdatePost(ctx context.Context, post *models.Post) error {
	res := s.DB.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]any{"text": post.Text, "image": post.Image})
	return updateResult(res)
}

// updateResult reports ErrNotFound when the row was deleted before the
// update reached it.
func updateResult(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeletePost(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) PurgePost(ctx context.Context, postID string) error {
	return s.DB.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{}).Error
}

// --- Comment operations ---

func (s *SQLStore) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return s.DB.WithContext(ctx).Omit("User", "Post").Create(c).Error
}

func (s *SQLStore) GetComment(ctx context.Context, postID, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.DB.WithContext(ctx).Where("post_id = ? AND id = ?", postID, id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *SQLStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	var res []models.Comment
	err := s.DB.WithContext(ctx).Where("post_id = ?", postID).Order("created").Order("id").Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLStore) UpdateComment(ctx context.Context, c *models.Comment) error {
	res := s.DB.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND id = ?", c.PostID, c.ID).
		Update("text", c.Text)
	return updateResult(res)
}

func (s *SQLStore) DeleteComment(ctx context.Context, postID, id string) error {
	res := s.DB.WithContext(ctx).Where("post_id = ? AND id = ?", postID, id).Delete(&models.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Group operations ---

func (s *SQLStore) CreateGroup(ctx context.Context, g *models.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := s.DB.WithContext(ctx).Create(g).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	var res []models.Group
	if err := s.DB.WithContext(ctx).Order("slug").Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// --- Cascades ---

func (s *SQLStore) PurgeUser(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return purgeUser(tx, userID)
	})
}

func purgeUser(tx *gorm.DB, userID string) error {
	own := tx.Model(&models.Post{}).Select("id").Where("author_id = ?", userID)
	if err := tx.Where("author_id = ? OR post_id IN (?)", userID, own).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("author_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
		return err
	}
	return tx.Where("subscriber_id = ? OR target_id = ?", userID, userID).Delete(&models.Follow{}).Error
}

// CascadesOnDelete reports that DeleteUser and DeletePost remove dependants
// in their own transaction.
func (s *SQLStore) CascadesOnDelete() bool { return true }

func (s *SQLStore) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
		logg.Info("store", "SQL connection closed")
	}
}
