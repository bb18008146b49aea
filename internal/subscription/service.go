// Package subscription creates and lists follow edges on behalf of the
// authenticated actor.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"example.com/blogapi/internal/authz"
	"example.com/blogapi/internal/logger"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
)

var logg = logger.New()

// Storage is the slice of the store the service needs. InsertFollow must
// enforce uniqueness of the pair itself and report a violation as
// store.ErrDuplicate.
type Storage interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	FollowExists(ctx context.Context, subscriberID, targetID string) (bool, error)
	InsertFollow(ctx context.Context, follow models.Follow) error
	ListFollowsBySubscriber(ctx context.Context, subscriberID string) ([]models.Follow, error)
}

type Service struct {
	store Storage
}

func NewService(st Storage) *Service {
	return &Service{store: st}
}

// Create makes actor follow the user named targetUsername.
//
// The FollowExists pre-check only gives the common case a clean answer; two
// concurrent calls can both pass it. The storage constraint decides the race
// and its violation is reported as ErrAlreadyFollowing, same as the pre-check.
func (s *Service) Create(ctx context.Context, actor *models.User, targetUsername string) (*models.Follow, error) {
	if !authz.IsAuthenticated(actor) {
		return nil, models.NewUnauthenticatedError("Authentication credentials were not provided")
	}

	targetUsername = strings.TrimSpace(targetUsername)
	if targetUsername == "" {
		return nil, models.ErrTargetNotSpecified
	}

	target, err := s.store.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		return nil, fmt.Errorf("resolve follow target: %w", err)
	}
	if target == nil {
		return nil, models.ErrTargetNotFound
	}

	if actor.ID == target.ID {
		return nil, models.ErrFollowSelf
	}

	exists, err := s.store.FollowExists(ctx, actor.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("check follow: %w", err)
	}
	if exists {
		return nil, models.ErrAlreadyFollowing
	}

	follow := models.Follow{
		SubscriberID: actor.ID,
		TargetID:     target.ID,
		Subscriber:   actor.Username,
		Target:       target.Username,
	}
	if err := s.store.InsertFollow(ctx, follow); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			logg.Debug("subscription", "Concurrent duplicate follow rejected by storage constraint")
			return nil, models.ErrAlreadyFollowing
		}
		return nil, fmt.Errorf("insert follow: %w", err)
	}

	logg.Info("subscription", "Follow created (user IDs anonymized)")
	return &follow, nil
}

// ListFor returns the edges where actor is the subscriber. A non-empty search
// keeps edges whose subscriber or target username contains it, ignoring case.
func (s *Service) ListFor(ctx context.Context, actor *models.User, search string) ([]models.Follow, error) {
	if !authz.IsAuthenticated(actor) {
		return nil, models.NewUnauthenticatedError("Authentication credentials were not provided")
	}

	follows, err := s.store.ListFollowsBySubscriber(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}

	res := make([]models.Follow, 0, len(follows))
	term := strings.ToLower(strings.TrimSpace(search))
	for _, f := range follows {
		if f.SubscriberID != actor.ID {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(f.Target), term) &&
			!strings.Contains(strings.ToLower(f.Subscriber), term) {
			continue
		}
		res = append(res, f)
	}
	return res, nil
}
