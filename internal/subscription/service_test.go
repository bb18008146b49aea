package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"

	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageStub lets a test script each storage call.
type storageStub struct {
	getUserByUsernameFn func(context.Context, string) (*models.User, error)
	followExistsFn      func(context.Context, string, string) (bool, error)
	insertFollowFn      func(context.Context, models.Follow) error
	listFn              func(context.Context, string) ([]models.Follow, error)
}

func (s *storageStub) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserByUsernameFn(ctx, username)
}
func (s *storageStub) FollowExists(ctx context.Context, subscriberID, targetID string) (bool, error) {
	return s.followExistsFn(ctx, subscriberID, targetID)
}
func (s *storageStub) InsertFollow(ctx context.Context, f models.Follow) error {
	return s.insertFollowFn(ctx, f)
}
func (s *storageStub) ListFollowsBySubscriber(ctx context.Context, subscriberID string) ([]models.Follow, error) {
	return s.listFn(ctx, subscriberID)
}

func seedUsers(t *testing.T, st store.StoreInterface, names ...string) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, len(names))
	for _, n := range names {
		u, err := st.CreateUser(context.Background(), n, "hash")
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}

func assertValidation(t *testing.T, err error, want *models.AppError) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, want)
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestCreate_Unauthenticated(t *testing.T) {
	svc := NewService(store.NewMock())

	_, err := svc.Create(context.Background(), nil, "bob")
	assert.True(t, models.HasCode(err, models.CodeUnauthenticated))

	_, err = svc.Create(context.Background(), &models.User{Username: "no-id"}, "bob")
	assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
}

func TestCreate_TargetNotSpecified(t *testing.T) {
	st := store.NewMock()
	u := seedUsers(t, st, "alice")
	svc := NewService(st)

	for _, name := range []string{"", "   "} {
		_, err := svc.Create(context.Background(), u[0], name)
		assertValidation(t, err, models.ErrTargetNotSpecified)
	}
}

func TestCreate_TargetNotFound(t *testing.T) {
	st := store.NewMock()
	u := seedUsers(t, st, "alice")
	svc := NewService(st)

	_, err := svc.Create(context.Background(), u[0], "nonexistent-user")
	assertValidation(t, err, models.ErrTargetNotFound)
	assert.Empty(t, st.Follows)
}

func TestCreate_CannotFollowSelf(t *testing.T) {
	st := store.NewMock()
	u := seedUsers(t, st, "alice", "bob")
	svc := NewService(st)

	for _, actor := range u {
		_, err := svc.Create(context.Background(), actor, actor.Username)
		assertValidation(t, err, models.ErrFollowSelf)
	}
	assert.Empty(t, st.Follows)
}

func TestCreate_SelfCheckUsesID(t *testing.T) {
	// an actor whose display name matches the target but whose id differs is
	// a different user
	target := &models.User{ID: "t-1", Username: "alice"}
	var inserted models.Follow
	stub := &storageStub{
		getUserByUsernameFn: func(context.Context, string) (*models.User, error) { return target, nil },
		followExistsFn:      func(context.Context, string, string) (bool, error) { return false, nil },
		insertFollowFn: func(_ context.Context, f models.Follow) error {
			inserted = f
			return nil
		},
	}

	f, err := NewService(stub).Create(context.Background(), &models.User{ID: "a-2", Username: "alice"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "a-2", f.SubscriberID)
	assert.Equal(t, "t-1", inserted.TargetID)
}

func TestCreate_ThenDuplicate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	u := seedUsers(t, st, "alice", "bob")
	svc := NewService(st)

	f, err := svc.Create(ctx, u[0], "bob")
	require.NoError(t, err)
	assert.Equal(t, models.Follow{SubscriberID: u[0].ID, TargetID: u[1].ID, Subscriber: "alice", Target: "bob"}, *f)

	_, err = svc.Create(ctx, u[0], "bob")
	assertValidation(t, err, models.ErrAlreadyFollowing)

	follows, err := st.ListFollowsBySubscriber(ctx, u[0].ID)
	require.NoError(t, err)
	assert.Len(t, follows, 1)
}

func TestCreate_LostRaceMapsToAlreadyFollowing(t *testing.T) {
	stub := &storageStub{
		getUserByUsernameFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: "bob", Username: "bob"}, nil
		},
		followExistsFn: func(context.Context, string, string) (bool, error) { return false, nil },
		insertFollowFn: func(context.Context, models.Follow) error { return store.ErrDuplicate },
	}

	_, err := NewService(stub).Create(context.Background(), &models.User{ID: "alice"}, "bob")
	assertValidation(t, err, models.ErrAlreadyFollowing)
}

func TestCreate_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("cassandra unavailable")
	target := &models.User{ID: "bob", Username: "bob"}

	cases := map[string]*storageStub{
		"lookup": {
			getUserByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, boom },
		},
		"exists": {
			getUserByUsernameFn: func(context.Context, string) (*models.User, error) { return target, nil },
			followExistsFn:      func(context.Context, string, string) (bool, error) { return false, boom },
		},
		"insert": {
			getUserByUsernameFn: func(context.Context, string) (*models.User, error) { return target, nil },
			followExistsFn:      func(context.Context, string, string) (bool, error) { return false, nil },
			insertFollowFn:      func(context.Context, models.Follow) error { return boom },
		},
	}

	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewService(stub).Create(context.Background(), &models.User{ID: "alice"}, "bob")
			assert.ErrorIs(t, err, boom)
			assert.False(t, models.HasCode(err, models.CodeValidation))
		})
	}
}

func TestCreate_ConcurrentDuplicatesOneWinner(t *testing.T) {
	backends := map[string]func(t *testing.T) store.StoreInterface{
		"mock": func(*testing.T) store.StoreInterface { return store.NewMock() },
		"sqlite": func(t *testing.T) store.StoreInterface {
			s, err := store.NewSQL("sqlite", "file::memory:?_foreign_keys=on")
			require.NoError(t, err)
			t.Cleanup(s.Close)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			u := seedUsers(t, st, "alice", "bob")
			svc := NewService(st)

			const callers = 16
			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, errs[i] = svc.Create(ctx, u[0], "bob")
				}(i)
			}
			close(start)
			wg.Wait()

			var ok int
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				assertValidation(t, err, models.ErrAlreadyFollowing)
			}
			assert.Equal(t, 1, ok)

			follows, err := st.ListFollowsBySubscriber(ctx, u[0].ID)
			require.NoError(t, err)
			assert.Len(t, follows, 1)
		})
	}
}

func TestListFor_OnlySubscriberEdges(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	u := seedUsers(t, st, "alice", "bob", "carol")
	alice, bob, carol := u[0], u[1], u[2]
	svc := NewService(st)

	_, err := svc.Create(ctx, alice, "bob")
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "alice")
	require.NoError(t, err)
	_, err = svc.Create(ctx, carol, "alice")
	require.NoError(t, err)

	follows, err := svc.ListFor(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, bob.ID, follows[0].TargetID)
	for _, f := range follows {
		assert.Equal(t, alice.ID, f.SubscriberID)
		assert.NotEqual(t, alice.ID, f.TargetID)
	}
}

func TestListFor_Search(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	u := seedUsers(t, st, "alice", "bob", "bobby", "carol")
	svc := NewService(st)
	for _, name := range []string{"bob", "bobby", "carol"} {
		_, err := svc.Create(ctx, u[0], name)
		require.NoError(t, err)
	}

	follows, err := svc.ListFor(ctx, u[0], "BOB")
	require.NoError(t, err)
	require.Len(t, follows, 2)
	assert.Equal(t, "bob", follows[0].Target)
	assert.Equal(t, "bobby", follows[1].Target)

	// the subscriber's own name matches every edge
	follows, err = svc.ListFor(ctx, u[0], "ali")
	require.NoError(t, err)
	assert.Len(t, follows, 3)
}

func TestListFor_Unauthenticated(t *testing.T) {
	_, err := NewService(store.NewMock()).ListFor(context.Background(), nil, "")
	assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
}
