package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"example.com/blogapi/internal/models"
	"github.com/google/uuid"
)

type followKey struct{ subscriber, target string }

// MockStore is an in-memory StoreInterface for tests. The follow map is keyed
// by the ordered pair, so InsertFollow enforces uniqueness the way the real
// backends do.
type MockStore struct {
	mu         sync.Mutex
	Users      map[string]models.User
	Follows    map[followKey]models.Follow
	Posts      map[string]models.Post
	Comments   map[string]models.Comment
	Groups     map[string]models.Group
	ShouldFail bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[string]models.User),
		Follows:  make(map[followKey]models.Follow),
		Posts:    make(map[string]models.Post),
		Comments: make(map[string]models.Comment),
		Groups:   make(map[string]models.Group),
	}
}

var errMock = errors.New("mock: store failure")

func (m *MockStore) Close() {}

func (m *MockStore) CreateUser(_ context.Context, username, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	for _, u := range m.Users {
		if u.Username == username {
			return nil, ErrDuplicate
		}
	}
	u := models.User{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash}
	m.Users[u.ID] = u
	return &u, nil
}

func (m *MockStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	for _, u := range m.Users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MockStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// DeleteUser only removes the account; dependants go through PurgeUser like
// the Cassandra backend.
func (m *MockStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	if _, ok := m.Users[id]; !ok {
		return ErrNotFound
	}
	delete(m.Users, id)
	return nil
}

func (m *MockStore) FollowExists(_ context.Context, subscriberID, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errMock
	}
	_, ok := m.Follows[followKey{subscriberID, targetID}]
	return ok, nil
}

func (m *MockStore) InsertFollow(_ context.Context, f models.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	k := followKey{f.SubscriberID, f.TargetID}
	if _, ok := m.Follows[k]; ok {
		return ErrDuplicate
	}
	m.Follows[k] = f
	return nil
}

func (m *MockStore) ListFollowsBySubscriber(_ context.Context, subscriberID string) ([]models.Follow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	var res []models.Follow
	for k, f := range m.Follows {
		if k.subscriber == subscriberID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Target < res[j].Target })
	return res, nil
}

func (m *MockStore) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	m.Posts[post.ID] = *post
	return nil
}

func (m *MockStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	p, ok := m.Posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MockStore) ListPosts(_ context.Context) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	res := make([]models.Post, 0, len(m.Posts))
	for _, p := range m.Posts {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].PubDate.Equal(res[j].PubDate) {
			return res[i].ID < res[j].ID
		}
		return res[i].PubDate.After(res[j].PubDate)
	})
	return res, nil
}

func (m *MockStore) UpdatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	p, ok := m.Posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	p.Text, p.Image = post.Text, post.Image
	m.Posts[post.ID] = p
	return nil
}

func (m *MockStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	if _, ok := m.Posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.Posts, id)
	return nil
}

func (m *MockStore) CreateComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.Comments[c.ID] = *c
	return nil
}

func (m *MockStore) GetComment(_ context.Context, postID, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	c, ok := m.Comments[id]
	if !ok || c.PostID != postID {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MockStore) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	var res []models.Comment
	for _, c := range m.Comments {
		if c.PostID == postID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Created.Equal(res[j].Created) {
			return res[i].ID < res[j].ID
		}
		return res[i].Created.Before(res[j].Created)
	})
	return res, nil
}

func (m *MockStore) UpdateComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	cur, ok := m.Comments[c.ID]
	if !ok || cur.PostID != c.PostID {
		return ErrNotFound
	}
	cur.Text = c.Text
	m.Comments[c.ID] = cur
	return nil
}

func (m *MockStore) DeleteComment(_ context.Context, postID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	c, ok := m.Comments[id]
	if !ok || c.PostID != postID {
		return ErrNotFound
	}
	delete(m.Comments, id)
	return nil
}

func (m *MockStore) CreateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	for _, existing := range m.Groups {
		if existing.Slug == g.Slug {
			return ErrDuplicate
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	m.Groups[g.ID] = *g
	return nil
}

func (m *MockStore) GetGroup(_ context.Context, id string) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	g, ok := m.Groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (m *MockStore) ListGroups(_ context.Context) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMock
	}
	res := make([]models.Group, 0, len(m.Groups))
	for _, g := range m.Groups {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Slug < res[j].Slug })
	return res, nil
}

func (m *MockStore) PurgeUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	for id, p := range m.Posts {
		if p.AuthorID == userID {
			m.purgePostLocked(id)
			delete(m.Posts, id)
		}
	}
	for id, c := range m.Comments {
		if c.AuthorID == userID {
			delete(m.Comments, id)
		}
	}
	for k := range m.Follows {
		if k.subscriber == userID || k.target == userID {
			delete(m.Follows, k)
		}
	}
	return nil
}

func (m *MockStore) PurgePost(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMock
	}
	m.purgePostLocked(postID)
	return nil
}

func (m *MockStore) purgePostLocked(postID string) {
	for id, c := range m.Comments {
		if c.PostID == postID {
			delete(m.Comments, id)
		}
	}
}
