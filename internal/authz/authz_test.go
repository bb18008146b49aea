package authz

import (
	"net/http"
	"testing"

	"example.com/blogapi/internal/models"
	"github.com/stretchr/testify/assert"
)

var (
	safeMethods   = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	unsafeMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
)

func resources(authorID string) []Owned {
	return []Owned{
		&models.Post{ID: "p1", AuthorID: authorID},
		&models.Comment{ID: "c1", PostID: "p1", AuthorID: authorID},
	}
}

func TestCheckObject_OwnerAllowedEverything(t *testing.T) {
	alice := &models.User{ID: "alice", Username: "alice"}
	for _, r := range resources(alice.ID) {
		for _, m := range append(safeMethods, unsafeMethods...) {
			assert.Equal(t, Allow, CheckObject(alice, m, r), "%T %s", r, m)
		}
	}
}

func TestCheckObject_NonOwnerReadOnly(t *testing.T) {
	bob := &models.User{ID: "bob", Username: "bob"}
	for _, r := range resources("alice") {
		for _, m := range safeMethods {
			assert.Equal(t, Allow, CheckObject(bob, m, r), "%T %s", r, m)
		}
		for _, m := range unsafeMethods {
			assert.Equal(t, Deny, CheckObject(bob, m, r), "%T %s", r, m)
		}
	}
}

func TestCheckObject_AnonymousReadOnly(t *testing.T) {
	for _, r := range resources("alice") {
		for _, m := range safeMethods {
			assert.Equal(t, Allow, CheckObject(nil, m, r))
		}
		for _, m := range unsafeMethods {
			assert.Equal(t, Deny, CheckObject(nil, m, r))
		}
	}
}

func TestCheckObject_SameUsernameDifferentIDDenied(t *testing.T) {
	impostor := &models.User{ID: "other", Username: "alice"}
	post := &models.Post{AuthorID: "alice-id", Author: "alice"}
	assert.Equal(t, Deny, CheckObject(impostor, http.MethodDelete, post))
}

func TestCheckObject_MissingObjectDeniedForUnsafe(t *testing.T) {
	alice := &models.User{ID: "alice"}
	var missing *models.Post
	assert.Equal(t, Deny, CheckObject(alice, http.MethodDelete, missing))
	assert.Equal(t, Deny, CheckObject(alice, http.MethodPatch, nil))
	assert.Equal(t, Allow, CheckObject(alice, http.MethodGet, nil))
}

func TestCheckCollection(t *testing.T) {
	alice := &models.User{ID: "alice"}
	for _, m := range safeMethods {
		assert.Equal(t, Allow, CheckCollection(nil, m))
		assert.Equal(t, Allow, CheckCollection(alice, m))
	}
	for _, m := range unsafeMethods {
		assert.Equal(t, Deny, CheckCollection(nil, m))
		assert.Equal(t, Deny, CheckCollection(&models.User{}, m))
		assert.Equal(t, Allow, CheckCollection(alice, m))
	}
}

func TestCheck_DispatchesOnResource(t *testing.T) {
	alice := &models.User{ID: "alice"}
	assert.Equal(t, Allow, Check(alice, http.MethodPost, nil))
	assert.Equal(t, Deny, Check(alice, http.MethodPut, &models.Post{AuthorID: "bob"}))
	var none *models.Comment
	assert.Equal(t, Allow, Check(alice, http.MethodPost, none))
}

func TestAuthorize_ErrorCodes(t *testing.T) {
	post := &models.Post{AuthorID: "alice"}

	err := Authorize(nil, http.MethodDelete, post, true)
	assert.True(t, models.HasCode(err, models.CodeUnauthenticated))

	err = Authorize(&models.User{ID: "bob"}, http.MethodDelete, post, true)
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	assert.NoError(t, Authorize(&models.User{ID: "alice"}, http.MethodDelete, post, true))
	assert.NoError(t, Authorize(nil, http.MethodGet, nil, false))

	err = Authorize(nil, http.MethodPost, nil, false)
	assert.True(t, models.HasCode(err, models.CodeUnauthenticated))
}

// draft is an Owned whose OwnerID dereferences its receiver.
type draft struct{ author string }

func (d *draft) OwnerID() string { return d.author }

func TestCheckObject_TypedNilOfAnyOwned(t *testing.T) {
	actor := &models.User{ID: "u1", Username: "alice"}

	for _, method := range unsafeMethods {
		assert.Equal(t, Deny, CheckObject(actor, method, (*draft)(nil)), method)
		assert.Equal(t, Deny, CheckObject(actor, method, (*models.Post)(nil)), method)
	}
	assert.Equal(t, Allow, CheckObject(actor, http.MethodGet, (*draft)(nil)))
	assert.Equal(t, Deny, Check(actor, http.MethodDelete, &draft{author: ""}))
	assert.Equal(t, Allow, Check(actor, http.MethodDelete, &draft{author: "u1"}))
	assert.Equal(t, "", (*models.Comment)(nil).OwnerID())
}
