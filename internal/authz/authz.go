// Package authz decides whether an actor may perform a request method on a
// resource. Safe methods are open to everyone; unsafe methods need an
// authenticated actor, and on an existing object that actor must be its author.
package authz

import (
	"net/http"
	"reflect"

	"example.com/blogapi/internal/models"
)

type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Owned is implemented by every resource with an author.
type Owned interface {
	OwnerID() string
}

// IsSafe reports whether method is read-only.
func IsSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsAuthenticated reports whether actor is a logged-in user. A nil actor is
// anonymous.
func IsAuthenticated(actor *models.User) bool {
	return actor != nil && actor.ID != ""
}

// CheckCollection is the check for requests with no object yet (list, create).
func CheckCollection(actor *models.User, method string) Decision {
	return Decision(IsSafe(method) || IsAuthenticated(actor))
}

// CheckObject is the check for requests against one object. A nil resource on
// an unsafe method is denied.
func CheckObject(actor *models.User, method string, resource Owned) Decision {
	if IsSafe(method) {
		return Allow
	}
	if !IsAuthenticated(actor) || isNil(resource) {
		return Deny
	}
	owner := resource.OwnerID()
	return Decision(owner != "" && actor.ID == owner)
}

// Check is CheckCollection when resource is nil and CheckObject otherwise.
func Check(actor *models.User, method string, resource Owned) Decision {
	if isNil(resource) {
		return CheckCollection(actor, method)
	}
	return CheckObject(actor, method, resource)
}

// Authorize renders a denial as an error: anonymous actors get
// UNAUTHENTICATED, authenticated ones FORBIDDEN. Pass object=false for
// collection-level requests.
func Authorize(actor *models.User, method string, resource Owned, object bool) error {
	var d Decision
	if object {
		d = CheckObject(actor, method, resource)
	} else {
		d = CheckCollection(actor, method)
	}
	if d == Allow {
		return nil
	}
	if !IsAuthenticated(actor) {
		return models.NewUnauthenticatedError("Authentication credentials were not provided")
	}
	return models.NewForbiddenError("You do not have permission to perform this action")
}

// isNil also catches typed nil pointers, whose OwnerID may not be nil-safe.
func isNil(r Owned) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}
