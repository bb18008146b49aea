package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

var statusByCode = map[string]int{
	models.CodeUnauthenticated:  http.StatusUnauthorized,
	models.CodeForbidden:        http.StatusForbidden,
	models.CodeValidation:       http.StatusBadRequest,
	models.CodeNotFound:         http.StatusNotFound,
	models.CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	models.CodeInternal:         http.StatusInternalServerError,
}

// writeError maps err onto a status code and a standard error body. Anything
// that is not an AppError or a known store sentinel is an opaque 500.
func writeError(w http.ResponseWriter, module string, err error) {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, store.ErrNotFound):
		appErr = &models.AppError{Code: models.CodeNotFound, Message: "Not found."}
	default:
		logg.Error(module, "Request failed", err)
		appErr = models.NewInternalError(nil)
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError && appErr.Err != nil {
		logg.Error(module, "Request failed", appErr.Err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, models.ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.NewValidationError("invalid request body")
	}
	return nil
}

// decodeOptionalBody is decodeBody for endpoints where a missing body means
// all fields are empty.
func decodeOptionalBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return models.NewValidationError("invalid request body")
	}
	return nil
}

// page is the limit/offset envelope returned when the client asks for a page.
type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate slices items when the request carries a positive limit; ok is
// false when the client did not ask for pagination.
func paginate[T any](r *http.Request, items []T) (page[T], bool) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		return page[T]{}, false
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	// limit and offset come from the client; compare by subtraction so huge
	// values cannot overflow.
	count := len(items)
	start := min(offset, count)
	end := count
	if limit < count-start {
		end = start + limit
	}
	p := page[T]{Count: count, Results: items[start:end]}
	if p.Results == nil {
		p.Results = []T{}
	}

	if end < count {
		next := pageURL(r, limit, end)
		p.Next = &next
	}
	if offset > 0 {
		prevOffset := 0
		if offset > limit {
			prevOffset = offset - limit
		}
		prev := pageURL(r, limit, prevOffset)
		p.Previous = &prev
	}
	return p, true
}

func pageURL(r *http.Request, limit, offset int) string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := r.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
}

func methodNotAllowed(allow string, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, "http", models.NewMethodNotAllowedError(msg))
	}
}
