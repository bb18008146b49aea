package models

// Event types published on the domain topic.
const (
	EventUserDeleted = "user_deleted"
	EventPostDeleted = "post_deleted"
)

// Event asks the worker to remove records that depend on a deleted user or post.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	PostID string `json:"post_id,omitempty"`
}
