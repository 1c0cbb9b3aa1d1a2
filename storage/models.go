package storage

import "time"

// ReplacementStatus marks whether a suggested replacement was applied to the
// catalog or is awaiting review.
type ReplacementStatus string

const (
	// StatusApplied means the replacement was returned to the caller and
	// used directly.
	StatusApplied ReplacementStatus = "applied"
	// StatusPending means the replacement was suggested by a batch run and
	// awaits review.
	StatusPending ReplacementStatus = "pending"
)

// MaxReplacementList caps how many audit records a single listing returns.
const MaxReplacementList = 200

// Replacement is one append-only audit log entry for a repaired video
// reference. Records are never mutated after insert.
type Replacement struct {
	ID string `json:"id"`

	// Original reference and why it failed classification.
	OriginalURL string `json:"original_url"`
	OriginalID  string `json:"original_id,omitempty"`
	Reason      string `json:"reason"`

	// Chosen replacement, empty when the search found no embeddable match.
	ReplacementID       string `json:"replacement_id,omitempty"`
	ReplacementTitle    string `json:"replacement_title,omitempty"`
	ReplacementAuthor   string `json:"replacement_author,omitempty"`
	ReplacementWatchURL string `json:"replacement_watch_url,omitempty"`

	// Free-form context from the caller.
	ContextTitle string `json:"context_title,omitempty"`
	LessonID     string `json:"lesson_id,omitempty"`
	CourseID     string `json:"course_id,omitempty"`

	Status    ReplacementStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}
