// Package catalog holds the persisted resource catalog model and the batch
// validator that keeps it fresh.
package catalog

import "time"

// ItemType distinguishes embeddable videos from plain links.
type ItemType string

const (
	TypeVideo ItemType = "video"
	TypeLink  ItemType = "link"
)

// StaleAfter is the staleness window: items older than this are due for
// re-validation.
const StaleAfter = 7 * 24 * time.Hour

// Item is one catalog entry. NormalizedURL, Broken and LastCheckedAt are
// owned by the validator and overwritten wholesale on each pass; the other
// fields round-trip untouched.
type Item struct {
	ID            string    `json:"id"`
	Type          ItemType  `json:"type"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Summary       string    `json:"summary,omitempty"`
	Benefit       string    `json:"benefit,omitempty"`
	Mirrors       []string  `json:"mirrors,omitempty"`
	NormalizedURL string    `json:"normalizedUrl,omitempty"`
	Broken        bool      `json:"broken"`
	LastCheckedAt time.Time `json:"lastCheckedAt,omitzero"`
}

// NeedsRevalidation reports whether any item lacks a check timestamp or was
// last checked more than the staleness window ago. It is a pure function
// over the catalog.
func NeedsRevalidation(items []Item, now time.Time) bool {
	for _, item := range items {
		if item.LastCheckedAt.IsZero() {
			return true
		}
		if now.Sub(item.LastCheckedAt) > StaleAfter {
			return true
		}
	}
	return false
}
