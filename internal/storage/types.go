package storage

import "time"

// Report is a completed analysis, written exactly once at stream completion
// and never mutated afterwards (deletion excepted).
type Report struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
	BirthDate string    `json:"birthDate"`
	BirthTime string    `json:"birthTime,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	// Summary is a short prefix of Content (at most 100 characters),
	// computed at save time for list rendering. The richer share-card
	// summary lives in the markdown package.
	Summary string `json:"summary,omitempty"`
	// PendingSince is set when the report was created while the user was
	// not authenticated. Pending records older than the retention window
	// are purged lazily on next access.
	PendingSince time.Time `json:"pendingSince,omitempty"`
}

// Profile is a saved set of birth/identity parameters. One profile may be
// marked as the default via the store's SetDefault.
type Profile struct {
	ID        string    `json:"id"`
	BirthDate string    `json:"birthDate"`
	BirthTime string    `json:"birthTime,omitempty"`
	Gender    string    `json:"gender"`
	City      string    `json:"city,omitempty"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// PendingSince mirrors Report.PendingSince for profiles created while
	// unauthenticated.
	PendingSince time.Time `json:"pendingSince,omitempty"`
}

// PendingRetention is how long records created while unauthenticated are
// kept before being purged on next access.
const PendingRetention = 15 * 24 * time.Hour

// IsPending reports whether the record was created without authentication
// and is still subject to the retention window.
func (r Report) IsPending() bool { return !r.PendingSince.IsZero() }

// IsPending reports whether the profile awaits upload to the backend.
func (p Profile) IsPending() bool { return !p.PendingSince.IsZero() }
