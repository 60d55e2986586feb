package models

import "time"

// Session models a school-scoped academic year (e.g. "2025/2026").
type Session struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TermStatus controls whether dependent records may still be mutated.
type TermStatus string

const (
	// TermStatusActive allows result and skill mutations.
	TermStatusActive TermStatus = "ACTIVE"
	// TermStatusArchived locks the term; dependent writes are rejected.
	TermStatusArchived TermStatus = "ARCHIVED"
)

// Term is a sub-period of a Session. Terms within a session must not
// overlap in dates and start_date must precede end_date.
type Term struct {
	ID        string     `db:"id" json:"id"`
	SchoolID  string     `db:"school_id" json:"school_id"`
	SessionID string     `db:"session_id" json:"session_id"`
	Name      string     `db:"name" json:"name"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	Status    TermStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the term rejects dependent mutations.
func (t *Term) Locked() bool {
	return t.Status == TermStatusArchived
}
