package models

import "time"

// ResultPin is a verification token gating result visibility. Serial
// numbers come from a per-school row-locked sequence so they are never
// reused under concurrent issuance.
type ResultPin struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	StudentID  UUIDRef   `db:"student_id" json:"student_id,omitempty"`
	Serial     string    `db:"serial" json:"serial"`
	Pin        string    `db:"pin" json:"pin"`
	UsageCount int       `db:"usage_count" json:"usage_count"`
	MaxUsage   int       `db:"max_usage" json:"max_usage"`
	SessionID  UUIDRef   `db:"session_id" json:"session_id,omitempty"`
	TermID     UUIDRef   `db:"term_id" json:"term_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Exhausted reports whether the pin has no uses left.
func (p *ResultPin) Exhausted() bool {
	return p.MaxUsage > 0 && p.UsageCount >= p.MaxUsage
}
