package models

import "time"

// Quiz is the read model of the CBT engine's quiz entity; this core only
// consumes its identity, subject and total marks.
type Quiz struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	Title      string    `db:"title" json:"title"`
	TotalMarks float64   `db:"total_marks" json:"total_marks"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// QuizResult is a student's raw CBT outcome for a quiz.
type QuizResult struct {
	ID        string    `db:"id" json:"id"`
	QuizID    string    `db:"quiz_id" json:"quiz_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Score     float64   `db:"score" json:"score"`
	TakenAt   time.Time `db:"taken_at" json:"taken_at"`
}

// ScoreMappingType selects how a raw CBT score converts into a result score.
type ScoreMappingType string

const (
	// MappingDirect carries the raw score through unchanged.
	MappingDirect ScoreMappingType = "direct"
	// MappingPercentage rescales the raw score to 0-100.
	MappingPercentage ScoreMappingType = "percentage"
	// MappingScaled rescales the raw score to the override max (or the
	// quiz max when no override is set).
	MappingScaled ScoreMappingType = "scaled"
)

// CbtAssessmentLink binds one quiz to one assessment component, optionally
// scoped to a class, term, session and subject. The resolved subject (the
// link's, falling back to the quiz's) must be attached to the component.
type CbtAssessmentLink struct {
	ID               string           `db:"id" json:"id"`
	SchoolID         string           `db:"school_id" json:"school_id"`
	QuizID           string           `db:"quiz_id" json:"quiz_id"`
	ComponentID      string           `db:"component_id" json:"component_id"`
	SubjectID        UUIDRef          `db:"subject_id" json:"subject_id,omitempty"`
	ClassID          UUIDRef          `db:"class_id" json:"class_id,omitempty"`
	SessionID        UUIDRef          `db:"session_id" json:"session_id,omitempty"`
	TermID           UUIDRef          `db:"term_id" json:"term_id,omitempty"`
	MappingType      ScoreMappingType `db:"mapping_type" json:"mapping_type"`
	MaxScoreOverride *float64         `db:"max_score_override" json:"max_score_override,omitempty"`
	AutoSync         bool             `db:"auto_sync" json:"auto_sync"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// ImportStatus is the CbtScoreImport lifecycle state.
type ImportStatus string

const (
	ImportStatusPending  ImportStatus = "pending"
	ImportStatusApproved ImportStatus = "approved"
	ImportStatusSynced   ImportStatus = "synced"
	ImportStatusRejected ImportStatus = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusSynced || s == ImportStatusRejected
}

// SyncedImport pairs an import row marked synced with the result row its
// converted score lands in, so both commit atomically.
type SyncedImport struct {
	Import CbtScoreImport
	Result Result
}

// CbtScoreImport snapshots one student's raw CBT score under a link.
// Exactly one row exists per (link, student); re-import overwrites any
// non-synced row and resets it to pending.
type CbtScoreImport struct {
	ID             string       `db:"id" json:"id"`
	SchoolID       string       `db:"school_id" json:"school_id"`
	LinkID         string       `db:"link_id" json:"link_id"`
	StudentID      string       `db:"student_id" json:"student_id"`
	RawScore       float64      `db:"raw_score" json:"raw_score"`
	ConvertedScore float64      `db:"converted_score" json:"converted_score"`
	Status         ImportStatus `db:"status" json:"status"`
	Reason         *string      `db:"reason" json:"reason,omitempty"`
	ApprovedBy     *string      `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time   `db:"approved_at" json:"approved_at,omitempty"`
	SyncedAt       *time.Time   `db:"synced_at" json:"synced_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}
