package models

import "time"

// NullComponentSlot is the sentinel stored in component_slot when a result
// has no assessment component. The uniqueness constraint on results covers
// component_slot instead of the nullable component_id because the engine
// treats NULL values as distinct, which would allow duplicate rows. The
// sentinel is an explicit tagged "no component" variant, not a real
// component id.
const NullComponentSlot = "00000000-0000-0000-0000-000000000000"

// ComponentSlot maps an optional component id to the slot column value.
func ComponentSlot(componentID *string) string {
	if componentID == nil || *componentID == "" {
		return NullComponentSlot
	}
	return *componentID
}

// Result is the canonical per-student, per-subject, per-term score record.
// Unique on (student_id, subject_id, session_id, term_id, component_slot).
type Result struct {
	ID            string    `db:"id" json:"id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	TermID        string    `db:"term_id" json:"term_id"`
	ComponentID   *string   `db:"component_id" json:"component_id,omitempty"`
	ComponentSlot string    `db:"component_slot" json:"-"`
	TotalScore    float64   `db:"total_score" json:"total_score"`
	Remarks       *string   `db:"remarks" json:"remarks,omitempty"`
	GradeID       *string   `db:"grade_id" json:"grade_id,omitempty"`

	// Positional statistics are computed by out-of-band reporting jobs.
	PositionInSubject *int     `db:"position_in_subject" json:"position_in_subject,omitempty"`
	ClassAverage      *float64 `db:"class_average" json:"class_average,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ResultKey identifies the row a batch entry upserts into.
type ResultKey struct {
	StudentID     string
	SubjectID     string
	SessionID     string
	TermID        string
	ComponentSlot string
}

// Key derives the upsert key from a result row.
func (r *Result) Key() ResultKey {
	return ResultKey{
		StudentID:     r.StudentID,
		SubjectID:     r.SubjectID,
		SessionID:     r.SessionID,
		TermID:        r.TermID,
		ComponentSlot: r.ComponentSlot,
	}
}

// ResultExportRow is one line of a student's exported result sheet.
type ResultExportRow struct {
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TotalScore  float64 `db:"total_score" json:"total_score"`
	GradeLabel  string  `db:"grade_label" json:"grade_label"`
	Remarks     string  `db:"remarks" json:"remarks"`
}

// ResultFilter scopes result list queries.
type ResultFilter struct {
	StudentID string
	SubjectID string
	SessionID string
	TermID    string
	Page      int
	PageSize  int
}
