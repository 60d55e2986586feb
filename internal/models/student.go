package models

import "time"

// Student carries the fields the core pipelines read and mutate. The
// class/session/term references are UUIDRef so that malformed legacy
// identifiers normalize to the absent value at the database boundary.
type Student struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	AdmissionNo    string    `db:"admission_no" json:"admission_no"`
	FullName       string    `db:"full_name" json:"full_name"`
	SchoolClassID  UUIDRef   `db:"school_class_id" json:"school_class_id,omitempty"`
	ClassArmID     UUIDRef   `db:"class_arm_id" json:"class_arm_id,omitempty"`
	ClassSectionID UUIDRef   `db:"class_section_id" json:"class_section_id,omitempty"`
	SessionID      UUIDRef   `db:"current_session_id" json:"current_session_id,omitempty"`
	TermID         UUIDRef   `db:"current_term_id" json:"current_term_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
