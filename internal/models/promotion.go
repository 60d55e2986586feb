package models

import (
	"encoding/json"
	"time"
)

// PromotionLog is an append-only audit record of one student's promotion.
// Rows are never mutated after creation.
type PromotionLog struct {
	ID        string `db:"id" json:"id"`
	SchoolID  string `db:"school_id" json:"school_id"`
	StudentID string `db:"student_id" json:"student_id"`

	FromSessionID UUIDRef `db:"from_session_id" json:"from_session_id,omitempty"`
	FromTermID    UUIDRef `db:"from_term_id" json:"from_term_id,omitempty"`
	FromClassID   UUIDRef `db:"from_class_id" json:"from_class_id,omitempty"`
	FromArmID     UUIDRef `db:"from_arm_id" json:"from_arm_id,omitempty"`
	FromSectionID UUIDRef `db:"from_section_id" json:"from_section_id,omitempty"`

	ToSessionID UUIDRef `db:"to_session_id" json:"to_session_id"`
	ToTermID    UUIDRef `db:"to_term_id" json:"to_term_id"`
	ToClassID   UUIDRef `db:"to_class_id" json:"to_class_id"`
	ToArmID     UUIDRef `db:"to_arm_id" json:"to_arm_id,omitempty"`
	ToSectionID UUIDRef `db:"to_section_id" json:"to_section_id,omitempty"`

	PerformedBy string          `db:"performed_by" json:"performed_by"`
	Meta        json.RawMessage `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// PromotionMeta is recorded with each log row for downstream reporting;
// retain_subjects currently drives no further action here.
type PromotionMeta struct {
	RetainSubjects bool `json:"retain_subjects"`
}

// StudentPromotion pairs the mutated student state with its log row so the
// repository can persist both inside one transaction.
type StudentPromotion struct {
	Student Student
	Log     PromotionLog
}
