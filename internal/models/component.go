package models

import "time"

// AssessmentComponent is a named, weighted score bucket (e.g. "Midterm",
// "Exam") attached to a set of subjects. Name is unique per school. A
// component with no subject attachments applies to every subject.
type AssessmentComponent struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	Name       string    `db:"name" json:"name"`
	Label      string    `db:"label" json:"label"`
	Weight     float64   `db:"weight" json:"weight"`
	MaxScore   float64   `db:"max_score" json:"max_score"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// SubjectIDs is hydrated from the component_subjects join table.
	SubjectIDs []string `json:"subject_ids,omitempty"`
}

// AppliesToSubject reports whether the component covers the subject. An
// empty attachment set is a wildcard.
func (c *AssessmentComponent) AppliesToSubject(subjectID string) bool {
	if len(c.SubjectIDs) == 0 {
		return true
	}
	for _, id := range c.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// AssessmentComponentStructure overrides a component's max score, scoped
// optionally by class and/or term. Resolution priority: class+term, then
// class only, then term only, then the component default. Only active rows
// are considered.
type AssessmentComponentStructure struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	ComponentID string    `db:"component_id" json:"component_id"`
	ClassID     *string   `db:"class_id" json:"class_id,omitempty"`
	TermID      *string   `db:"term_id" json:"term_id,omitempty"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
