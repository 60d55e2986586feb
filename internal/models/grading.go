package models

import "time"

// GradingScale is a school-scoped set of grade ranges. A school may keep
// several scales; at most one is the default used for result grading.
type GradingScale struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Ranges []GradeRange `json:"ranges,omitempty"`
}

// GradeRange maps a numeric score band to a letter grade. An accepted
// range set is contiguous over the integers and spans exactly 0-100.
type GradeRange struct {
	ID          string    `db:"id" json:"id"`
	ScaleID     string    `db:"scale_id" json:"scale_id"`
	MinScore    float64   `db:"min_score" json:"min_score"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	GradeLabel  string    `db:"grade_label" json:"grade_label"`
	Description *string   `db:"description" json:"description,omitempty"`
	GradePoint  *float64  `db:"grade_point" json:"grade_point,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the score falls inside the range.
func (r *GradeRange) Covers(score float64) bool {
	return score >= r.MinScore && score <= r.MaxScore
}
