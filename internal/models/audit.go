package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the core pipelines.
const (
	AuditActionGradeRangesUpdate = "GRADE_RANGES_UPDATE"
	AuditActionResultBatchUpsert = "RESULT_BATCH_UPSERT"
	AuditActionCbtImport         = "CBT_IMPORT"
	AuditActionCbtSync           = "CBT_SYNC"
	AuditActionPromotion         = "PROMOTION"
	AuditActionPinIssue          = "PIN_ISSUE"
)

// AuditLog is a fire-and-forget audit record; persistence failures are
// logged and never block the primary mutation.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	SchoolID   string          `db:"school_id" json:"school_id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
