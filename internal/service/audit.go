package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
)

type auditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit persists an audit entry without blocking the caller.
// Failures are logged and swallowed.
func recordAudit(sink auditSink, logger *zap.Logger, log models.AuditLog) {
	if sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.CreateAuditLog(ctx, &log); err != nil {
			logger.Warn("failed to record audit log",
				zap.String("action", log.Action),
				zap.String("school_id", log.SchoolID),
				zap.Error(err))
		}
	}()
}

func auditPayload(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
