package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/pkg/config"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

const pinSequenceName = "result_pin_serial"

type pinStore interface {
	Create(ctx context.Context, pin *models.ResultPin) error
	FindBySerial(ctx context.Context, schoolID, serial string) (*models.ResultPin, error)
	IncrementUsage(ctx context.Context, id string) error
}

type sequenceAllocator interface {
	Next(ctx context.Context, schoolID, name string) (int64, error)
}

// IssuePinRequest issues a result-check pin, optionally bound to a
// student, session and term.
type IssuePinRequest struct {
	StudentID string `json:"student_id" validate:"omitempty,uuid4"`
	SessionID string `json:"session_id" validate:"omitempty,uuid4"`
	TermID    string `json:"term_id" validate:"omitempty,uuid4"`
}

// PinService issues and verifies result-check pins. Serials come from a
// row-locked per-school sequence so concurrent issuance never collides.
type PinService struct {
	pins      pinStore
	sequences sequenceAllocator
	students  studentBulkReader
	audit     auditSink

	config    config.PinConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPinService constructs PinService.
func NewPinService(pins pinStore, sequences sequenceAllocator, students studentBulkReader, audit auditSink, cfg config.PinConfig, validate *validator.Validate, logger *zap.Logger) *PinService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUsage <= 0 {
		cfg.MaxUsage = 5
	}
	if cfg.SerialPrefix == "" {
		cfg.SerialPrefix = "PIN"
	}
	return &PinService{
		pins:      pins,
		sequences: sequences,
		students:  students,
		audit:     audit,
		config:    cfg,
		validator: validate,
		logger:    logger,
	}
}

// Issue allocates a serial and generates a fresh pin.
func (s *PinService) Issue(ctx context.Context, schoolID, actorID string, req IssuePinRequest) (*models.ResultPin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pin payload")
	}
	if req.StudentID != "" {
		if _, err := s.students.FindByID(ctx, schoolID, req.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
	}

	seq, err := s.sequences.Next(ctx, schoolID, pinSequenceName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate serial")
	}
	code, err := generatePinCode(12)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate pin")
	}

	pin := &models.ResultPin{
		SchoolID:  schoolID,
		StudentID: models.UUIDRef(req.StudentID),
		Serial:    fmt.Sprintf("%s-%06d", s.config.SerialPrefix, seq),
		Pin:       code,
		MaxUsage:  s.config.MaxUsage,
		SessionID: models.UUIDRef(req.SessionID),
		TermID:    models.UUIDRef(req.TermID),
	}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pin")
	}

	recordAudit(s.audit, s.logger, models.AuditLog{
		SchoolID:   schoolID,
		UserID:     &actorID,
		Action:     models.AuditActionPinIssue,
		Resource:   "result_pins",
		ResourceID: &pin.ID,
		NewValues:  auditPayload(map[string]string{"serial": pin.Serial}),
	})
	return pin, nil
}

// Verify checks a serial and pin pair and consumes one use. Unknown
// serials and wrong pins return the same error.
func (s *PinService) Verify(ctx context.Context, schoolID, serial, code string) (*models.ResultPin, error) {
	pin, err := s.pins.FindBySerial(ctx, schoolID, serial)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid serial or pin")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pin")
	}
	if pin.Pin != code {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid serial or pin")
	}
	if pin.Exhausted() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "pin usage limit reached")
	}
	if err := s.pins.IncrementUsage(ctx, pin.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record pin usage")
	}
	pin.UsageCount++
	return pin, nil
}

func generatePinCode(length int) (string, error) {
	const digits = "0123456789"
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		out[i] = digits[n.Int64()]
	}
	return string(out), nil
}
