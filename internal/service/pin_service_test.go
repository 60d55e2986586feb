package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/pkg/config"
	appErrors "github.com/schoolcore/sms-api/pkg/errors"
)

type mockPinStore struct {
	pins           map[string]*models.ResultPin
	created        *models.ResultPin
	incrementCalls int
}

func (m *mockPinStore) Create(_ context.Context, pin *models.ResultPin) error {
	pin.ID = "pin-new"
	m.created = pin
	return nil
}

func (m *mockPinStore) FindBySerial(_ context.Context, _, serial string) (*models.ResultPin, error) {
	p, ok := m.pins[serial]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (m *mockPinStore) IncrementUsage(_ context.Context, _ string) error {
	m.incrementCalls++
	return nil
}

type mockSequenceAllocator struct {
	next int64
}

func (m *mockSequenceAllocator) Next(_ context.Context, _, _ string) (int64, error) {
	m.next++
	return m.next, nil
}

func newPinFixture(store *mockPinStore) *PinService {
	return NewPinService(
		store,
		&mockSequenceAllocator{},
		&mockStudentStore{students: map[string]models.Student{
			tStudent1: {ID: tStudent1, SchoolID: tSchool, FullName: "Ada Obi"},
		}},
		nil,
		config.PinConfig{MaxUsage: 3, SerialPrefix: "CHK"},
		nil,
		zap.NewNop(),
	)
}

func TestPinIssueAllocatesSerial(t *testing.T) {
	store := &mockPinStore{}
	svc := newPinFixture(store)

	pin, err := svc.Issue(context.Background(), tSchool, "admin-1", IssuePinRequest{StudentID: tStudent1})
	require.NoError(t, err)
	assert.Equal(t, "CHK-000001", pin.Serial)
	assert.Len(t, pin.Pin, 12)
	assert.Equal(t, 3, pin.MaxUsage)
	assert.Equal(t, models.UUIDRef(tStudent1), pin.StudentID)

	// Serials advance monotonically.
	second, err := svc.Issue(context.Background(), tSchool, "admin-1", IssuePinRequest{})
	require.NoError(t, err)
	assert.Equal(t, "CHK-000002", second.Serial)
	assert.NotEqual(t, pin.Pin, second.Pin)
}

func TestPinIssueUnknownStudent(t *testing.T) {
	svc := newPinFixture(&mockPinStore{})

	_, err := svc.Issue(context.Background(), tSchool, "admin-1", IssuePinRequest{StudentID: tStudent2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPinVerifyConsumesUsage(t *testing.T) {
	store := &mockPinStore{pins: map[string]*models.ResultPin{
		"CHK-000001": {ID: "pin-1", SchoolID: tSchool, Serial: "CHK-000001", Pin: "123456789012", MaxUsage: 3, UsageCount: 1},
	}}
	svc := newPinFixture(store)

	pin, err := svc.Verify(context.Background(), tSchool, "CHK-000001", "123456789012")
	require.NoError(t, err)
	assert.Equal(t, 2, pin.UsageCount)
	assert.Equal(t, 1, store.incrementCalls)
}

func TestPinVerifySameErrorForUnknownSerialAndWrongPin(t *testing.T) {
	store := &mockPinStore{pins: map[string]*models.ResultPin{
		"CHK-000001": {ID: "pin-1", SchoolID: tSchool, Serial: "CHK-000001", Pin: "123456789012", MaxUsage: 3},
	}}
	svc := newPinFixture(store)
	ctx := context.Background()

	_, unknownErr := svc.Verify(ctx, tSchool, "CHK-999999", "123456789012")
	require.Error(t, unknownErr)

	_, wrongErr := svc.Verify(ctx, tSchool, "CHK-000001", "000000000000")
	require.Error(t, wrongErr)

	assert.Equal(t, appErrors.FromError(unknownErr).Code, appErrors.FromError(wrongErr).Code)
	assert.Equal(t, appErrors.FromError(unknownErr).Message, appErrors.FromError(wrongErr).Message)
	assert.Equal(t, 0, store.incrementCalls)
}

func TestPinVerifyExhausted(t *testing.T) {
	store := &mockPinStore{pins: map[string]*models.ResultPin{
		"CHK-000001": {ID: "pin-1", SchoolID: tSchool, Serial: "CHK-000001", Pin: "123456789012", MaxUsage: 2, UsageCount: 2},
	}}
	svc := newPinFixture(store)

	_, err := svc.Verify(context.Background(), tSchool, "CHK-000001", "123456789012")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.incrementCalls)
}
