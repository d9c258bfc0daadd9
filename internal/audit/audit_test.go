package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/models"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func fixedRecorder() Recorder {
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.FixedZone("x", 3600))
	return Recorder{
		Now:   func() time.Time { return at },
		NewID: func() string { return "entry-1" },
	}
}

func TestRecorderEntry(t *testing.T) {
	entry, err := fixedRecorder().Entry(Event{
		Action:        ActionAssignUser,
		ActorID:       "actor",
		TargetUserID:  "target",
		RoleID:        "role",
		RoleName:      "Editor",
		SchoolhouseID: "",
	})
	require.NoError(t, err)

	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, ActionAssignUser, entry.Action)
	assert.Equal(t, "actor", entry.PerformedByUserID)
	require.NotNil(t, entry.TargetUserID)
	assert.Equal(t, "target", *entry.TargetUserID)
	require.NotNil(t, entry.RoleID)
	assert.Equal(t, "role", *entry.RoleID)
	assert.Equal(t, "Editor", entry.RoleName)
	assert.Nil(t, entry.SchoolhouseID)
	assert.Equal(t, time.UTC, entry.CreatedAt.Location())
	assert.Equal(t, 9, entry.CreatedAt.Hour())
}

func TestRecorderRequiresActor(t *testing.T) {
	for _, actor := range []string{"", "   "} {
		_, err := fixedRecorder().Entry(Event{Action: ActionCreateUser, ActorID: actor})
		assert.ErrorIs(t, err, ErrMissingActor)
	}
}

func TestRecorderTruncatesDetails(t *testing.T) {
	entry, err := fixedRecorder().Entry(Event{
		Action:  ActionUpdateUser,
		ActorID: "actor",
		Details: strings.Repeat("x", maxDetails+10),
	})
	require.NoError(t, err)
	assert.Len(t, entry.Details, maxDetails)
}

func TestRecordAppendsToSink(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
		return e.Action == ActionDeleteRole && e.PerformedByUserID == "actor"
	})).Return(nil).Once()

	err := fixedRecorder().Record(context.Background(), sink, Event{Action: ActionDeleteRole, ActorID: "actor"})
	require.NoError(t, err)
	sink.AssertExpectations(t)
}

func TestRecordPropagatesSinkFailure(t *testing.T) {
	sink := new(mockSink)
	sink.On("Append", mock.Anything, mock.Anything).Return(assert.AnError)

	err := fixedRecorder().Record(context.Background(), sink, Event{Action: ActionDeleteRole, ActorID: "actor"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRecordWithoutActorSkipsSink(t *testing.T) {
	sink := new(mockSink)
	err := fixedRecorder().Record(context.Background(), sink, Event{Action: ActionDeleteRole})
	assert.ErrorIs(t, err, ErrMissingActor)
	sink.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
