package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func TestPruneSessionsUsesCurrentTime(t *testing.T) {
	pruner := new(mockPruner)
	start := time.Now().UTC()
	pruner.On("DeleteExpired", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		return !before.Before(start) && before.Location() == time.UTC
	})).Return(int64(3), nil).Once()

	NewScheduler(pruner, "@every 1h", zerolog.Nop()).pruneSessions()
	pruner.AssertExpectations(t)
}

func TestPruneSessionsSwallowsErrors(t *testing.T) {
	pruner := new(mockPruner)
	pruner.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), assert.AnError).Once()

	assert.NotPanics(t, NewScheduler(pruner, "@every 1h", zerolog.Nop()).pruneSessions)
	pruner.AssertExpectations(t)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(new(mockPruner), "not a spec", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(new(mockPruner), "0 0 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()()
}

func TestStartWithoutPrunerIsNoop(t *testing.T) {
	assert.NoError(t, NewScheduler(nil, "0 0 * * * *", zerolog.Nop()).Start())
}
