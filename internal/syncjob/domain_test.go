package syncjob

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffForFollowsSchedule(t *testing.T) {
	schedule := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour, 4 * time.Hour}

	require.Equal(t, time.Minute, BackoffFor(schedule, 1))
	require.Equal(t, 5*time.Minute, BackoffFor(schedule, 2))
	require.Equal(t, 4*time.Hour, BackoffFor(schedule, 5))
}

func TestBackoffForClampsBeyondSchedule(t *testing.T) {
	schedule := []time.Duration{time.Minute, 5 * time.Minute}

	require.Equal(t, 5*time.Minute, BackoffFor(schedule, 3))
	require.Equal(t, 5*time.Minute, BackoffFor(schedule, 100))
}

func TestBackoffForDegenerateInputs(t *testing.T) {
	require.Equal(t, time.Duration(0), BackoffFor(nil, 1))
	require.Equal(t, time.Duration(0), BackoffFor([]time.Duration{time.Minute}, 0))
}

func TestPermanentMarksAndUnwraps(t *testing.T) {
	base := errors.New("bad payload")
	err := Permanent(base)

	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, base)
	require.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	require.False(t, IsPermanent(base))
	require.NoError(t, Permanent(nil))
}
