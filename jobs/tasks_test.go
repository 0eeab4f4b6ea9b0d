package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNewSyncDrainTaskPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	task, err := NewSyncDrainTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskSyncDrain, task.Type())

	var payload SyncDrainPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, at.Equal(payload.ScheduledFor))
}

func TestSyncDrainHandlerSkipsRetryOnBadPayload(t *testing.T) {
	handler := NewSyncDrainHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := handler(context.Background(), asynq.NewTask(TaskSyncDrain, []byte("not json")))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestClientEnqueueSyncDrain(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	info, err := client.EnqueueSyncDrain(context.Background())
	require.NoError(t, err)
	require.Equal(t, TaskSyncDrain, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}
