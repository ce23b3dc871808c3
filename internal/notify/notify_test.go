package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"moringadaily/internal/models"
	"moringadaily/internal/notify"
	"moringadaily/internal/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline_WritesNotification(t *testing.T) {
	gdb := testutil.NewDB(t)
	d := notify.NewInline(notify.NewWriter(gdb))

	err := d.Dispatch(context.Background(), notify.Notice{UserID: 1, ActorID: 2, Kind: models.NotifyLike, TargetID: 5, Body: "liked"})
	require.NoError(t, err)

	var rows []models.Notification
	require.NoError(t, gdb.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(1), rows[0].UserID)
	assert.Equal(t, models.NotifyLike, rows[0].Kind)
	assert.False(t, rows[0].IsRead)
}

func TestInline_SkipsSelfAndRejectsInvalid(t *testing.T) {
	gdb := testutil.NewDB(t)
	d := notify.NewInline(notify.NewWriter(gdb))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, notify.Notice{UserID: 3, ActorID: 3, Kind: models.NotifyComment}))
	assert.ErrorIs(t, d.Dispatch(ctx, notify.Notice{Kind: models.NotifyComment}), notify.ErrInvalidNotice)

	var count int64
	gdb.Model(&models.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestHandleDeliver(t *testing.T) {
	gdb := testutil.NewDB(t)
	h := notify.HandleDeliver(notify.NewWriter(gdb))
	ctx := context.Background()

	payload, _ := json.Marshal(notify.Notice{UserID: 4, ActorID: 1, Kind: models.NotifyMessage, TargetID: 8, Body: "hello"})
	require.NoError(t, h(ctx, asynq.NewTask(notify.TaskDeliver, payload)))

	var n models.Notification
	require.NoError(t, gdb.First(&n).Error)
	assert.Equal(t, "hello", n.Body)
	assert.Equal(t, uint(8), n.TargetID)

	err := h(ctx, asynq.NewTask(notify.TaskDeliver, []byte("{not json")))
	assert.True(t, errors.Is(err, asynq.SkipRetry), "malformed payload should not be retried: %v", err)

	bad, _ := json.Marshal(notify.Notice{ActorID: 1})
	err = h(ctx, asynq.NewTask(notify.TaskDeliver, bad))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
