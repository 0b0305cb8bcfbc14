package enrol

import (
	"context"
	"strconv"
	"testing"
	"time"

	"enrol-sync/feature/enrol/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAutoHider_Sweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 2, 30, 0, 0, time.UTC)

	old := &models.Course{IDNumber: "OLD", Visible: true}
	recent := &models.Course{IDNumber: "RECENT", Visible: true}
	require.NoError(t, s.CreateCourse(ctx, old))
	require.NoError(t, s.CreateCourse(ctx, recent))
	require.NoError(t, s.UpsertAutoHide(ctx, old.ID, now.AddDate(0, 0, -10).Unix()))
	require.NoError(t, s.UpsertAutoHide(ctx, recent.ID, now.AddDate(0, 0, -3).Unix()))

	hider := NewAutoHider(AutoHideConfig{Enabled: true, Hour: 2, DaysAfterEnd: 7}, s, zap.NewNop())

	var tally Tally
	res, err := hider.Sweep(ctx, now, &tally)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, 1, res.Hidden)
	assert.Equal(t, 1, tally.CoursesHidden)

	got, err := s.FindCourseByIDNumber(ctx, "OLD")
	require.NoError(t, err)
	assert.False(t, got.Visible)
	got, err = s.FindCourseByIDNumber(ctx, "RECENT")
	require.NoError(t, err)
	assert.True(t, got.Visible)

	last, err := s.GetState(ctx, StateAutoHideLastRun)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(now.Unix(), 10), last)

	res, err = hider.Sweep(ctx, now.Add(20*time.Minute), &tally)
	require.NoError(t, err)
	assert.False(t, res.Ran)
	assert.Equal(t, "already ran", res.Reason)
}

func TestAutoHider_Gates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	var tally Tally

	res, err := NewAutoHider(AutoHideConfig{Enabled: true}, s, zap.NewNop()).Sweep(ctx, now, &tally)
	require.NoError(t, err)
	assert.Equal(t, "not enabled", res.Reason)

	res, err = NewAutoHider(AutoHideConfig{Enabled: true, Hour: 2}, s, zap.NewNop()).Sweep(ctx, now, &tally)
	require.NoError(t, err)
	assert.Equal(t, "wrong hour", res.Reason)

	require.NoError(t, s.SetState(ctx, StateAutoHideLastRun, strconv.FormatInt(now.Add(-23*time.Hour).Unix(), 10)))
	res, err = NewAutoHider(AutoHideConfig{Enabled: true, Hour: 14}, s, zap.NewNop()).Sweep(ctx, now, &tally)
	require.NoError(t, err)
	assert.Equal(t, "already ran", res.Reason)

	require.NoError(t, s.SetState(ctx, StateAutoHideLastRun, strconv.FormatInt(now.Add(-25*time.Hour).Unix(), 10)))
	res, err = NewAutoHider(AutoHideConfig{Enabled: true, Hour: 14}, s, zap.NewNop()).Sweep(ctx, now, &tally)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Zero(t, res.Hidden)
}
