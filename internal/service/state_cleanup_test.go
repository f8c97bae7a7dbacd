package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (f *fakeDeleter) DeleteExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

func TestStateCleanup_CleanupNow(t *testing.T) {
	repo := &fakeDeleter{removed: 7}
	svc := NewStateCleanupService(repo, time.Minute, slog.New(slog.DiscardHandler))

	result, err := svc.CleanupNow(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Removed)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))

	repo.err = errors.New("db down")
	_, err = svc.CleanupNow(t.Context())
	assert.ErrorContains(t, err, "db down")
}

func TestStateCleanup_StartStop(t *testing.T) {
	repo := &fakeDeleter{}
	svc := NewStateCleanupService(repo, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	svc.Start(t.Context())
	require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	calls := repo.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, repo.calls.Load(), "после Stop очистка не выполняется")
}
