package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/config"
	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	failStaleCalls  int
	failStaleCounts []int64
	failStaleErr    error

	deleteCalls  map[model.TaskStatus]int
	deleteCounts map[model.TaskStatus][]int64
	deleteErr    error
}

func newMockReaperRepo() *mockReaperRepo {
	return &mockReaperRepo{
		deleteCalls:  make(map[model.TaskStatus]int),
		deleteCounts: make(map[model.TaskStatus][]int64),
	}
}

func (m *mockReaperRepo) FailStaleRunning(_ context.Context, _ time.Duration, _ int) (int64, error) {
	m.failStaleCalls++
	if m.failStaleErr != nil {
		return 0, m.failStaleErr
	}
	if len(m.failStaleCounts) == 0 {
		return 0, nil
	}
	count := m.failStaleCounts[0]
	m.failStaleCounts = m.failStaleCounts[1:]
	return count, nil
}

func (m *mockReaperRepo) DeleteOldTasks(_ context.Context, params core.DeleteOldTasksParams) (int64, error) {
	m.deleteCalls[params.Status]++
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	queue := m.deleteCounts[params.Status]
	if len(queue) == 0 {
		return 0, nil
	}
	m.deleteCounts[params.Status] = queue[1:]
	return queue[0], nil
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        time.Minute,
		RunningMaxAge:   30 * time.Minute,
		SuccessMaxAge:   24 * time.Hour,
		FailedMaxAge:    7 * 24 * time.Hour,
		CancelledMaxAge: 24 * time.Hour,
		BatchSize:       100,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewReaperService_RequiresRepo(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReaperRepository is required")
}

func TestRunCleanup_RunsEveryStep(t *testing.T) {
	repo := newMockReaperRepo()
	repo.failStaleCounts = []int64{2}
	repo.deleteCounts[model.TaskStatusSuccess] = []int64{3}

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCleanup(context.Background()))

	// Each batching loop runs until a zero count comes back.
	assert.Equal(t, 2, repo.failStaleCalls)
	assert.Equal(t, 2, repo.deleteCalls[model.TaskStatusSuccess])
	assert.Equal(t, 1, repo.deleteCalls[model.TaskStatusFailed])
	assert.Equal(t, 1, repo.deleteCalls[model.TaskStatusCancelled])
}

func TestRunCleanup_ContinuesPastStepErrors(t *testing.T) {
	repo := newMockReaperRepo()
	repo.failStaleErr = errors.New("db down")

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	cleanupErr := svc.runCleanup(context.Background())
	require.Error(t, cleanupErr)
	assert.Contains(t, cleanupErr.Error(), "fail abandoned running tasks")

	// Deletion steps still ran despite the first step failing.
	assert.Equal(t, 1, repo.deleteCalls[model.TaskStatusSuccess])
	assert.Equal(t, 1, repo.deleteCalls[model.TaskStatusFailed])
	assert.Equal(t, 1, repo.deleteCalls[model.TaskStatusCancelled])
}

func TestRunCleanup_StopsOnContextCancellation(t *testing.T) {
	repo := newMockReaperRepo()
	repo.failStaleErr = context.Canceled

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	cleanupErr := svc.runCleanup(context.Background())
	require.ErrorIs(t, cleanupErr, context.Canceled)

	// Cancellation short-circuits the remaining steps.
	assert.Equal(t, 0, repo.deleteCalls[model.TaskStatusSuccess])
}

func TestFailAbandonedRunningTasks_Batches(t *testing.T) {
	repo := newMockReaperRepo()
	repo.failStaleCounts = []int64{100, 100, 40}

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	total, err := svc.failAbandonedRunningTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(240), total)
	assert.Equal(t, 4, repo.failStaleCalls)
}

func TestRun_ReturnsNilOnGracefulShutdown(t *testing.T) {
	repo := newMockReaperRepo()

	cfg := testReaperConfig()
	cfg.Interval = 10 * time.Millisecond

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: cfg,
		Logger: testLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, svc.Run(ctx))
	assert.GreaterOrEqual(t, repo.failStaleCalls, 1)
}
