package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/internal/domain/model"
	"github.com/gmvmax/execd/internal/testutil"
)

func createQueuedTask(t *testing.T, db *sql.DB, shopID string) *model.Task {
	t.Helper()

	task, err := NewTaskRepo(db, RepoConfig{}).Create(
		context.Background(),
		testutil.NewTaskRequest(shopID).Build(),
	)
	require.NoError(t, err)
	return task
}

func TestLogRepo_Append_AssignsSequentialSteps(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		shop := createTestShop(t, db, "browser-log-steps")
		task := createQueuedTask(t, db, shop.ID)
		repo := NewLogRepo(db, RepoConfig{})

		messages := []string{"opened seller console", "located product row", "saved new price"}
		for i, msg := range messages {
			entry, err := repo.Append(ctx, task.ID, &model.AppendLogRequest{
				StageLabel: "execute",
				Level:      model.LogLevelInfo,
				Message:    msg,
			})
			require.NoError(t, err)
			assert.Equal(t, i+1, entry.Step)
			assert.Equal(t, task.ID, entry.TaskID)
			assert.Nil(t, entry.ScreenshotRef)
			assert.NotZero(t, entry.CreatedAt)
		}
	})
}

func TestLogRepo_Append_StoresScreenshotRef(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		shop := createTestShop(t, db, "browser-log-shot")
		task := createQueuedTask(t, db, shop.ID)
		repo := NewLogRepo(db, RepoConfig{})

		entry, err := repo.Append(context.Background(), task.ID, &model.AppendLogRequest{
			StageLabel:    "evidence",
			Level:         model.LogLevelSuccess,
			Message:       "captured after state",
			ScreenshotRef: testutil.StringPtr("evidence/after.png"),
		})
		require.NoError(t, err)
		require.NotNil(t, entry.ScreenshotRef)
		assert.Equal(t, "evidence/after.png", *entry.ScreenshotRef)
	})
}

func TestLogRepo_Append_Validates(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name   string
		req    *model.AppendLogRequest
		errMsg string
	}{
		{
			name:   "nil request",
			req:    nil,
			errMsg: "append log request is required",
		},
		{
			name:   "missing stage label",
			req:    &model.AppendLogRequest{Level: model.LogLevelInfo, Message: "hi"},
			errMsg: "stage_label is required",
		},
		{
			name:   "bad level",
			req:    &model.AppendLogRequest{StageLabel: "execute", Level: "debug", Message: "hi"},
			errMsg: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				shop := createTestShop(t, db, "browser-log-validate")
				task := createQueuedTask(t, db, shop.ID)
				repo := NewLogRepo(db, RepoConfig{})

				entry, err := repo.Append(context.Background(), task.ID, tt.req)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, entry)
			})
		})
	}
}

func TestLogRepo_ListByTask(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		shop := createTestShop(t, db, "browser-log-list")
		taskA := createQueuedTask(t, db, shop.ID)
		taskB := createQueuedTask(t, db, shop.ID)
		repo := NewLogRepo(db, RepoConfig{})

		for _, msg := range []string{"first", "second"} {
			_, err := repo.Append(ctx, taskA.ID, &model.AppendLogRequest{
				StageLabel: "execute",
				Level:      model.LogLevelInfo,
				Message:    msg,
			})
			require.NoError(t, err)
		}
		_, err := repo.Append(ctx, taskB.ID, &model.AppendLogRequest{
			StageLabel: "navigate",
			Level:      model.LogLevelWarning,
			Message:    "slow page load",
		})
		require.NoError(t, err)

		entries, err := repo.ListByTask(ctx, taskA.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 1, entries[0].Step)
		assert.Equal(t, "first", entries[0].Message)
		assert.Equal(t, 2, entries[1].Step)
		assert.Equal(t, "second", entries[1].Message)

		// Steps are scoped per task, not global.
		entries, err = repo.ListByTask(ctx, taskB.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].Step)
	})
}

func TestLogRepo_ListByTask_Empty(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		shop := createTestShop(t, db, "browser-log-empty")
		task := createQueuedTask(t, db, shop.ID)
		repo := NewLogRepo(db, RepoConfig{})

		entries, err := repo.ListByTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
