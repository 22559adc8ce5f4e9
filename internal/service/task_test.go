package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
)

const (
	testTaskID = "0b8f1f1e-9a44-4c5f-9d6a-2d2b9c1f7a01"
	testShopID = "6e1d4a8c-3b52-4f0e-8c7b-5a9e2d4f1b02"
)

// mockTaskServiceRepo is a hand-rolled TaskRepository for service tests.
type mockTaskServiceRepo struct {
	tasks map[string]*model.Task

	createCalls  int
	createErr    error
	cancelResult bool
	cancelCalls  int
}

func newMockTaskServiceRepo(seed ...*model.Task) *mockTaskServiceRepo {
	m := &mockTaskServiceRepo{tasks: make(map[string]*model.Task), cancelResult: true}
	for _, task := range seed {
		m.tasks[task.ID] = task
	}
	return m
}

func (m *mockTaskServiceRepo) Create(_ context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	task := &model.Task{
		ID:        testTaskID,
		TaskNo:    model.NewTaskNo(time.Now()),
		ShopID:    req.ShopID,
		Action:    req.Action,
		Payload:   req.Payload,
		Priority:  req.Priority,
		Source:    req.Source,
		SourceRef: req.SourceRef,
		Status:    model.TaskStatusQueued,
		CreatedBy: req.CreatedBy,
	}
	return task, nil
}

func (m *mockTaskServiceRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task " + id)
	}
	return task, nil
}

func (m *mockTaskServiceRepo) GetByTaskNo(_ context.Context, taskNo string) (*model.Task, error) {
	for _, task := range m.tasks {
		if task.TaskNo == taskNo {
			return task, nil
		}
	}
	return nil, apperrors.NotFound("task " + taskNo)
}

func (m *mockTaskServiceRepo) List(_ context.Context, _ *model.TaskListOptions) ([]*model.Task, error) {
	out := make([]*model.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task)
	}
	return out, nil
}

func (m *mockTaskServiceRepo) ClaimNext(_ context.Context) (*model.Task, error) {
	return nil, model.ErrNoTasksAvailable
}

func (m *mockTaskServiceRepo) WaitForNotification(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockTaskServiceRepo) Complete(_ context.Context, _ core.CompleteTaskParams) (bool, error) {
	return true, nil
}

func (m *mockTaskServiceRepo) Fail(_ context.Context, _ core.FailTaskParams) (bool, error) {
	return true, nil
}

func (m *mockTaskServiceRepo) Cancel(_ context.Context, _ string) (bool, error) {
	m.cancelCalls++
	return m.cancelResult, nil
}

func (m *mockTaskServiceRepo) SetEvidenceBefore(_ context.Context, _, _ string) error { return nil }

func (m *mockTaskServiceRepo) Stats(_ context.Context) (*model.TaskStats, error) {
	return &model.TaskStats{Queued: len(m.tasks)}, nil
}

func (m *mockTaskServiceRepo) FailStaleRunning(_ context.Context, _ time.Duration, _ int) (int64, error) {
	return 0, nil
}

type mockLogServiceRepo struct {
	entries []*model.LogEntry
}

func (m *mockLogServiceRepo) Append(_ context.Context, taskID string, req *model.AppendLogRequest) (*model.LogEntry, error) {
	entry := &model.LogEntry{
		TaskID:     taskID,
		Step:       len(m.entries) + 1,
		StageLabel: req.StageLabel,
		Level:      req.Level,
		Message:    req.Message,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *mockLogServiceRepo) ListByTask(_ context.Context, _ string) ([]*model.LogEntry, error) {
	return m.entries, nil
}

type mockShopServiceRepo struct {
	shops     map[string]*model.Shop
	upserts   []*model.CreateShopRequest
	statusLog []core.SetConnectionStatusParams
	deleted   bool
}

func newMockShopServiceRepo(seed ...*model.Shop) *mockShopServiceRepo {
	m := &mockShopServiceRepo{shops: make(map[string]*model.Shop), deleted: true}
	for _, shop := range seed {
		m.shops[shop.ID] = shop
	}
	return m
}

func (m *mockShopServiceRepo) Create(_ context.Context, req *model.CreateShopRequest) (*model.Shop, error) {
	shop := &model.Shop{
		ID:                testShopID,
		DisplayName:       req.DisplayName,
		Platform:          req.Platform,
		Site:              req.Site,
		ExternalBrowserID: req.ExternalBrowserID,
		ConnectionStatus:  model.ConnectionStatusInactive,
	}
	m.shops[shop.ID] = shop
	return shop, nil
}

func (m *mockShopServiceRepo) GetByID(_ context.Context, id string) (*model.Shop, error) {
	shop, ok := m.shops[id]
	if !ok {
		return nil, apperrors.NotFound("shop " + id)
	}
	return shop, nil
}

func (m *mockShopServiceRepo) List(_ context.Context, _, _ int) ([]*model.Shop, error) {
	out := make([]*model.Shop, 0, len(m.shops))
	for _, shop := range m.shops {
		out = append(out, shop)
	}
	return out, nil
}

func (m *mockShopServiceRepo) Update(_ context.Context, id string, _ *model.UpdateShopRequest) (*model.Shop, error) {
	return m.GetByID(context.Background(), id)
}

func (m *mockShopServiceRepo) Delete(_ context.Context, _ string) (bool, error) {
	return m.deleted, nil
}

func (m *mockShopServiceRepo) SetConnectionStatus(_ context.Context, params core.SetConnectionStatusParams) error {
	m.statusLog = append(m.statusLog, params)
	if shop, ok := m.shops[params.ShopID]; ok {
		shop.ConnectionStatus = params.Status
		if params.ConnectedAt != nil {
			shop.LastConnectedAt = params.ConnectedAt
		}
	}
	return nil
}

func (m *mockShopServiceRepo) UpsertByExternalBrowserID(_ context.Context, req *model.CreateShopRequest) (*model.Shop, error) {
	m.upserts = append(m.upserts, req)
	return &model.Shop{ID: testShopID, ExternalBrowserID: req.ExternalBrowserID}, nil
}

// passValidator accepts every payload; failValidator rejects everything.
type passValidator struct{}

func (passValidator) ValidatePayload(model.ActionKind, []byte) error { return nil }

type failValidator struct{ err error }

func (v failValidator) ValidatePayload(model.ActionKind, []byte) error { return v.err }

func newTaskService(t *testing.T, repo core.TaskRepository, shops core.ShopRepository, validator ActionValidator) *TaskService {
	t.Helper()
	svc, err := NewTaskService(TaskServiceOptions{
		Repo:    repo,
		Logs:    &mockLogServiceRepo{},
		Shops:   shops,
		Actions: validator,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return svc
}

func activeTestShop() *model.Shop {
	return &model.Shop{
		ID:                testShopID,
		DisplayName:       "Toko Maju",
		Platform:          "shopee",
		Site:              "id",
		ExternalBrowserID: "browser-1",
		ConnectionStatus:  model.ConnectionStatusActive,
	}
}

func TestEnqueue_PersistsQueuedTask(t *testing.T) {
	repo := newMockTaskServiceRepo()
	svc := newTaskService(t, repo, newMockShopServiceRepo(activeTestShop()), passValidator{})

	task, err := svc.Enqueue(context.Background(), &model.CreateTaskRequest{
		ShopID:   testShopID,
		Action:   model.ActionUpdatePrice,
		Payload:  json.RawMessage(`{"product_id":"p-1","new_price":129000}`),
		Priority: 5,
		Source:   model.TaskSourceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, task.Status)
	assert.Equal(t, 5, task.Priority)
	assert.NotEmpty(t, task.TaskNo)
	assert.Equal(t, 1, repo.createCalls)
}

func TestEnqueue_RejectsUnknownShop(t *testing.T) {
	repo := newMockTaskServiceRepo()
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	_, err := svc.Enqueue(context.Background(), &model.CreateTaskRequest{
		ShopID:  testShopID,
		Action:  model.ActionToggleAd,
		Payload: json.RawMessage(`{"ad_id":"a-1","enabled":true}`),
	})
	require.Error(t, err)
	assert.Equal(t, 0, repo.createCalls)
}

func TestEnqueue_RejectsBadPayload(t *testing.T) {
	repo := newMockTaskServiceRepo()
	validator := failValidator{err: errors.New("new_price must be positive")}
	svc := newTaskService(t, repo, newMockShopServiceRepo(activeTestShop()), validator)

	_, err := svc.Enqueue(context.Background(), &model.CreateTaskRequest{
		ShopID:  testShopID,
		Action:  model.ActionUpdatePrice,
		Payload: json.RawMessage(`{"product_id":"p-1","new_price":-1}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new_price must be positive")
	assert.Equal(t, 0, repo.createCalls)
}

func TestEnqueue_RejectsMalformedShopID(t *testing.T) {
	repo := newMockTaskServiceRepo()
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	_, err := svc.Enqueue(context.Background(), &model.CreateTaskRequest{
		ShopID:  "not-a-uuid",
		Action:  model.ActionToggleAd,
		Payload: json.RawMessage(`{"ad_id":"a-1","enabled":true}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid UUID")
	assert.Equal(t, 0, repo.createCalls)
}

func TestCancel_OnlyQueuedTasks(t *testing.T) {
	running := &model.Task{ID: testTaskID, TaskNo: "TASK-1-0001", Status: model.TaskStatusRunning}
	repo := newMockTaskServiceRepo(running)
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	_, err := svc.Cancel(context.Background(), testTaskID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot be cancelled in status "running"`)
	assert.Equal(t, 0, repo.cancelCalls)
}

func TestCancel_LosesRaceToDispatcher(t *testing.T) {
	queued := &model.Task{ID: testTaskID, TaskNo: "TASK-1-0002", Status: model.TaskStatusQueued}
	repo := newMockTaskServiceRepo(queued)
	repo.cancelResult = false
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	_, err := svc.Cancel(context.Background(), testTaskID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claimed before it could be cancelled")
	assert.Equal(t, 1, repo.cancelCalls)
}

func TestRetry_OnlyFailedTasks(t *testing.T) {
	succeeded := &model.Task{ID: testTaskID, TaskNo: "TASK-1-0003", Status: model.TaskStatusSuccess}
	repo := newMockTaskServiceRepo(succeeded)
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	_, err := svc.Retry(context.Background(), testTaskID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot be retried in status "success"`)
	assert.Equal(t, 0, repo.createCalls)
}

func TestRetry_ClonesFailedTask(t *testing.T) {
	createdBy := "ops@example.com"
	failed := &model.Task{
		ID:        testTaskID,
		TaskNo:    "TASK-1-0004",
		ShopID:    testShopID,
		Action:    model.ActionAdjustBudget,
		Payload:   json.RawMessage(`{"campaign_id":"c-1","daily_budget":50000}`),
		Priority:  7,
		Status:    model.TaskStatusFailed,
		CreatedBy: &createdBy,
	}
	repo := newMockTaskServiceRepo(failed)
	svc := newTaskService(t, repo, newMockShopServiceRepo(), passValidator{})

	retry, err := svc.Retry(context.Background(), testTaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, retry.Status)
	assert.Equal(t, failed.Action, retry.Action)
	assert.Equal(t, failed.Priority, retry.Priority)
	assert.Equal(t, model.TaskSourceRetry, retry.Source)
	require.NotNil(t, retry.SourceRef)
	assert.Equal(t, failed.TaskNo, *retry.SourceRef)
	require.NotNil(t, retry.CreatedBy)
	assert.Equal(t, createdBy, *retry.CreatedBy)
}

func TestGet_RejectsMalformedID(t *testing.T) {
	svc := newTaskService(t, newMockTaskServiceRepo(), newMockShopServiceRepo(), passValidator{})

	_, err := svc.Get(context.Background(), "TASK-1-0001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid UUID")
}
