package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/jobs"
)

type fakeClient struct {
	tasks  []*asynq.Task
	closed bool
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

type fakeInspector struct {
	info      *asynq.QueueInfo
	err       error
	scheduled []*asynq.TaskInfo
	closeErr  error
}

func (f *fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func (f *fakeInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.scheduled, nil
}

func (f *fakeInspector) Close() error { return f.closeErr }

func TestTrigger(t *testing.T) {
	client := &fakeClient{}
	c := &JobsCLI{client: client, inspector: &fakeInspector{}}

	info, err := c.Trigger(context.Background(), jobs.TaskPayablesRefreshOverdue)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskPayablesRefreshOverdue, info.Type)
	require.Len(t, client.tasks, 1)

	_, err = c.Trigger(context.Background(), jobs.TaskQuotationSendEmail)
	assert.Error(t, err)
	assert.Len(t, client.tasks, 1)
}

func TestInspectQueue(t *testing.T) {
	c := &JobsCLI{client: &fakeClient{}, inspector: &fakeInspector{info: &asynq.QueueInfo{Pending: 3, Failed: 2}}}
	stats, err := c.InspectQueue()
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Failed: 2}, stats)

	c.inspector = &fakeInspector{err: errors.New("redis down")}
	_, err = c.InspectQueue()
	assert.Error(t, err)
}

func TestCloseJoinsErrors(t *testing.T) {
	client := &fakeClient{}
	c := &JobsCLI{client: client, inspector: &fakeInspector{closeErr: errors.New("inspector")}}
	assert.EqualError(t, c.Close(), "inspector")
	assert.True(t, client.closed)
}
