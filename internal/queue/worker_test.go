package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	ids []string
	err error
}

func (r *recordingRunner) ExecutePost(_ context.Context, postID string) error {
	r.ids = append(r.ids, postID)
	return r.err
}

func TestHandleExecutePostTask(t *testing.T) {
	runner := &recordingRunner{}
	worker := NewWorker(runner)

	task := asynq.NewTask(TaskTypeExecutePost, []byte(`{"post_id":"post-1"}`))
	require.NoError(t, worker.HandleExecutePostTask(context.Background(), task))
	assert.Equal(t, []string{"post-1"}, runner.ids)
}

func TestHandleExecutePostTaskBadPayload(t *testing.T) {
	runner := &recordingRunner{}
	worker := NewWorker(runner)

	err := worker.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, []byte(`not json`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = worker.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, []byte(`{}`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, runner.ids)
}

func TestHandleExecutePostTaskPropagatesRunnerError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("db down")}
	worker := NewWorker(runner)

	err := worker.HandleExecutePostTask(context.Background(), asynq.NewTask(TaskTypeExecutePost, []byte(`{"post_id":"p"}`)))
	assert.EqualError(t, err, "db down")
}
