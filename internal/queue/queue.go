package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const executeTimeout = 5 * time.Minute

// EnqueuePost hands a claimed post to the worker pool. The post id doubles as the task id
// so a post is never queued twice, and the task is not retried because the claim is gone.
func (q *Queue) EnqueuePost(ctx context.Context, postID string) error {
	taskPayload, err := json.Marshal(ExecutePostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeExecutePost, taskPayload,
		asynq.TaskID(postID),
		asynq.MaxRetry(0),
		asynq.Timeout(executeTimeout),
	)

	_, err = q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		slog.Info("post already queued", "post_id", postID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("post queued", "post_id", postID)
	return nil
}
