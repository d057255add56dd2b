package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func (w *Worker) HandleExecutePostTask(ctx context.Context, task *asynq.Task) error {
	var payload ExecutePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("missing post id: %w", asynq.SkipRetry)
	}

	return w.runner.ExecutePost(ctx, payload.PostID)
}

// Register mounts the worker's handlers on an asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeExecutePost, w.HandleExecutePostTask)
}
