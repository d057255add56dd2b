package queue

import (
	"context"

	"github.com/hibiken/asynq"
)

// PostRunner executes a post that has already been claimed.
type PostRunner interface {
	ExecutePost(ctx context.Context, postID string) error
}

type Queue struct {
	client *asynq.Client
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

type Worker struct {
	runner PostRunner
}

func NewWorker(runner PostRunner) *Worker {
	return &Worker{runner: runner}
}

const TaskTypeExecutePost = "post:execute"

type ExecutePostPayload struct {
	PostID string `json:"post_id"`
}
