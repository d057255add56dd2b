package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/service"
	"github.com/maheshrc27/socialdash/internal/telemetry"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

const staleMessage = "execution interrupted"

// Enqueuer hands a claimed post to an out-of-process worker pool.
type Enqueuer interface {
	EnqueuePost(ctx context.Context, postID string) error
}

type PostExecutorOptions struct {
	BatchSize   int
	Concurrency int
	// StaleAfter bounds how long a started post may stay publishing.
	StaleAfter time.Duration
	// ClaimTimeout bounds how long a claimed post may wait to start before it is rescheduled.
	ClaimTimeout time.Duration
}

// PostExecutor claims due scheduled posts and publishes each target, relay first and
// direct on relay failure.
type PostExecutor struct {
	posts     repository.ScheduledPostRepository
	history   repository.PostingHistoryRepository
	publisher service.PublishService
	relay     service.RelayService
	media     service.MediaResolver
	queue     Enqueuer
	opts      PostExecutorOptions
	id        string
	running   atomic.Bool
	now       func() time.Time
}

func NewPostExecutor(
	posts repository.ScheduledPostRepository,
	history repository.PostingHistoryRepository,
	publisher service.PublishService,
	relay service.RelayService,
	media service.MediaResolver,
	opts PostExecutorOptions) *PostExecutor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &PostExecutor{
		posts:     posts,
		history:   history,
		publisher: publisher,
		relay:     relay,
		media:     media,
		opts:      opts,
		id:        uuid.New().String(),
		now:       time.Now,
	}
}

// UseQueue switches execution from in-process goroutines to the given queue.
func (e *PostExecutor) UseQueue(q Enqueuer) {
	e.queue = q
}

// Tick is the cron entry point.
func (e *PostExecutor) Tick() {
	if _, err := e.RunOnce(context.Background()); err != nil {
		slog.Info(err.Error())
	}
}

// RunOnce recovers stale claims, then claims and executes every post that is due.
// It returns the number of posts this call claimed.
func (e *PostExecutor) RunOnce(ctx context.Context) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Info("previous executor tick still running", "instance", e.id)
		return 0, nil
	}
	defer e.running.Store(false)

	now := e.now()
	e.recoverStale(ctx, now)

	due, err := e.posts.ListDue(ctx, now, e.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due posts: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.opts.Concurrency)
	claimed := 0

	for _, post := range due {
		if e.queue != nil {
			if !e.claim(ctx, post) {
				continue
			}
			claimed++
			if err := e.queue.EnqueuePost(ctx, post.ID); err != nil {
				slog.Warn("enqueue failed, releasing claim", "post_id", post.ID, "error", err)
				if err := e.posts.Release(ctx, post.ID); err != nil {
					slog.Info(err.Error())
				}
			}
			continue
		}

		// Claim once a slot is free.
		semaphore <- struct{}{}
		if !e.claim(ctx, post) {
			<-semaphore
			continue
		}
		claimed++
		wg.Add(1)

		go func(post *models.ScheduledPost) {
			defer wg.Done()
			defer func() { <-semaphore }()
			e.execute(ctx, post)
		}(post)
	}
	wg.Wait()

	slog.Info("executor tick finished", "instance", e.id, "due", len(due), "claimed", claimed)
	return claimed, nil
}

func (e *PostExecutor) claim(ctx context.Context, post *models.ScheduledPost) bool {
	at := e.now()
	won, err := e.posts.Claim(ctx, post.ID, at)
	if err != nil {
		slog.Info("claim failed", "post_id", post.ID, "error", err)
		return false
	}
	if !won {
		slog.Info("post claimed elsewhere", "post_id", post.ID, "instance", e.id)
		return false
	}
	telemetry.PostsClaimed.Inc()
	post.Status = models.PostStatusPublishing
	post.ClaimedAt = &at
	return true
}

// ExecutePost runs a post that was claimed earlier, typically by a queue worker.
// Posts no longer in publishing are skipped.
func (e *PostExecutor) ExecutePost(ctx context.Context, postID string) error {
	post, err := e.posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		slog.Info("queued post no longer exists", "post_id", postID)
		return nil
	}
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusPublishing {
		slog.Info("queued post is not publishing, skipping", "post_id", postID, "status", post.Status)
		return nil
	}

	e.execute(ctx, post)
	return nil
}

// recoverStale fails posts whose execution started but never finished and reschedules
// claims that never started. A started post is never rescheduled.
func (e *PostExecutor) recoverStale(ctx context.Context, now time.Time) {
	if e.opts.StaleAfter > 0 {
		n, err := e.posts.FailStale(ctx, now.Add(-e.opts.StaleAfter), now, staleMessage)
		if err != nil {
			slog.Info(err.Error())
		} else if n > 0 {
			slog.Warn("failed stale publishing posts", "count", n)
			telemetry.PostsCompleted.WithLabelValues(string(models.PostStatusFailed)).Add(float64(n))
		}
	}

	if e.opts.ClaimTimeout > 0 {
		n, err := e.posts.ReleaseUnstarted(ctx, now.Add(-e.opts.ClaimTimeout))
		if err != nil {
			slog.Info(err.Error())
		} else if n > 0 {
			slog.Warn("rescheduled claims that never started", "count", n)
		}
	}
}

func (e *PostExecutor) execute(ctx context.Context, post *models.ScheduledPost) {
	started, err := e.posts.Start(ctx, post.ID, e.now())
	if err != nil {
		slog.Info("could not start post", "post_id", post.ID, "error", err)
		return
	}
	if !started {
		slog.Info("post already started or no longer publishing", "post_id", post.ID)
		return
	}

	telemetry.PostsInFlight.Inc()
	defer telemetry.PostsInFlight.Dec()

	content := models.Content{
		Text:  post.Content,
		Media: post.Media,
		Link:  post.Link,
		Title: post.Title,
	}

	relayMedia := post.Media
	if e.media != nil && len(post.Media) > 0 {
		resolved, err := e.media.ResolveMedia(ctx, post.Media)
		if err != nil {
			slog.Warn("could not resolve media for relay", "post_id", post.ID, "error", err)
		} else {
			relayMedia = resolved
		}
	}

	results := make([]models.PostTargetResult, len(post.Targets))
	for i, target := range post.Targets {
		results[i] = e.executeTarget(ctx, post, target, content, relayMedia)
		e.recordHistory(ctx, post, results[i])
	}

	completion := summarize(results, e.now())
	if err := e.posts.Complete(ctx, post.ID, completion); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			slog.Warn("post left publishing before completion", "post_id", post.ID)
			return
		}
		slog.Info("could not complete post", "post_id", post.ID, "error", err)
		return
	}

	telemetry.PostsCompleted.WithLabelValues(string(completion.Status)).Inc()
	slog.Info("post executed",
		"post_id", post.ID,
		"status", completion.Status,
		"method", completion.Method,
		"targets", len(results),
	)
}

func (e *PostExecutor) executeTarget(ctx context.Context, post *models.ScheduledPost, target models.PostTarget, content models.Content, relayMedia []string) models.PostTargetResult {
	result := models.PostTargetResult{Platform: target.Platform, AccountID: target.AccountID}

	var relayErr error
	if e.relay != nil && e.relay.Enabled(target.Platform) {
		if relayMedia == nil {
			relayMedia = []string{}
		}
		id, err := e.relay.Publish(ctx, transfer.RelayRequest{
			Content:   post.Content,
			Platform:  string(target.Platform),
			Media:     relayMedia,
			Timestamp: e.now().UTC(),
			AccountID: target.AccountID,
			PostID:    post.ID,
		})
		if err == nil {
			result.Success = true
			result.Method = models.MethodRelay
			result.ProviderPostID = id
			return result
		}
		relayErr = err
		slog.Info("relay failed, publishing directly", "post_id", post.ID, "platform", target.Platform, "error", err)
	}

	outcome := e.publisher.PublishToAccount(ctx, target.AccountID, content)
	if outcome.Success {
		result.Success = true
		result.Method = models.MethodDirect
		result.ProviderPostID = outcome.PostID
		return result
	}

	result.Error = outcome.Error
	if relayErr != nil {
		result.Error = fmt.Sprintf("relay: %v; direct: %s", relayErr, outcome.Error)
	}
	return result
}

func (e *PostExecutor) recordHistory(ctx context.Context, post *models.ScheduledPost, result models.PostTargetResult) {
	method := result.Method
	if method == "" {
		method = models.MethodDirect
	}
	_, err := e.history.Create(ctx, &models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		AccountID:      result.AccountID,
		Platform:       result.Platform,
		Method:         method,
		Success:        result.Success,
		ProviderPostID: result.ProviderPostID,
		ErrorMessage:   result.Error,
	})
	if err != nil {
		slog.Info("could not record posting history", "post_id", post.ID, "error", err)
	}
}

// summarize folds target results into the post's terminal state. The first successful
// target provides the post id and method; failed targets are listed by platform.
func summarize(results []models.PostTargetResult, at time.Time) models.PostCompletion {
	completion := models.PostCompletion{
		Status:  models.PostStatusFailed,
		Results: results,
		At:      at,
	}

	var failures []string
	for _, r := range results {
		if r.Success {
			if completion.Status != models.PostStatusPublished {
				completion.Status = models.PostStatusPublished
				completion.ProviderPostID = r.ProviderPostID
				completion.Method = r.Method
			}
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", r.Platform, r.Error))
	}

	if len(results) == 0 {
		failures = append(failures, "no targets")
	}
	completion.Error = strings.Join(failures, "; ")
	return completion
}
