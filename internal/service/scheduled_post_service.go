package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

var (
	ErrInvalidPost  = errors.New("invalid post")
	ErrPostNotFound = errors.New("post not found")
	// ErrPostStarted means the post already left scheduled and can no longer be changed.
	ErrPostStarted = errors.New("post has already started publishing")
)

type ScheduledPostService interface {
	Create(ctx context.Context, userID string, req *transfer.CreatePostRequest) (*models.ScheduledPost, error)
	List(ctx context.Context, userID string) ([]*models.ScheduledPost, error)
	Get(ctx context.Context, userID, postID string) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, userID, postID string) error
}

type scheduledPostService struct {
	posts    repository.ScheduledPostRepository
	accounts repository.SocialAccountRepository
}

func NewScheduledPostService(posts repository.ScheduledPostRepository, accounts repository.SocialAccountRepository) ScheduledPostService {
	return &scheduledPostService{posts: posts, accounts: accounts}
}

func (s *scheduledPostService) Create(ctx context.Context, userID string, req *transfer.CreatePostRequest) (*models.ScheduledPost, error) {
	if strings.TrimSpace(req.Text) == "" && len(req.Media) == 0 {
		return nil, fmt.Errorf("%w: text or media is required", ErrInvalidPost)
	}
	if len(req.AccountIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one account is required", ErrInvalidPost)
	}

	if err := CheckMediaOwner(userID, req.Media); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPost, err)
	}

	scheduledFor, err := time.Parse(time.RFC3339, req.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("%w: scheduled_for must be RFC3339", ErrInvalidPost)
	}

	seen := make(map[string]bool, len(req.AccountIDs))
	targets := make([]models.PostTarget, 0, len(req.AccountIDs))
	for _, id := range req.AccountIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		account, err := s.accounts.GetByID(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrUndecryptable) {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown account %s", ErrInvalidPost, id)
			}
			return nil, err
		}
		if account.UserID != userID {
			return nil, fmt.Errorf("%w: unknown account %s", ErrInvalidPost, id)
		}
		targets = append(targets, models.PostTarget{Platform: account.Provider, AccountID: id})
	}

	post := &models.ScheduledPost{
		UserID:       userID,
		Content:      req.Text,
		Media:        req.Media,
		Link:         req.Link,
		Title:        req.Title,
		Targets:      targets,
		ScheduledFor: scheduledFor.UTC(),
	}

	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *scheduledPostService) List(ctx context.Context, userID string) ([]*models.ScheduledPost, error) {
	return s.posts.ListByUserID(ctx, userID)
}

func (s *scheduledPostService) Get(ctx context.Context, userID, postID string) (*models.ScheduledPost, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// Cancel deletes a post that has not been claimed yet.
func (s *scheduledPostService) Cancel(ctx context.Context, userID, postID string) error {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusScheduled {
		return ErrPostStarted
	}

	err = s.posts.Remove(ctx, postID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		// Claimed between the read and the delete.
		return ErrPostStarted
	}
	return err
}
