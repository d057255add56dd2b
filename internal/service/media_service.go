package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrUnsupportedMedia = errors.New("only image uploads are supported")
	ErrForeignMedia     = errors.New("media reference does not belong to this user")
)

// MediaResolver turns stored media references into URLs a provider can fetch.
type MediaResolver interface {
	ResolveMedia(ctx context.Context, refs []string) ([]string, error)
}

type MediaService interface {
	MediaResolver
	Upload(ctx context.Context, userID string, data []byte) (string, error)
}

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type mediaService struct {
	store     objectStore
	presigner objectPresigner
	bucket    string
	ttl       time.Duration
}

// NewMediaService connects to Cloudflare R2 through its S3 compatible API.
func NewMediaService(ctx context.Context, cfg config.Config) (MediaService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID))
	})

	return newMediaService(client, s3.NewPresignClient(client), cfg.R2.BucketName, cfg.R2.PresignTTL), nil
}

func newMediaService(store objectStore, presigner objectPresigner, bucket string, ttl time.Duration) *mediaService {
	return &mediaService{store: store, presigner: presigner, bucket: bucket, ttl: ttl}
}

// Upload stores an image and returns the reference to keep on a post.
func (s *mediaService) Upload(ctx context.Context, userID string, data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return "", ErrUnsupportedMedia
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s.%s", userID, id, kind.Extension)

	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return models.MediaRefPrefix + key, nil
}

// CheckMediaOwner rejects stored media references outside the user's upload prefix.
// Plain URLs are not checked.
func CheckMediaOwner(userID string, refs []string) error {
	for _, ref := range refs {
		key, stored := strings.CutPrefix(ref, models.MediaRefPrefix)
		if !stored {
			continue
		}
		if userID == "" || !strings.HasPrefix(key, userID+"/") || strings.Contains(key, "..") {
			return fmt.Errorf("%w: %s", ErrForeignMedia, ref)
		}
	}
	return nil
}

// ResolveMedia presigns stored references and passes plain URLs through unchanged.
func (s *mediaService) ResolveMedia(ctx context.Context, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		key, stored := strings.CutPrefix(ref, models.MediaRefPrefix)
		if !stored {
			out = append(out, ref)
			continue
		}

		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.ttl))
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		out = append(out, req.URL)
	}
	return out, nil
}
