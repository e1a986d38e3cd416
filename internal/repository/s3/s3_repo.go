package s3

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/yunojang/backend/pkg/client/s3"
)

type S3Repo struct {
	StorageS3 *s3.StorageS3
}

func NewS3Repo(storageS3 *s3.StorageS3) *S3Repo {
	return &S3Repo{
		StorageS3: storageS3,
	}
}

// UploadFile transfers a local file into the bucket under key.
func (s *S3Repo) UploadFile(ctx context.Context, key, localPath string) error {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.StorageS3.Client.FPutObject(
		ctx,
		s.StorageS3.Bucket,
		key,
		localPath,
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

func (s *S3Repo) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	reqParams := url.Values{}

	presignedURL, err := s.StorageS3.Client.PresignedGetObject(ctx, s.StorageS3.Bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return presignedURL.String(), nil
}

// PresignedPost builds a browser-upload policy for key, constrained to the
// given content type.
func (s *S3Repo) PresignedPost(ctx context.Context, key, contentType string, expiry time.Duration) (string, map[string]string, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return "", nil, fmt.Errorf("s3 client not initialized")
	}

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(s.StorageS3.Bucket); err != nil {
		return "", nil, fmt.Errorf("post policy bucket: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return "", nil, fmt.Errorf("post policy key: %w", err)
	}
	if contentType != "" {
		if err := policy.SetContentType(contentType); err != nil {
			return "", nil, fmt.Errorf("post policy content type: %w", err)
		}
	}
	if err := policy.SetExpires(time.Now().UTC().Add(expiry)); err != nil {
		return "", nil, fmt.Errorf("post policy expiry: %w", err)
	}

	uploadURL, fields, err := s.StorageS3.Client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return "", nil, fmt.Errorf("presigned post policy: %w", err)
	}
	return uploadURL.String(), fields, nil
}
