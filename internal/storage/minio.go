package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
)

// MediaStore keeps synthesized companion audio in S3-compatible object
// storage and hands out the public URLs the clients and the avatar renderer
// fetch from.
type MediaStore struct {
	cli       *minio.Client
	bucket    string
	publicURL string
}

// NewMediaStore connects to the object store and ensures the media bucket
// exists.
func NewMediaStore(ctx context.Context, cfg *config.Config) (*MediaStore, error) {
	cli, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("check media bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create media bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("media bucket created")
	}

	return &MediaStore{
		cli:       cli,
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimSuffix(cfg.S3PublicURL, "/"),
	}, nil
}

// UploadAudio stores one audio clip under the room's prefix and returns its
// public URL.
func (s *MediaStore) UploadAudio(ctx context.Context, roomID, filename string, data []byte) (string, error) {
	objectName := fmt.Sprintf("audio/%s/%s", roomID, filename)
	_, err := s.cli.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "audio/mpeg",
	})
	if err != nil {
		return "", fmt.Errorf("put audio object: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName), nil
}
