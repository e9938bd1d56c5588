package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Storage implements domain.FileStorage on top of a MinIO/S3 bucket. The
// public ID is used verbatim as the object key, so the key alone correlates
// the blob with its metadata record.
type Storage struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

// NewStorage connects to MinIO and ensures the bucket exists.
func NewStorage(endpoint, accessKey, secretKey, bucketName string, useSSL bool, log *logger.Logger) (*Storage, error) {
	log.Info("Initializing S3 MinIO storage",
		zap.String("endpoint", endpoint),
		zap.String("bucket", bucketName),
		zap.Bool("use_ssl", useSSL))

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Error("Failed to create MinIO client", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", endpoint, err)
	}

	err = client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := client.BucketExists(context.Background(), bucketName)
		if errBucketExists == nil && exists {
			log.Info("Bucket already exists", zap.String("bucket", bucketName))
		} else {
			log.Error("Failed to make or verify bucket",
				zap.String("bucket", bucketName),
				zap.NamedError("make_bucket_error", err),
				zap.NamedError("check_exists_error", errBucketExists))
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", bucketName, err, errBucketExists)
		}
	} else {
		log.Info("Bucket created", zap.String("bucket", bucketName))
	}

	return &Storage{
		client: client,
		bucket: bucketName,
		logger: log.Named("S3Storage"),
	}, nil
}

// Upload stores data under publicID and returns the asset with its URL.
func (s *Storage) Upload(ctx context.Context, publicID string, data []byte) (*domain.MediaAsset, error) {
	s.logger.Info("Uploading object",
		zap.String("bucket", s.bucket),
		zap.String("object_key", publicID),
		zap.Int("size_bytes", len(data)))

	info, err := s.client.PutObject(ctx, s.bucket, publicID, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		s.logger.Error("PutObject failed", zap.String("bucket", s.bucket), zap.String("key", publicID), zap.Error(err))
		return nil, fmt.Errorf("failed to upload object %s to bucket %s: %w", publicID, s.bucket, err)
	}

	// URL layout for MinIO: http(s)://<endpoint>/<bucket>/<objectKey>.
	fileURL := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, publicID)

	s.logger.Info("Object uploaded",
		zap.String("bucket", info.Bucket),
		zap.String("key", info.Key),
		zap.String("etag", info.ETag),
		zap.String("url", fileURL))

	return &domain.MediaAsset{
		PublicID: publicID,
		URL:      fileURL,
	}, nil
}

// Remove deletes the object addressed by publicID. A missing object is
// reported as RemoveNotFound rather than an error, since minio's
// RemoveObject succeeds silently on absent keys.
func (s *Storage) Remove(ctx context.Context, publicID string) (domain.RemoveOutcome, error) {
	s.logger.Info("Removing object", zap.String("bucket", s.bucket), zap.String("object_key", publicID))

	_, err := s.client.StatObject(ctx, s.bucket, publicID, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == http.StatusNotFound {
			s.logger.Warn("Object not found on remove", zap.String("bucket", s.bucket), zap.String("key", publicID))
			return domain.RemoveNotFound, nil
		}
		s.logger.Error("StatObject failed", zap.String("bucket", s.bucket), zap.String("key", publicID), zap.Error(err))
		return 0, fmt.Errorf("failed to stat object %s in bucket %s: %w", publicID, s.bucket, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("RemoveObject failed", zap.String("bucket", s.bucket), zap.String("key", publicID), zap.Error(err))
		return 0, fmt.Errorf("failed to remove object %s from bucket %s: %w", publicID, s.bucket, err)
	}

	s.logger.Info("Object removed", zap.String("bucket", s.bucket), zap.String("key", publicID))
	return domain.RemoveDeleted, nil
}
