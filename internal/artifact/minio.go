package artifact

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore writes artifacts to an S3-compatible bucket: endpoint,
// access/secret key and optional TLS are all caller-supplied.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore dials endpoint and ensures bucket exists, creating it
// if necessary.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useTLS bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Write(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{ContentType: "image/png"})
	return err
}
