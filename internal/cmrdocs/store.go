package cmrdocs

import (
	"context"

	"github.com/freightlinkhq/freightlink-backend/pkg/storage/gcs"
)

type gcsStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore adapts the GCS client to the artifact store boundary.
func NewGCSStore(client *gcs.Client, bucket string) ArtifactStore {
	if bucket == "" && client != nil {
		bucket = client.DefaultBucket()
	}
	return &gcsStore{client: client, bucket: bucket}
}

func (s *gcsStore) Save(ctx context.Context, key, contentType string, data []byte) error {
	return s.client.UploadObject(ctx, s.bucket, key, contentType, data)
}

func (s *gcsStore) Read(ctx context.Context, key string) ([]byte, error) {
	return s.client.ReadObject(ctx, s.bucket, key)
}
