package supabase

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// ObjectStore is the subset of Supabase Storage used for uploads.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	CreateBucket(ctx context.Context, bucket string, public bool) error
}

// storageGoStore builds a storage-go client per call: the client keeps
// per-upload headers in a map shared by all of its requests.
type storageGoStore struct {
	endpoint string
	apiKey   string
}

func (s *storageGoStore) client() *storage.Client {
	return storage.NewClient(s.endpoint, s.apiKey, nil)
}

func (s *storageGoStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	client := s.client()
	return callWithContext(ctx, func() error {
		upsert := false
		_, err := client.UploadFile(bucket, path, bytes.NewReader(data), storage.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		return err
	})
}

func (s *storageGoStore) CreateBucket(ctx context.Context, bucket string, public bool) error {
	client := s.client()
	return callWithContext(ctx, func() error {
		_, err := client.CreateBucket(bucket, storage.BucketOptions{Public: public})
		return err
	})
}

// callWithContext returns when call finishes or ctx is done, whichever is
// first. storage-go takes no context, so an abandoned call runs to completion
// in the background.
func callWithContext(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- call()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type StorageClient struct {
	store   ObjectStore
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey string) *StorageClient {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	store := &storageGoStore{
		endpoint: baseURL + "/storage/v1",
		apiKey:   serviceRoleKey,
	}

	return NewStorageClientWithStore(baseURL, store)
}

func NewStorageClientWithStore(supabaseURL string, store ObjectStore) *StorageClient {
	return &StorageClient{
		store:   store,
		baseURL: strings.TrimSuffix(supabaseURL, "/"),
	}
}

// Upload stores data at bucket/path and returns the object's public URL.
//
// When the bucket does not exist it is created as a public bucket and the
// upload is attempted exactly once more. A failed creation (other than the
// bucket already existing) reports the original upload error.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	err := s.store.Upload(ctx, bucket, path, data, contentType)
	if err != nil && isMissingBucketError(err) {
		if createErr := s.store.CreateBucket(ctx, bucket, true); createErr == nil || isBucketAlreadyExistsError(createErr) {
			err = s.store.Upload(ctx, bucket, path, data, contentType)
		}
	}
	if err != nil {
		if isMissingBucketError(err) {
			return "", fmt.Errorf("%w: %s: %v", ErrBucketNotFound, bucket, err)
		}
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucket, path, err)
	}

	return s.PublicURL(bucket, path), nil
}

func (s *StorageClient) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, bucket, path)
}
