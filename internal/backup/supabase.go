package backup

import (
	"bytes"
	"context"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	supa "github.com/supabase-community/supabase-go"
)

// SupabaseBucket stores backups in a private Supabase Storage bucket.
type SupabaseBucket struct {
	client *supa.Client
	bucket string
}

func NewSupabaseClient(url, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

func NewSupabaseBucket(client *supa.Client, bucket string) *SupabaseBucket {
	return &SupabaseBucket{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket as private when it does not exist yet.
func (b *SupabaseBucket) EnsureBucket(ctx context.Context) error {
	if _, err := b.client.Storage.GetBucket(b.bucket); err == nil {
		return nil
	}
	if _, err := b.client.Storage.CreateBucket(b.bucket, storage_go.BucketOptions{Public: false}); err != nil {
		return fmt.Errorf("create bucket %s: %w", b.bucket, err)
	}
	return nil
}

func (b *SupabaseBucket) Put(ctx context.Context, path string, body []byte, contentType string) error {
	upsert := true
	_, err := b.client.Storage.UploadFile(b.bucket, path, bytes.NewReader(body), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}
