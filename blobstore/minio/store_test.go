package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialRejectsBadEndpoint(t *testing.T) {
	_, err := Dial("minio lab:9000", "bucket", "")
	require.Error(t, err)
}

func TestKeyJoinsPrefix(t *testing.T) {
	s := NewStore(nil, "bucket", "cohort-a/")
	assert.Equal(t, "cohort-a/chr1.vcf", s.key("chr1.vcf"))
	assert.Equal(t, "chr1.vcf", NewStore(nil, "bucket", "").key("chr1.vcf"))
}

// TestStoreIntegration runs against a live server when HDC_MINIO_ENDPOINT
// is set, e.g. HDC_MINIO_ENDPOINT=localhost:9000 with minioadmin creds.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("HDC_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("HDC_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	const bucket = "hdc-test"

	store, err := Dial(endpoint, bucket, "it/", WithStaticCredentials("minioadmin", "minioadmin"))
	require.NoError(t, err)

	exists, err := store.client.BucketExists(ctx, bucket)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("#CHROM\tPOS\tID\tREF\tALT\n")
	require.NoError(t, store.Put(ctx, "sample.vcf", data))

	blob, err := store.Open(ctx, "sample.vcf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 6)
	n, err := blob.ReadAt(ctx, buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "CHROM\t", string(buf[:n]))
	require.NoError(t, blob.Close())

	w, err := store.Create(ctx, "streamed.vcf")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rc, err := blobstore.OpenReader(ctx, store, "streamed.vcf")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "sample.vcf")
	assert.Contains(t, names, "streamed.vcf")

	require.NoError(t, store.Delete(ctx, "sample.vcf"))
	require.NoError(t, store.Delete(ctx, "streamed.vcf"))
	_, err = store.Open(ctx, "sample.vcf")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
