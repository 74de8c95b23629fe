package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/luminous-dynamics/hdc/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory bucket covering the calls Store makes.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	if r := aws.ToString(in.Range); r != "" {
		var start, end int
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		data = data[start : end+1]
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeClient) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeClient) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeClient) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeClient) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

var _ Client = (*fakeClient)(nil)

func TestStorePutOpenRead(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "cohort")

	require.NoError(t, store.Put(ctx, "sample.vcf", []byte("##fileformat=VCFv4.2\n")))
	assert.Contains(t, client.objects, "cohort/sample.vcf")

	blob, err := store.Open(ctx, "sample.vcf")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(21), blob.Size())

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "fileformat", string(buf[:n]))

	n, err = blob.ReadAt(ctx, buf, 15)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "VCFv4.2\n"[2:], string(buf[:n]))

	_, err = blob.ReadAt(ctx, buf, 100)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStoreOpenMissing(t *testing.T) {
	store := NewStore(newFakeClient(), "bucket", "")
	_, err := store.Open(context.Background(), "absent")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStoreCreateUploads(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "bucket", "")

	w, err := store.Create(ctx, "codebook.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(`{"version":1}`))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)

	rc, err := blobstore.OpenReader(ctx, store, "codebook.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeClient(), "bucket", "tenant/")

	for i := range 3 {
		require.NoError(t, store.Put(ctx, "vcf/chr"+strconv.Itoa(i)+".vcf", []byte("x")))
	}
	require.NoError(t, store.Put(ctx, "codebooks/k6.json", []byte("{}")))

	names, err := store.List(ctx, "vcf/")
	require.NoError(t, err)
	assert.Equal(t, []string{"vcf/chr0.vcf", "vcf/chr1.vcf", "vcf/chr2.vcf"}, names)

	require.NoError(t, store.Delete(ctx, "vcf/chr1.vcf"))
	require.NoError(t, store.Delete(ctx, "vcf/missing.vcf"))

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"codebooks/k6.json", "vcf/chr0.vcf", "vcf/chr2.vcf"}, names)
}
