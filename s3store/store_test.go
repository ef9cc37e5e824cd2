package s3store_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/s3store"
)

const mib = int64(1 << 20)

func newTestStore(t *testing.T) (*s3store.Store, *fakeS3) {
	t.Helper()

	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	fake, server := newFakeS3(t)

	store, err := s3store.New(context.Background(), s3store.Config{
		Bucket:          fake.bucket,
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
		PresignExpiry:   5 * time.Minute,
	})
	require.NoError(t, err)

	return store, fake
}

func httpPut(t *testing.T, rawURL string, body []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, rawURL, bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := s3store.New(context.Background(), s3store.Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestUploadPlan_SinglePart(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	plan, err := store.UploadPlan(ctx, "users/1/abc.txt", 11)
	require.NoError(t, err)

	assert.False(t, plan.IsMultipart())
	require.Len(t, plan.Links, 1)
	assert.Equal(t, []int64{11}, plan.Sizes)

	u, err := url.Parse(plan.Links[0])
	require.NoError(t, err)
	assert.Equal(t, "/test/users/1/abc.txt", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))

	httpPut(t, plan.Links[0], []byte("hello world"))

	data, ok := fake.object("users/1/abc.txt")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))
}

func TestUploadPlan_Multipart(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	plan, err := store.UploadPlan(ctx, "users/1/big.bin", 20*mib)
	require.NoError(t, err)

	require.True(t, plan.IsMultipart())
	require.Len(t, plan.Links, 2)
	assert.Equal(t, 20*mib, plan.Sizes[0]+plan.Sizes[1])

	for i, link := range plan.Links {
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "/test/users/1/big.bin", u.Path)
		assert.Equal(t, plan.UploadID, u.Query().Get("uploadId"))
		assert.Equal(t, fmt.Sprint(i+1), u.Query().Get("partNumber"))
	}

	// Parts may arrive in any order.
	httpPut(t, plan.Links[1], []byte("world"))
	httpPut(t, plan.Links[0], []byte("hello "))

	require.NoError(t, store.CompleteUpload(ctx, "users/1/big.bin", plan.UploadID))

	data, ok := fake.object("users/1/big.bin")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))
	assert.Zero(t, fake.uploadCount())
}

func TestUploadPlan_InvalidSize(t *testing.T) {
	store, fake := newTestStore(t)

	_, err := store.UploadPlan(context.Background(), "users/1/x", -1)
	assert.ErrorIs(t, err, litestore.ErrInvalidInput)
	assert.Zero(t, fake.uploadCount())
}

func TestCompleteUpload_Errors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("unknown upload", func(t *testing.T) {
		err := store.CompleteUpload(ctx, "users/1/big.bin", "missing")
		assert.ErrorIs(t, err, litestore.ErrNotFound)
	})

	t.Run("no parts uploaded", func(t *testing.T) {
		plan, err := store.UploadPlan(ctx, "users/1/empty.bin", 20*mib)
		require.NoError(t, err)

		err = store.CompleteUpload(ctx, "users/1/empty.bin", plan.UploadID)
		assert.ErrorIs(t, err, litestore.ErrInvalidInput)
	})
}

func TestAbortUpload(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	plan, err := store.UploadPlan(ctx, "users/1/big.bin", 20*mib)
	require.NoError(t, err)
	require.Equal(t, 1, fake.uploadCount())

	require.NoError(t, store.AbortUpload(ctx, "users/1/big.bin", plan.UploadID))
	assert.Zero(t, fake.uploadCount())

	assert.NoError(t, store.AbortUpload(ctx, "users/1/big.bin", plan.UploadID), "aborting twice is not an error")
}

func TestDownloadURL(t *testing.T) {
	store, _ := newTestStore(t)

	link, err := store.DownloadURL(context.Background(), "users/1/abc.txt", "report.txt")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/test/users/1/abc.txt", u.Path)
	assert.Equal(t, "attachment; filename=report.txt", u.Query().Get("response-content-disposition"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestCreateFolderMarker(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.CreateFolderMarker(context.Background(), "users/1/dir/"))

	data, ok := fake.object("users/1/dir/")
	require.True(t, ok)
	assert.Empty(t, data)
}

func TestDelete(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	fake.put("users/1/a", []byte("a"))

	require.NoError(t, store.Delete(ctx, "users/1/a"))
	_, ok := fake.object("users/1/a")
	assert.False(t, ok)

	assert.NoError(t, store.Delete(ctx, "users/1/a"), "missing objects are not an error")
}

func TestDeleteMany_Batches(t *testing.T) {
	store, fake := newTestStore(t)

	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("users/1/%05d", i)
		fake.put(keys[i], []byte("x"))
	}

	require.NoError(t, store.DeleteMany(context.Background(), keys))

	assert.ElementsMatch(t, []int{1000, 1000, 500}, fake.batches())
	for _, k := range keys {
		_, ok := fake.object(k)
		require.False(t, ok, k)
	}
}

func TestDeleteMany_ReportsFailedKeys(t *testing.T) {
	store, fake := newTestStore(t)

	fake.put("users/1/a", []byte("a"))
	fake.put("users/1/b", []byte("b"))
	fake.denyDeleteOf("users/1/b")

	err := store.DeleteMany(context.Background(), []string{"users/1/a", "users/1/b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users/1/b")
	assert.Contains(t, err.Error(), "AccessDenied")

	_, ok := fake.object("users/1/a")
	assert.False(t, ok)
	_, ok = fake.object("users/1/b")
	assert.True(t, ok)
}

func TestDeleteMany_Empty(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.DeleteMany(context.Background(), nil))
	assert.Empty(t, fake.batches())
}

func TestListPrefix_Pagination(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"users/1/", "users/1/a", "users/1/b", "users/1/c", "users/2/x"} {
		fake.put(k, nil)
	}

	var all []string
	token := ""
	pages := 0
	for {
		page, err := store.ListPrefix(ctx, "users/1/", 2, token)
		require.NoError(t, err)
		all = append(all, page.Keys...)
		pages++
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	assert.Equal(t, []string{"users/1/", "users/1/a", "users/1/b", "users/1/c"}, all)
	assert.Equal(t, 2, pages)
	for _, k := range all {
		assert.True(t, strings.HasPrefix(k, "users/1/"))
	}
}
