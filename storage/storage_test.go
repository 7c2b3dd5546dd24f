package storage

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func pngUpload() *Upload {
	return &Upload{Filename: "proof.png", Body: bytes.NewReader(pngBytes)}
}

func fixedNow() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "/uploads/", 1024)
	store.now = fixedNow

	url, err := store.Save(context.Background(), pngUpload())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/2024/03/09/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	onDisk := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
	got, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	require.NoError(t, store.Delete(context.Background(), url))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	assert.NoError(t, store.Delete(context.Background(), url))
}

func TestLocalStoreRejectsInvalidUploads(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads", 16)

	_, err := store.Save(context.Background(), &Upload{Body: strings.NewReader("plain text, not an image")})
	assert.ErrorIs(t, err, ErrTooLarge)

	store = NewLocalStore(t.TempDir(), "/uploads", 1024)
	_, err = store.Save(context.Background(), &Upload{Body: strings.NewReader("plain text")})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalStoreIgnoresForeignURLs(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	store := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads", 1024)
	assert.NoError(t, store.Delete(context.Background(), "https://cdn.example.com/a.png"))
	assert.NoError(t, store.Delete(context.Background(), "/uploads/../keep.txt"))

	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

type fakeObjects struct {
	puts    []*s3.PutObjectInput
	deletes []string
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSaveAndDelete(t *testing.T) {
	fake := &fakeObjects{}
	store := newS3Store(fake, "habits", "https://habits.fra1.digitaloceanspaces.com/", "/photos/", 1024)
	store.now = fixedNow

	url, err := store.Save(context.Background(), pngUpload())
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)

	key := aws.ToString(fake.puts[0].Key)
	assert.True(t, strings.HasPrefix(key, "photos/2024/03/09/"), key)
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
	assert.Equal(t, "habits", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, "https://habits.fra1.digitaloceanspaces.com/"+key, url)

	require.NoError(t, store.Delete(context.Background(), url))
	require.NoError(t, store.Delete(context.Background(), "/uploads/default.png"))
	assert.Equal(t, []string{key}, fake.deletes)
}

func TestCloudinaryStore(t *testing.T) {
	var destroyed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts := r.FormValue("timestamp")
		switch {
		case strings.HasSuffix(r.URL.Path, "/demo/image/upload"):
			want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=uploads&timestamp="+ts+"secret")))
			assert.Equal(t, want, r.FormValue("signature"))
			assert.Equal(t, "key", r.FormValue("api_key"))
			_, _ = w.Write([]byte(`{"public_id":"uploads/abc","secure_url":"https://res.cloudinary.com/demo/image/upload/v1700/uploads/abc.png"}`))
		case strings.HasSuffix(r.URL.Path, "/demo/image/destroy"):
			destroyed = r.FormValue("public_id")
			_, _ = w.Write([]byte(`{"result":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewCloudinaryStore("demo", "key", "secret", "uploads", 1024)
	store.baseURL = srv.URL
	store.now = fixedNow

	url, err := store.Save(context.Background(), pngUpload())
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1700/uploads/abc.png", url)

	require.NoError(t, store.Delete(context.Background(), url))
	assert.Equal(t, "uploads/abc", destroyed)

	destroyed = ""
	require.NoError(t, store.Delete(context.Background(), "/uploads/default.png"))
	assert.Empty(t, destroyed)
}
