package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sims/internal/pkg/logx"
)

type fakeStore struct {
	objects  []Object
	uploaded map[string]string
	deleted  []string
	presigns int
	listErr  error
}

func (f *fakeStore) PresignUpload(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	return "https://bucket.test/upload/" + key, nil
}

func (f *fakeStore) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	f.presigns++
	return "https://bucket.test/signed/" + key, nil
}

func (f *fakeStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.uploaded == nil {
		f.uploaded = map[string]string{}
	}
	f.uploaded[key] = string(data)
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string, _ int) ([]Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []Object{}
	for _, o := range f.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestCheckImage(t *testing.T) {
	ext, err := CheckImage("Image/PNG", 1024)
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)

	_, err = CheckImage("image/gif", 1024)
	assert.ErrorIs(t, err, ErrFileType)

	_, err = CheckImage("image/jpeg", 0)
	assert.ErrorIs(t, err, ErrFileSize)

	_, err = CheckImage("image/jpeg", MaxImageSize+1)
	assert.ErrorIs(t, err, ErrFileSize)
}

func TestGalleryUsesPublicBase(t *testing.T) {
	store := &fakeStore{objects: []Object{
		{Key: "gallery/a.jpg", Size: 10},
		{Key: "gallery/notes.txt", Size: 3},
		{Key: "news/cover.png", Size: 4},
	}}
	m := NewMedia(store, "https://cdn.sims.test/")

	images, err := m.Gallery(context.Background())
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, "https://cdn.sims.test/gallery/a.jpg", images[0].URL)
	assert.Zero(t, store.presigns)
}

func TestGalleryPresignsWithoutPublicBase(t *testing.T) {
	store := &fakeStore{objects: []Object{{Key: "gallery/a.webp"}, {Key: "gallery/b.jpg"}}}
	m := NewMedia(store, "")

	images, err := m.Gallery(context.Background())
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, "https://bucket.test/signed/gallery/a.webp", images[0].URL)
	assert.Equal(t, 2, store.presigns)
}

func TestGalleryListError(t *testing.T) {
	m := NewMedia(&fakeStore{listErr: errors.New("bucket gone")}, "")

	_, err := m.Gallery(context.Background())
	assert.Error(t, err)
}

func TestUploadGallery(t *testing.T) {
	store := &fakeStore{}
	m := NewMedia(store, "https://cdn.sims.test")

	img, err := m.UploadGallery(context.Background(), "image/jpeg", 5, strings.NewReader("jpegdata-trailing"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(img.Key, "gallery/"))
	assert.True(t, strings.HasSuffix(img.Key, ".jpg"))
	assert.Equal(t, "https://cdn.sims.test/"+img.Key, img.URL)
	assert.Equal(t, "jpegd", store.uploaded[img.Key])

	_, err = m.UploadGallery(context.Background(), "application/pdf", 5, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileType)
}

func TestDeleteGalleryChecksKey(t *testing.T) {
	store := &fakeStore{}
	m := NewMedia(store, "")
	ctx := context.Background()

	require.NoError(t, m.DeleteGallery(ctx, "gallery/1f0c.jpg"))
	assert.Equal(t, []string{"gallery/1f0c.jpg"}, store.deleted)

	for _, key := range []string{"news/1f0c.jpg", "gallery/", "gallery/a/b.jpg", "gallery/..jpg", "gallery/a.txt"} {
		assert.ErrorIs(t, m.DeleteGallery(ctx, key), ErrKey, key)
	}
}

func TestPresignCover(t *testing.T) {
	store := &fakeStore{}
	m := NewMedia(store, "")
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	up, err := m.PresignCover(context.Background(), "image/webp", 2048)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.Key, "news/"))
	assert.True(t, strings.HasSuffix(up.Key, ".webp"))
	assert.Equal(t, "https://bucket.test/upload/"+up.Key, up.UploadURL)
	assert.Equal(t, "https://bucket.test/signed/"+up.Key, up.PublicURL)
	assert.Equal(t, now.Add(PresignedURLDuration), up.ExpiresAt)
}

func TestS3BucketPresignsOffline(t *testing.T) {
	logx.InitTestLogger(io.Discard)

	svc, err := OpenBucket(BucketConfig{
		Name:            "sims-media",
		Endpoint:        "https://storage.sims.test",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	raw, err := svc.PresignDownload(context.Background(), "gallery/a.jpg", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.sims.test", u.Host)
	assert.Equal(t, "/sims-media/gallery/a.jpg", u.Path)
	assert.Equal(t, "60", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	raw, err = svc.PresignUpload(context.Background(), "news/b.png", "image/png", 42, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, raw, "/sims-media/news/b.png")
}
