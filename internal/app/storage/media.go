package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"sims/internal/pkg/randx"
)

const (
	// MaxImageSizeMB is the maximum accepted image size in megabytes.
	MaxImageSizeMB = 5

	// MaxImageSize is the maximum accepted image size in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024

	// PresignedURLDuration is how long upload and download URLs stay valid.
	PresignedURLDuration = 15 * time.Minute

	// GalleryPrefix holds gallery photos.
	GalleryPrefix = "gallery"

	// CoverPrefix holds news cover images.
	CoverPrefix = "news"

	// GalleryLimit caps the public gallery listing.
	GalleryLimit = 200
)

// ImageTypes maps the accepted MIME types to the extension stored in object keys.
var ImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var (
	// ErrFileType is returned for MIME types outside ImageTypes.
	ErrFileType = errors.New("storage: unsupported image type")

	// ErrFileSize is returned for empty images and images above MaxImageSize.
	ErrFileSize = errors.New("storage: image size out of range")

	// ErrKey is returned for keys outside the expected prefix.
	ErrKey = errors.New("storage: invalid object key")
)

// Image is a stored image and the URL it can be fetched from.
type Image struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PresignedUpload tells the client where to PUT a file and where it will be served.
type PresignedUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Media applies the portal's key layout and image rules to a Bucket.
type Media struct {
	store      Bucket
	publicBase string
	now        func() time.Time
}

// NewMedia returns Media over store. When publicBase is set, URLs are formed from it;
// otherwise reads use presigned download URLs.
func NewMedia(store Bucket, publicBase string) *Media {
	return &Media{
		store:      store,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}
}

// CheckImage validates the MIME type and size of an image and returns its key extension.
func CheckImage(mimeType string, size int64) (string, error) {
	ext, ok := ImageTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	if !ok {
		return "", ErrFileType
	}
	if size <= 0 || size > MaxImageSize {
		return "", ErrFileSize
	}
	return ext, nil
}

// Gallery lists the gallery photos, newest first.
func (m *Media) Gallery(ctx context.Context) ([]Image, error) {
	objects, err := m.store.List(ctx, GalleryPrefix+"/", GalleryLimit)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(objects))
	for _, obj := range objects {
		if _, ok := imageExt(obj.Key); !ok {
			continue
		}
		url, err := m.url(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		images = append(images, Image{Key: obj.Key, URL: url, Size: obj.Size, UploadedAt: obj.LastModified})
	}
	return images, nil
}

// UploadGallery stores a gallery photo read from body.
func (m *Media) UploadGallery(ctx context.Context, mimeType string, size int64, body io.Reader) (*Image, error) {
	ext, err := CheckImage(mimeType, size)
	if err != nil {
		return nil, err
	}

	key := randx.ObjectKey(GalleryPrefix, ext)
	if err := m.store.Upload(ctx, key, strings.ToLower(mimeType), io.LimitReader(body, size)); err != nil {
		return nil, err
	}

	url, err := m.url(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Image{Key: key, URL: url, Size: size, UploadedAt: m.now()}, nil
}

// DeleteGallery removes a gallery photo.
func (m *Media) DeleteGallery(ctx context.Context, key string) error {
	if !validKey(key, GalleryPrefix) {
		return ErrKey
	}
	return m.store.Delete(ctx, key)
}

// PresignCover returns an upload URL for a news cover image.
func (m *Media) PresignCover(ctx context.Context, mimeType string, size int64) (*PresignedUpload, error) {
	ext, err := CheckImage(mimeType, size)
	if err != nil {
		return nil, err
	}

	key := randx.ObjectKey(CoverPrefix, ext)
	uploadURL, err := m.store.PresignUpload(ctx, key, strings.ToLower(mimeType), size, PresignedURLDuration)
	if err != nil {
		return nil, err
	}

	publicURL, err := m.url(ctx, key)
	if err != nil {
		return nil, err
	}

	return &PresignedUpload{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: publicURL,
		ExpiresAt: m.now().Add(PresignedURLDuration),
	}, nil
}

func (m *Media) url(ctx context.Context, key string) (string, error) {
	if m.publicBase != "" {
		return m.publicBase + "/" + key, nil
	}
	return m.store.PresignDownload(ctx, key, PresignedURLDuration)
}

func imageExt(key string) (string, bool) {
	ext := strings.ToLower(path.Ext(key))
	for _, known := range ImageTypes {
		if ext == known {
			return ext, true
		}
	}
	return "", false
}

// validKey accepts "<prefix>/<name>" with no further path segments.
func validKey(key, prefix string) bool {
	name, ok := strings.CutPrefix(key, prefix+"/")
	if !ok || name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return false
	}
	_, ok = imageExt(name)
	return ok
}
