package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yeremiapane/library-seat-app/utils"
)

const maxUploadSize = int64(5 * 1024 * 1024)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Storage persists public objects and returns their URL.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// LocalStorage writes objects below Dir and serves them from BaseURL.
type LocalStorage struct {
	Dir     string
	BaseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", err
	}
	return s.BaseURL + "/uploads/" + key, nil
}

func (s *LocalStorage) Delete(_ context.Context, url string) error {
	prefix := s.BaseURL + "/uploads/"
	if !strings.HasPrefix(url, prefix) {
		return fmt.Errorf("url %q is not managed by this storage", url)
	}
	key := path.Clean(strings.TrimPrefix(url, prefix))
	if strings.HasPrefix(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// OSSStorage stores objects in an Aliyun OSS bucket.
type OSSStorage struct {
	bucket     *oss.Bucket
	publicBase string
}

func NewOSSStorage(endpoint, accessKey, secretKey, bucketName, publicDomain string) (*OSSStorage, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, errors.New("ALI_OSS_ENDPOINT, ALI_OSS_ACCESS_KEY, ALI_OSS_SECRET_KEY and ALI_OSS_BUCKET are required")
	}
	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}

	base := strings.TrimRight(publicDomain, "/")
	if base == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
		base = fmt.Sprintf("https://%s.%s", bucketName, host)
	} else if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	return &OSSStorage{bucket: bucket, publicBase: base}, nil
}

func (s *OSSStorage) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if err := s.bucket.PutObject(key, body, oss.WithContext(ctx), oss.ContentType(contentType)); err != nil {
		return "", err
	}
	return s.publicBase + "/" + key, nil
}

func (s *OSSStorage) Delete(ctx context.Context, url string) error {
	prefix := s.publicBase + "/"
	if !strings.HasPrefix(url, prefix) {
		return fmt.Errorf("url %q is not managed by this bucket", url)
	}
	return s.bucket.DeleteObject(strings.TrimPrefix(url, prefix), oss.WithContext(ctx))
}

// ImageUploader converts uploads to WebP and stores them.
type ImageUploader struct {
	Store    Storage
	MaxWidth int
	Quality  float32
}

func NewImageUploader(store Storage) *ImageUploader {
	return &ImageUploader{Store: store, MaxWidth: 1600, Quality: 80}
}

// Encode decodes jpeg/png/gif/webp input, bounds its width and re-encodes as WebP.
func (u *ImageUploader) Encode(data []byte) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if ct := http.DetectContentType(data); strings.Contains(ct, "webp") {
		img, err = webp.Decode(bytes.NewReader(data))
	} else {
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	if u.MaxWidth > 0 && img.Bounds().Dx() > u.MaxWidth {
		img = imaging.Resize(img, u.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: u.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (u *ImageUploader) uploadOne(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxUploadSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, fh.Filename, maxUploadSize)
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return "", err
	}
	encoded, err := u.Encode(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", fh.Filename, err)
	}

	key := path.Join(prefix, uuid.NewString()+".webp")
	return u.Store.Put(ctx, key, bytes.NewReader(encoded), "image/webp")
}

// UploadAll uploads files in parallel. When any upload fails the ones that
// already succeeded are deleted and the first error is returned.
func (u *ImageUploader) UploadAll(ctx context.Context, prefix string, files []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			url, err := u.uploadOne(gctx, prefix, fh)
			if err != nil {
				return err
			}
			mu.Lock()
			urls[i] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var uploaded []string
		for _, url := range urls {
			if url != "" {
				uploaded = append(uploaded, url)
			}
		}
		u.DeleteAll(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}
	return urls, nil
}

// DeleteAll removes objects best-effort; failures are logged.
func (u *ImageUploader) DeleteAll(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := u.Store.Delete(ctx, url); err != nil {
			utils.ErrorLogger.Printf("Failed to delete image %s: %v", url, err)
		}
	}
}
