package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Kind selects the upload directory of an image.
type Kind string

const (
	KindProduct  Kind = "product"
	KindCategory Kind = "categorie"
)

const defaultExt = ".png"

var ErrNotFound = errors.New("image not found")

// RemoveImageVersion strips the query string and fragment the CDN uses as
// cache busters, so two versions of one image map to the same name.
func RemoveImageVersion(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// GenerateImageName derives a stable local filename from a remote image URL:
// the parent directory and the last path segment joined by "-".
func GenerateImageName(rawURL string) string {
	clean := RemoveImageVersion(strings.TrimSpace(rawURL))
	if clean == "" {
		return ""
	}
	p := clean
	if u, err := url.Parse(clean); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}

	segments := strings.Split(p, "/")
	name := segments[len(segments)-1]
	if len(segments) > 1 {
		name = segments[len(segments)-2] + "-" + name
	}
	name = sanitize(name)
	if name == "" {
		return ""
	}
	if path.Ext(name) == "" {
		name += defaultExt
	}
	return name
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}

// Store keeps downloaded images under <root>/uploads/<kind>/<name>, optionally
// mirrored to an object storage bucket.
type Store struct {
	root         string
	defaultImage string
	httpClient   *http.Client
	minio        *minio.Client
	bucket       string
	log          *zap.Logger
}

// NewStore 创建图片存储
func NewStore(root, defaultImage string, timeout time.Duration, log *zap.Logger) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		root:         root,
		defaultImage: defaultImage,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log.Named("imagestore"),
	}
}

// WithMirror enables the MinIO mirror. A nil client leaves it disabled.
func (s *Store) WithMirror(client *minio.Client, bucket string) *Store {
	s.minio = client
	s.bucket = bucket
	return s
}

func (s *Store) dir(kind Kind) string {
	return filepath.Join(s.root, "uploads", string(kind))
}

// Path returns the local path of an image. Directory components of name are dropped.
func (s *Store) Path(kind Kind, name string) string {
	return filepath.Join(s.dir(kind), filepath.Base(filepath.Clean("/"+name)))
}

// Exists reports whether an image with that name is already on disk. The name is
// the only de-dup signal; contents are never compared.
func (s *Store) Exists(kind Kind, name string) bool {
	if name == "" {
		return false
	}
	info, err := os.Stat(s.Path(kind, name))
	return err == nil && !info.IsDir()
}

// Download fetches rawURL into kind/name, replacing any existing file.
func (s *Store) Download(ctx context.Context, rawURL string, kind Kind, name string) error {
	if rawURL == "" || name == "" {
		return fmt.Errorf("download image: empty url or name")
	}
	if err := os.MkdirAll(s.dir(kind), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	dst := s.Path(kind, name)
	tmp, err := os.CreateTemp(s.dir(kind), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}

	s.log.Debug("image downloaded", zap.String("kind", string(kind)), zap.String("name", name))
	s.mirror(ctx, kind, name, dst)
	return nil
}

func objectName(kind Kind, name string) string {
	return path.Join("uploads", string(kind), name)
}

func (s *Store) mirror(ctx context.Context, kind Kind, name, src string) {
	if s.minio == nil {
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	_, err := s.minio.FPutObject(ctx, s.bucket, objectName(kind, name), src, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.log.Warn("mirror upload failed", zap.String("name", name), zap.Error(err))
	}
}

// Resolve returns the file to serve for kind/name: the local file, else a copy
// restored from the mirror, else the default image.
func (s *Store) Resolve(ctx context.Context, kind Kind, name string) (string, error) {
	if s.Exists(kind, name) {
		return s.Path(kind, name), nil
	}
	if s.minio != nil && name != "" {
		dst := s.Path(kind, name)
		if err := os.MkdirAll(s.dir(kind), 0o755); err == nil {
			err = s.minio.FGetObject(ctx, s.bucket, objectName(kind, name), dst, minio.GetObjectOptions{})
			if err == nil {
				return dst, nil
			}
			s.log.Debug("mirror restore failed", zap.String("name", name), zap.Error(err))
		}
	}
	if s.defaultImage != "" {
		fallback := filepath.Join(s.root, s.defaultImage)
		if _, err := os.Stat(fallback); err == nil {
			return fallback, nil
		}
	}
	return "", ErrNotFound
}
