package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Uploader interface {
	UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error)
}

// ImageObjectPath builds the storage key for an uploaded image:
// uploads/<uuid>-<base name>.
func ImageObjectPath(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return fmt.Sprintf("uploads/%s-%s", uuid.NewString(), base)
}

// validObjectPath rejects empty keys, absolute keys and keys with a ".."
// segment. Dots inside a file name are allowed.
func validObjectPath(objectPath string) bool {
	p := strings.ReplaceAll(objectPath, `\`, "/")
	if strings.TrimSpace(p) == "" || strings.HasPrefix(p, "/") {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

type localUploader struct {
	rootDir string
	create  func(name string) (io.WriteCloser, error)
}

func NewLocalUploader(rootDir string) Uploader {
	return &localUploader{
		rootDir: rootDir,
		create:  func(name string) (io.WriteCloser, error) { return os.Create(name) },
	}
}

func (u *localUploader) UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	if !validObjectPath(objectPath) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(u.rootDir, objectPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := u.create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", objectPath, err)
	}
	abs, _ := filepath.Abs(dst)
	return "file://" + abs, nil
}
