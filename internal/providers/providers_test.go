package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalUploaderUploadBytes(t *testing.T) {
	tmpDir := t.TempDir()

	uploader := NewLocalUploader(tmpDir)
	ctx := context.Background()

	data := []byte("test content")
	url, err := uploader.UploadBytes(ctx, "test/file.txt", "text/plain", data)

	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("Expected file:// URL, got %q", url)
	}

	// Verify file was created
	filePath := filepath.Join(tmpDir, "test/file.txt")
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read uploaded file: %v", err)
	}

	if string(content) != "test content" {
		t.Errorf("Expected content 'test content', got %s", string(content))
	}
}

func TestLocalUploaderCreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	uploader := NewLocalUploader(tmpDir)
	ctx := context.Background()

	data := []byte("nested file")
	_, err := uploader.UploadBytes(ctx, "deep/nested/path/file.txt", "text/plain", data)

	if err != nil {
		t.Fatalf("UploadBytes failed: %v", err)
	}

	// Verify nested directories were created
	filePath := filepath.Join(tmpDir, "deep/nested/path/file.txt")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("Expected file to exist in nested directory")
	}
}

func TestLocalUploaderRejectsTraversal(t *testing.T) {
	uploader := NewLocalUploader(t.TempDir())
	if _, err := uploader.UploadBytes(context.Background(), "../outside.png", "image/png", []byte("x")); err == nil {
		t.Fatal("Expected error for path traversal")
	}
}

func TestValidObjectPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"uploads/abc-dog.png", true},
		{"uploads/abc-holiday..photo.png", true},
		{"uploads/..hidden", true},
		{"", false},
		{"/etc/passwd", false},
		{"../outside.png", false},
		{"uploads/../../outside.png", false},
		{`uploads\..\outside.png`, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := validObjectPath(tt.path); got != tt.want {
				t.Errorf("validObjectPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLocalUploaderAcceptsDotsInFileName(t *testing.T) {
	tmpDir := t.TempDir()
	uploader := NewLocalUploader(tmpDir)

	key := ImageObjectPath("holiday..photo.png")
	url, err := uploader.UploadBytes(context.Background(), key, "image/png", []byte("img"))
	if err != nil {
		t.Fatalf("UploadBytes(%q) failed: %v", key, err)
	}
	if !strings.HasSuffix(url, "holiday..photo.png") {
		t.Errorf("unexpected locator %q", url)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, key)); err != nil {
		t.Fatalf("Expected stored file: %v", err)
	}
}

func TestLocalUploaderReportsCreateFailure(t *testing.T) {
	tmpDir := t.TempDir()
	// A regular file where the uploads directory should go.
	if err := os.WriteFile(filepath.Join(tmpDir, "uploads"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	uploader := NewLocalUploader(tmpDir)
	if url, err := uploader.UploadBytes(context.Background(), "uploads/a.png", "image/png", []byte("x")); err == nil {
		t.Fatalf("Expected error, got locator %q", url)
	}
}

type failingCloser struct{ bytes.Buffer }

func (f *failingCloser) Close() error { return errors.New("disk full") }

func TestLocalUploaderReportsCloseFailure(t *testing.T) {
	u := NewLocalUploader(t.TempDir()).(*localUploader)
	u.create = func(string) (io.WriteCloser, error) { return &failingCloser{}, nil }

	url, err := u.UploadBytes(context.Background(), "uploads/a.png", "image/png", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("UploadBytes() = %q, %v; want close error", url, err)
	}
	if url != "" {
		t.Errorf("locator returned on failed close: %q", url)
	}
}

func TestLocalUploaderCancelledContext(t *testing.T) {
	uploader := NewLocalUploader(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := uploader.UploadBytes(ctx, "uploads/a.png", "image/png", []byte("x")); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestImageObjectPath(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		suffix string
	}{
		{"plain", "dog.png", "-dog.png"},
		{"nested", "photos/2024/dog.png", "-dog.png"},
		{"windows", `C:\photos\dog.png`, "-dog.png"},
		{"empty", "", "-image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageObjectPath(tt.in)
			if !strings.HasPrefix(got, "uploads/") || !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("ImageObjectPath(%q) = %q", tt.in, got)
			}
		})
	}

	if ImageObjectPath("a.png") == ImageObjectPath("a.png") {
		t.Error("Expected unique object paths per call")
	}
}

func TestNewAzureUploaderRequiresConnectionString(t *testing.T) {
	if _, err := NewAzureUploader(AzureBlobConfig{}, nil); err == nil {
		t.Fatal("Expected error for empty connection string")
	}
}

func TestNewAzureUploaderFromConnectionString(t *testing.T) {
	cs := "DefaultEndpointsProtocol=https;AccountName=devaccount;AccountKey=ZGV2a2V5;EndpointSuffix=core.windows.net"
	up, err := NewAzureUploader(AzureBlobConfig{ConnectionString: cs}, nil)
	if err != nil {
		t.Fatalf("NewAzureUploader failed: %v", err)
	}
	if up.(*azureUploader).container != "images" {
		t.Errorf("Expected default container 'images', got %q", up.(*azureUploader).container)
	}
}

func TestNewRedisProvider(t *testing.T) {
	client := NewRedisProvider(RedisOptions{Addr: "cache:6380", Password: "password", DB: 2})
	defer client.Close()

	opts := client.Options()
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "password" {
		t.Errorf("options = %+v", opts)
	}
	if opts.PoolSize != 10 || opts.DialTimeout != 5*time.Second || opts.ReadTimeout != 3*time.Second {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestNewRedisProviderDefaultAddr(t *testing.T) {
	client := NewRedisProvider(RedisOptions{PoolSize: 4, OpTimeout: time.Second})
	defer client.Close()

	opts := client.Options()
	if opts.Addr != "localhost:6379" || opts.PoolSize != 4 || opts.WriteTimeout != time.Second {
		t.Errorf("options = %+v", opts)
	}
}
