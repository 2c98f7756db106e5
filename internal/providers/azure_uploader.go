package providers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobConfig holds Azure Blob Storage connection parameters.
type AzureBlobConfig struct {
	ConnectionString string `yaml:"connectionString"`
	ContainerName    string `yaml:"containerName"`
}

type azureUploader struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// NewAzureUploader validates the connection string and creates the client.
// The container is created on first use.
func NewAzureUploader(cfg AzureBlobConfig, logger *slog.Logger) (Uploader, error) {
	if strings.TrimSpace(cfg.ConnectionString) == "" {
		return nil, fmt.Errorf("azure connection string required")
	}
	if cfg.ContainerName == "" {
		cfg.ContainerName = "images"
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &azureUploader{client: client, container: cfg.ContainerName, logger: logger.With("system", "storage")}, nil
}

// EnsureContainer creates the container if it does not exist yet.
func (a *azureUploader) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", a.container, err)
	}
	a.logger.Info("storage container ready", "container", a.container)
	return nil
}

func (a *azureUploader) UploadBytes(ctx context.Context, objectPath string, contentType string, data []byte) (string, error) {
	if !validObjectPath(objectPath) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	_, err := a.client.UploadStream(ctx, a.container, objectPath, bytes.NewReader(data), opts)
	if err != nil && bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if cerr := a.EnsureContainer(ctx); cerr != nil {
			return "", cerr
		}
		_, err = a.client.UploadStream(ctx, a.container, objectPath, bytes.NewReader(data), opts)
	}
	if err != nil {
		return "", fmt.Errorf("upload blob %s: %w", objectPath, err)
	}

	blobURL := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(objectPath).URL()
	return blobURL, nil
}
