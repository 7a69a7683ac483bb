package filestore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/versafe/versafe-core/internal/idgen"
)

// Azure implements Store against a single Azure Blob Storage container,
// the object-store half of spec.md §6's "local file system or an object
// store" storage_ref duality.
type Azure struct {
	container *azblob.ContainerClient
}

// NewAzure builds an Azure store from a connection string and container
// name (both come from SIGNING_KEY_STORE-adjacent deployment secrets, not
// from the enumerated env vars in spec.md §6 — object-store mode is an
// operator opt-in on top of UPLOAD_DIR).
func NewAzure(connectionString, containerName string) (*Azure, error) {
	client, err := azblob.NewContainerClientFromConnectionString(connectionString, containerName, nil)
	if err != nil {
		return nil, fmt.Errorf("filestore: azure container client: %w", err)
	}
	return &Azure{container: client}, nil
}

func (a *Azure) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	ref := idgen.New().String()
	blob := a.container.NewBlockBlobClient(ref)

	buf, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("filestore: buffer upload body: %w", err)
	}
	if _, err := blob.UploadBuffer(ctx, buf, azblob.UploadOption{}); err != nil {
		return "", 0, fmt.Errorf("filestore: azure upload: %w", err)
	}
	return ref, int64(len(buf)), nil
}

func (a *Azure) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	blob := a.container.NewBlockBlobClient(ref)
	resp, err := blob.Download(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("filestore: azure download %s: %w", ref, err)
	}
	return resp.Body(nil), nil
}

func (a *Azure) Delete(ctx context.Context, ref string) error {
	blob := a.container.NewBlockBlobClient(ref)
	if _, err := blob.Delete(ctx, nil); err != nil {
		return fmt.Errorf("filestore: azure delete %s: %w", ref, err)
	}
	return nil
}
