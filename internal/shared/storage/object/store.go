package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	// Save stores an uploaded file under the user's namespace with a
	// random prefix and returns the generated storage key.
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// SaveWithKey stores data at a caller-chosen key, used for derived
	// artifacts such as rendered page images.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes a stored object. Deleting a missing key is not an error.
	Delete(ctx context.Context, storageKey string) error
}
