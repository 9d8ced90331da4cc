package object

import (
	"context"
	"io"
)

// ExportsPrefix roots compliance export bundles. Stores treat everything
// under it keyed by the user hash as user data and purge it with the
// uploads on account deletion.
const ExportsPrefix = "exports"

// ObjectStore defines the contract for saving and retrieving binary objects.
// It backs uploaded article documents and compliance export bundles.
type ObjectStore interface {
	// Save stores an uploaded document under the owner's namespace and
	// returns the storage key, byte size, and sniffed content type.
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// SaveWithKey writes to an exact storage key chosen by the caller.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// DeleteUserObjects removes everything stored for the user, uploads
	// and export bundles both. Account deletion calls it.
	DeleteUserObjects(ctx context.Context, userID string) error
}
