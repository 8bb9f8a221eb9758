package credentials

import "context"

// Store reads the upstream API key from persistent storage.
type Store interface {
	// Read returns the stored API key. Returns an error if it is missing or empty.
	Read(ctx context.Context) (string, error)
}
