// Package storage abstracts the durable backend that holds flattened document
// content, keyed by (owner, filename). The synchronization core reads a whole
// document on load and overwrites it on save; there are no partial updates.
package storage

import "context"

// DocumentStore is the durable document backend.
type DocumentStore interface {
	// Read returns the full document content. Missing documents yield
	// common.ErrorNotFound.
	Read(ctx context.Context, owner, filename string) (string, error)

	// Write overwrites the document, creating it if necessary.
	Write(ctx context.Context, owner, filename, content string) error

	// Create creates an empty document artifact. Existing documents yield
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, owner, filename string) error

	// Exists reports whether the document is present.
	Exists(ctx context.Context, owner, filename string) (bool, error)

	// ListFiles returns the filenames stored under the owner, preparing the
	// owner's area when it does not exist yet.
	ListFiles(ctx context.Context, owner string) ([]string, error)
}
