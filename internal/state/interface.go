package state

import (
	"context"

	"github.com/SteelMorgan/log-transporter/internal/domain"
)

// Store tracks transfer positions per (source, log path) pair so that a
// cycle only ships bytes not already written to the destination.
//
// The whole table is loaded once at process start and flushed once at the
// end of each cycle; in between, mutations are in-memory only. The store
// is used from a single goroutine.
type Store interface {
	// Load reads the persisted table into memory. A missing or corrupt
	// database is non-fatal: the store starts empty.
	Load(ctx context.Context) error

	// Get returns the saved offset and file identity for a target,
	// defaulting to (0, 0) when no record exists.
	Get(sourceName, path string) (offset, identity uint64)

	// Update upserts the in-memory record for a target and stamps the
	// update time. Nothing is persisted until Flush.
	Update(sourceName, path string, offset, identity uint64)

	// Flush rewrites the full table to stable storage.
	Flush(ctx context.Context) error

	// List returns all persisted records, for operational inspection.
	List(ctx context.Context) ([]domain.TransferRecord, error)

	// Close closes the underlying storage.
	Close() error
}
