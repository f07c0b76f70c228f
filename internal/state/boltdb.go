package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/SteelMorgan/log-transporter/internal/domain"
)

const (
	bucketName = "transfers"
)

// BoltDBStore implements Store using BoltDB
type BoltDBStore struct {
	db      *bbolt.DB
	logger  zerolog.Logger
	records map[string]domain.TransferRecord
}

// Key derives the composite record key for a (source, path) pair.
//
// The key is the hex SHA-256 of "sourceName\x00path" and is part of the
// persisted state format. The NUL separator guarantees that distinct
// pairs never produce the same pre-image, so aliasing would require a
// SHA-256 collision.
func Key(sourceName, path string) string {
	h := sha256.New()
	h.Write([]byte(sourceName))
	h.Write([]byte{0})
	h.Write([]byte(path))
	return hex.EncodeToString(h.Sum(nil))
}

// NewBoltDBStore opens (or creates) the state database, creating parent
// directories as needed. An unopenable database file is treated as
// corrupt state: it is discarded and recreated empty rather than
// crashing the process. A lock timeout is the exception: the file is
// in use by another process, so the open fails without touching it.
func NewBoltDBStore(dbPath string, logger zerolog.Logger) (*BoltDBStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A lock timeout means another process holds a healthy database;
		// only an unreadable file may be discarded
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("state database is locked by another process: %w", err)
		}

		logger.Warn().
			Err(err).
			Str("db_path", dbPath).
			Msg("Could not open state database, recreating empty")

		if rmErr := os.Remove(dbPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("failed to remove unreadable state database: %w", rmErr)
		}
		db, err = bbolt.Open(dbPath, 0600, &bbolt.Options{
			Timeout: 1 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open state database: %w", err)
		}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Info().
		Str("db_path", dbPath).
		Msg("State store initialized")

	return &BoltDBStore{
		db:      db,
		logger:  logger,
		records: make(map[string]domain.TransferRecord),
	}, nil
}

// Load reads all persisted records into memory. Records that fail to
// decode are logged and skipped; the rest of the table is kept.
func (s *BoltDBStore) Load(ctx context.Context) error {
	records := make(map[string]domain.TransferRecord)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var rec domain.TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn().
					Err(err).
					Str("key", string(k)).
					Msg("Skipping corrupt state record")
				return nil
			}
			records[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	s.records = records

	s.logger.Info().
		Int("records", len(records)).
		Msg("State loaded")

	return nil
}

// Get returns the saved offset and file identity for a target
func (s *BoltDBStore) Get(sourceName, path string) (uint64, uint64) {
	rec, ok := s.records[Key(sourceName, path)]
	if !ok {
		return 0, 0
	}
	return rec.Offset, rec.FileIdentity
}

// Update upserts the in-memory record for a target
func (s *BoltDBStore) Update(sourceName, path string, offset, identity uint64) {
	s.records[Key(sourceName, path)] = domain.TransferRecord{
		SourceName:   sourceName,
		Path:         path,
		Offset:       offset,
		FileIdentity: identity,
		UpdatedAt:    time.Now().UTC(),
	}

	s.logger.Debug().
		Str("source", sourceName).
		Str("path", path).
		Uint64("offset", offset).
		Uint64("identity", identity).
		Msg("Transfer record updated")
}

// Flush rewrites the full table in a single transaction. The bucket is
// recreated so that the persisted table always mirrors memory exactly.
func (s *BoltDBStore) Flush(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketName)) != nil {
			if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket([]byte(bucketName))
		if err != nil {
			return err
		}

		for key, rec := range s.records {
			val, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode record for %s:%s: %w", rec.SourceName, rec.Path, err)
			}
			if err := b.Put([]byte(key), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to flush state: %w", err)
	}

	s.logger.Debug().
		Int("records", len(s.records)).
		Msg("State flushed")

	return nil
}

// List returns all persisted records sorted by source then path
func (s *BoltDBStore) List(ctx context.Context) ([]domain.TransferRecord, error) {
	var result []domain.TransferRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var rec domain.TransferRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			result = append(result, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list state: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SourceName != result[j].SourceName {
			return result[i].SourceName < result[j].SourceName
		}
		return result[i].Path < result[j].Path
	})

	return result, nil
}

// Close closes the state database
func (s *BoltDBStore) Close() error {
	s.logger.Info().Msg("Closing state store")
	return s.db.Close()
}
