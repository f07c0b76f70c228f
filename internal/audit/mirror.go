// Package audit mirrors per-cycle transfer progress to ClickHouse for
// monitoring. The mirror is advisory: the state store remains the only
// source of truth for offsets, and mirror failures never affect a cycle.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SteelMorgan/log-transporter/internal/clickhouse"
	"github.com/SteelMorgan/log-transporter/internal/domain"
)

const progressTable = "log_transfer_progress"

const createTableDDL = `
CREATE TABLE IF NOT EXISTS ` + progressTable + ` (
	ts            DateTime64(3, 'UTC'),
	cycle_id      String,
	source        LowCardinality(String),
	path          String,
	dest_path     String,
	bytes         UInt64,
	offset        UInt64,
	file_identity UInt64,
	rotated       UInt8,
	skipped       UInt8,
	error         String
) ENGINE = MergeTree()
ORDER BY (ts, source, path)
TTL toDateTime(ts) + INTERVAL 90 DAY
`

// Mirror writes transfer results to the audit table
type Mirror struct {
	client *clickhouse.Client
	logger zerolog.Logger
}

// NewMirror creates a mirror and ensures the audit table exists
func NewMirror(ctx context.Context, client *clickhouse.Client, logger zerolog.Logger) (*Mirror, error) {
	if err := client.Exec(ctx, createTableDDL); err != nil {
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}

	return &Mirror{
		client: client,
		logger: logger,
	}, nil
}

// WriteCycle inserts one row per target result in a single batch
func (m *Mirror) WriteCycle(ctx context.Context, cycleID string, results []domain.TargetResult) error {
	if len(results) == 0 {
		return nil
	}

	batch, err := m.client.Conn().PrepareBatch(ctx, "INSERT INTO "+progressTable)
	if err != nil {
		return fmt.Errorf("failed to prepare audit batch: %w", err)
	}

	now := time.Now().UTC()
	for _, res := range results {
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}

		if err := batch.Append(
			now,
			cycleID,
			res.SourceName,
			res.Path,
			res.DestPath,
			res.Bytes,
			res.Offset,
			res.FileIdentity,
			boolToUInt8(res.Rotated),
			boolToUInt8(res.Skipped),
			errStr,
		); err != nil {
			return fmt.Errorf("failed to append audit row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send audit batch: %w", err)
	}

	m.logger.Debug().
		Str("cycle_id", cycleID).
		Int("rows", len(results)).
		Msg("Cycle results mirrored")

	return nil
}

// Close closes the underlying connection
func (m *Mirror) Close() error {
	return m.client.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
