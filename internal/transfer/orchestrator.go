package transfer

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SteelMorgan/log-transporter/internal/domain"
	"github.com/SteelMorgan/log-transporter/internal/remote"
	"github.com/SteelMorgan/log-transporter/internal/state"
)

// ProgressSink receives the per-target results of a completed cycle.
// Implementations must tolerate being called with failed results; sink
// errors never affect the cycle outcome.
type ProgressSink interface {
	WriteCycle(ctx context.Context, cycleID string, results []domain.TargetResult) error
}

// Orchestrator drives transfer cycles over all configured sources.
//
// Sources and targets are processed strictly sequentially: one source
// connection and one destination connection are open at a time. State is
// mutated in memory per successful target and flushed exactly once at
// the end of each cycle.
type Orchestrator struct {
	sources  []domain.SourceServer
	dest     domain.DestServer
	interval time.Duration
	dialer   remote.Dialer
	store    state.Store
	sink     ProgressSink
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	sources []domain.SourceServer,
	dest domain.DestServer,
	interval time.Duration,
	dialer remote.Dialer,
	store state.Store,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sources:  sources,
		dest:     dest,
		interval: interval,
		dialer:   dialer,
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("log-transporter"),
	}
}

// SetProgressSink attaches an optional per-cycle result sink
func (o *Orchestrator) SetProgressSink(sink ProgressSink) {
	o.sink = sink
}

// Run executes one cycle, or loops forever when continuous mode is
// requested and an interval is configured. In the loop, each cycle is
// guarded: a failed cycle is logged and the next one waits for the
// interval. Run returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, continuous bool) error {
	if !continuous || o.interval <= 0 {
		return o.Cycle(ctx)
	}

	o.logger.Info().
		Dur("interval", o.interval).
		Msg("Running in continuous mode")

	for {
		if err := o.Cycle(ctx); err != nil {
			o.logger.Error().Err(err).Msg("Transfer cycle failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.interval):
		}
	}
}

// Cycle performs one full pass over all sources and their targets,
// ending in a single state flush
func (o *Orchestrator) Cycle(ctx context.Context) error {
	cycleID := uuid.NewString()

	ctx, span := o.tracer.Start(ctx, "transfer.cycle",
		trace.WithAttributes(attribute.String("cycle_id", cycleID)))
	defer span.End()

	logger := o.logger.With().Str("cycle_id", cycleID).Logger()
	logger.Info().Msg("Starting transfer cycle")

	destSess, err := o.dialer.Dial(ctx, remote.Endpoint{
		Host:     o.dest.Host,
		Port:     o.dest.Port,
		Username: o.dest.Username,
		KeyPath:  o.dest.KeyPath,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to destination: %w", err)
	}
	defer destSess.Close()

	destFiles, err := destSess.Files()
	if err != nil {
		return fmt.Errorf("failed to open destination file transfer: %w", err)
	}

	if err := destFiles.MkdirAll(o.dest.BasePath); err != nil {
		return fmt.Errorf("failed to ensure destination base path: %w", err)
	}

	var results []domain.TargetResult
	for _, src := range o.sources {
		results = append(results, o.processSource(ctx, logger, src, destFiles)...)
	}

	// State is flushed once per cycle, not per target. A crash between a
	// successful append and this flush makes the next cycle re-read and
	// re-append the same range: duplication at the destination is the
	// accepted failure mode, data loss is not.
	if err := o.store.Flush(ctx); err != nil {
		logger.Error().
			Err(classify(KindStatePersist, err)).
			Msg("Failed to persist state, offsets for this cycle are best-effort")
	}

	if o.sink != nil {
		if err := o.sink.WriteCycle(ctx, cycleID, results); err != nil {
			logger.Warn().Err(err).Msg("Failed to mirror cycle results")
		}
	}

	var transferred, failed int
	var bytes uint64
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case !res.Skipped:
			transferred++
			bytes += res.Bytes
		}
	}

	logger.Info().
		Int("targets_transferred", transferred).
		Int("targets_failed", failed).
		Uint64("bytes", bytes).
		Msg("Transfer cycle complete")

	return nil
}

// processSource transfers every target of one source. A connection
// failure skips the whole source for this cycle: none of its state
// entries are touched.
func (o *Orchestrator) processSource(ctx context.Context, logger zerolog.Logger, src domain.SourceServer, destFiles remote.FileTransfer) []domain.TargetResult {
	logger = logger.With().Str("source", src.Name).Logger()
	logger.Info().Str("host", src.Host).Msg("Processing source")

	destDir := path.Join(o.dest.BasePath, src.Name)
	if err := destFiles.MkdirAll(destDir); err != nil {
		logger.Error().Err(err).Str("dest_dir", destDir).Msg("Failed to create destination directory, skipping source")
		return nil
	}

	srcSess, err := o.dialer.Dial(ctx, remote.Endpoint{
		Host:     src.Host,
		Port:     src.Port,
		Username: src.Username,
		KeyPath:  src.KeyPath,
	})
	if err != nil {
		logger.Error().
			Err(classify(KindSourceUnreachable, err)).
			Msg("Failed to connect to source, skipping")
		return nil
	}
	defer srcSess.Close()

	reader := NewReader(srcSess.Runner(), logger)
	appender := NewAppender(destFiles, logger)

	results := make([]domain.TargetResult, 0, len(src.LogPaths))
	for _, logPath := range src.LogPaths {
		res := o.transferTarget(ctx, logger, reader, appender, src.Name, logPath, destDir)
		if res.Err != nil {
			logger.Error().
				Err(res.Err).
				Str("path", logPath).
				Msg("Error transferring target")
		}
		results = append(results, res)
	}

	return results
}

// transferTarget moves the new bytes of a single log file:
// probe, rotation check, half-open range read, append, state update.
func (o *Orchestrator) transferTarget(ctx context.Context, logger zerolog.Logger, reader *Reader, appender *Appender, sourceName, logPath, destDir string) domain.TargetResult {
	ctx, span := o.tracer.Start(ctx, "transfer.target",
		trace.WithAttributes(
			attribute.String("source", sourceName),
			attribute.String("path", logPath),
		))
	defer span.End()

	res := domain.TargetResult{SourceName: sourceName, Path: logPath}

	stat, err := reader.Probe(ctx, logPath)
	if err != nil {
		res.Err = classify(KindProbeFailed, err)
		return res
	}
	if stat.Size == 0 {
		logger.Warn().Str("path", logPath).Msg("Log file not found or empty")
		res.Skipped = true
		return res
	}

	savedOffset, savedIdentity := o.store.Get(sourceName, logPath)
	start, rotated := ResolveStart(savedOffset, savedIdentity, stat)
	res.Rotated = rotated
	if rotated {
		logger.Info().
			Str("path", logPath).
			Uint64("saved_offset", savedOffset).
			Uint64("saved_identity", savedIdentity).
			Uint64("current_identity", stat.Identity).
			Msg("Log rotation detected, resetting offset")
	}

	if start >= stat.Size {
		logger.Debug().
			Str("path", logPath).
			Uint64("offset", start).
			Uint64("size", stat.Size).
			Msg("No new data")
		res.Skipped = true
		res.Offset = savedOffset
		res.FileIdentity = savedIdentity
		return res
	}

	data, err := reader.ReadFrom(ctx, logPath, start, stat.Size)
	if err != nil {
		res.Err = classify(KindReadFailed, err)
		return res
	}
	if len(data) == 0 {
		res.Skipped = true
		res.Offset = savedOffset
		res.FileIdentity = savedIdentity
		return res
	}

	destPath := path.Join(destDir, path.Base(logPath))
	res.DestPath = destPath

	logger.Info().
		Str("path", logPath).
		Str("dest", destPath).
		Int("bytes", len(data)).
		Uint64("offset", start).
		Msg("Transferring new data")

	if err := appender.Append(destPath, data); err != nil {
		res.Err = classify(KindWriteFailed, err)
		return res
	}

	// The new offset is what was actually appended, never more than the
	// probed size even if the file grew during the read
	newOffset := start + uint64(len(data))
	o.store.Update(sourceName, logPath, newOffset, stat.Identity)

	res.Bytes = uint64(len(data))
	res.Offset = newOffset
	res.FileIdentity = stat.Identity
	span.SetAttributes(attribute.Int64("bytes", int64(len(data))))

	return res
}
