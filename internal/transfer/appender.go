package transfer

import (
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/SteelMorgan/log-transporter/internal/remote"
)

// Appender durably appends payloads to destination files through the
// destination host's file capability
type Appender struct {
	files  remote.FileTransfer
	logger zerolog.Logger
}

// NewAppender creates an appender over the destination session
func NewAppender(files remote.FileTransfer, logger zerolog.Logger) *Appender {
	return &Appender{
		files:  files,
		logger: logger,
	}
}

// Append writes payload at the logical end of destPath, creating the
// file and its parent directories if absent.
//
// A non-empty destination is opened read/write and the payload written
// after a seek to its end. If that path fails unexpectedly, one fallback
// truncate-create write of the same payload is attempted. The fallback
// is lossy when the destination was non-empty and only transiently
// broken: prior content is discarded. It exists to self-heal a fresh or
// believed-empty destination.
func (a *Appender) Append(destPath string, payload []byte) error {
	if err := a.files.MkdirAll(path.Dir(destPath)); err != nil {
		return fmt.Errorf("failed to ensure destination directory: %w", err)
	}

	size, err := a.files.StatSize(destPath)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("dest", destPath).
			Msg("Could not stat destination, treating as empty")
		size = 0
	}

	if size > 0 {
		err := a.appendExisting(destPath, payload)
		if err == nil {
			return nil
		}
		a.logger.Warn().
			Err(err).
			Str("dest", destPath).
			Int64("prior_size", size).
			Msg("Append failed, falling back to truncate-create; prior destination content will be lost")
	}

	if err := a.writeTruncate(destPath, payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}

	return nil
}

// appendExisting opens the destination read/write, seeks to its end and
// writes the payload
func (a *Appender) appendExisting(destPath string, payload []byte) error {
	handle, err := a.files.OpenForWrite(destPath, remote.ModeReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open for append: %w", err)
	}

	if _, err := handle.SeekEnd(); err != nil {
		handle.Close()
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	if _, err := handle.Write(payload); err != nil {
		handle.Close()
		return fmt.Errorf("failed to write payload: %w", err)
	}

	if err := handle.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return nil
}

func (a *Appender) writeTruncate(destPath string, payload []byte) error {
	handle, err := a.files.OpenForWrite(destPath, remote.ModeTruncateCreate)
	if err != nil {
		return err
	}

	if _, err := handle.Write(payload); err != nil {
		handle.Close()
		return err
	}

	return handle.Close()
}
