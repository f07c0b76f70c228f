package transfer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SteelMorgan/log-transporter/internal/domain"
	"github.com/SteelMorgan/log-transporter/internal/remote"
)

// Reader reads byte ranges of remote log files through a source host's
// command capability
type Reader struct {
	runner remote.CommandRunner
	logger zerolog.Logger
}

// NewReader creates a reader over one source session
func NewReader(runner remote.CommandRunner, logger zerolog.Logger) *Reader {
	return &Reader{
		runner: runner,
		logger: logger,
	}
}

// Probe returns the current size and identity (inode) of a remote file.
// A missing or inaccessible file yields the zero FileStat, which callers
// treat as "skip this target for the cycle".
func (r *Reader) Probe(ctx context.Context, path string) (domain.FileStat, error) {
	cmd := fmt.Sprintf("stat -c '%%s %%i' '%s' 2>/dev/null || echo '0 0'", path)

	stdout, stderr, exitCode, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return domain.FileStat{}, fmt.Errorf("failed to probe %s: %w", path, err)
	}
	if exitCode != 0 {
		return domain.FileStat{}, fmt.Errorf("probe of %s exited with code %d: %s", path, exitCode, strings.TrimSpace(string(stderr)))
	}

	parts := strings.Fields(string(stdout))
	if len(parts) != 2 {
		return domain.FileStat{}, nil
	}

	size, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return domain.FileStat{}, nil
	}
	identity, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return domain.FileStat{}, nil
	}

	return domain.FileStat{Size: size, Identity: identity}, nil
}

// ReadFrom returns the bytes of the half-open range [offset, size).
// When offset >= size it returns nil without issuing a remote read, so a
// zero-length range is a cheap well-defined case rather than an error.
func (r *Reader) ReadFrom(ctx context.Context, path string, offset, size uint64) ([]byte, error) {
	if offset >= size {
		return nil, nil
	}

	count := size - offset
	// tail -c +N is 1-based; head caps the range so a file growing
	// mid-cycle cannot push the read past the probed size
	cmd := fmt.Sprintf("tail -c +%d '%s' | head -c %d", offset+1, path, count)

	stdout, stderr, exitCode, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if exitCode != 0 && len(stdout) == 0 {
		return nil, fmt.Errorf("read of %s exited with code %d: %s", path, exitCode, strings.TrimSpace(string(stderr)))
	}

	if uint64(len(stdout)) != count {
		r.logger.Debug().
			Str("path", path).
			Uint64("requested", count).
			Int("received", len(stdout)).
			Msg("Short read, file changed mid-cycle")
	}

	return stdout, nil
}
