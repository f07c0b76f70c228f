package remote

import (
	"context"
	"fmt"
)

// Endpoint holds connection parameters for one remote host
type Endpoint struct {
	Host     string
	Port     int
	Username string
	KeyPath  string
}

// Addr returns the host:port dial address
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// CommandRunner executes shell commands on a remote host
type CommandRunner interface {
	// Run executes a command and returns its stdout, stderr and exit code.
	// A non-zero exit code is not an error; err is set only when the
	// command could not be executed at all.
	Run(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error)
}

// WriteMode selects how a destination file is opened for writing
type WriteMode int

const (
	// ModeReadWrite opens an existing file for read/write so the caller
	// can seek to its end before appending
	ModeReadWrite WriteMode = iota
	// ModeTruncateCreate creates the file, truncating any existing content
	ModeTruncateCreate
)

// FileHandle is an open remote file positioned for writing
type FileHandle interface {
	// SeekEnd moves the write position to the end of the file and
	// returns the resulting offset
	SeekEnd() (int64, error)
	Write(p []byte) (int, error)
	Close() error
}

// FileTransfer provides file operations on a remote host
type FileTransfer interface {
	// StatSize returns the size of a remote file, or 0 if it does not exist
	StatSize(path string) (int64, error)

	// OpenForWrite opens a remote file in the given mode
	OpenForWrite(path string, mode WriteMode) (FileHandle, error)

	// MkdirAll creates a directory and any missing parents. It is not an
	// error if the directory already exists.
	MkdirAll(path string) error

	Close() error
}

// Session bundles the command and file capabilities of one open
// connection to a remote host
type Session interface {
	Runner() CommandRunner

	// Files returns the file-transfer capability, opening it on first use
	Files() (FileTransfer, error)

	Close() error
}

// Dialer opens sessions to remote hosts
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Session, error)
}
