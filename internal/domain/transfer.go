package domain

import "time"

// LogTarget identifies one trackable log file on a source server.
// Immutable once configured.
type LogTarget struct {
	SourceName string
	Path       string
}

// TransferRecord is one entry in the state store: how far a log target
// has been transferred and which underlying file the offset belongs to.
type TransferRecord struct {
	SourceName   string    `json:"server"`
	Path         string    `json:"path"`
	Offset       uint64    `json:"offset"`
	FileIdentity uint64    `json:"inode"`
	UpdatedAt    time.Time `json:"updated"`
}

// FileStat is the result of probing a remote file.
// The zero value means the file is missing or empty.
type FileStat struct {
	Size     uint64
	Identity uint64
}

// SourceServer describes one remote host exposing log files.
type SourceServer struct {
	Name     string
	Host     string
	Port     int
	Username string
	KeyPath  string
	LogPaths []string
}

// DestServer describes the single destination host. One subdirectory
// per source name is created under BasePath.
type DestServer struct {
	Host     string
	Port     int
	Username string
	KeyPath  string
	BasePath string
}

// TargetResult captures the outcome of transferring a single target
// within one cycle, for logging and the audit mirror.
type TargetResult struct {
	SourceName   string
	Path         string
	DestPath     string
	Bytes        uint64
	Offset       uint64
	FileIdentity uint64
	Rotated      bool
	Skipped      bool
	Err          error
}
