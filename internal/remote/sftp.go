package remote

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpFiles implements FileTransfer over an SFTP subsystem
type sftpFiles struct {
	client *sftp.Client
}

func newSFTPFiles(conn *ssh.Client) (*sftpFiles, error) {
	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, err
	}
	return &sftpFiles{client: client}, nil
}

// StatSize returns the size of a remote file, or 0 if it does not exist
func (f *sftpFiles) StatSize(path string) (int64, error) {
	info, err := f.client.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// OpenForWrite opens a remote file in the given mode
func (f *sftpFiles) OpenForWrite(path string, mode WriteMode) (FileHandle, error) {
	var flags int
	switch mode {
	case ModeReadWrite:
		flags = os.O_RDWR
	case ModeTruncateCreate:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("unknown write mode: %d", mode)
	}

	file, err := f.client.OpenFile(path, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &sftpHandle{file: file}, nil
}

// MkdirAll creates a directory and any missing parents
func (f *sftpFiles) MkdirAll(path string) error {
	if err := f.client.MkdirAll(path); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func (f *sftpFiles) Close() error {
	return f.client.Close()
}

// sftpHandle wraps an open SFTP file
type sftpHandle struct {
	file *sftp.File
}

func (h *sftpHandle) SeekEnd() (int64, error) {
	return h.file.Seek(0, io.SeekEnd)
}

func (h *sftpHandle) Write(p []byte) (int, error) {
	return h.file.Write(p)
}

func (h *sftpHandle) Close() error {
	return h.file.Close()
}
