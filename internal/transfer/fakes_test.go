package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/SteelMorgan/log-transporter/internal/remote"
)

// fakeSourceFile is one remote log file served by fakeRunner
type fakeSourceFile struct {
	data  []byte
	inode uint64
}

// fakeRunner implements remote.CommandRunner against an in-memory file
// set. It understands the two command shapes the Reader issues: the
// stat probe and the tail/head range read.
type fakeRunner struct {
	files         map[string]fakeSourceFile
	probes        int
	reads         int
	runErr        error
	failReads     bool
	failReadPaths map[string]bool
	emptyReads    map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		files:         make(map[string]fakeSourceFile),
		failReadPaths: make(map[string]bool),
		emptyReads:    make(map[string]bool),
	}
}

func (r *fakeRunner) Run(ctx context.Context, command string) ([]byte, []byte, int, error) {
	if r.runErr != nil {
		return nil, nil, 0, r.runErr
	}

	switch {
	case strings.HasPrefix(command, "stat -c"):
		r.probes++
		path := quotedField(command, 3)
		f, ok := r.files[path]
		if !ok {
			return []byte("0 0\n"), nil, 0, nil
		}
		return []byte(fmt.Sprintf("%d %d\n", len(f.data), f.inode)), nil, 0, nil

	case strings.HasPrefix(command, "tail -c"):
		r.reads++
		path := quotedField(command, 1)
		if r.failReads || r.failReadPaths[path] {
			return nil, []byte("tail: read error"), 1, nil
		}
		if r.emptyReads[path] {
			return nil, nil, 0, nil
		}
		var offset1 uint64 // 1-based, as tail counts
		fmt.Sscanf(command, "tail -c +%d", &offset1)
		var count uint64
		tailPart := command[strings.LastIndex(command, "head -c "):]
		fmt.Sscanf(tailPart, "head -c %d", &count)

		f, ok := r.files[path]
		if !ok {
			return nil, nil, 0, nil
		}
		start := offset1 - 1
		if start >= uint64(len(f.data)) {
			return nil, nil, 0, nil
		}
		end := start + count
		if end > uint64(len(f.data)) {
			end = uint64(len(f.data))
		}
		return f.data[start:end], nil, 0, nil
	}

	return nil, []byte("command not found"), 127, nil
}

// quotedField returns the n-th single-quote-delimited field of a command
func quotedField(command string, n int) string {
	parts := strings.Split(command, "'")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}

// fakeFiles implements remote.FileTransfer in memory
type fakeFiles struct {
	files      map[string][]byte
	dirs       map[string]bool
	failOpenRW map[string]bool
	mkdirErr   error
	writes     int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		files:      make(map[string][]byte),
		dirs:       make(map[string]bool),
		failOpenRW: make(map[string]bool),
	}
}

func (f *fakeFiles) StatSize(path string) (int64, error) {
	data, ok := f.files[path]
	if !ok {
		return 0, nil
	}
	return int64(len(data)), nil
}

func (f *fakeFiles) OpenForWrite(path string, mode remote.WriteMode) (remote.FileHandle, error) {
	switch mode {
	case remote.ModeReadWrite:
		if f.failOpenRW[path] {
			return nil, fmt.Errorf("permission denied")
		}
		if _, ok := f.files[path]; !ok {
			return nil, fmt.Errorf("no such file")
		}
		return &fakeHandle{owner: f, path: path}, nil
	case remote.ModeTruncateCreate:
		f.files[path] = nil
		return &fakeHandle{owner: f, path: path, atEnd: true}, nil
	}
	return nil, fmt.Errorf("unknown mode %d", mode)
}

func (f *fakeFiles) MkdirAll(path string) error {
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	f.dirs[path] = true
	return nil
}

func (f *fakeFiles) Close() error { return nil }

type fakeHandle struct {
	owner *fakeFiles
	path  string
	atEnd bool
}

func (h *fakeHandle) SeekEnd() (int64, error) {
	h.atEnd = true
	return int64(len(h.owner.files[h.path])), nil
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	if !h.atEnd {
		return 0, fmt.Errorf("write before seek")
	}
	h.owner.files[h.path] = append(h.owner.files[h.path], p...)
	h.owner.writes++
	return len(p), nil
}

func (h *fakeHandle) Close() error { return nil }

// fakeSession bundles fakes behind the remote.Session interface
type fakeSession struct {
	runner remote.CommandRunner
	files  remote.FileTransfer
	closed int
}

func (s *fakeSession) Runner() remote.CommandRunner { return s.runner }

func (s *fakeSession) Files() (remote.FileTransfer, error) { return s.files, nil }

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// fakeDialer hands out per-host sessions; hosts listed in unreachable
// fail to dial
type fakeDialer struct {
	sessions    map[string]*fakeSession
	unreachable map[string]bool
	dials       []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		sessions:    make(map[string]*fakeSession),
		unreachable: make(map[string]bool),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, ep remote.Endpoint) (remote.Session, error) {
	d.dials = append(d.dials, ep.Host)
	if d.unreachable[ep.Host] {
		return nil, fmt.Errorf("dial tcp %s: connection refused", ep.Addr())
	}
	sess, ok := d.sessions[ep.Host]
	if !ok {
		return nil, fmt.Errorf("no session configured for %s", ep.Host)
	}
	return sess, nil
}
