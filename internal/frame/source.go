// Package frame supplies camera frames to the scan loop: fixture files,
// directories of fixtures, or an external capture command.
package frame

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// Source yields encoded frames with change detection.
type Source interface {
	// Capture returns the next frame, or false when it is unchanged or unavailable.
	Capture() ([]byte, bool)
	// CaptureAlways returns the next frame regardless of change detection.
	CaptureAlways() []byte
	Close()
}

// backend produces raw encoded frames.
type backend interface {
	captureRaw() []byte
	cleanup()
}

// baseSource provides shared hash-based change detection.
type baseSource struct {
	backend
	mu       sync.Mutex
	lastHash [16]byte
}

func newBase(b backend) *baseSource {
	return &baseSource{backend: b}
}

func hashPrefix(data []byte) [16]byte {
	return md5.Sum(data[:min(len(data), 4096)])
}

func (s *baseSource) Capture() ([]byte, bool) {
	data := s.captureRaw()
	if data == nil {
		return nil, false
	}
	hash := hashPrefix(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return nil, false
	}
	s.lastHash = hash
	return data, true
}

func (s *baseSource) CaptureAlways() []byte {
	data := s.captureRaw()
	if data != nil {
		s.mu.Lock()
		s.lastHash = hashPrefix(data)
		s.mu.Unlock()
	}
	return data
}

func (s *baseSource) Close() {
	s.cleanup()
}

// Open picks a source for target: "exec:<command>" runs a capture command,
// a directory cycles through its images, anything else is a single file.
func Open(target string, exts []string) (Source, error) {
	if cmd, ok := strings.CutPrefix(target, "exec:"); ok {
		return NewCommandSource(cmd)
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeFrameUnavailable, "frame source %q", target)
	}
	if info.IsDir() {
		return NewDirSource(target, exts)
	}
	return NewFileSource(target), nil
}

type fileBackend struct{ path string }

func (f *fileBackend) captureRaw() []byte {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}
	return data
}

func (f *fileBackend) cleanup() {}

// NewFileSource re-reads path on every capture, so replacing the file
// produces a new frame.
func NewFileSource(path string) Source {
	return newBase(&fileBackend{path: path})
}

type dirBackend struct {
	mu    sync.Mutex
	files []string
	next  int
}

func (d *dirBackend) captureRaw() []byte {
	d.mu.Lock()
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

func (d *dirBackend) cleanup() {}

// NewDirSource cycles through the image files in dir in name order.
// Only files whose extension is in exts are used.
func NewDirSource(dir string, exts []string) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeFrameUnavailable, "read frame dir %q", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, apperrors.Newf(apperrors.CodeFrameUnavailable, "no frames in %q", dir)
	}
	slices.Sort(files)
	return newBase(&dirBackend{files: files}), nil
}
