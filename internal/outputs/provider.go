// Package outputs provisions per-task capture files for external program
// output. The scheduling engine only ever sees a write destination; the
// naming scheme and directory layout live here.
package outputs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidOutputDir indicates the designated capture directory is unusable.
// This is fatal to constructing the orchestrator instance.
var ErrInvalidOutputDir = errors.New("invalid output directory")

// FileSink is a provisioned capture file for one task's combined output.
type FileSink struct {
	*os.File
	path string
}

// Path returns the absolute path of the capture file.
func (s *FileSink) Path() string { return s.path }

// Provider allocates uniquely-named capture files under a fixed directory.
type Provider struct {
	dir string
}

// NewProvider creates a Provider rooted at dir. The directory must already
// exist and be writable; a missing or unusable directory fails construction.
func NewProvider(dir string) (*Provider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOutputDir, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidOutputDir, dir)
	}

	// Probe writability up front so schedule-time provisioning cannot fail
	// on a misconfigured directory.
	probe, err := os.CreateTemp(dir, ".taskmill-probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not writable: %v", ErrInvalidOutputDir, dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOutputDir, dir, err)
	}

	return &Provider{dir: abs}, nil
}

// Dir returns the capture directory.
func (p *Provider) Dir() string { return p.dir }

// Provision creates a fresh capture file for the named task. The UUID suffix
// keeps files from colliding when a task name is reused after completion.
func (p *Provider) Provision(taskName string) (*FileSink, error) {
	name := fmt.Sprintf("%s-%s.log", sanitize(taskName), uuid.NewString())
	path := filepath.Join(p.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating capture file for %q: %w", taskName, err)
	}
	return &FileSink{File: f, path: path}, nil
}

// Prune removes capture files older than maxAge. Files that disappear
// mid-walk are skipped.
func (p *Provider) Prune(maxAge time.Duration) error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("reading output directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(p.dir, entry.Name()))
		}
	}
	return nil
}

// sanitize replaces path separators in task names so a name like "etl/load"
// cannot escape the capture directory.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return strings.ReplaceAll(name, "..", "_")
}
