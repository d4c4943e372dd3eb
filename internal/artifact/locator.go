// Package artifact finds the build output that a release publishes.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Pattern selects artifact files by name.
type Pattern struct {
	Prefix string
	Suffix string
}

// Match reports whether name starts with Prefix and ends with Suffix.
func (p Pattern) Match(name string) bool {
	return strings.HasPrefix(name, p.Prefix) && strings.HasSuffix(name, p.Suffix)
}

func (p Pattern) String() string {
	return p.Prefix + "*" + p.Suffix
}

// Artifact is a build output file chosen for publishing.
type Artifact struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// NotFoundError reports a missing output directory or an empty match set.
type NotFoundError struct {
	Dir    string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Dir, e.Reason)
}

// Locate returns the most recently modified regular file in dir matching
// pattern. Candidates with equal modification times are ordered by name and
// the smallest name wins.
func Locate(dir string, pattern Pattern) (*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Dir: dir, Reason: "output directory does not exist, run the build first"}
		}
		if errors.Is(err, syscall.ENOTDIR) {
			return nil, &NotFoundError{Dir: dir, Reason: "not a directory"}
		}
		return nil, fmt.Errorf("reading output dir %s: %w", dir, err)
	}

	var best *Artifact
	for _, e := range entries {
		if !e.Type().IsRegular() || !pattern.Match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		cand := &Artifact{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
		if best == nil || newer(cand, best) {
			best = cand
		}
	}

	if best == nil {
		return nil, &NotFoundError{Dir: dir, Reason: fmt.Sprintf("no files matching %s", pattern)}
	}
	return best, nil
}

func newer(a, b *Artifact) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.Name < b.Name
}
