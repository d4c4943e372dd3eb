package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run represents a single pipeline execution.
type Run struct {
	ID   string
	Dir  string
	Meta Meta
}

// Meta holds metadata about a run, persisted to meta.json.
type Meta struct {
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Status         string        `json:"status"` // "running" | "completed" | "failed"
	Artifact       string        `json:"artifact,omitempty"`
	DevServerMode  string        `json:"dev_server_mode"`
	DeployStrategy string        `json:"deploy_strategy"`
	Stages         []StageResult `json:"stages"`
	Error          string        `json:"error,omitempty"`
	GitBranch      string        `json:"git_branch"`
	GitCommit      string        `json:"git_commit"`
}

// StageResult records the outcome of a single stage.
type StageResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // "completed" | "failed" | "skipped"
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// New creates a new run directory under baseDir.
func New(baseDir string, meta Meta) (*Run, error) {
	now := time.Now()
	id := fmt.Sprintf("%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8])

	dir := filepath.Join(baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}

	meta.StartedAt = now
	meta.Status = StatusRunning
	r := &Run{ID: id, Dir: dir, Meta: meta}

	if err := r.SaveMeta(); err != nil {
		return nil, err
	}
	if err := updateLatestLink(baseDir, id); err != nil {
		return nil, err
	}
	return r, nil
}

// SaveMeta writes meta.json to the run directory.
func (r *Run) SaveMeta() error {
	data, err := json.MarshalIndent(r.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	return os.WriteFile(filepath.Join(r.Dir, "meta.json"), data, 0644)
}

// AddStageResult appends a stage result.
func (r *Run) AddStageResult(sr StageResult) error {
	r.Meta.Stages = append(r.Meta.Stages, sr)
	return r.SaveMeta()
}

// SetArtifact records the artifact chosen for this run.
func (r *Run) SetArtifact(name string) error {
	r.Meta.Artifact = name
	return r.SaveMeta()
}

// Complete marks the run as completed.
func (r *Run) Complete() error {
	r.finish(StatusCompleted)
	return r.SaveMeta()
}

// Fail marks the run as failed with an error message.
func (r *Run) Fail(msg string) error {
	r.finish(StatusFailed)
	r.Meta.Error = msg
	return r.SaveMeta()
}

func (r *Run) finish(status string) {
	now := time.Now()
	r.Meta.Status = status
	r.Meta.FinishedAt = &now
}

// Entry is a recorded run read back from disk.
type Entry struct {
	ID   string
	Meta Meta
}

// List reads every run under baseDir, newest first. Unreadable runs are
// skipped.
func List(baseDir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs dir: %w", err)
	}

	var entries []Entry
	for _, e := range dirEntries {
		if !e.IsDir() || e.Name() == "latest" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(baseDir, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		entries = append(entries, Entry{ID: e.Name(), Meta: meta})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Meta.StartedAt.After(entries[j].Meta.StartedAt)
	})
	return entries, nil
}

// updateLatestLink atomically updates the "latest" symlink.
func updateLatestLink(baseDir, id string) error {
	latestPath := filepath.Join(baseDir, "latest")
	tmpPath := latestPath + ".tmp"

	// Remove any stale tmp link
	os.Remove(tmpPath)

	if err := os.Symlink(id, tmpPath); err != nil {
		return fmt.Errorf("creating temp symlink: %w", err)
	}
	if err := os.Rename(tmpPath, latestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("updating latest symlink: %w", err)
	}
	return nil
}
