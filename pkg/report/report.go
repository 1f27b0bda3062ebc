package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRenamed = "renamed"
	StatusKept    = "kept"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// RunReport is the machine-readable outcome of one run.
type RunReport struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary Summary `json:"summary"`
	Items   []Item  `json:"items"`
}

type Summary struct {
	Renamed int `json:"renamed"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Item struct {
	Path    string `json:"path"`
	NewPath string `json:"new_path,omitempty"`

	Source     string     `json:"source,omitempty"`
	Chosen     *time.Time `json:"chosen,omitempty"`
	Consistent bool       `json:"consistent"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// New starts a report for one run.
func New(mode string, dryRun bool) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Mode:      mode,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

// Finalize stamps the end time, normalizes timestamps to UTC, orders the
// items by path and computes the summary.
func (r *RunReport) Finalize() {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	for i := range r.Items {
		if r.Items[i].Chosen != nil {
			utc := r.Items[i].Chosen.UTC()
			r.Items[i].Chosen = &utc
		}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Path < r.Items[j].Path
	})

	var s Summary
	for _, it := range r.Items {
		switch it.Status {
		case StatusRenamed:
			s.Renamed++
		case StatusKept:
			s.Kept++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// WriteFile writes the report as indented JSON, atomically (temp file in
// the target directory, then rename).
func (r *RunReport) WriteFile(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
