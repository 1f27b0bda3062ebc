package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DefaultFormat names files by date and time down to the minute.
const DefaultFormat = "%Y%m%d-%H%M"

// Action describes what should happen to a file.
type Action string

const (
	ActionRename Action = "rename"
	ActionKeep   Action = "keep"
)

// Item is a file together with the timestamp it should be named after.
type Item struct {
	Path string
	Time time.Time
}

// Operation represents a planned rename of a single file.
type Operation struct {
	Path    string
	NewPath string
	Time    time.Time
	Action  Action
}

// Formatter turns timestamps into file names.
type Formatter struct {
	f *strftime.Strftime
}

// NewFormatter compiles a strftime-style format string.
func NewFormatter(format string) (*Formatter, error) {
	f, err := strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("time format %q: %w", format, err)
	}
	return &Formatter{f: f}, nil
}

// Name returns the file name for a timestamp, without extension.
func (f *Formatter) Name(t time.Time) string {
	return f.f.FormatString(t)
}

// Options configures planning and execution.
type Options struct {
	// Format is the strftime pattern for new names, DefaultFormat when
	// empty.
	Format string

	// Exists reports whether a path is already taken on disk. Planned
	// names are checked against it in addition to the plan itself.
	Exists func(string) bool

	// FixModTime also sets the file's modification time to the naming
	// timestamp.
	FixModTime bool
}

// Plan computes the new name for every item, keeping each file in its
// directory and with its extension. Files already carrying the right name
// come back as ActionKeep. A numeric suffix is appended when a name is
// taken by another planned file or an existing one.
func Plan(items []Item, opts Options) ([]Operation, error) {
	format := opts.Format
	if format == "" {
		format = DefaultFormat
	}
	formatter, err := NewFormatter(format)
	if err != nil {
		return nil, err
	}

	// Every current path starts out taken, so a file that already carries
	// a batch target name cannot be renamed over. Names are released once
	// their item is planned and renames away.
	taken := make(map[string]bool, len(items))
	for _, item := range items {
		taken[item.Path] = true
	}

	ops := make([]Operation, 0, len(items))

	for _, item := range items {
		dir := filepath.Dir(item.Path)
		ext := filepath.Ext(item.Path)
		base := formatter.Name(item.Time)

		newPath := filepath.Join(dir, base+ext)
		for n := 1; conflicts(newPath, item.Path, taken, opts.Exists); n++ {
			newPath = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, ext))
		}
		delete(taken, item.Path)
		taken[newPath] = true

		action := ActionRename
		if newPath == item.Path {
			action = ActionKeep
		}

		ops = append(ops, Operation{
			Path:    item.Path,
			NewPath: newPath,
			Time:    item.Time,
			Action:  action,
		})
	}

	return ops, nil
}

// conflicts reports whether candidate clashes with an already planned name
// or a file on disk. A file's current name never conflicts with itself.
func conflicts(candidate, current string, taken map[string]bool, exists func(string) bool) bool {
	if candidate == current {
		return false
	}
	if taken[candidate] {
		return true
	}
	return exists != nil && exists(candidate)
}

// Result contains the outcome of executing one operation.
type Result struct {
	Operation Operation
	Renamed   bool
	Error     error
}

// Execute performs the planned renames. A failing operation is recorded
// and does not stop the batch.
func Execute(operations []Operation, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(operations))

	for _, op := range operations {
		result := Result{Operation: op}

		if op.Action == ActionKeep {
			if opts.FixModTime {
				if err := os.Chtimes(op.Path, op.Time, op.Time); err != nil {
					result.Error = fmt.Errorf("set times: %w", err)
				}
			}
			results = append(results, result)
			continue
		}

		if err := os.Rename(op.Path, op.NewPath); err != nil {
			result.Error = fmt.Errorf("rename: %w", err)
			results = append(results, result)
			continue
		}
		result.Renamed = true

		if opts.FixModTime {
			if err := os.Chtimes(op.NewPath, op.Time, op.Time); err != nil {
				result.Error = fmt.Errorf("set times: %w", err)
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// ExistsOnDisk reports whether path exists.
func ExistsOnDisk(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
