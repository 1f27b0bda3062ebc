package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultExtensions matches the movie containers handled natively.
	DefaultExtensions = "mov|mp4|m4v|3gp"

	// PhotoExtensions matches files probed for EXIF data instead.
	PhotoExtensions = "jpg|jpeg|tif|tiff"
)

type Options struct {
	// Extensions is an alternation of filename extensions without dots,
	// for example "mov|mp4".
	Extensions string

	// MaxDepth limits directory descent, -1 means unlimited.
	MaxDepth int
}

func DefaultOptions() Options {
	return Options{
		Extensions: DefaultExtensions,
		MaxDepth:   -1,
	}
}

// Pattern compiles an extension alternation into a filename filter.
func Pattern(extensions string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?i)\.(` + extensions + `)$`)
	if err != nil {
		return nil, fmt.Errorf("extension filter %q: %w", extensions, err)
	}
	return re, nil
}

// Scan walks root and returns the matching files sorted by path.
func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	if opts.MaxDepth < -1 {
		return nil, fs.ErrInvalid
	}

	pattern, err := Pattern(opts.Extensions)
	if err != nil {
		return nil, err
	}

	var matches []string

	err = fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
			return nil
		}
		if !pattern.MatchString(rel) {
			return nil
		}

		matches = append(matches, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)
	return matches, nil
}

// Collect expands command line arguments into the list of files to work
// on. Arguments may be files, directories or glob patterns; directories
// are scanned recursively and files are filtered by extension. The result
// is absolute, deduplicated and sorted.
func Collect(args []string, opts Options) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("no files or directories given")
	}

	pattern, err := Pattern(opts.Extensions)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	}

	collectPath := func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			found, err := Scan(os.DirFS(path), ".", opts)
			if err != nil {
				return err
			}
			for _, f := range found {
				if err := add(filepath.Join(path, filepath.FromSlash(f))); err != nil {
					return err
				}
			}
			return nil
		}
		if !pattern.MatchString(path) {
			return nil
		}
		return add(path)
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[") {
			expanded, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", arg, err)
			}
			for _, path := range expanded {
				if err := collectPath(path); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := collectPath(arg); err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func depth(rel string) int {
	rel = filepath.Clean(rel)
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}
