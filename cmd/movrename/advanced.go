package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/spf13/cobra"

	"github.com/quidome/movrename-go/pkg/resolve"
)

// advancedColumns is the numbered list of timestamp sources offered in
// advanced mode, in the order they are presented.
var advancedColumns = []struct {
	label  string
	source resolve.Source
}{
	{"file modified", resolve.SourceFilesystem},
	{"movie modified", resolve.SourceMovieModification},
	{"movie created", resolve.SourceMovieCreation},
	{"track modified", resolve.SourceTrackModification},
	{"track created", resolve.SourceTrackCreation},
}

// chooseAdvanced shows every file's candidate timestamps and asks which
// source to rename the whole batch after. Files lacking the chosen source
// are marked failed instead of silently falling back.
func chooseAdvanced(cmd *cobra.Command, input *bufio.Reader, entries []*entry) error {
	for _, e := range entries {
		if e.err != nil {
			continue
		}

		name := e.path
		if title := embeddedTitle(e.path); title != "" {
			name = fmt.Sprintf("%s (%s)", e.path, title)
		}
		cmd.Printf("%s:\n", name)

		for i, col := range advancedColumns {
			value := "-"
			if t, ok := sourceTime(e, col.source); ok {
				value = t.UTC().Format("2006-01-02 15:04:05")
			}
			cmd.Printf("  %d) %-15s %s\n", i+1, col.label, value)
		}
	}

	choice, err := readChoice(cmd, input)
	if err != nil {
		return err
	}
	col := advancedColumns[choice-1]

	for _, e := range entries {
		if e.err != nil {
			continue
		}
		t, ok := sourceTime(e, col.source)
		if !ok {
			e.err = fmt.Errorf("no %s timestamp", col.label)
			continue
		}
		e.result.Chosen = t
		e.result.Source = col.source
	}

	return nil
}

// sourceTime looks up the timestamp a source would contribute for one file.
// Track sources come from the first track.
func sourceTime(e *entry, source resolve.Source) (time.Time, bool) {
	if source == resolve.SourceFilesystem {
		if e.modTime.IsZero() {
			return time.Time{}, false
		}
		return e.modTime, true
	}
	for _, c := range e.result.Candidates {
		if c.Source == source && c.Track <= 1 {
			return c.Time, true
		}
	}
	return time.Time{}, false
}

func readChoice(cmd *cobra.Command, input *bufio.Reader) (int, error) {
	cmd.Printf("rename after [1-%d]? ", len(advancedColumns))

	line, err := input.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("read selection: %w", err)
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(advancedColumns) {
		return 0, fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	return choice, nil
}

// embeddedTitle returns the container's title tag, or "" when there is none.
func embeddedTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}
