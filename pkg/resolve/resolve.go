package resolve

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Source describes where a timestamp candidate was derived from.
//
// The default priority order is:
//  1. movie_modification
//  2. movie_creation
//  3. track_modification
//  4. track_creation
//  5. media_modification
//  6. media_creation
//  7. exif
//  8. filesystem
type Source string

const (
	SourceMovieCreation     Source = "movie_creation"
	SourceMovieModification Source = "movie_modification"
	SourceTrackCreation     Source = "track_creation"
	SourceTrackModification Source = "track_modification"
	SourceMediaCreation     Source = "media_creation"
	SourceMediaModification Source = "media_modification"
	SourceEXIF              Source = "exif"
	SourceFilesystem        Source = "filesystem"
)

// MacEpochOffset is the number of seconds between the QuickTime epoch
// (1904-01-01) and the Unix epoch (1970-01-01), both UTC.
const MacEpochOffset = 2082844800

// MacTime converts a QuickTime timestamp field to UTC wall time.
func MacTime(raw uint64) time.Time {
	return time.Unix(int64(raw)-MacEpochOffset, 0).UTC()
}

// Candidate is one timestamp found for a file.
type Candidate struct {
	Source Source

	// Track numbers the enclosing track in stream order, starting at 1.
	// It is zero for sources that do not belong to a track.
	Track int

	// Raw is the undecoded field value, seconds since the 1904 epoch.
	// A zero field means the timestamp was never set and such fields do
	// not become candidates. Sources without a 1904-epoch field leave
	// Raw zero.
	Raw uint64

	Time time.Time
}

// Extraction is the outcome of probing one file for timestamps.
type Extraction struct {
	Candidates []Candidate

	// Warnings records recoverable structural problems hit while probing.
	Warnings []error
}

// Extractor probes a media stream for embedded timestamp candidates.
//
// Implementations return the candidates they found. A stream without any
// is not an error, only an unreadable one is.
type Extractor interface {
	Extract(r io.ReadSeeker) (Extraction, error)
}

// Mode selects how Resolve picks a timestamp.
type Mode string

const (
	// ModeDefault walks the priority order and falls back to the
	// filesystem timestamp when the metadata has nothing usable.
	ModeDefault Mode = "default"

	// ModeSystem uses the filesystem timestamp unconditionally.
	ModeSystem Mode = "system"

	// ModeAdvanced chooses nothing and leaves the pick to the caller.
	ModeAdvanced Mode = "advanced"
)

// ErrNoTimestamp is returned when no source yields a usable timestamp.
var ErrNoTimestamp = errors.New("no timestamp available")

// Options configures Resolve.
type Options struct {
	// Mode defaults to ModeDefault when empty.
	Mode Mode

	// FileTime is the file's modification time. A zero value means the
	// filesystem source is unavailable.
	FileTime time.Time

	// Tolerance widens the consistency check from same-calendar-day to a
	// maximum distance between any two timestamps.
	Tolerance time.Duration
}

// Result is the outcome of resolving one file's candidates.
type Result struct {
	// Chosen is the picked timestamp. It stays zero in ModeAdvanced.
	Chosen time.Time

	// Source names where Chosen came from.
	Source Source

	// Consistent reports whether all candidates and the file time agree.
	Consistent bool

	Candidates []Candidate
}

var defaultPriority = []Source{
	SourceMovieModification,
	SourceMovieCreation,
	SourceTrackModification,
	SourceTrackCreation,
	SourceMediaModification,
	SourceMediaCreation,
	SourceEXIF,
}

// Resolve picks a timestamp for a file from its extracted candidates.
func Resolve(candidates []Candidate, opts Options) (Result, error) {
	result := Result{
		Candidates: candidates,
		Consistent: consistent(candidates, opts),
	}

	switch opts.Mode {
	case ModeAdvanced:
		return result, nil
	case ModeSystem:
		if opts.FileTime.IsZero() {
			return result, ErrNoTimestamp
		}
		result.Chosen = opts.FileTime
		result.Source = SourceFilesystem
		return result, nil
	case ModeDefault, "":
	default:
		return Result{}, fmt.Errorf("unknown mode %q", opts.Mode)
	}

	for _, src := range defaultPriority {
		for _, c := range candidates {
			if c.Source != src {
				continue
			}
			// Only the first track speaks for the whole movie.
			if c.Track > 1 {
				continue
			}
			result.Chosen = c.Time
			result.Source = c.Source
			return result, nil
		}
	}

	if !opts.FileTime.IsZero() {
		result.Chosen = opts.FileTime
		result.Source = SourceFilesystem
		return result, nil
	}

	return result, ErrNoTimestamp
}

// consistent reports whether every pair of known timestamps agrees. The
// file time participates when present.
func consistent(candidates []Candidate, opts Options) bool {
	times := make([]time.Time, 0, len(candidates)+1)
	for _, c := range candidates {
		times = append(times, c.Time)
	}
	if !opts.FileTime.IsZero() {
		times = append(times, opts.FileTime)
	}

	for i := 0; i < len(times); i++ {
		for j := i + 1; j < len(times); j++ {
			if !agree(times[i], times[j], opts.Tolerance) {
				return false
			}
		}
	}
	return true
}

// agree compares two timestamps on the same UTC calendar day, or within
// the configured tolerance when one is set.
func agree(a, b time.Time, tolerance time.Duration) bool {
	if tolerance > 0 {
		d := a.Sub(b)
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	}

	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
