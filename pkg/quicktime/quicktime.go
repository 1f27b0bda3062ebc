// Package quicktime reads timestamp candidates from QuickTime and MP4
// containers.
package quicktime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/quidome/movrename-go/pkg/atom"
	"github.com/quidome/movrename-go/pkg/resolve"
)

// Extractor probes the movie, track and media headers of a container.
type Extractor struct{}

// Field offsets shared by the mvhd, tkhd and mdhd headers: a version byte,
// three flag bytes, then creation and modification back to back.
const (
	v0Creation     = 4
	v0Modification = 8
	v0End          = 12
	v1Creation     = 4
	v1Modification = 12
	v1End          = 20
)

// Extract walks the atom tree and collects every set creation and
// modification timestamp. Structural problems in single atoms surface as
// warnings, a corrupt container as an error.
func (Extractor) Extract(r io.ReadSeeker) (resolve.Extraction, error) {
	tree, err := atom.ParseTree(r)
	if err != nil {
		return resolve.Extraction{}, err
	}

	x := extraction{tree: tree}
	x.out.Warnings = tree.Problems()

	mvhds, err := tree.Find("moov.mvhd")
	if err != nil {
		return resolve.Extraction{}, err
	}
	for _, a := range mvhds {
		if err := x.read(a, 0, resolve.SourceMovieCreation, resolve.SourceMovieModification); err != nil {
			return resolve.Extraction{}, err
		}
	}

	// Track numbers follow the trak atoms' declaration order, so a track
	// keeps its number even when one of its headers is missing or broken.
	traks, err := tree.Find("moov.trak[*]")
	if err != nil {
		return resolve.Extraction{}, err
	}
	for i, trak := range traks {
		if tkhd, ok := child(trak, "tkhd"); ok {
			if err := x.read(tkhd, i+1, resolve.SourceTrackCreation, resolve.SourceTrackModification); err != nil {
				return resolve.Extraction{}, err
			}
		}
		if mdhd, ok := child(trak, "mdia", "mdhd"); ok {
			if err := x.read(mdhd, i+1, resolve.SourceMediaCreation, resolve.SourceMediaModification); err != nil {
				return resolve.Extraction{}, err
			}
		}
	}

	return x.out, nil
}

type extraction struct {
	tree *atom.Tree
	out  resolve.Extraction
}

func (x *extraction) read(a atom.Atom, track int, creation, modification resolve.Source) error {
	payload, err := x.tree.Payload(a)
	if err != nil {
		return fmt.Errorf("read %q header: %w", a.Type, err)
	}

	created, modified, err := headerTimes(payload)
	if err != nil {
		x.out.Warnings = append(x.out.Warnings, &atom.MalformedAtomError{
			Type:   a.Type,
			Offset: a.Offset,
			Reason: err.Error(),
		})
		return nil
	}

	x.add(creation, track, created)
	x.add(modification, track, modified)
	return nil
}

// child descends from a container along a sequence of type tags, taking the
// first matching child at each level.
func child(a atom.Atom, tags ...string) (atom.Atom, bool) {
	for _, tag := range tags {
		found := false
		for _, c := range a.Children {
			if c.Type == tag {
				a, found = c, true
				break
			}
		}
		if !found {
			return atom.Atom{}, false
		}
	}
	return a, true
}

func (x *extraction) add(src resolve.Source, track int, raw uint64) {
	// A zero field was never set.
	if raw == 0 {
		return
	}
	x.out.Candidates = append(x.out.Candidates, resolve.Candidate{
		Source: src,
		Track:  track,
		Raw:    raw,
		Time:   resolve.MacTime(raw),
	})
}

// headerTimes decodes the creation and modification fields of a header
// payload. Version 0 stores them as 32-bit values, version 1 as 64-bit.
func headerTimes(payload []byte) (created, modified uint64, err error) {
	if len(payload) < 1 {
		return 0, 0, errors.New("empty header")
	}

	switch version := payload[0]; version {
	case 0:
		if len(payload) < v0End {
			return 0, 0, fmt.Errorf("version 0 header truncated at %d bytes", len(payload))
		}
		created = uint64(binary.BigEndian.Uint32(payload[v0Creation:]))
		modified = uint64(binary.BigEndian.Uint32(payload[v0Modification:]))
	case 1:
		if len(payload) < v1End {
			return 0, 0, fmt.Errorf("version 1 header truncated at %d bytes", len(payload))
		}
		created = binary.BigEndian.Uint64(payload[v1Creation:])
		modified = binary.BigEndian.Uint64(payload[v1Modification:])
		// A field beyond int64 cannot be a real clock value and would
		// wrap negative when converted to wall time.
		if created > math.MaxInt64 || modified > math.MaxInt64 {
			return 0, 0, fmt.Errorf("version 1 timestamp field overflows")
		}
	default:
		return 0, 0, fmt.Errorf("unsupported header version %d", version)
	}

	return created, modified, nil
}
