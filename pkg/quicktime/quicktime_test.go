package quicktime

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/quidome/movrename-go/pkg/atom"
	"github.com/quidome/movrename-go/pkg/resolve"
)

func atomBytes(typ string, parts ...[]byte) []byte {
	body := bytes.Join(parts, nil)
	buf := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	buf = append(buf, typ...)
	return append(buf, body...)
}

func rawAtomBytes(size uint32, typ string, payload []byte) []byte {
	buf := binary.BigEndian.AppendUint32(nil, size)
	buf = append(buf, typ...)
	return append(buf, payload...)
}

// headerV0 encodes a version 0 header payload of the given total length
// with the creation and modification fields set.
func headerV0(created, modified uint32, total int) []byte {
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[v0Creation:], created)
	binary.BigEndian.PutUint32(buf[v0Modification:], modified)
	return buf
}

// headerV1 encodes a version 1 header payload.
func headerV1(created, modified uint64, total int) []byte {
	buf := make([]byte, total)
	buf[0] = 1
	binary.BigEndian.PutUint64(buf[v1Creation:], created)
	binary.BigEndian.PutUint64(buf[v1Modification:], modified)
	return buf
}

func trak(tkhd, mdhd []byte) []byte {
	return atomBytes("trak",
		atomBytes("tkhd", tkhd),
		atomBytes("mdia", atomBytes("mdhd", mdhd)),
	)
}

func movie(moovChildren ...[]byte) []byte {
	return bytes.Join([][]byte{
		atomBytes("ftyp", []byte("qt  \x00\x00\x02\x00")),
		atomBytes("moov", moovChildren...),
		atomBytes("mdat", []byte("frame data")),
	}, nil)
}

func TestExtractor_MovieHeaderTimes(t *testing.T) {
	const (
		created  = 3536139900
		modified = 3536140200
	)
	data := movie(
		atomBytes("mvhd", headerV0(created, modified, 100)),
		trak(headerV0(0, 0, 84), headerV0(0, 0, 24)),
	)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", ext.Warnings)
	}

	want := []resolve.Candidate{
		{Source: resolve.SourceMovieCreation, Raw: created, Time: resolve.MacTime(created)},
		{Source: resolve.SourceMovieModification, Raw: modified, Time: resolve.MacTime(modified)},
	}
	if !reflect.DeepEqual(ext.Candidates, want) {
		t.Fatalf("unexpected candidates\n got: %#v\nwant: %#v", ext.Candidates, want)
	}
}

func TestExtractor_MacEpoch(t *testing.T) {
	data := movie(atomBytes("mvhd", headerV0(resolve.MacEpochOffset, 0, 100)))

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %#v", ext.Candidates)
	}

	c := ext.Candidates[0]
	if c.Source != resolve.SourceMovieCreation {
		t.Fatalf("expected movie creation, got %q", c.Source)
	}
	if want := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC); !c.Time.Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Time)
	}
}

func TestExtractor_ZeroFieldsAreUnset(t *testing.T) {
	const modified = 3536140200
	data := movie(
		atomBytes("mvhd", headerV0(0, 0, 100)),
		trak(headerV0(0, modified, 84), headerV0(0, 0, 24)),
	)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %#v", ext.Candidates)
	}

	c := ext.Candidates[0]
	if c.Source != resolve.SourceTrackModification || c.Track != 1 || c.Raw != modified {
		t.Fatalf("unexpected candidate: %#v", c)
	}
}

func TestExtractor_Version1Header(t *testing.T) {
	const (
		created  = uint64(3536139900)
		modified = uint64(3536140200)
	)
	data := movie(
		atomBytes("mvhd", headerV1(created, modified, 112)),
		trak(headerV0(0, 0, 84), headerV0(0, 0, 24)),
	)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []resolve.Candidate{
		{Source: resolve.SourceMovieCreation, Raw: created, Time: resolve.MacTime(created)},
		{Source: resolve.SourceMovieModification, Raw: modified, Time: resolve.MacTime(modified)},
	}
	if !reflect.DeepEqual(ext.Candidates, want) {
		t.Fatalf("unexpected candidates\n got: %#v\nwant: %#v", ext.Candidates, want)
	}
}

func TestExtractor_NoMovieHeader(t *testing.T) {
	data := bytes.Join([][]byte{
		atomBytes("ftyp", []byte("qt  ")),
		atomBytes("mdat", []byte("frames")),
	}, nil)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %#v", ext.Candidates)
	}

	if _, err := resolve.Resolve(ext.Candidates, resolve.Options{}); !errors.Is(err, resolve.ErrNoTimestamp) {
		t.Fatalf("expected ErrNoTimestamp, got %v", err)
	}
}

func TestExtractor_NumbersTracksInStreamOrder(t *testing.T) {
	data := movie(
		atomBytes("mvhd", headerV0(0, 0, 100)),
		trak(headerV0(0, 3536139900, 84), headerV0(0, 0, 24)),
		trak(headerV0(0, 3641600000, 84), headerV0(0, 0, 24)),
	)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %#v", ext.Candidates)
	}
	for i, c := range ext.Candidates {
		if c.Source != resolve.SourceTrackModification || c.Track != i+1 {
			t.Fatalf("candidate %d: unexpected %#v", i, c)
		}
	}
	if ext.Candidates[0].Raw != 3536139900 {
		t.Fatalf("expected the first track first, got %#v", ext.Candidates[0])
	}
}

func TestExtractor_TrackNumbersFollowTrakOrder(t *testing.T) {
	const (
		mediaModified = 3536139900
		trackModified = 3641600000
	)

	// The first track's tkhd is broken, only its mdhd survives. The second
	// track's headers must still be numbered as track 2.
	data := movie(
		atomBytes("mvhd", headerV0(0, 0, 100)),
		trak(make([]byte, 6), headerV0(0, mediaModified, 24)),
		trak(headerV0(0, trackModified, 84), headerV0(0, 0, 24)),
	)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Warnings) != 1 || !atom.IsMalformed(ext.Warnings[0]) {
		t.Fatalf("expected 1 malformed atom warning, got %v", ext.Warnings)
	}

	want := []resolve.Candidate{
		{Source: resolve.SourceMediaModification, Track: 1, Raw: mediaModified, Time: resolve.MacTime(mediaModified)},
		{Source: resolve.SourceTrackModification, Track: 2, Raw: trackModified, Time: resolve.MacTime(trackModified)},
	}
	if !reflect.DeepEqual(ext.Candidates, want) {
		t.Fatalf("unexpected candidates\n got: %#v\nwant: %#v", ext.Candidates, want)
	}

	// Default selection must draw from the first declared track, not from
	// the second track's header that happens to come first in its list.
	res, err := resolve.Resolve(ext.Candidates, resolve.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != resolve.SourceMediaModification || !res.Chosen.Equal(resolve.MacTime(mediaModified)) {
		t.Fatalf("expected the first track's media time, got %v from %q", res.Chosen, res.Source)
	}
}

func TestExtractor_HeaderProblemsBecomeWarnings(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "version 0 header truncated",
			payload: make([]byte, 6),
		},
		{
			name:    "version 1 header truncated",
			payload: append([]byte{1}, make([]byte, 15)...),
		},
		{
			name:    "unsupported version",
			payload: append([]byte{7}, make([]byte, 99)...),
		},
		{
			name:    "version 1 timestamp overflows",
			payload: headerV1(math.MaxUint64, 3536140200, 112),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := movie(
				atomBytes("mvhd", tc.payload),
				trak(headerV0(0, 3536140200, 84), headerV0(0, 0, 24)),
			)

			ext, err := Extractor{}.Extract(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(ext.Warnings) != 1 || !atom.IsMalformed(ext.Warnings[0]) {
				t.Fatalf("expected 1 malformed atom warning, got %v", ext.Warnings)
			}

			// The intact track header still yields its candidate.
			if len(ext.Candidates) != 1 || ext.Candidates[0].Source != resolve.SourceTrackModification {
				t.Fatalf("unexpected candidates: %#v", ext.Candidates)
			}
		})
	}
}

func TestExtractor_TreeProblemsPropagate(t *testing.T) {
	data := bytes.Join([][]byte{
		atomBytes("ftyp", []byte("qt  ")),
		atomBytes("moov",
			atomBytes("mvhd", headerV0(0, 3536140200, 100)),
			rawAtomBytes(1<<30, "udta", make([]byte, 4)),
		),
	}, nil)

	ext, err := Extractor{}.Extract(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Warnings) != 1 || !atom.IsMalformed(ext.Warnings[0]) {
		t.Fatalf("expected 1 malformed atom warning, got %v", ext.Warnings)
	}
	if len(ext.Candidates) != 1 || ext.Candidates[0].Source != resolve.SourceMovieModification {
		t.Fatalf("unexpected candidates: %#v", ext.Candidates)
	}
}

func TestExtractor_CorruptContainer(t *testing.T) {
	data := rawAtomBytes(4096, "mdat", []byte("short"))

	_, err := Extractor{}.Extract(bytes.NewReader(data))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !atom.IsCorrupt(err) {
		t.Fatalf("expected corrupt container error, got %v", err)
	}
}
