package resolve

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIFExtractor probes photo streams for an embedded creation timestamp.
type EXIFExtractor struct{}

// Extract decodes the EXIF block and yields at most one candidate.
// Streams without usable EXIF data yield none.
func (EXIFExtractor) Extract(r io.ReadSeeker) (Extraction, error) {
	x, err := exif.Decode(r)
	if err != nil {
		// Best-effort: a stream without EXIF data is not an error.
		return Extraction{}, nil
	}

	// Prefer DateTimeOriginal, then DateTimeDigitized, then DateTime.
	for _, tag := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tm, ok := exifTime(x, tag)
		if !ok {
			continue
		}
		return Extraction{
			Candidates: []Candidate{{Source: SourceEXIF, Time: tm.UTC()}},
		}, nil
	}

	return Extraction{}, nil
}

func exifTime(x *exif.Exif, tag exif.FieldName) (time.Time, bool) {
	f, err := x.Get(tag)
	if err != nil {
		return time.Time{}, false
	}

	s, err := f.StringVal()
	if err != nil {
		return time.Time{}, false
	}

	// EXIF DateTime format: "2006:01:02 15:04:05".
	// It carries no timezone; interpret as local wall time.
	tm, err := time.ParseInLocation("2006:01:02 15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, false
	}

	return tm, true
}
