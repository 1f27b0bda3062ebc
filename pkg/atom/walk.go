package atom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxDepth caps recursion into nested containers.
const maxDepth = 16

// Container atoms hold child atoms instead of a payload.
var containers = map[string]struct{}{
	"moov": {},
	"trak": {},
	"mdia": {},
	"minf": {},
	"stbl": {},
	"udta": {},
	"edts": {},
	"dinf": {},
}

// Tree holds the parsed atom hierarchy of one stream. The stream stays
// attached so payloads can be read on demand.
type Tree struct {
	r        io.ReadSeeker
	roots    []Atom
	problems []error
}

// ParseTree walks the atom structure of r. Malformed atoms inside an intact
// top level are recorded as problems and skipped; a broken top level returns
// a CorruptContainerError.
func ParseTree(r io.ReadSeeker) (*Tree, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("determine stream size: %w", err)
	}

	t := &Tree{r: r}
	roots, err := t.walk(0, end, 0, "")
	if err != nil {
		return nil, err
	}
	t.roots = roots
	return t, nil
}

// Roots returns the top-level atoms in stream order.
func (t *Tree) Roots() []Atom { return t.roots }

// Problems returns the recoverable structural violations found while parsing.
func (t *Tree) Problems() []error { return t.problems }

// Payload reads the payload bytes of a.
func (t *Tree) Payload(a Atom) ([]byte, error) {
	if _, err := t.r.Seek(a.PayloadOffset(), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %q payload: %w", a.Type, err)
	}
	buf := make([]byte, a.PayloadSize())
	if _, err := io.ReadFull(t.r, buf); err != nil {
		return nil, fmt.Errorf("read %q payload: %w", a.Type, err)
	}
	return buf, nil
}

// walk parses the atoms between start and end. A structural violation at
// depth 0 aborts the parse, deeper ones abandon the current sibling level
// and let the parent resume at its known end.
func (t *Tree) walk(start, end int64, depth int, parent string) ([]Atom, error) {
	var atoms []Atom

	offset := start
	for offset < end {
		remaining := end - offset
		if remaining < 8 {
			// udta traditionally ends with a 32-bit zero terminator.
			if parent == "udta" && remaining == 4 {
				zero, err := t.zeroTerminator(offset)
				if err != nil {
					return nil, err
				}
				if zero {
					break
				}
			}
			t.problems = append(t.problems, &MalformedAtomError{
				Type:   parent,
				Offset: offset,
				Reason: fmt.Sprintf("%d trailing bytes, too short for an atom header", remaining),
			})
			break
		}

		var buf [16]byte
		if _, err := t.r.Seek(offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek atom header at %d: %w", offset, err)
		}
		if _, err := io.ReadFull(t.r, buf[:8]); err != nil {
			return nil, fmt.Errorf("read atom header at %d: %w", offset, err)
		}

		size := int64(binary.BigEndian.Uint32(buf[:4]))
		typ := string(buf[4:8])
		headerSize := int64(8)

		var reason string
		switch {
		case size == 0:
			// The atom runs to the end of its enclosing region.
			size = end - offset
		case size == 1:
			if remaining < 16 {
				reason = "extended size header truncated"
			} else if _, err := io.ReadFull(t.r, buf[8:16]); err != nil {
				return nil, fmt.Errorf("read extended size at %d: %w", offset, err)
			} else if ext := binary.BigEndian.Uint64(buf[8:16]); ext < 16 {
				reason = fmt.Sprintf("extended size %d smaller than its header", ext)
			} else if ext > math.MaxInt64 {
				reason = fmt.Sprintf("extended size %d overflows", ext)
			} else {
				size = int64(ext)
				headerSize = 16
			}
		case size < 8:
			reason = fmt.Sprintf("size %d smaller than its header", size)
		}
		if reason == "" && offset+size > end {
			reason = fmt.Sprintf("size %d overruns enclosing region ending at %d", size, end)
		}
		if reason != "" {
			if err := t.violation(depth, typ, offset, reason); err != nil {
				return nil, err
			}
			break
		}

		a := Atom{Type: typ, Offset: offset, Size: size, HeaderSize: headerSize}
		if _, ok := containers[typ]; ok {
			if depth+1 >= maxDepth {
				t.problems = append(t.problems, &MalformedAtomError{
					Type:   typ,
					Offset: offset,
					Reason: fmt.Sprintf("nested deeper than %d levels, children not parsed", maxDepth),
				})
			} else {
				children, err := t.walk(a.PayloadOffset(), a.End(), depth+1, typ)
				if err != nil {
					return nil, err
				}
				a.Children = children
			}
		}

		atoms = append(atoms, a)
		offset = a.End()
	}

	return atoms, nil
}

func (t *Tree) violation(depth int, typ string, offset int64, reason string) error {
	if depth == 0 {
		return &CorruptContainerError{
			Offset: offset,
			Reason: fmt.Sprintf("atom %q: %s", typ, reason),
		}
	}
	t.problems = append(t.problems, &MalformedAtomError{Type: typ, Offset: offset, Reason: reason})
	return nil
}

func (t *Tree) zeroTerminator(offset int64) (bool, error) {
	var buf [4]byte
	if _, err := t.r.Seek(offset, io.SeekStart); err != nil {
		return false, fmt.Errorf("seek trailing bytes at %d: %w", offset, err)
	}
	if _, err := io.ReadFull(t.r, buf[:]); err != nil {
		return false, fmt.Errorf("read trailing bytes at %d: %w", offset, err)
	}
	return buf == [4]byte{}, nil
}
