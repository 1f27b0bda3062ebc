package atom

import (
	"fmt"
	"strings"
)

// segment is one step of a dot-separated search pattern.
type segment struct {
	tag string
	all bool // match every sibling with the tag instead of the first
}

func parsePattern(pattern string) ([]segment, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	parts := strings.Split(pattern, ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		all := strings.HasSuffix(part, "[*]")
		tag := strings.TrimSuffix(part, "[*]")
		if len(tag) != 4 {
			return nil, fmt.Errorf("pattern %q: %q is not a 4-character atom type", pattern, tag)
		}
		segs = append(segs, segment{tag: tag, all: all})
	}
	return segs, nil
}

// Find returns the atoms matching a dot-separated pattern of type tags, for
// example "moov.trak[*].mdia.mdhd". A plain tag selects the first sibling
// with that type, a "[*]" suffix selects every one.
func (t *Tree) Find(pattern string) ([]Atom, error) {
	segs, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return match(t.roots, segs), nil
}

func match(atoms []Atom, segs []segment) []Atom {
	seg := segs[0]

	var found []Atom
	for _, a := range atoms {
		if a.Type != seg.tag {
			continue
		}
		if len(segs) == 1 {
			found = append(found, a)
		} else {
			found = append(found, match(a.Children, segs[1:])...)
		}
		if !seg.all {
			break
		}
	}
	return found
}
