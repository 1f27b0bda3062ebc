package atom

// Atom is one node in a QuickTime container tree.
type Atom struct {
	Type       string // 4-character type tag, e.g. "moov"
	Offset     int64  // absolute offset of the atom header in the stream
	Size       int64  // size including the header
	HeaderSize int64  // 8, or 16 when the extended 64-bit size is used
	Children   []Atom // parsed children, only for container atoms
}

// End returns the offset just past the atom.
func (a Atom) End() int64 { return a.Offset + a.Size }

// PayloadOffset returns the offset of the atom's payload.
func (a Atom) PayloadOffset() int64 { return a.Offset + a.HeaderSize }

// PayloadSize returns the length of the atom's payload.
func (a Atom) PayloadSize() int64 { return a.Size - a.HeaderSize }
