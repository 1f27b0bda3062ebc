package atom

import (
	"errors"
	"fmt"
)

// MalformedAtomError reports an atom whose declared structure violates its
// fixed layout. It is recoverable: the atom's data is unusable but the rest
// of the tree still is.
type MalformedAtomError struct {
	Type   string
	Offset int64
	Reason string
}

func (e *MalformedAtomError) Error() string {
	return fmt.Sprintf("malformed atom %q at offset %d: %s", e.Type, e.Offset, e.Reason)
}

// CorruptContainerError reports a stream whose top-level offset bookkeeping
// is inconsistent. It is fatal for the whole file.
type CorruptContainerError struct {
	Offset int64
	Reason string
}

func (e *CorruptContainerError) Error() string {
	return fmt.Sprintf("corrupt container at offset %d: %s", e.Offset, e.Reason)
}

// IsMalformed reports whether err is a MalformedAtomError.
func IsMalformed(err error) bool {
	var e *MalformedAtomError
	return errors.As(err, &e)
}

// IsCorrupt reports whether err is a CorruptContainerError.
func IsCorrupt(err error) bool {
	var e *CorruptContainerError
	return errors.As(err, &e)
}
