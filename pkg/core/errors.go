package core

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec. Callers match them with errors.Is.
var (
	ErrNotIceFile       = errors.New("not an ICE file")
	ErrTruncatedHeader  = errors.New("truncated header")
	ErrCorruptGroup     = errors.New("corrupt group")
	ErrChecksumMismatch = fmt.Errorf("checksum mismatch: %w", ErrCorruptGroup)
	ErrNameTooLong      = errors.New("entry name too long")
	ErrInvalidName      = errors.New("invalid entry name")
	ErrPathNotUnderRoot = errors.New("path not under data root")
	ErrNoEntries        = errors.New("archive has no entries")
	ErrEmptyInput       = errors.New("no files to pack")
)

// GroupError reports where inside a group decoding stopped.
type GroupError struct {
	Group  Group
	Offset int // byte offset within the raw group, -1 when not applicable
	Err    error
}

func (e *GroupError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %v", e.Group, e.Err)
	}
	return fmt.Sprintf("%s at offset %#x: %v", e.Group, e.Offset, e.Err)
}

func (e *GroupError) Unwrap() error { return e.Err }
