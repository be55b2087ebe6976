package core

import (
	"bytes"
	"fmt"
)

// EncodeGroup concatenates sub-header and payload for every entry, in order.
// An empty entry list encodes to an empty slice.
func EncodeGroup(entries []Entry) ([]byte, error) {
	size := 0
	for _, e := range entries {
		size += SubHeaderSize + len(e.Data)
	}
	if int64(size) > maxUint32 {
		return nil, fmt.Errorf("group of %d bytes does not fit a 32-bit size", size)
	}

	out := make([]byte, 0, size)
	for _, e := range entries {
		sh, err := EncodeEntryHeader(e.Name, len(e.Data))
		if err != nil {
			return nil, fmt.Errorf("encode entry header: %w", err)
		}
		out = append(out, sh...)
		out = append(out, e.Data...)
	}
	return out, nil
}

// DecodeGroup splits a raw (already decrypted and decompressed) group into
// its entries. Payload slices are copies and do not alias b.
func DecodeGroup(b []byte, g Group) ([]Entry, error) {
	var entries []Entry
	err := walkGroup(b, g, func(eh EntryHeader, payload []byte) {
		entries = append(entries, Entry{
			Name:  eh.Name,
			Data:  bytes.Clone(payload),
			Group: g,
		})
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// walkGroup calls fn for every entry in the raw group. On a parse failure it
// stops and returns a *GroupError; fn has already seen the entries before it.
func walkGroup(b []byte, g Group, fn func(EntryHeader, []byte)) error {
	for off := 0; off < len(b); {
		eh, err := DecodeEntryHeader(b, off)
		if err != nil {
			return &GroupError{Group: g, Offset: off, Err: err}
		}
		if eh.HeaderLen < SubHeaderSize {
			return &GroupError{Group: g, Offset: off,
				Err: fmt.Errorf("sub-header length %#x: %w", eh.HeaderLen, ErrCorruptGroup)}
		}
		start := int64(off) + int64(eh.HeaderLen)
		end := start + int64(eh.PayloadLen)
		if end > int64(len(b)) {
			return &GroupError{Group: g, Offset: off,
				Err: fmt.Errorf("entry %q needs %d bytes, %d left: %w", eh.Name, end-int64(off), len(b)-off, ErrCorruptGroup)}
		}
		fn(eh, b[start:end])
		off = int(end)
	}
	return nil
}
