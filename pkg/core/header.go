package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path"
	"strings"
)

// GroupInfo describes where a group lives and how to verify it.
type GroupInfo struct {
	StoredSize uint32 // bytes in the archive after compression/encryption
	RawSize    uint32 // bytes of the concatenated entries
	Count      uint32
	Checksum   uint64 // xxh3 of the raw bytes
}

func (gi *GroupInfo) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], gi.StoredSize)
	binary.LittleEndian.PutUint32(buf[4:8], gi.RawSize)
	binary.LittleEndian.PutUint32(buf[8:12], gi.Count)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	binary.LittleEndian.PutUint64(buf[16:24], gi.Checksum)
}

func (gi *GroupInfo) decodeFrom(buf []byte) {
	gi.StoredSize = binary.LittleEndian.Uint32(buf[0:4])
	gi.RawSize = binary.LittleEndian.Uint32(buf[4:8])
	gi.Count = binary.LittleEndian.Uint32(buf[8:12])
	gi.Checksum = binary.LittleEndian.Uint64(buf[16:24])
}

// Header is the archive level header.
type Header struct {
	Version   uint32
	HeaderLen uint32
	Flags     uint32
	FileSize  uint32
	Codec     Codec
	KeySeed   uint32
	Groups    [2]GroupInfo
}

// Compressed reports whether the groups were compressed on pack.
func (h *Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Encrypted reports whether the groups were encrypted on pack.
func (h *Header) Encrypted() bool { return h.Flags&FlagEncrypted != 0 }

// Group returns the info block for g.
func (h *Header) Group(g Group) *GroupInfo {
	return &h.Groups[g-1]
}

// FormatLabel returns the informational "ICE{n}" label.
func (h *Header) FormatLabel() string {
	return fmt.Sprintf("ICE%d", byte(h.Version))
}

// EncodeTo writes the header into buf, which must hold HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	clear(buf[:HeaderSize])
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[0x08:0x0C], h.Version)
	binary.LittleEndian.PutUint32(buf[0x0C:0x10], h.HeaderLen)
	binary.LittleEndian.PutUint32(buf[0x10:0x14], h.Flags)
	binary.LittleEndian.PutUint32(buf[0x14:0x18], h.FileSize)
	buf[0x18] = byte(h.Codec)
	binary.LittleEndian.PutUint32(buf[0x1C:0x20], h.KeySeed)
	h.Groups[0].encodeTo(buf[0x20 : 0x20+groupInfoSize])
	h.Groups[1].encodeTo(buf[0x38 : 0x38+groupInfoSize])
}

// DecodeFrom reads the header fields from buf without validating them.
func (h *Header) DecodeFrom(buf []byte) {
	h.Version = binary.LittleEndian.Uint32(buf[0x08:0x0C])
	h.HeaderLen = binary.LittleEndian.Uint32(buf[0x0C:0x10])
	h.Flags = binary.LittleEndian.Uint32(buf[0x10:0x14])
	h.FileSize = binary.LittleEndian.Uint32(buf[0x14:0x18])
	h.Codec = Codec(buf[0x18])
	h.KeySeed = binary.LittleEndian.Uint32(buf[0x1C:0x20])
	h.Groups[0].decodeFrom(buf[0x20 : 0x20+groupInfoSize])
	h.Groups[1].decodeFrom(buf[0x38 : 0x38+groupInfoSize])
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)
	return buf, nil
}

// UnmarshalBinary decodes and validates a header at the start of data.
func (h *Header) UnmarshalBinary(data []byte) error {
	if !IsIceMagic(data) {
		return ErrNotIceFile
	}
	h.DecodeFrom(data)
	return h.validate(len(data))
}

func (h *Header) validate(size int) error {
	if h.HeaderLen < minHeaderLen || int64(h.HeaderLen) > int64(size) {
		return fmt.Errorf("header length %#x for %d byte archive: %w", h.HeaderLen, size, ErrTruncatedHeader)
	}
	if h.FileSize != 0 && int64(h.FileSize) > int64(size) {
		return fmt.Errorf("declared size %d exceeds %d bytes: %w", h.FileSize, size, ErrTruncatedHeader)
	}
	if h.Compressed() && h.Codec != CodecLZ4 && h.Codec != CodecZstd {
		return fmt.Errorf("unknown codec %d: %w", h.Codec, ErrCorruptGroup)
	}
	return nil
}

// IsIceMagic is the format sniff: the buffer must be longer than 127 bytes
// and start with "ICE\x00".
func IsIceMagic(b []byte) bool {
	return len(b) >= MinArchiveSize && bytes.Equal(b[:4], []byte(Magic))
}

// EntryHeader is a decoded entry sub-header.
type EntryHeader struct {
	HeaderLen  int
	Name       string
	PayloadLen int
	Ext        string
}

// EncodeEntryHeader builds the sub-header for an entry with the given name
// and payload length.
func EncodeEntryHeader(name string, payloadLen int) ([]byte, error) {
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("%q is %d bytes, max %d: %w", name, len(name), MaxNameLen, ErrNameTooLong)
	}
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	if payloadLen < 0 || int64(payloadLen)+SubHeaderSize > maxUint32 {
		return nil, fmt.Errorf("payload of %d bytes for %q does not fit a 32-bit size", payloadLen, name)
	}

	buf := make([]byte, SubHeaderSize)
	binary.LittleEndian.PutUint32(buf[0x00:0x04], uint32(len(name)+1))
	binary.LittleEndian.PutUint32(buf[0x04:0x08], uint32(SubHeaderSize+payloadLen))
	binary.LittleEndian.PutUint32(buf[0x08:0x0C], uint32(payloadLen))
	binary.LittleEndian.PutUint32(buf[0x0C:0x10], SubHeaderSize)
	copy(buf[0x10:0x14], extTag(name))
	copy(buf[0x40:0x40+NameFieldSize], name)
	return buf, nil
}

// DecodeEntryHeader reads the sub-header starting at offset.
func DecodeEntryHeader(b []byte, offset int) (EntryHeader, error) {
	if offset < 0 || len(b)-offset < SubHeaderSize {
		return EntryHeader{}, fmt.Errorf("%d bytes left at offset %#x: %w", max(len(b)-offset, 0), offset, ErrTruncatedHeader)
	}
	sh := b[offset : offset+SubHeaderSize]

	nameLen := int(binary.LittleEndian.Uint32(sh[0x00:0x04]))
	if nameLen > NameFieldSize {
		return EntryHeader{}, fmt.Errorf("name length %d at offset %#x: %w", nameLen, offset, ErrTruncatedHeader)
	}
	name := sh[0x40 : 0x40+nameLen]
	if n := len(name); n > 0 && name[n-1] == 0 {
		name = name[:n-1]
	}

	return EntryHeader{
		HeaderLen:  int(binary.LittleEndian.Uint32(sh[0x0C:0x10])),
		Name:       string(name),
		PayloadLen: int(binary.LittleEndian.Uint32(sh[0x08:0x0C])),
		Ext:        string(bytes.TrimRight(sh[0x10:0x14], "\x00")),
	}, nil
}

// extTag returns up to four bytes of the name's extension.
func extTag(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if len(ext) > 4 {
		ext = ext[:4]
	}
	return ext
}

const maxUint32 = 1<<32 - 1
