package core

// Wire format (version 4), all integers little-endian:
//
//	archive header, 0x80 bytes
//	  0x00 magic       "ICE\x00"
//	  0x04 reserved
//	  0x08 version     uint32, low byte is the format discriminator
//	  0x0C headerLen   uint32, offset of the first group
//	  0x10 flags       uint32, FlagCompressed | FlagEncrypted
//	  0x14 fileSize    uint32, total archive length
//	  0x18 codec       uint8
//	  0x1C keySeed     uint32
//	  0x20 group 1 info (24 bytes)
//	  0x38 group 2 info (24 bytes)
//	group info
//	  storedSize uint32, rawSize uint32, count uint32, reserved uint32,
//	  checksum uint64 (xxh3 of the raw group bytes)
//	group 1 bytes, then group 2 bytes
//
// A raw group is a run of entries, each a 0x80 byte sub-header followed by
// its payload with no padding in between.
const (
	Magic   = "ICE\x00" // Magic number to identify the archive
	Version = 4         // Archive format version written on pack

	HeaderSize    = 0x80 // archive header length written on pack
	SubHeaderSize = 0x80 // entry sub-header length
	NameFieldSize = 64   // fixed name field inside the sub-header
	MaxNameLen    = NameFieldSize - 1

	// MinArchiveSize is the smallest buffer IsIceMagic accepts.
	MinArchiveSize = 128

	minHeaderLen  = 0x50 // fields we actually read
	groupInfoSize = 24
)

// Header flags.
const (
	FlagCompressed uint32 = 1 << 0
	FlagEncrypted  uint32 = 1 << 1
)

// Codec identifies the whole-group compression algorithm.
type Codec byte

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	}
	return "unknown"
}

// Group is one of the two disjoint partitions of an archive.
type Group int

const (
	Group1 Group = 1
	Group2 Group = 2
)

func (g Group) String() string {
	if g == Group1 {
		return "group1"
	}
	return "group2"
}

// Entry is one file stored inside a group.
type Entry struct {
	Name  string
	Data  []byte
	Group Group
}

// File is a caller supplied input for Pack.
type File struct {
	Path string // entry name, classified by its base name
	Data []byte
}

// Archive is a decoded ICE archive.
type Archive struct {
	Header Header
	Group1 []Entry
	Group2 []Entry
}

// Entries returns group 1 followed by group 2.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, 0, len(a.Group1)+len(a.Group2))
	out = append(out, a.Group1...)
	return append(out, a.Group2...)
}

// EntrySummary is one row of a listing. Err is set for error markers, in
// which case Name is empty.
type EntrySummary struct {
	Group Group
	Name  string
	Size  int
	Err   error
}
