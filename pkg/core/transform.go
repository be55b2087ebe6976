package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/blowfish"
)

// compressGroup compresses a whole raw group as one block.
func compressGroup(raw []byte, codec Codec) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	switch codec {
	case CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, fmt.Errorf("write lz4: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("close lz4 writer: %w", err)
		}
		return buf.Bytes(), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	}
	return nil, fmt.Errorf("unsupported codec %d", codec)
}

// zstdMinDecoderMemory keeps the decoder limit above the smallest zstd
// window. The exact rawSize check below bounds the output.
const zstdMinDecoderMemory = 1 << 20

// decompressGroup inverts compressGroup and checks the result is exactly
// rawSize bytes long.
func decompressGroup(stored []byte, codec Codec, rawSize uint32) ([]byte, error) {
	if len(stored) == 0 {
		if rawSize != 0 {
			return nil, fmt.Errorf("empty group declares %d raw bytes: %w", rawSize, ErrCorruptGroup)
		}
		return stored, nil
	}

	var raw []byte
	switch codec {
	case CodecLZ4:
		zr := lz4.NewReader(bytes.NewReader(stored))
		b, err := io.ReadAll(io.LimitReader(zr, int64(rawSize)+1))
		if err != nil {
			return nil, fmt.Errorf("read lz4: %v: %w", err, ErrCorruptGroup)
		}
		raw = b
	case CodecZstd:
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(max(uint64(rawSize)+1, zstdMinDecoderMemory)))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		b, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("decode zstd: %v: %w", err, ErrCorruptGroup)
		}
		raw = b
	default:
		return nil, fmt.Errorf("unsupported codec %d: %w", codec, ErrCorruptGroup)
	}

	if len(raw) != int(rawSize) {
		return nil, fmt.Errorf("decompressed %d bytes, header declares %d: %w", len(raw), rawSize, ErrCorruptGroup)
	}
	return raw, nil
}

// groupKey derives the Blowfish key for one group from archive level
// material recorded in the header.
func groupKey(seed, fileSize uint32, g Group) []byte {
	var material [12]byte
	binary.LittleEndian.PutUint32(material[0:4], seed)
	binary.LittleEndian.PutUint32(material[4:8], fileSize)
	binary.LittleEndian.PutUint32(material[8:12], uint32(g))
	sum := sha256.Sum256(material[:])
	return sum[:16]
}

// cryptGroup runs Blowfish in ECB mode over every whole 8-byte block of b
// in place. The trailing partial block is left as is, so the transform
// never changes the group length.
func cryptGroup(b []byte, key []byte, decrypt bool) error {
	c, err := blowfish.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create blowfish cipher: %w", err)
	}
	for off := 0; off+blowfish.BlockSize <= len(b); off += blowfish.BlockSize {
		blk := b[off : off+blowfish.BlockSize]
		if decrypt {
			c.Decrypt(blk, blk)
		} else {
			c.Encrypt(blk, blk)
		}
	}
	return nil
}

// compressStored applies the compression stage selected in h. Encryption
// runs later in encryptStored because its key depends on the final size.
// raw is never modified.
func compressStored(raw []byte, h *Header, g Group) ([]byte, error) {
	out := raw
	if h.Compressed() {
		var err error
		if out, err = compressGroup(raw, h.Codec); err != nil {
			return nil, fmt.Errorf("compress %s: %w", g, err)
		}
	}
	return out, nil
}

// encryptStored encrypts a stored group once the final file size is known.
func encryptStored(stored []byte, h *Header, g Group) ([]byte, error) {
	if !h.Encrypted() || len(stored) == 0 {
		return stored, nil
	}
	out := bytes.Clone(stored)
	if err := cryptGroup(out, groupKey(h.KeySeed, h.FileSize, g), false); err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", g, err)
	}
	return out, nil
}

// decodeTransforms inverts encryption then compression, branching only on
// the header flags.
func decodeTransforms(stored []byte, h *Header, g Group) ([]byte, error) {
	gi := h.Group(g)
	buf := stored
	if h.Encrypted() && len(buf) > 0 {
		buf = bytes.Clone(stored)
		if err := cryptGroup(buf, groupKey(h.KeySeed, h.FileSize, g), true); err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", g, err)
		}
	}
	if h.Compressed() {
		raw, err := decompressGroup(buf, h.Codec, gi.RawSize)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", g, err)
		}
		return raw, nil
	}
	if len(buf) != int(gi.RawSize) {
		return nil, fmt.Errorf("%s stores %d bytes, header declares %d raw: %w", g, len(buf), gi.RawSize, ErrCorruptGroup)
	}
	return buf, nil
}
