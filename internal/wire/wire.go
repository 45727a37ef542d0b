// Package wire frames stored HTTP responses for byte providers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("fetchcache: corrupt response record")
	magic4     = [...]byte{'F', 'C', 'R', 'S'}
)

// Record is a response kept for conditional revalidation.
type Record struct {
	Status      int
	ETag        string
	ContentType string
	StoredAt    time.Time
	Body        []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode layout:
//
//	magic(4) | ver(1) | status(u16 be) | etagLen(u16 be) | etag |
//	ctypeLen(u16 be) | ctype | storedAt(unix nanos, u64 be) | blen(u32 be) | body(blen)
//
// ETag and ContentType longer than 0xFFFF bytes are truncated.
func Encode(r Record) []byte {
	etag := clip(r.ETag)
	ctype := clip(r.ContentType)

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 2 + 2 + len(etag) + 2 + len(ctype) + 8 + 4 + len(r.Body))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(r.Status))
	buf.Write(u2[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(etag)))
	buf.Write(u2[:])
	buf.WriteString(etag)

	binary.BigEndian.PutUint16(u2[:], uint16(len(ctype)))
	buf.Write(u2[:])
	buf.WriteString(ctype)

	binary.BigEndian.PutUint64(u8[:], uint64(r.StoredAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Body)))
	buf.Write(u4[:])
	buf.Write(r.Body)

	return buf.Bytes()
}

// Decode parses a record produced by Encode. The returned Body aliases b.
func Decode(b []byte) (Record, error) {
	if len(b) < 5 || !hasMagic(b) || b[4] != version {
		return Record{}, ErrCorrupt
	}
	off := 5

	status, ok := readU16(b, &off)
	if !ok {
		return Record{}, ErrCorrupt
	}
	etag, ok := readStr16(b, &off)
	if !ok {
		return Record{}, ErrCorrupt
	}
	ctype, ok := readStr16(b, &off)
	if !ok {
		return Record{}, ErrCorrupt
	}

	if off+8 > len(b) {
		return Record{}, ErrCorrupt
	}
	nanos := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	if off+4 > len(b) {
		return Record{}, ErrCorrupt
	}
	blen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// body must end the record exactly
	if blen != len(b)-off {
		return Record{}, ErrCorrupt
	}

	return Record{
		Status:      int(status),
		ETag:        etag,
		ContentType: ctype,
		StoredAt:    time.Unix(0, nanos),
		Body:        b[off:],
	}, nil
}

func readU16(b []byte, off *int) (uint16, bool) {
	if *off+2 > len(b) {
		return 0, false
	}
	v := binary.BigEndian.Uint16(b[*off : *off+2])
	*off += 2
	return v, true
}

func readStr16(b []byte, off *int) (string, bool) {
	n, ok := readU16(b, off)
	if !ok || int(n) > len(b)-*off {
		return "", false
	}
	s := string(b[*off : *off+int(n)])
	*off += int(n)
	return s, true
}

func clip(s string) string {
	if len(s) > 0xFFFF {
		return s[:0xFFFF]
	}
	return s
}
