// Package crc32c computes the Castagnoli CRC32 checksum SCTP uses over the
// whole packet with the checksum field zeroed (RFC 4960 Appendix B). This is
// an out-of-scope collaborator per the association engine's component
// boundary, kept as its own small package the way the chunk codec and the
// datagram demuxer are also collaborators rather than core logic.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the CRC32c of raw, which must have its 4-byte checksum
// field already zeroed.
func Checksum(raw []byte) uint32 {
	return crc32.Checksum(raw, table)
}

// PutChecksum overwrites the 4 bytes of raw at offset with the packet's
// CRC32c, encoded little-endian as required by RFC 4960 Appendix A.1 — the
// one field in an SCTP packet that is not big-endian on the wire.
func PutChecksum(raw []byte, offset int) {
	raw[offset] = 0
	raw[offset+1] = 0
	raw[offset+2] = 0
	raw[offset+3] = 0
	sum := Checksum(raw)
	raw[offset] = byte(sum)
	raw[offset+1] = byte(sum >> 8)
	raw[offset+2] = byte(sum >> 16)
	raw[offset+3] = byte(sum >> 24)
}

// Verify reports whether the checksum embedded in raw at offset matches the
// packet's actual CRC32c.
func Verify(raw []byte, offset int) bool {
	theirs := uint32(raw[offset]) | uint32(raw[offset+1])<<8 | uint32(raw[offset+2])<<16 | uint32(raw[offset+3])<<24
	cp := make([]byte, len(raw))
	copy(cp, raw)
	cp[offset], cp[offset+1], cp[offset+2], cp[offset+3] = 0, 0, 0, 0
	return Checksum(cp) == theirs
}
