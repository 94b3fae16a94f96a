package ctrie

import "encoding/binary"

// Uint64Key encodes an unsigned 64-bit integer as a big-endian byte
// string, so that the trie's byte-lexicographic key order matches
// numeric order.
func Uint64Key(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

// Uint32Key is Uint64Key's 32-bit counterpart.
func Uint32Key(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}

// Int64Key encodes a signed 64-bit integer as a big-endian byte string
// with its sign bit flipped, so that byte-lexicographic order over the
// encoding matches numeric order across the full signed range -
// flipping the sign bit maps the signed range onto the unsigned range
// while preserving relative order (the most negative value becomes
// all-zero, the most positive becomes all-one).
func Int64Key(v int64) []byte {
	return Uint64Key(uint64(v) ^ (1 << 63))
}

// Int32Key is Int64Key's 32-bit counterpart.
func Int32Key(v int32) []byte {
	return Uint32Key(uint32(v) ^ (1 << 31))
}

// DecodeUint64Key reverses Uint64Key. It panics if key is not 8 bytes.
func DecodeUint64Key(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// DecodeInt64Key reverses Int64Key. It panics if key is not 8 bytes.
func DecodeInt64Key(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key) ^ (1 << 63))
}
