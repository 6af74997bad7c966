package feed

import "encoding/binary"

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ant/{antennaID}/m              meta: lastSeq (8) | count (8)
// - ant/{antennaID}/e/{seq_be8}    entry: value is the note id
var (
	antPrefix  = []byte("ant/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyMeta builds the feed metadata key.
func keyMeta(antennaID string) []byte {
	k := make([]byte, 0, len(antennaID)+8)
	k = append(k, antPrefix...)
	k = append(k, antennaID...)
	k = append(k, metaSuffix...)
	return k
}

// keyEntry builds the entry key with a big-endian sequence for ordering.
func keyEntry(antennaID string, seq uint64) []byte {
	k := make([]byte, 0, len(antennaID)+16)
	k = append(k, antPrefix...)
	k = append(k, antennaID...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// entryBounds returns the [low, high) iterator bounds covering all entries
// of one feed.
func entryBounds(antennaID string) (low, hi []byte) {
	low = keyEntry(antennaID, 0)
	hi = append(keyEntry(antennaID, ^uint64(0)), 0x00)
	return low, hi
}
