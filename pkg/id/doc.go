// Package id generates 128-bit, lexicographically sortable identifiers.
// An ID encodes a millisecond timestamp followed by a per-process sequence,
// so ids sort by creation time and never collide within one process.
package id
