// Package pebblestore wraps a Pebble database with the fsync policy and the
// small helper surface the feed store needs: point reads/writes, atomic
// batches, and range iterators.
package pebblestore
