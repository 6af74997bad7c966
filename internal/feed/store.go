package feed

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
)

// Push describes one append into an antenna's feed.
type Push struct {
	AntennaID string
	NoteID    string
	// Limit caps the feed after the append; the oldest entries are evicted.
	Limit int
}

// Store provides atomic push-and-trim over bounded per-antenna feeds.
type Store struct {
	db *pebblestore.DB
	// mu orders concurrent push batches; sequence allocation and trimming
	// read committed state, so batches must not interleave.
	mu sync.Mutex
}

// NewStore creates a Store over db.
func NewStore(db *pebblestore.DB) *Store { return &Store{db: db} }

type feedMeta struct {
	lastSeq uint64
	count   uint64
}

func (s *Store) readMeta(antennaID string) feedMeta {
	b, err := s.db.Get(keyMeta(antennaID))
	if err != nil || len(b) < 16 {
		return feedMeta{}
	}
	return feedMeta{
		lastSeq: binary.BigEndian.Uint64(b[0:8]),
		count:   binary.BigEndian.Uint64(b[8:16]),
	}
}

func encodeMeta(m feedMeta) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], m.lastSeq)
	binary.BigEndian.PutUint64(b[8:16], m.count)
	return b
}

// Push appends a single note id and trims the feed to limit.
func (s *Store) Push(ctx context.Context, antennaID, noteID string, limit int) error {
	return s.PushAll(ctx, []Push{{AntennaID: antennaID, NoteID: noteID, Limit: limit}})
}

// PushAll applies all pushes as one atomic batch: every append and every
// eviction for one note commits together, the single pipelined flush of a
// dispatch. Ordering among distinct feeds within the batch is not
// observable since entries are keyed per antenna.
func (s *Store) PushAll(ctx context.Context, pushes []Push) error {
	if len(pushes) == 0 {
		return nil
	}
	for _, p := range pushes {
		if p.Limit < 1 {
			return errors.New("feed: push limit must be >= 1")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	for _, p := range pushes {
		meta := s.readMeta(p.AntennaID)
		meta.lastSeq++
		meta.count++
		if err := b.Set(keyEntry(p.AntennaID, meta.lastSeq), []byte(p.NoteID), nil); err != nil {
			return err
		}
		if meta.count > uint64(p.Limit) {
			evicted, err := s.trimOldest(b, p.AntennaID, meta.count-uint64(p.Limit))
			if err != nil {
				return err
			}
			meta.count -= evicted
		}
		if err := b.Set(keyMeta(p.AntennaID), encodeMeta(meta), nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// trimOldest stages deletes for up to n oldest committed entries of one feed
// and returns how many were staged. The entry appended in the current batch
// is not visible to the iterator and is never evicted here; with limit >= 1
// the committed entries always cover the excess.
func (s *Store) trimOldest(b *pebble.Batch, antennaID string, n uint64) (uint64, error) {
	low, hi := entryBounds(antennaID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var evicted uint64
	for ok := iter.First(); ok && evicted < n; ok = iter.Next() {
		if err := b.Delete(iter.Key(), nil); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// Read returns up to limit note ids from the feed, most recent first. A
// limit of zero returns the whole feed.
func (s *Store) Read(antennaID string, limit int) ([]string, error) {
	low, hi := entryBounds(antennaID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []string
	for ok := iter.Last(); ok && (limit == 0 || len(out) < limit); ok = iter.Prev() {
		out = append(out, string(iter.Value()))
	}
	return out, nil
}

// Count returns the number of entries currently in the feed.
func (s *Store) Count(antennaID string) uint64 {
	return s.readMeta(antennaID).count
}
