// Package sqlitestore is the authoritative SQLite-backed storage behind the
// engine: antenna records and their administrative CRUD, per-user policies,
// and the relationship tables the membership lookups read. Administrative
// mutations publish the corresponding antenna lifecycle events so every
// process's registry converges.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/hotomoe/io/internal/antenna"
	"github.com/hotomoe/io/internal/store/sqlite/migrations"
)

const timeLayout = time.RFC3339

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("sqlite: not found")

// Publisher publishes antenna lifecycle events after administrative
// mutations. The in-process bus satisfies it.
type Publisher interface {
	Publish(channel string, payload []byte) error
}

// Store implements the engine's SnapshotSource, PolicySource, and Lookups
// collaborator interfaces over SQLite.
type Store struct {
	db     *sql.DB
	events Publisher
}

// New opens a SQLite database at dsn, runs pending migrations, and wires an
// optional event publisher for administrative mutations.
func New(dsn string, events Publisher) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, events: events}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// CreateAntenna inserts a new antenna, assigning an id and timestamps when
// absent, and publishes the created event.
func (s *Store) CreateAntenna(ctx context.Context, a *antenna.Antenna) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.LastUsedAt.IsZero() {
		a.LastUsedAt = now
	}
	users, keywords, excludes, err := marshalAntennaJSON(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO antennas (id, owner_id, is_active, source, list_id, users, keywords, exclude_keywords,
		                       case_sensitive, with_replies, with_file, local_only, exclude_bots, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, boolToInt(a.IsActive), string(a.Source), nullable(a.ListID), users, keywords, excludes,
		boolToInt(a.CaseSensitive), boolToInt(a.WithReplies), boolToInt(a.WithFile),
		boolToInt(a.LocalOnly), boolToInt(a.ExcludeBots),
		a.CreatedAt.Format(timeLayout), a.LastUsedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert antenna: %w", err)
	}
	a.Normalize()
	return s.publish(antenna.EncodeCreated(a))
}

// UpdateAntenna persists changes to an existing antenna and publishes the
// updated event.
func (s *Store) UpdateAntenna(ctx context.Context, a *antenna.Antenna) error {
	users, keywords, excludes, err := marshalAntennaJSON(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE antennas SET owner_id = ?, is_active = ?, source = ?, list_id = ?, users = ?, keywords = ?,
		                     exclude_keywords = ?, case_sensitive = ?, with_replies = ?, with_file = ?,
		                     local_only = ?, exclude_bots = ?, last_used_at = ?
		 WHERE id = ?`,
		a.OwnerID, boolToInt(a.IsActive), string(a.Source), nullable(a.ListID), users, keywords, excludes,
		boolToInt(a.CaseSensitive), boolToInt(a.WithReplies), boolToInt(a.WithFile),
		boolToInt(a.LocalOnly), boolToInt(a.ExcludeBots), a.LastUsedAt.Format(timeLayout),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update antenna: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	a.Normalize()
	return s.publish(antenna.EncodeUpdated(a))
}

// DeleteAntenna removes an antenna and publishes the deleted event.
func (s *Store) DeleteAntenna(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM antennas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete antenna: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.publish(antenna.EncodeDeleted(id))
}

// GetAntenna returns a single antenna by id.
func (s *Store) GetAntenna(ctx context.Context, id string) (*antenna.Antenna, error) {
	row := s.db.QueryRowContext(ctx, antennaSelect+` WHERE id = ?`, id)
	a, err := scanAntenna(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAntennas returns all antennas belonging to an owner.
func (s *Store) ListAntennas(ctx context.Context, ownerID string) ([]*antenna.Antenna, error) {
	rows, err := s.db.QueryContext(ctx, antennaSelect+` WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query antennas: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAntennas(rows)
}

// ActiveAntennas returns every active antenna. The registry calls this once
// per process lifetime.
func (s *Store) ActiveAntennas(ctx context.Context) ([]*antenna.Antenna, error) {
	rows, err := s.db.QueryContext(ctx, antennaSelect+` WHERE is_active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query active antennas: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanAntennas(rows)
}

// TouchLastUsed records that an antenna's feed was read.
func (s *Store) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE antennas SET last_used_at = ? WHERE id = ?`, at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}
	return nil
}

// SetPolicy upserts an owner's feed-limit policy.
func (s *Store) SetPolicy(ctx context.Context, ownerID string, feedLimit int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (user_id, feed_limit) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET feed_limit = excluded.feed_limit`,
		ownerID, feedLimit)
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	return nil
}

// PolicyOf implements antenna.PolicySource.
func (s *Store) PolicyOf(ctx context.Context, ownerID string) (antenna.Policy, error) {
	var limit int
	err := s.db.QueryRowContext(ctx,
		`SELECT feed_limit FROM policies WHERE user_id = ?`, ownerID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return antenna.Policy{}, fmt.Errorf("policy of %s: %w", ownerID, ErrNotFound)
	}
	if err != nil {
		return antenna.Policy{}, fmt.Errorf("query policy: %w", err)
	}
	return antenna.Policy{FeedLimit: limit}, nil
}

// AddMute records that userID mutes targetID.
func (s *Store) AddMute(ctx context.Context, userID, targetID string) error {
	return s.addPair(ctx, "mutes", userID, targetID)
}

// AddBlock records that userID blocks targetID.
func (s *Store) AddBlock(ctx context.Context, userID, targetID string) error {
	return s.addPair(ctx, "blocks", userID, targetID)
}

// AddFollow records that userID follows targetID.
func (s *Store) AddFollow(ctx context.Context, userID, targetID string) error {
	return s.addPair(ctx, "follows", userID, targetID)
}

// AddListMember records that userID belongs to listID.
func (s *Store) AddListMember(ctx context.Context, listID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO list_members (list_id, user_id) VALUES (?, ?)`, listID, userID)
	if err != nil {
		return fmt.Errorf("insert list member: %w", err)
	}
	return nil
}

// Muting implements antenna.Lookups.
func (s *Store) Muting(ctx context.Context, viewerID string) (antenna.MemberSet, error) {
	return s.querySet(ctx, `SELECT target_id FROM mutes WHERE user_id = ?`, viewerID)
}

// BlockingMe implements antenna.Lookups.
func (s *Store) BlockingMe(ctx context.Context, viewerID string) (antenna.MemberSet, error) {
	return s.querySet(ctx, `SELECT user_id FROM blocks WHERE target_id = ?`, viewerID)
}

// Following implements antenna.Lookups.
func (s *Store) Following(ctx context.Context, viewerID string) (antenna.MemberSet, error) {
	return s.querySet(ctx, `SELECT target_id FROM follows WHERE user_id = ?`, viewerID)
}

// ListMembers implements antenna.Lookups.
func (s *Store) ListMembers(ctx context.Context, listID string) (antenna.MemberSet, error) {
	return s.querySet(ctx, `SELECT user_id FROM list_members WHERE list_id = ?`, listID)
}

func (s *Store) addPair(ctx context.Context, table, userID, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (user_id, target_id) VALUES (?, ?)`, userID, targetID)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) querySet(ctx context.Context, query, arg string) (antenna.MemberSet, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query membership: %w", err)
	}
	defer func() { _ = rows.Close() }()
	set := antenna.MemberSet{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

func (s *Store) publish(payload []byte, err error) error {
	if err != nil {
		return fmt.Errorf("encode antenna event: %w", err)
	}
	if s.events == nil {
		return nil
	}
	if err := s.events.Publish(antenna.EventChannel, payload); err != nil {
		return fmt.Errorf("publish antenna event: %w", err)
	}
	return nil
}

const antennaSelect = `SELECT id, owner_id, is_active, source, list_id, users, keywords, exclude_keywords,
       case_sensitive, with_replies, with_file, local_only, exclude_bots, created_at, last_used_at
  FROM antennas`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAntenna(row rowScanner) (*antenna.Antenna, error) {
	var a antenna.Antenna
	var source string
	var listID sql.NullString
	var users, keywords, excludes string
	var active, caseSens, replies, withFile, localOnly, excludeBots int
	var createdAt, lastUsedAt string
	err := row.Scan(&a.ID, &a.OwnerID, &active, &source, &listID, &users, &keywords, &excludes,
		&caseSens, &replies, &withFile, &localOnly, &excludeBots, &createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	a.Source = antenna.Source(source)
	a.ListID = listID.String
	a.CaseSensitive = caseSens != 0
	a.WithReplies = replies != 0
	a.WithFile = withFile != 0
	a.LocalOnly = localOnly != 0
	a.ExcludeBots = excludeBots != 0
	if err := json.Unmarshal([]byte(users), &a.Users); err != nil {
		return nil, fmt.Errorf("decode users column: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords column: %w", err)
	}
	if err := json.Unmarshal([]byte(excludes), &a.ExcludeKeywords); err != nil {
		return nil, fmt.Errorf("decode exclude keywords column: %w", err)
	}
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.LastUsedAt, err = time.Parse(timeLayout, lastUsedAt); err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	a.Normalize()
	return &a, nil
}

func scanAntennas(rows *sql.Rows) ([]*antenna.Antenna, error) {
	var out []*antenna.Antenna
	for rows.Next() {
		a, err := scanAntenna(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func marshalAntennaJSON(a *antenna.Antenna) (users, keywords, excludes string, err error) {
	ub, err := json.Marshal(orEmpty(a.Users))
	if err != nil {
		return "", "", "", fmt.Errorf("encode users: %w", err)
	}
	kb, err := json.Marshal(orEmptyGroups(a.Keywords))
	if err != nil {
		return "", "", "", fmt.Errorf("encode keywords: %w", err)
	}
	eb, err := json.Marshal(orEmptyGroups(a.ExcludeKeywords))
	if err != nil {
		return "", "", "", fmt.Errorf("encode exclude keywords: %w", err)
	}
	return string(ub), string(kb), string(eb), nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyGroups(g [][]string) [][]string {
	if g == nil {
		return [][]string{}
	}
	return g
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
