// Package store persists configured controllers in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when no entry matches.
	ErrNotFound = errors.New("controller entry not found")
	// ErrDuplicateHost is returned when an entry for the host already exists.
	ErrDuplicateHost = errors.New("controller already configured")
)

// Entry is one configured controller. Host is its unique identity.
type Entry struct {
	ID        string
	Host      string
	Title     string
	Groups    map[string]string // group id -> display name
	CreatedAt time.Time
}

// GroupIDs returns the entry's group ids, numerically ordered where possible.
func (e Entry) GroupIDs() []string {
	ids := make([]string, 0, len(e.Groups))
	for id := range e.Groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Store wraps the SQLite database
type Store struct {
	db *sql.DB
}

// Open opens the database at path and initializes the schema
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS controllers (
			id TEXT PRIMARY KEY,
			host TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			groups_json TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create controllers table: %w", err)
	}
	return nil
}

// Create stores a new entry for host. It fails with ErrDuplicateHost when the
// host is already configured.
func (s *Store) Create(ctx context.Context, host, title string, groups map[string]string) (Entry, error) {
	if groups == nil {
		groups = map[string]string{}
	}
	payload, err := json.Marshal(groups)
	if err != nil {
		return Entry{}, fmt.Errorf("encode groups: %w", err)
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Host:      host,
		Title:     title,
		Groups:    groups,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO controllers (id, host, title, groups_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Host, entry.Title, string(payload), entry.CreatedAt.Unix())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return Entry{}, fmt.Errorf("%s: %w", host, ErrDuplicateHost)
		}
		return Entry{}, fmt.Errorf("insert controller: %w", err)
	}

	log.Debug().Str("id", entry.ID).Str("host", host).Int("groups", len(groups)).Msg("Controller stored")
	return entry, nil
}

// GetByHost returns the entry for host.
func (s *Store) GetByHost(ctx context.Context, host string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, host, title, groups_json, created_at FROM controllers WHERE host = ?
	`, host)
	return scanEntry(row)
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, host, title, groups_json, created_at FROM controllers WHERE id = ?
	`, id)
	return scanEntry(row)
}

// List returns all entries, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host, title, groups_json, created_at FROM controllers ORDER BY created_at, host
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateGroups replaces the groups of entry id.
func (s *Store) UpdateGroups(ctx context.Context, id string, groups map[string]string) error {
	payload, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode groups: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE controllers SET groups_json = ? WHERE id = ?`, string(payload), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes entry id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM controllers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry      Entry
		groupsJSON string
		createdAt  int64
	)
	err := row.Scan(&entry.ID, &entry.Host, &entry.Title, &groupsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(groupsJSON), &entry.Groups); err != nil {
		return Entry{}, fmt.Errorf("decode groups of %s: %w", entry.Host, err)
	}
	if entry.Groups == nil {
		entry.Groups = map[string]string{}
	}
	entry.CreatedAt = time.Unix(createdAt, 0).UTC()
	return entry, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
