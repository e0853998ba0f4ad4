// Package store publishes built catalogs to a SQL database so other tools
// can read the documentation without loading manifests.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/fielddoc/fielddoc/internal/catalog"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var (
	// ErrNoBuilds is returned when nothing has been published yet.
	ErrNoBuilds = errors.New("no catalog published")
	// ErrNotFound is returned for an unknown build or action.
	ErrNotFound = errors.New("not found")
)

// Config holds store settings.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Prefix is prepended to every table name.
	Prefix string `mapstructure:"prefix"`
}

// Build describes one published catalog.
type Build struct {
	ID          string    `json:"id"`
	BuiltAt     time.Time `json:"builtAt"`
	PublishedAt time.Time `json:"publishedAt"`
	Entries     int       `json:"entries"`
	Failures    int       `json:"failures"`
}

// Store reads and writes published catalogs.
type Store struct {
	db       *sql.DB
	driver   string
	builds   string
	entries  string
	now      func() time.Time
	newBuild func() string
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	return New(db, cfg.Driver, cfg.Prefix), nil
}

// New wraps an open database.
func New(db *sql.DB, driver, prefix string) *Store {
	if prefix == "" {
		prefix = "fielddoc_"
	}
	return &Store{
		db:       db,
		driver:   driver,
		builds:   pq.QuoteIdentifier(prefix + "builds"),
		entries:  pq.QuoteIdentifier(prefix + "entries"),
		now:      time.Now,
		newBuild: func() string { return uuid.NewString() },
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the tables if they do not exist.
func (s *Store) Initialize(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(36) PRIMARY KEY,
	built_at TIMESTAMP NOT NULL,
	published_at TIMESTAMP NOT NULL,
	entries INTEGER NOT NULL,
	failures TEXT NOT NULL
)`, s.builds),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	build_id VARCHAR(36) NOT NULL,
	action VARCHAR(255) NOT NULL,
	uri TEXT NOT NULL,
	title TEXT NOT NULL,
	entry TEXT NOT NULL,
	PRIMARY KEY (build_id, action)
)`, s.entries),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
	}
	return nil
}

// Publish writes cat as a new build in one transaction.
func (s *Store) Publish(ctx context.Context, cat *catalog.Catalog) (Build, error) {
	failures, err := json.Marshal(cat.Errors)
	if err != nil {
		return Build{}, fmt.Errorf("failed to encode failures: %w", err)
	}

	b := Build{
		ID:          s.newBuild(),
		BuiltAt:     cat.BuiltAt.UTC(),
		PublishedAt: s.now().UTC(),
		Entries:     len(cat.Entries),
		Failures:    len(cat.Errors),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Build{}, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.bind(fmt.Sprintf("INSERT INTO %s (id, built_at, published_at, entries, failures) VALUES (?, ?, ?, ?, ?)", s.builds)),
		b.ID, b.BuiltAt, b.PublishedAt, b.Entries, string(failures),
	)
	if err != nil {
		return Build{}, fmt.Errorf("failed to record build: %w", err)
	}

	insert := s.bind(fmt.Sprintf("INSERT INTO %s (build_id, action, uri, title, entry) VALUES (?, ?, ?, ?, ?)", s.entries))
	for _, e := range cat.Entries {
		body, err := json.Marshal(e)
		if err != nil {
			return Build{}, fmt.Errorf("failed to encode %s: %w", e.Action, err)
		}
		if _, err := tx.ExecContext(ctx, insert, b.ID, e.Action, e.URI, e.Title, string(body)); err != nil {
			return Build{}, fmt.Errorf("failed to record %s: %w", e.Action, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Build{}, fmt.Errorf("failed to commit publish: %w", err)
	}
	return b, nil
}

// Latest returns the most recently published build.
func (s *Store) Latest(ctx context.Context) (Build, error) {
	query := fmt.Sprintf("SELECT id, built_at, published_at, entries, failures FROM %s ORDER BY published_at DESC LIMIT 1", s.builds)

	var (
		b        Build
		failures string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&b.ID, &b.BuiltAt, &b.PublishedAt, &b.Entries, &failures)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, ErrNoBuilds
	}
	if err != nil {
		return Build{}, fmt.Errorf("failed to get latest build: %w", err)
	}

	var errs []json.RawMessage
	if err := json.Unmarshal([]byte(failures), &errs); err != nil {
		return Build{}, fmt.Errorf("failed to decode failures of %s: %w", b.ID, err)
	}
	b.Failures = len(errs)
	return b, nil
}

// Entry returns the published JSON of action in build.
func (s *Store) Entry(ctx context.Context, buildID, action string) (json.RawMessage, error) {
	query := s.bind(fmt.Sprintf("SELECT entry FROM %s WHERE build_id = ? AND action = ?", s.entries))

	var body string
	err := s.db.QueryRowContext(ctx, query, buildID, action).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s in build %s: %w", action, buildID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", action, err)
	}
	return json.RawMessage(body), nil
}

// Prune deletes every build but the newest keep and returns how many builds
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	stale := s.bind(fmt.Sprintf("SELECT id FROM %s ORDER BY published_at DESC LIMIT -1 OFFSET ?", s.builds))
	if s.driver == DriverPostgres {
		stale = s.bind(fmt.Sprintf("SELECT id FROM %s ORDER BY published_at DESC OFFSET ?", s.builds))
	}

	rows, err := s.db.QueryContext(ctx, stale, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale builds: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan build: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating builds: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, s.bind(fmt.Sprintf("DELETE FROM %s WHERE build_id = ?", s.entries)), id); err != nil {
			return 0, fmt.Errorf("failed to prune entries of %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, s.bind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.builds)), id)
		if err != nil {
			return 0, fmt.Errorf("failed to prune build %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return removed, nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
