package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ferrumweb/internal/model"
)

// DefaultFileName is the name of the SQLite database file inside the data directory.
const DefaultFileName = "links.db"

// LinkDB provides SQLite-based storage for discovered links.
//
// Design decision: Inserts are serialized by a mutex in addition to the single
// open connection, so the order of returned IDs always matches the order of
// InsertLink calls even when several goroutines share the store.
type LinkDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// mu serializes writes.
	mu sync.Mutex
}

// Options configures LinkDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool

	// Reset drops and recreates the link table after opening.
	// A crawl run starts from an empty table; readers must leave this off.
	Reset bool

	// ReadOnly opens the database with query_only set and leaves the schema
	// and journal mode untouched. Reset and CreateIfNotExists are ignored.
	ReadOnly bool
}

// DefaultOptions returns the default database options used by a crawl run.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		Reset:             true,
	}
}

// ReadOnlyOptions returns options for opening an existing crawl database
// without modifying its contents.
func ReadOnlyOptions() Options {
	return Options{
		CreateIfNotExists: false,
		EnableWAL:         false,
		Reset:             false,
		ReadOnly:          true,
	}
}

// Open opens or creates a LinkDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*LinkDB, error) {
	dbPath := filepath.Join(dbDir, DefaultFileName)

	if opts.ReadOnly {
		opts.CreateIfNotExists = false
		opts.EnableWAL = false
		opts.Reset = false
	}

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (run a crawl first)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite applies _pragma parameters on every new connection,
	// so foreign keys stay enforced even if the pool recycles the connection.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if opts.ReadOnly {
		dsn += "&_pragma=query_only(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &LinkDB{
		db:     db,
		dbPath: dbPath,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if !opts.ReadOnly {
		if opts.Reset {
			err = ldb.Reset(ctx)
		} else {
			err = ldb.createTables(ctx)
		}
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return ldb, nil
}

// Path returns the path of the database file.
func (ldb *LinkDB) Path() string {
	return ldb.dbPath
}

// Close closes the database connection.
func (ldb *LinkDB) Close() error {
	return ldb.db.Close()
}

const createLinkTable = `
	CREATE TABLE IF NOT EXISTS link (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		parent_id INTEGER REFERENCES link(id),
		depth INTEGER NOT NULL CHECK (depth >= 0),
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_link_parent ON link(parent_id);
	CREATE INDEX IF NOT EXISTS idx_link_depth ON link(depth);
	`

// createTables creates the schema if it doesn't exist.
func (ldb *LinkDB) createTables(ctx context.Context) error {
	if _, err := ldb.db.ExecContext(ctx, createLinkTable); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Reset drops the link table and creates it again. Dropping an AUTOINCREMENT
// table also removes its sqlite_sequence row, so IDs restart at 1.
func (ldb *LinkDB) Reset(ctx context.Context) error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	if _, err := ldb.db.ExecContext(ctx, "DROP TABLE IF EXISTS link"); err != nil {
		return fmt.Errorf("failed to drop link table: %w", err)
	}
	return ldb.createTables(ctx)
}

// InsertLink appends one link and returns its assigned ID.
// parentID == model.RootParentID is stored as NULL.
func (ldb *LinkDB) InsertLink(ctx context.Context, url string, depth int, parentID int64) (int64, error) {
	if depth < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeDepth, depth)
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	result, err := ldb.db.ExecContext(ctx,
		"INSERT INTO link (url, depth, parent_id) VALUES (?, ?, ?)",
		url, depth, nullableParent(parentID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted link id: %w", err)
	}
	return id, nil
}

const selectLinkColumns = "SELECT id, url, depth, parent_id, discovered_at FROM link"

// GetLink retrieves a link by ID. It returns nil, nil when no such link exists.
func (ldb *LinkDB) GetLink(ctx context.Context, id int64) (*model.Link, error) {
	row := ldb.db.QueryRowContext(ctx, selectLinkColumns+" WHERE id = ?", id)

	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// ListLinks returns every stored link ordered by ID.
func (ldb *LinkDB) ListLinks(ctx context.Context) ([]model.Link, error) {
	rows, err := ldb.db.QueryContext(ctx, selectLinkColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return collectLinks(rows)
}

// Children returns the links discovered on the page of the given link,
// in discovery order. RootParentID returns the root.
func (ldb *LinkDB) Children(ctx context.Context, parentID int64) ([]model.Link, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == model.RootParentID {
		rows, err = ldb.db.QueryContext(ctx, selectLinkColumns+" WHERE parent_id IS NULL ORDER BY id")
	} else {
		rows, err = ldb.db.QueryContext(ctx, selectLinkColumns+" WHERE parent_id = ? ORDER BY id", parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	return collectLinks(rows)
}

// CountLinks returns the number of stored links.
func (ldb *LinkDB) CountLinks(ctx context.Context) (int, error) {
	var count int
	if err := ldb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM link").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*model.Link, error) {
	var (
		link      model.Link
		parentID  sql.NullInt64
		timestamp sql.NullString
	)
	if err := s.Scan(&link.ID, &link.URL, &link.Depth, &parentID, &timestamp); err != nil {
		return nil, err
	}
	if parentID.Valid {
		link.ParentID = parentID.Int64
	}
	if timestamp.Valid {
		link.DiscoveredAt = parseTimestamp(timestamp.String)
	}
	return &link, nil
}

func collectLinks(rows *sql.Rows) ([]model.Link, error) {
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// nullableParent maps the root sentinel to SQL NULL.
func nullableParent(parentID int64) sql.NullInt64 {
	if parentID == model.RootParentID {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: parentID, Valid: true}
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
