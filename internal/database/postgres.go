package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/nao1215/ferrumweb/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore stores links in PostgreSQL. The schema is managed by
// embedded golang-migrate migrations.
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenPostgres connects to PostgreSQL and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	return openPostgres(ctx, dsn, true)
}

// openPostgres connects to PostgreSQL, applying migrations only when
// runMigrations is set. Readers pass false so that they never change the schema.
func openPostgres(ctx context.Context, dsn string, runMigrations bool) (*PostgresStore, error) {
	if !IsPostgresURL(dsn) {
		return nil, ErrUnsupportedDatabaseURL
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if runMigrations {
		if err := RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations applies every embedded migration that has not run yet.
func RunMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create source driver: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run up migrations: %w", err)
	}
	return nil
}

// Reset removes every link and restarts the ID sequence at 1.
func (s *PostgresStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "TRUNCATE link RESTART IDENTITY"); err != nil {
		return fmt.Errorf("failed to reset link table: %w", err)
	}
	return nil
}

// InsertLink appends one link and returns its assigned ID.
func (s *PostgresStore) InsertLink(ctx context.Context, url string, depth int, parentID int64) (int64, error) {
	if depth < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeDepth, depth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO link (url, depth, parent_id) VALUES ($1, $2, $3) RETURNING id`,
		url, depth, nullableParent(parentID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert link: %w", err)
	}
	return id, nil
}

// GetLink retrieves a link by ID. It returns nil, nil when no such link exists.
func (s *PostgresStore) GetLink(ctx context.Context, id int64) (*model.Link, error) {
	row := s.db.QueryRowContext(ctx, pgSelectLinkColumns+" WHERE id = $1", id)

	link, err := scanPostgresLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// ListLinks returns every stored link ordered by ID.
func (s *PostgresStore) ListLinks(ctx context.Context) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, pgSelectLinkColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return collectPostgresLinks(rows)
}

// Children returns the links discovered on the page of the given link.
func (s *PostgresStore) Children(ctx context.Context, parentID int64) ([]model.Link, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if parentID == model.RootParentID {
		rows, err = s.db.QueryContext(ctx, pgSelectLinkColumns+" WHERE parent_id IS NULL ORDER BY id")
	} else {
		rows, err = s.db.QueryContext(ctx, pgSelectLinkColumns+" WHERE parent_id = $1 ORDER BY id", parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	return collectPostgresLinks(rows)
}

// CountLinks returns the number of stored links.
func (s *PostgresStore) CountLinks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM link").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const pgSelectLinkColumns = "SELECT id, url, depth, parent_id, discovered_at FROM link"

// lib/pq returns TIMESTAMPTZ as time.Time, unlike the SQLite driver.
func scanPostgresLink(s scanner) (*model.Link, error) {
	var (
		link     model.Link
		parentID sql.NullInt64
	)
	if err := s.Scan(&link.ID, &link.URL, &link.Depth, &parentID, &link.DiscoveredAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		link.ParentID = parentID.Int64
	}
	return &link, nil
}

func collectPostgresLinks(rows *sql.Rows) ([]model.Link, error) {
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		link, err := scanPostgresLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}
