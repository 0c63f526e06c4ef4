package database

import (
	"context"
	"net/url"
	"strings"

	"github.com/nao1215/ferrumweb/internal/model"
)

// Store is the persistent record of discovered links.
// LinkDB (SQLite) and PostgresStore implement it.
type Store interface {
	// Reset drops every stored link and recreates the schema.
	Reset(ctx context.Context) error

	// InsertLink appends one link and returns its assigned ID.
	InsertLink(ctx context.Context, url string, depth int, parentID int64) (int64, error)

	// GetLink returns the link with the given ID, or nil if it does not exist.
	GetLink(ctx context.Context, id int64) (*model.Link, error)

	// ListLinks returns every link ordered by ID.
	ListLinks(ctx context.Context) ([]model.Link, error)

	// Children returns the links found on the page of parentID.
	Children(ctx context.Context, parentID int64) ([]model.Link, error)

	// CountLinks returns the number of stored links.
	CountLinks(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}

var (
	_ Store = (*LinkDB)(nil)
	_ Store = (*PostgresStore)(nil)
)

// OpenStore opens the PostgreSQL store when databaseURL is set and the SQLite
// store in dbDir otherwise. opts.Reset and opts.ReadOnly are honored by both
// backends; a read-only PostgreSQL open skips migrations.
func OpenStore(ctx context.Context, databaseURL, dbDir string, opts Options) (Store, error) {
	if databaseURL == "" {
		return Open(dbDir, opts)
	}

	store, err := openPostgres(ctx, databaseURL, !opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	if opts.Reset && !opts.ReadOnly {
		if err := store.Reset(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// IsPostgresURL reports whether a database URL addresses PostgreSQL.
func IsPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

// RedactURL hides the password of a database URL for display.
func RedactURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "<invalid database url>"
	}
	return u.Redacted()
}
