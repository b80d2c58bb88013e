// Package history remembers which repositories were opened, so the repo
// switcher can restore the last one and offer recent ones.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/h0rv/gwitter/internal/domain"
	_ "modernc.org/sqlite"
)

// Store persists repository history in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repos (
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		open_count INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (owner, repo)
	);

	CREATE INDEX IF NOT EXISTS idx_repos_opened_at ON repos(opened_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveLastRepo records ref as the most recently opened repository.
func (s *Store) SaveLastRepo(ctx context.Context, ref domain.RepoRef) error {
	if !ref.Valid() {
		return fmt.Errorf("save last repo: invalid repository %q", ref)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repos (owner, repo, opened_at, open_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (owner, repo) DO UPDATE SET
			opened_at = excluded.opened_at,
			open_count = repos.open_count + 1
	`, ref.Owner, ref.Repo, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save last repo: %w", err)
	}
	return nil
}

// LoadLastRepo returns the most recently opened repository, or a zero RepoRef
// when nothing was saved yet.
func (s *Store) LoadLastRepo(ctx context.Context) (domain.RepoRef, error) {
	var ref domain.RepoRef
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, repo FROM repos
		ORDER BY opened_at DESC
		LIMIT 1
	`).Scan(&ref.Owner, &ref.Repo)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RepoRef{}, nil
	}
	if err != nil {
		return domain.RepoRef{}, fmt.Errorf("load last repo: %w", err)
	}
	return ref, nil
}

// Entry is one remembered repository.
type Entry struct {
	Ref       domain.RepoRef
	OpenedAt  time.Time
	OpenCount int
}

// RecentRepos returns up to limit repositories, most recent first.
func (s *Store) RecentRepos(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, repo, opened_at, open_count FROM repos
		ORDER BY opened_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent repos: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var openedAt int64
		if err := rows.Scan(&e.Ref.Owner, &e.Ref.Repo, &openedAt, &e.OpenCount); err != nil {
			return nil, fmt.Errorf("recent repos: %w", err)
		}
		e.OpenedAt = time.Unix(0, openedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes ref from the history.
func (s *Store) Forget(ctx context.Context, ref domain.RepoRef) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repos WHERE owner = ? AND repo = ?`, ref.Owner, ref.Repo)
	if err != nil {
		return fmt.Errorf("forget repo: %w", err)
	}
	return nil
}
