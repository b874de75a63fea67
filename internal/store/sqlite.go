package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pbaille/notemarket/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serialises writers; one connection keeps in-memory databases shared
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// migrate adds columns introduced after a database was first created
func migrate(db *sql.DB) error {
	_, err := db.Exec("ALTER TABLE notes ADD COLUMN scanned_at DATETIME")
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return fmt.Errorf("migrate notes.scanned_at: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCreator registers a new creator account
func (s *Store) CreateCreator(ctx context.Context, username string, isPublic bool) (domain.Creator, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO creators (username, is_public, created_at) VALUES (?, ?, ?)",
		username, isPublic, now,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return domain.Creator{}, &domain.ConflictError{Kind: "creator", Key: username}
	}
	if err != nil {
		return domain.Creator{}, fmt.Errorf("insert creator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Creator{}, fmt.Errorf("insert creator: %w", err)
	}
	return domain.Creator{ID: id, Username: username, IsPublic: isPublic, CreatedAt: now}, nil
}

// GetCreator retrieves a creator by ID
func (s *Store) GetCreator(ctx context.Context, id int64) (domain.Creator, error) {
	var c domain.Creator
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, is_public, created_at FROM creators WHERE id = ?", id,
	).Scan(&c.ID, &c.Username, &c.IsPublic, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Creator{}, &domain.NotFoundError{Kind: "creator", ID: id}
	}
	if err != nil {
		return domain.Creator{}, fmt.Errorf("get creator: %w", err)
	}
	return c, nil
}

// GetCreatorByUsername retrieves a creator by username
func (s *Store) GetCreatorByUsername(ctx context.Context, username string) (domain.Creator, error) {
	var c domain.Creator
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, is_public, created_at FROM creators WHERE username = ?", username,
	).Scan(&c.ID, &c.Username, &c.IsPublic, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Creator{}, fmt.Errorf("creator %q: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Creator{}, fmt.Errorf("get creator: %w", err)
	}
	return c, nil
}

// AddNote publishes a note and returns it
func (s *Store) AddNote(ctx context.Context, creatorID int64, title, body string, priceCents int) (domain.Note, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notes (creator_id, title, body, price_cents, created_at) VALUES (?, ?, ?, ?, ?)",
		creatorID, title, body, priceCents, now,
	)
	if err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}
	return domain.Note{
		ID:         id,
		CreatorID:  creatorID,
		Title:      title,
		Body:       body,
		PriceCents: priceCents,
		CreatedAt:  now,
	}, nil
}

// GetNote retrieves a note by ID
func (s *Store) GetNote(ctx context.Context, id int64) (domain.Note, error) {
	var n domain.Note
	err := s.db.QueryRowContext(ctx,
		"SELECT id, creator_id, title, body, price_cents, created_at FROM notes WHERE id = ?", id,
	).Scan(&n.ID, &n.CreatorID, &n.Title, &n.Body, &n.PriceCents, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, &domain.NotFoundError{Kind: "note", ID: id}
	}
	if err != nil {
		return domain.Note{}, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// ListNotes returns recent notes with pagination
func (s *Store) ListNotes(ctx context.Context, limit, offset int) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, creator_id, title, body, price_cents, created_at FROM notes ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return scanNotes(rows)
}

// SearchNotes performs a simple text search over titles and bodies
func (s *Store) SearchNotes(ctx context.Context, query string) ([]domain.Note, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, creator_id, title, body, price_cents, created_at FROM notes WHERE title LIKE ? OR body LIKE ? ORDER BY created_at DESC, id DESC",
		like, like,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return scanNotes(rows)
}

// UnscannedNotes returns the oldest notes whose similarity scan has not
// completed yet
func (s *Store) UnscannedNotes(ctx context.Context, limit int) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, creator_id, title, body, price_cents, created_at FROM notes WHERE scanned_at IS NULL ORDER BY created_at, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unscanned notes: %w", err)
	}
	return scanNotes(rows)
}

// MarkScanned records that every candidate of the note has been persisted
func (s *Store) MarkScanned(ctx context.Context, noteID int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notes SET scanned_at = ? WHERE id = ?", s.now(), noteID)
	if err != nil {
		return fmt.Errorf("mark scanned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark scanned: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "note", ID: noteID}
	}
	return nil
}

// IsScanned reports whether the note's similarity scan has completed
func (s *Store) IsScanned(ctx context.Context, noteID int64) (bool, error) {
	var scanned sql.NullTime
	err := s.db.QueryRowContext(ctx, "SELECT scanned_at FROM notes WHERE id = ?", noteID).Scan(&scanned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &domain.NotFoundError{Kind: "note", ID: noteID}
	}
	if err != nil {
		return false, fmt.Errorf("is scanned: %w", err)
	}
	return scanned.Valid, nil
}

func scanNotes(rows *sql.Rows) ([]domain.Note, error) {
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.CreatorID, &n.Title, &n.Body, &n.PriceCents, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}
