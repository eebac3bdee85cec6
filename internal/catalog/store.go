// Package catalog is the durable store for users and albums.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tunerover/core/logger"
	"github.com/m3rciful/tunerover/internal/metrics"
)

const component = "service.catalog"

const albumColumns = `id, title, artist, label, release_year, cover_ref, itunes_link, streaming_link, created_at`

// The role sub-select runs inside the insert, so the first row ever written is the admin.
const upsertUserSQL = `
INSERT INTO users (user_id, display_name, role, created_at, updated_at)
VALUES (?, ?, (CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'regular' ELSE 'admin' END), ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    display_name = excluded.display_name,
    updated_at   = excluded.updated_at`

const userColumns = `user_id, display_name, role, created_at, updated_at`

// Store implements catalog persistence on top of sqlx. Queries use '?' and are
// rebound for the connected driver, so the same code serves postgres and sqlite.
type Store struct {
	db  *sqlx.DB
	now func() time.Time

	// serializes user registration so two first-time users in this process
	// cannot both observe an empty table
	registerMu sync.Mutex
}

// NewStore wraps an open, migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterOrUpdateUser creates the user on first contact or refreshes the display
// name. The role of an existing user is never touched here.
func (s *Store) RegisterOrUpdateUser(ctx context.Context, id int64, displayName string) (User, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	now := s.now()
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertUserSQL), id, displayName, now, now); err != nil {
		logger.Error(ctx, component, "user.upsert",
			slog.String("status", "fail"),
			slog.Int64("user_id", id),
			slog.String("err", err.Error()),
		)
		return User{}, fmt.Errorf("catalog: upsert user %d: %w", id, err)
	}
	u, err := s.getUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt.Equal(u.UpdatedAt) {
		metrics.UsersRegisteredTotal.Inc()
		logger.Info(ctx, component, "user.registered",
			slog.String("status", "ok"),
			slog.Int64("user_id", id),
			slog.String("role", string(u.Role)),
		)
	}
	return u, nil
}

func (s *Store) getUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE user_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("catalog: get user %d: %w", id, err)
	}
	return u, nil
}

// GetRole returns the user's role; unknown users are Regular.
func (s *Store) GetRole(ctx context.Context, id int64) (Role, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.db.Rebind(`SELECT role FROM users WHERE user_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleRegular, nil
	}
	if err != nil {
		return RoleRegular, fmt.Errorf("catalog: get role %d: %w", id, err)
	}
	role, err := ParseRole(raw)
	if err != nil {
		return RoleRegular, err
	}
	return role, nil
}

// SetRole changes a user's role explicitly.
func (s *Store) SetRole(ctx context.Context, id int64, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE users SET role = ?, updated_at = ? WHERE user_id = ?`),
		string(role), s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("catalog: set role %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	logger.Info(ctx, component, "user.role_changed",
		slog.String("status", "ok"),
		slog.Int64("user_id", id),
		slog.String("role", string(role)),
	)
	return nil
}

// FindAlbum looks up an album by exact title and artist.
func (s *Store) FindAlbum(ctx context.Context, title, artist string) (Album, bool, error) {
	var a Album
	err := s.db.GetContext(ctx, &a,
		s.db.Rebind(`SELECT `+albumColumns+` FROM albums WHERE title = ? AND artist = ? LIMIT 1`),
		title, artist,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, false, nil
	}
	if err != nil {
		return Album{}, false, fmt.Errorf("catalog: find album: %w", err)
	}
	return a, true, nil
}

// InsertAlbum appends a record. Callers check FindAlbum first; a concurrent
// duplicate still surfaces as ErrAlbumExists through the unique index.
func (s *Store) InsertAlbum(ctx context.Context, in NewAlbum) (Album, error) {
	start := time.Now()
	a := Album{
		Title:         in.Title,
		Artist:        in.Artist,
		Label:         in.Label,
		ReleaseYear:   in.ReleaseYear,
		CoverRef:      in.CoverRef,
		ItunesLink:    in.ItunesLink,
		StreamingLink: in.StreamingLink,
		CreatedAt:     s.now(),
	}
	const q = `
INSERT INTO albums (title, artist, label, release_year, cover_ref, itunes_link, streaming_link, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	err := s.db.GetContext(ctx, &a.ID, s.db.Rebind(q),
		a.Title, a.Artist, a.Label, a.ReleaseYear, a.CoverRef, a.ItunesLink, a.StreamingLink, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Album{}, ErrAlbumExists
		}
		logger.Error(ctx, component, "album.insert",
			slog.String("status", "fail"),
			slog.String("title", a.Title),
			slog.String("artist", a.Artist),
			slog.String("err", err.Error()),
		)
		return Album{}, fmt.Errorf("catalog: insert album: %w", err)
	}
	logger.Info(ctx, component, "album.insert",
		slog.String("status", "ok"),
		slog.Int64("album_id", a.ID),
		slog.String("title", a.Title),
		slog.String("artist", a.Artist),
		slog.Int("year", a.ReleaseYear),
		slog.Duration("duration", logger.Took(start)),
	)
	return a, nil
}

// PickRandomAlbum selects one album uniformly at random. It reports false on
// an empty catalog.
func (s *Store) PickRandomAlbum(ctx context.Context) (Album, bool, error) {
	var a Album
	err := s.db.GetContext(ctx, &a, `SELECT `+albumColumns+` FROM albums ORDER BY RANDOM() LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return Album{}, false, nil
	}
	if err != nil {
		return Album{}, false, fmt.Errorf("catalog: random album: %w", err)
	}
	return a, true, nil
}

// CountAlbums returns the catalog size.
func (s *Store) CountAlbums(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM albums`); err != nil {
		return 0, fmt.Errorf("catalog: count albums: %w", err)
	}
	return n, nil
}
