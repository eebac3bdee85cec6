package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Role is a user's permission level.
type Role string

const (
	// RoleRegular can browse the catalog.
	RoleRegular Role = "regular"
	// RoleAdmin can additionally submit albums and manage roles.
	RoleAdmin Role = "admin"
)

// ParseRole accepts the stored spelling of a role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleRegular:
		return RoleRegular, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("catalog: unknown role %q", s)
}

// IsAdmin reports whether r grants album submission.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// User is a registered Telegram user.
type User struct {
	ID          int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Role        Role      `db:"role"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Album is a committed catalog record.
type Album struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	Artist        string    `db:"artist"`
	Label         string    `db:"label"`
	ReleaseYear   int       `db:"release_year"`
	CoverRef      string    `db:"cover_ref"`
	ItunesLink    *string   `db:"itunes_link"`
	StreamingLink *string   `db:"streaming_link"`
	CreatedAt     time.Time `db:"created_at"`
}

// NewAlbum carries the fields supplied by a finished submission.
type NewAlbum struct {
	Title         string
	Artist        string
	Label         string
	ReleaseYear   int
	CoverRef      string
	ItunesLink    *string
	StreamingLink *string
}
