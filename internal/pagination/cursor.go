// Package pagination implements keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor marks the last row of a page in (created_at DESC, id DESC) order.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// Encode returns the opaque, URL-safe form of c.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(Cursor{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Follows reports whether a row at (createdAt, id) belongs after the cursor.
func (c Cursor) Follows(createdAt time.Time, id string) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return id < c.ID
}

// DecodeCursor parses an encoded cursor. An empty string means the first
// page and yields nil.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" || c.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Trim cuts a limit+1 probe down to one page. The returned cursor is empty
// when the page is the last one.
func Trim[T any](items []T, limit int, key func(T) Cursor) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	return items, key(items[len(items)-1]).Encode(), true
}
