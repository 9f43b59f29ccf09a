// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/training/internal/domain"
)

// ErrInvalidCursor is returned for history tokens that cannot be parsed.
var ErrInvalidCursor = errors.New("invalid cursor format")

// cursorSeparator cannot appear in the decimal timestamp prefix.
const cursorSeparator = "~"

// EncodeCursor renders the history position as a URL-safe token.
// The completion time is kept at microsecond precision, the resolution
// Postgres stores for timestamptz, so the keyset comparison stays exact.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := strconv.FormatInt(c.Date.UnixMicro(), 10) + cursorSeparator + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. Blank tokens mean "first page".
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	micros, id, found := strings.Cut(string(decoded), cursorSeparator)
	if !found || id == "" {
		return nil, ErrInvalidCursor
	}
	ts, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	return &domain.Cursor{Date: time.UnixMicro(ts).UTC(), ID: id}, nil
}
