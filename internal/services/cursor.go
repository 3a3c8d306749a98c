package services

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/charlesng35/partyfinder/internal/party"
	apperrors "github.com/charlesng35/partyfinder/pkg/errors"
)

// EncodeCursor renders an application cursor as an opaque token.
func EncodeCursor(c party.Cursor) string {
	if c.IsZero() {
		return ""
	}
	raw := c.SubmittedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token is the start.
func DecodeCursor(token string) (party.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return party.Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return party.Cursor{}, apperrors.NewBadRequest("invalid cursor")
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return party.Cursor{}, apperrors.NewBadRequest("invalid cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return party.Cursor{}, apperrors.NewBadRequest("invalid cursor")
	}
	return party.Cursor{SubmittedAt: ts, ID: id}, nil
}
