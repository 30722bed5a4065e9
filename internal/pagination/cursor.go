package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/room-rental/internal/model"
)

// wireCursor is the JSON body of an opaque cursor before base64url.
type wireCursor struct {
	Kind      string `json:"k"`
	Mode      string `json:"m,omitempty"`
	ID        string `json:"id"`
	UpdatedAt string `json:"u,omitempty"`
	CreatedAt string `json:"c,omitempty"`
}

const (
	wireComposite = "c"
	wireScalar    = "s"
)

// instantLayouts are tried in order when a composite cursor's timestamps
// are parsed.  Layouts without a zone are read as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// EncodeCursor renders c as an opaque base64url token.
func EncodeCursor(c model.Cursor) string {
	w := wireCursor{ID: c.ID, Mode: string(c.Sort)}
	if c.Kind == model.CursorComposite {
		w.Kind = wireComposite
		w.UpdatedAt = c.UpdatedAt.UTC().Format(time.RFC3339Nano)
		w.CreatedAt = c.CreatedAt.UTC().Format(time.RFC3339Nano)
	} else {
		w.Kind = wireScalar
	}
	b, _ := json.Marshal(w)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses an opaque token produced by EncodeCursor.  A
// composite cursor whose timestamps do not parse is malformed, as is a
// mode whose shape disagrees with the kind.  A composite cursor without a
// mode can only be updated_desc; a scalar one keeps an empty Sort and
// never matches a fetch.
func DecodeCursor(s string) (model.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
	if err != nil {
		return model.Cursor{}, fmt.Errorf("%w: %v", ErrCursorMalformed, err)
	}
	var w wireCursor
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Cursor{}, fmt.Errorf("%w: %v", ErrCursorMalformed, err)
	}
	if strings.TrimSpace(w.ID) == "" {
		return model.Cursor{}, fmt.Errorf("%w: empty id", ErrCursorMalformed)
	}
	var mode model.SortMode
	if w.Mode != "" {
		m, ok := model.ParseSortMode(w.Mode)
		if !ok {
			return model.Cursor{}, fmt.Errorf("%w: mode %q", ErrCursorMalformed, w.Mode)
		}
		mode = m
	}
	switch w.Kind {
	case wireScalar:
		if mode != "" && model.KindFor(mode) != model.CursorScalar {
			return model.Cursor{}, fmt.Errorf("%w: mode %q on scalar cursor", ErrCursorMalformed, mode)
		}
		return model.Cursor{Kind: model.CursorScalar, Sort: mode, ID: w.ID}, nil
	case wireComposite:
		if mode == "" {
			mode = model.SortUpdatedDesc
		} else if model.KindFor(mode) != model.CursorComposite {
			return model.Cursor{}, fmt.Errorf("%w: mode %q on composite cursor", ErrCursorMalformed, mode)
		}
		u, ok := parseInstant(w.UpdatedAt)
		if !ok {
			return model.Cursor{}, fmt.Errorf("%w: updated_at %q", ErrCursorMalformed, w.UpdatedAt)
		}
		c, ok := parseInstant(w.CreatedAt)
		if !ok {
			return model.Cursor{}, fmt.Errorf("%w: created_at %q", ErrCursorMalformed, w.CreatedAt)
		}
		return model.Cursor{Kind: model.CursorComposite, Sort: mode, ID: w.ID, UpdatedAt: u, CreatedAt: c}, nil
	}
	return model.Cursor{}, fmt.Errorf("%w: kind %q", ErrCursorMalformed, w.Kind)
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
