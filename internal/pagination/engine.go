// Package pagination implements keyset pagination over the room listing.
// Engine turns a page request into exactly one query-service call;
// Browser keeps the page cache and generation counter a listing client
// needs to page back and forth without applying stale responses.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/room-rental/internal/model"
)

// Page size bounds used when a request does not say otherwise.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// QueryService is the row-filtering service.  It owns role visibility,
// column redaction and the next-cursor computation.
type QueryService interface {
	FetchRoomsPage(ctx context.Context, q model.RoomQuery) (model.RoomPage, error)
}

// PageRequest asks for one page.  Cursor is the opaque token returned as
// NextCursor by the previous page, or empty for the first page.
type PageRequest struct {
	Tier         model.RoleTier
	Limit        int
	Cursor       string
	Filters      Filters
	Sort         model.SortMode
	IncludeTotal bool
}

// Page is one page of rows.  NextCursor is empty at the end of the
// collection.  Reset is set when the request's cursor was unusable for
// the active sort mode and the page was fetched from the start instead.
type Page struct {
	Tier       model.RoleTier `json:"tier"`
	Rows       []model.Row    `json:"rows"`
	NextCursor string         `json:"next_cursor,omitempty"`
	Total      *int64         `json:"total,omitempty"`
	Reset      bool           `json:"reset"`
}

// PageFetcher is anything that can produce a Page; Engine does it over a
// QueryService, an HTTP client does it over the public API.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// Engine is the server-side PageFetcher.
type Engine struct {
	svc          QueryService
	labels       *LabelTable
	defaultLimit int
	maxLimit     int
	log          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLimits overrides DefaultLimit and MaxLimit.
func WithLimits(def, max int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultLimit = def
		}
		if max > 0 {
			e.maxLimit = max
		}
	}
}

// WithLogger sets the logger used for cursor resets.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine builds an Engine.  A nil label table disables legacy expansion.
func NewEngine(svc QueryService, labels *LabelTable, opts ...Option) *Engine {
	e := &Engine{
		svc:          svc,
		labels:       labels,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.defaultLimit > e.maxLimit {
		e.defaultLimit = e.maxLimit
	}
	return e
}

// FetchPage normalizes and expands filters, decodes the cursor for the
// active sort mode and issues a single query.  A cursor that is malformed
// or belongs to another sort mode is dropped and the page is served from
// the start with Reset set.
func (e *Engine) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	sort, ok := model.ParseSortMode(string(req.Sort))
	if !ok {
		sort = model.SortUpdatedDesc
	}
	tier := req.Tier
	if tier == "" {
		tier = model.TierPublic
	}

	q := model.RoomQuery{
		Tier:         tier,
		Limit:        e.limit(req.Limit),
		Filters:      Expand(Normalize(req.Filters), e.labels),
		Sort:         sort,
		IncludeTotal: req.IncludeTotal,
	}

	reset := false
	if req.Cursor != "" {
		cur, err := e.decodeFor(req.Cursor, sort)
		if err != nil {
			e.log.DebugContext(ctx, "pagination.cursor_dropped", "sort", string(sort), "error", err)
			reset = true
		} else {
			applyCursor(&q, cur)
		}
	}

	res, err := e.svc.FetchRoomsPage(ctx, q)
	if err != nil {
		return Page{}, err
	}

	page := Page{Tier: res.Tier, Rows: res.Rows, Total: res.Total, Reset: reset}
	if page.Tier == "" {
		page.Tier = tier
	}
	if page.Rows == nil {
		page.Rows = []model.Row{}
	}
	// A short page is the end of the collection whatever the service says.
	if res.NextCursor != nil && len(res.Rows) == q.Limit {
		next := *res.NextCursor
		next.Sort = sort
		page.NextCursor = EncodeCursor(next)
	}
	return page, nil
}

func (e *Engine) limit(n int) int {
	switch {
	case n <= 0:
		return e.defaultLimit
	case n > e.maxLimit:
		return e.maxLimit
	}
	return n
}

// errCursorMode is returned when a well-formed cursor was issued under
// another sort mode.
var errCursorMode = errors.New("cursor issued under another sort mode")

func (e *Engine) decodeFor(token string, sort model.SortMode) (model.Cursor, error) {
	cur, err := DecodeCursor(token)
	if err != nil {
		return model.Cursor{}, err
	}
	if cur.Sort != sort || cur.Kind != model.KindFor(sort) {
		return model.Cursor{}, fmt.Errorf("%w: %q under %q", errCursorMode, cur.Sort, sort)
	}
	return cur, nil
}

func applyCursor(q *model.RoomQuery, cur model.Cursor) {
	id := cur.ID
	if cur.Kind == model.CursorComposite {
		u, c := cur.UpdatedAt, cur.CreatedAt
		q.CursorRowID = &id
		q.CursorUpdatedAt = &u
		q.CursorCreatedAt = &c
		return
	}
	q.CursorID = &id
}
