package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/room-rental/internal/model"
)

// Browser holds the paging state of one listing view: the filter/sort
// session, the pages fetched so far and the cursor each one was fetched
// with.  A response is applied only if no newer Load or filter change
// happened while it was in flight.
//
// Invariant: cursors[n] is the cursor page n was (or will be) fetched
// with, so len(cursors) == len(pages)+1 and cursors[0] == "".
type Browser struct {
	fetcher PageFetcher

	gen atomic.Uint64

	mu        sync.Mutex
	tier      model.RoleTier
	limit     int
	total     bool
	filters   Filters
	sort      model.SortMode
	signature string
	pages     []Page
	cursors   []string
	index     int
	want      int
	hasNext   bool
	err       error
}

// Snapshot is a read-only view of a Browser's state.
type Snapshot struct {
	Index   int
	Cached  int
	HasNext bool
	Err     error
	Filters Filters
	Sort    model.SortMode
}

// NewBrowser returns a Browser positioned before page 0.
func NewBrowser(f PageFetcher, tier model.RoleTier, limit int) *Browser {
	b := &Browser{
		fetcher: f,
		tier:    tier,
		limit:   limit,
		sort:    model.SortUpdatedDesc,
	}
	b.signature = sessionSignature(b.filters, b.sort)
	b.resetLocked()
	return b
}

// IncludeTotal asks the service for a total count with every page.
func (b *Browser) IncludeTotal(on bool) {
	b.mu.Lock()
	b.total = on
	b.mu.Unlock()
}

// SetFilters starts a new session when f differs from the current filters.
func (b *Browser) SetFilters(f Filters) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters = f
	b.maybeResetLocked()
}

// SetSort starts a new session when m differs from the current sort mode.
func (b *Browser) SetSort(m model.SortMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sort = m
	b.maybeResetLocked()
}

// Invalidate drops every cached page unconditionally.
func (b *Browser) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Browser) maybeResetLocked() {
	sig := sessionSignature(b.filters, b.sort)
	if sig == b.signature {
		return
	}
	b.signature = sig
	b.resetLocked()
}

// resetLocked clears the cache and bumps the generation under the same
// lock completions check, so no older response can repopulate it.
func (b *Browser) resetLocked() {
	b.gen.Add(1)
	b.pages = nil
	b.cursors = []string{""}
	b.index = 0
	b.want = 0
	b.hasNext = false
	b.err = nil
}

// Load shows page n.  Cached pages are returned without a fetch; the next
// uncached page is fetched with the cursor the previous page produced.
// ErrStaleResponse is returned when the response was superseded.
func (b *Browser) Load(ctx context.Context, n int) (Page, error) {
	b.mu.Lock()
	gen := b.gen.Add(1)
	if n < 0 {
		b.mu.Unlock()
		return Page{}, ErrPageUnreachable
	}
	if n < len(b.pages) {
		b.index = n
		b.hasNext = b.pages[n].NextCursor != ""
		b.err = nil
		p := b.pages[n]
		b.mu.Unlock()
		return p, nil
	}
	if n > len(b.pages) {
		b.mu.Unlock()
		return Page{}, ErrPageUnreachable
	}
	if n > 0 && b.cursors[n] == "" {
		b.mu.Unlock()
		return Page{}, ErrNoMorePages
	}
	b.want = n
	req := PageRequest{
		Tier:         b.tier,
		Limit:        b.limit,
		Cursor:       b.cursors[n],
		Filters:      b.filters,
		Sort:         b.sort,
		IncludeTotal: b.total,
	}
	b.mu.Unlock()

	page, err := b.fetcher.FetchPage(ctx, req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen.Load() != gen {
		return Page{}, ErrStaleResponse
	}
	if err != nil {
		if errors.Is(err, ErrCursorReset) {
			b.resetLocked()
			return Page{}, err
		}
		b.err = err
		return Page{}, err
	}
	if page.Reset {
		// The service ignored our cursor and served the first page.
		b.resetLocked()
		n = 0
	}
	b.pages = append(b.pages, page)
	b.cursors = append(b.cursors, page.NextCursor)
	b.index = n
	b.hasNext = page.NextCursor != ""
	b.err = nil
	return page, nil
}

// Next moves one page forward.
func (b *Browser) Next(ctx context.Context) (Page, error) {
	b.mu.Lock()
	n := b.index + 1
	if len(b.pages) == 0 {
		n = 0
	}
	b.mu.Unlock()
	return b.Load(ctx, n)
}

// Prev moves one page back.  Earlier pages are always cached.
func (b *Browser) Prev(ctx context.Context) (Page, error) {
	b.mu.Lock()
	n := b.index - 1
	b.mu.Unlock()
	return b.Load(ctx, n)
}

// Retry repeats the most recent fetch, typically after a transient error.
func (b *Browser) Retry(ctx context.Context) (Page, error) {
	b.mu.Lock()
	n := b.want
	b.mu.Unlock()
	return b.Load(ctx, n)
}

// Snapshot returns the current state.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Index:   b.index,
		Cached:  len(b.pages),
		HasNext: b.hasNext,
		Err:     b.err,
		Filters: b.filters,
		Sort:    b.sort,
	}
}

func sessionSignature(f Filters, m model.SortMode) string {
	b, _ := json.Marshal(struct {
		F Filters
		S model.SortMode
	}{f, m})
	return string(b)
}
