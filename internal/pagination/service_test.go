package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/room-rental/internal/model"
)

// memoryService is a keyset-correct in-memory QueryService used by the
// engine and browser tests.
type memoryService struct {
	mu      sync.Mutex
	rooms   []model.Room
	queries []model.RoomQuery
	err     error
}

func (s *memoryService) add(r model.Room) {
	s.mu.Lock()
	s.rooms = append(s.rooms, r)
	s.mu.Unlock()
}

func (s *memoryService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *memoryService) lastQuery() model.RoomQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *memoryService) FetchRoomsPage(_ context.Context, q model.RoomQuery) (model.RoomPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return model.RoomPage{}, s.err
	}

	var matched []model.Room
	for _, r := range s.rooms {
		if q.Tier == model.TierPublic && r.Status == model.RoomHidden {
			continue
		}
		if len(q.Filters.Districts) > 0 && !contains(q.Filters.Districts, r.District) {
			continue
		}
		matched = append(matched, r)
	}

	less := func(a, b model.Room) bool {
		switch q.Sort {
		case model.SortPriceAsc:
			if a.PriceVND != b.PriceVND {
				return a.PriceVND < b.PriceVND
			}
			return a.ID < b.ID
		case model.SortPriceDesc:
			if a.PriceVND != b.PriceVND {
				return a.PriceVND > b.PriceVND
			}
			return a.ID > b.ID
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	start := 0
	var anchor *model.Room
	switch {
	case q.CursorRowID != nil:
		anchor = &model.Room{ID: *q.CursorRowID, UpdatedAt: *q.CursorUpdatedAt, CreatedAt: *q.CursorCreatedAt}
	case q.CursorID != nil:
		for i := range s.rooms {
			if s.rooms[i].ID == *q.CursorID {
				anchor = &s.rooms[i]
			}
		}
		if anchor == nil {
			return model.RoomPage{}, ErrCursorReset
		}
	}
	if anchor != nil {
		start = len(matched)
		for i, r := range matched {
			if less(*anchor, r) {
				start = i
				break
			}
		}
	}

	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page := model.RoomPage{Tier: q.Tier}
	for _, r := range matched[start:end] {
		page.Rows = append(page.Rows, model.ProjectRoom(q.Tier, r))
	}
	if n := len(page.Rows); n > 0 && n == q.Limit {
		last := matched[end-1]
		c := model.Cursor{Kind: model.KindFor(q.Sort), Sort: q.Sort, ID: last.ID}
		if c.Kind == model.CursorComposite {
			c.UpdatedAt, c.CreatedAt = last.UpdatedAt, last.CreatedAt
		}
		page.NextCursor = &c
	}
	if q.IncludeTotal {
		t := int64(len(matched))
		page.Total = &t
	}
	return page, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// seedRooms returns n rooms whose updated_at values collide in groups of
// three so the id tie-breaker matters.
func seedRooms(n int) []model.Room {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	out := make([]model.Room, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i/3) * time.Minute)
		out = append(out, model.Room{
			ID:        fmt.Sprintf("room-%03d", i),
			Title:     fmt.Sprintf("Room %d", i),
			District:  "Quận 10",
			RoomType:  "Studio",
			PriceVND:  int64(3_000_000 + (i%7)*500_000),
			Status:    model.RoomAvailable,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}
	return out
}
