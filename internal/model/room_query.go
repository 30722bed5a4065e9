package model

import "time"

// RoomFilters is the normalized, legacy-expanded filter set sent to the
// row-filtering query service.  Nil pointers and nil slices mean "no
// filter" for that field.
type RoomFilters struct {
	Search    *string  `json:"search"`
	MinPrice  *int64   `json:"min_price"`
	MaxPrice  *int64   `json:"max_price"`
	Districts []string `json:"districts"`
	RoomTypes []string `json:"room_types"`
	Access    *string  `json:"access"`
	Status    *string  `json:"status"`
}

// RoomQuery is one call to the query service.  Both cursor field groups
// are always present; the group that does not belong to Sort is nil.
type RoomQuery struct {
	Tier    RoleTier
	Limit   int
	Filters RoomFilters
	Sort    SortMode

	// scalar cursor (price_asc, price_desc)
	CursorID *string

	// composite cursor (updated_desc)
	CursorRowID     *string
	CursorUpdatedAt *time.Time
	CursorCreatedAt *time.Time

	IncludeTotal bool
}

// RoomPage is the query service's answer.  NextCursor is authoritative:
// callers never derive their own from Rows.
type RoomPage struct {
	Tier       RoleTier
	Rows       []Row
	NextCursor *Cursor
	Total      *int64
}
