package model

import "time"

// Room represents a rentable room as stored in the `rooms` table.  The
// listing side of the application only ever reads projections of this
// struct; writes come from the admin endpoints.  UpdatedAt is never
// earlier than CreatedAt.
//
// Fields:
//  ID            – stable identifier (UUID string).
//  Title         – headline shown in listings.
//  District      – district label, either canonical ("Quận 10") or legacy ("10").
//  RoomType      – room type label, canonical ("2 Phòng ngủ") or legacy ("2PN").
//  PriceVND      – monthly price in VND.
//  Access        – "elevator" or "stairs" (empty when unknown).
//  Status        – AVAILABLE, DEPOSITED, RENTED or HIDDEN.
//  Amenities     – free-form amenity tags.
//  Media         – URLs of already uploaded images/videos.
//  Address       – street address (admin only).
//  InternalNote  – staff note (admin only).
//  LandlordName  – landlord contact name (admin tier 2 only).
//  LandlordPhone – landlord contact phone (admin tier 2 only).
//  CommissionPct – brokerage commission percentage (admin tier 2 only).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last modification timestamp.
type Room struct {
	ID            string    // rooms.id
	Title         string    // rooms.title
	District      string    // rooms.district
	RoomType      string    // rooms.room_type
	PriceVND      int64     // rooms.price_vnd
	Access        string    // rooms.access
	Status        string    // rooms.status
	Amenities     []string  // rooms.amenities (JSON array)
	Media         []string  // rooms.media (JSON array)
	Address       string    // rooms.address
	InternalNote  string    // rooms.internal_note
	LandlordName  string    // rooms.landlord_name
	LandlordPhone string    // rooms.landlord_phone
	CommissionPct float64   // rooms.commission_pct
	CreatedAt     time.Time // rooms.created_at
	UpdatedAt     time.Time // rooms.updated_at
}

// Room statuses.
const (
	RoomAvailable = "AVAILABLE"
	RoomDeposited = "DEPOSITED"
	RoomRented    = "RENTED"
	RoomHidden    = "HIDDEN"
)

// ValidRoomStatus reports whether s is one of the known room statuses.
func ValidRoomStatus(s string) bool {
	switch s {
	case RoomAvailable, RoomDeposited, RoomRented, RoomHidden:
		return true
	}
	return false
}

// Access values accepted by the accessibility filter.
const (
	AccessElevator = "elevator"
	AccessStairs   = "stairs"
)

// RoleTier is the caller's visibility level.  The query service decides
// which rows and columns a tier may see; callers only forward it.
type RoleTier string

const (
	TierPublic RoleTier = "public"
	TierAdmin1 RoleTier = "admin-tier-1"
	TierAdmin2 RoleTier = "admin-tier-2"
)

// TierForRole maps a user role claim onto a RoleTier.  Unknown or empty
// roles see the public projection.
func TierForRole(role string) RoleTier {
	switch role {
	case "SUPER_ADMIN":
		return TierAdmin2
	case "ADMIN":
		return TierAdmin1
	}
	return TierPublic
}

// SortMode selects the listing order.
type SortMode string

const (
	SortUpdatedDesc SortMode = "updated_desc"
	SortPriceAsc    SortMode = "price_asc"
	SortPriceDesc   SortMode = "price_desc"
)

// ParseSortMode returns the sort mode named by s and false when s is not
// a known mode.
func ParseSortMode(s string) (SortMode, bool) {
	switch m := SortMode(s); m {
	case SortUpdatedDesc, SortPriceAsc, SortPriceDesc:
		return m, true
	}
	return SortUpdatedDesc, false
}

// CursorKind distinguishes the two cursor shapes.
type CursorKind string

const (
	// CursorComposite carries {id, updated_at, created_at} for updated_desc.
	CursorComposite CursorKind = "composite"
	// CursorScalar carries only the id for price_asc and price_desc.
	CursorScalar CursorKind = "scalar"
)

// Cursor is a decoded keyset position.  Sort is the mode the cursor was
// issued under; price_asc and price_desc share a shape but not a position.
// Timestamps are set only for composite cursors and are always UTC.
type Cursor struct {
	Kind      CursorKind
	Sort      SortMode
	ID        string
	UpdatedAt time.Time
	CreatedAt time.Time
}

// KindFor returns the cursor shape the given sort mode produces.
func KindFor(m SortMode) CursorKind {
	if m == SortUpdatedDesc {
		return CursorComposite
	}
	return CursorScalar
}
