// Package repository contains data access logic separated from HTTP handlers.
// This file implements the row-filtering query service behind the room
// listing plus the admin write operations on rooms.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/room-rental/internal/model"
	"github.com/iliyamo/room-rental/internal/pagination"
)

// roomColumns is the full column list; ProjectRoom redacts per tier.
const roomColumns = `r.id, r.title, r.district, r.room_type, r.price_vnd, r.access, r.status,
	r.amenities, r.media, r.address, COALESCE(r.internal_note, ''), r.landlord_name,
	r.landlord_phone, r.commission_pct, r.created_at, r.updated_at`

// RoomRepo encapsulates all database queries related to rooms.
type RoomRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRoomRepo constructs a RoomRepo with the provided DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// FetchRoomsPage answers one keyset page.  Visibility by tier, filtering,
// ordering and the next cursor are all decided here.
//
//	updated_desc: ORDER BY updated_at DESC, created_at DESC, id DESC
//	price_asc:    ORDER BY price_vnd ASC, id ASC
//	price_desc:   ORDER BY price_vnd DESC, id DESC
//
// Price cursors only carry the id; the anchor's price is looked up again so
// a price edit between pages moves the anchor with the row.  A vanished
// anchor yields pagination.ErrCursorReset.
func (r *RoomRepo) FetchRoomsPage(ctx context.Context, q model.RoomQuery) (model.RoomPage, error) {
	if q.Limit <= 0 {
		q.Limit = pagination.DefaultLimit
	}
	where, args := roomFilterSQL(q.Tier, q.Filters)

	page := model.RoomPage{Tier: q.Tier}
	if q.IncludeTotal {
		var total int64
		countSQL := "SELECT COUNT(*) FROM rooms r WHERE " + strings.Join(where, " AND ")
		if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
			return model.RoomPage{}, err
		}
		page.Total = &total
	}

	var order string
	switch q.Sort {
	case model.SortPriceAsc, model.SortPriceDesc:
		op, dir := ">", "ASC"
		if q.Sort == model.SortPriceDesc {
			op, dir = "<", "DESC"
		}
		if q.CursorID != nil {
			var anchor int64
			err := r.db.QueryRowContext(ctx, "SELECT price_vnd FROM rooms WHERE id = ?", *q.CursorID).Scan(&anchor)
			if errors.Is(err, sql.ErrNoRows) {
				return model.RoomPage{}, pagination.ErrCursorReset
			}
			if err != nil {
				return model.RoomPage{}, err
			}
			where = append(where, "(r.price_vnd "+op+" ? OR (r.price_vnd = ? AND r.id "+op+" ?))")
			args = append(args, anchor, anchor, *q.CursorID)
		}
		order = "r.price_vnd " + dir + ", r.id " + dir
	default:
		if q.CursorRowID != nil && q.CursorUpdatedAt != nil && q.CursorCreatedAt != nil {
			u, c := q.CursorUpdatedAt.UTC(), q.CursorCreatedAt.UTC()
			where = append(where,
				"(r.updated_at < ? OR (r.updated_at = ? AND (r.created_at < ? OR (r.created_at = ? AND r.id < ?))))")
			args = append(args, u, u, c, c, *q.CursorRowID)
		}
		order = "r.updated_at DESC, r.created_at DESC, r.id DESC"
	}

	dataSQL := "SELECT " + roomColumns + " FROM rooms r WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + " LIMIT ?"
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return model.RoomPage{}, err
	}
	defer rows.Close()

	var last model.Room
	page.Rows = make([]model.Row, 0, q.Limit)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return model.RoomPage{}, err
		}
		page.Rows = append(page.Rows, model.ProjectRoom(q.Tier, room))
		last = room
	}
	if err := rows.Err(); err != nil {
		return model.RoomPage{}, err
	}

	if len(page.Rows) == q.Limit {
		c := model.Cursor{Kind: model.KindFor(q.Sort), Sort: q.Sort, ID: last.ID}
		if c.Kind == model.CursorComposite {
			c.UpdatedAt, c.CreatedAt = last.UpdatedAt.UTC(), last.CreatedAt.UTC()
		}
		page.NextCursor = &c
	}
	return page, nil
}

// roomFilterSQL turns the filter set into WHERE fragments.  The result is
// never empty so callers can always join with AND.
func roomFilterSQL(tier model.RoleTier, f model.RoomFilters) ([]string, []any) {
	where := []string{"1=1"}
	args := []any{}

	if tier == model.TierPublic {
		where = append(where, "r.status <> ?")
		args = append(args, model.RoomHidden)
	}
	if f.Search != nil {
		like := "%" + strings.ToLower(*f.Search) + "%"
		if tier == model.TierPublic {
			where = append(where, "(LOWER(r.title) LIKE ? OR LOWER(r.district) LIKE ?)")
			args = append(args, like, like)
		} else {
			where = append(where, "(LOWER(r.title) LIKE ? OR LOWER(r.district) LIKE ? OR LOWER(r.address) LIKE ?)")
			args = append(args, like, like, like)
		}
	}
	if f.MinPrice != nil {
		where = append(where, "r.price_vnd >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "r.price_vnd <= ?")
		args = append(args, *f.MaxPrice)
	}
	if len(f.Districts) > 0 {
		where = append(where, "r.district IN ("+placeholders(len(f.Districts))+")")
		for _, d := range f.Districts {
			args = append(args, d)
		}
	}
	if len(f.RoomTypes) > 0 {
		where = append(where, "r.room_type IN ("+placeholders(len(f.RoomTypes))+")")
		for _, t := range f.RoomTypes {
			args = append(args, t)
		}
	}
	if f.Access != nil {
		where = append(where, "r.access = ?")
		args = append(args, *f.Access)
	}
	if f.Status != nil {
		where = append(where, "r.status = ?")
		args = append(args, *f.Status)
	}
	return where, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(s rowScanner) (model.Room, error) {
	var (
		rm             model.Room
		amenities, med []byte
	)
	if err := s.Scan(&rm.ID, &rm.Title, &rm.District, &rm.RoomType, &rm.PriceVND, &rm.Access, &rm.Status,
		&amenities, &med, &rm.Address, &rm.InternalNote, &rm.LandlordName,
		&rm.LandlordPhone, &rm.CommissionPct, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		return model.Room{}, err
	}
	if err := decodeList(amenities, &rm.Amenities); err != nil {
		return model.Room{}, err
	}
	if err := decodeList(med, &rm.Media); err != nil {
		return model.Room{}, err
	}
	rm.CreatedAt, rm.UpdatedAt = rm.CreatedAt.UTC(), rm.UpdatedAt.UTC()
	return rm, nil
}

func decodeList(raw []byte, dst *[]string) error {
	if len(raw) == 0 || string(raw) == "null" {
		*dst = []string{}
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeList(v []string) ([]byte, error) {
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}

// RoomPatch lists the columns an admin may change.  Nil fields are left
// untouched.
type RoomPatch struct {
	Title         *string
	District      *string
	RoomType      *string
	PriceVND      *int64
	Access        *string
	Status        *string
	Amenities     *[]string
	Address       *string
	InternalNote  *string
	LandlordName  *string
	LandlordPhone *string
	CommissionPct *float64
}

// Create inserts a room with a fresh UUID.  CreatedAt and UpdatedAt are set
// to the same instant.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	rm.ID = uuid.NewString()
	now := r.now()
	rm.CreatedAt, rm.UpdatedAt = now, now
	if rm.Status == "" {
		rm.Status = model.RoomAvailable
	}
	amenities, err := encodeList(rm.Amenities)
	if err != nil {
		return err
	}
	med, err := encodeList(rm.Media)
	if err != nil {
		return err
	}
	const q = `INSERT INTO rooms (id, title, district, room_type, price_vnd, access, status, amenities, media,
		address, internal_note, landlord_name, landlord_phone, commission_pct, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, q, rm.ID, rm.Title, rm.District, rm.RoomType, rm.PriceVND, rm.Access, rm.Status,
		amenities, med, rm.Address, rm.InternalNote, rm.LandlordName, rm.LandlordPhone, rm.CommissionPct,
		rm.CreatedAt, rm.UpdatedAt)
	return err
}

// GetByID fetches a room regardless of status.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (model.Room, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM rooms r WHERE r.id = ?", id)
	rm, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return rm, err
}

// Update applies p and bumps updated_at.  It returns the stored row.
func (r *RoomRepo) Update(ctx context.Context, id string, p RoomPatch) (model.Room, error) {
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.District != nil {
		add("district", *p.District)
	}
	if p.RoomType != nil {
		add("room_type", *p.RoomType)
	}
	if p.PriceVND != nil {
		add("price_vnd", *p.PriceVND)
	}
	if p.Access != nil {
		add("access", *p.Access)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.Amenities != nil {
		b, err := encodeList(*p.Amenities)
		if err != nil {
			return model.Room{}, err
		}
		add("amenities", b)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.InternalNote != nil {
		add("internal_note", *p.InternalNote)
	}
	if p.LandlordName != nil {
		add("landlord_name", *p.LandlordName)
	}
	if p.LandlordPhone != nil {
		add("landlord_phone", *p.LandlordPhone)
	}
	if p.CommissionPct != nil {
		add("commission_pct", *p.CommissionPct)
	}
	if err := r.touch(ctx, id, set, args); err != nil {
		return model.Room{}, err
	}
	return r.GetByID(ctx, id)
}

// UpdatePrice sets the monthly price.
func (r *RoomRepo) UpdatePrice(ctx context.Context, id string, price int64) error {
	return r.touch(ctx, id, []string{"price_vnd = ?"}, []any{price})
}

// SetMedia replaces the room's media list.
func (r *RoomRepo) SetMedia(ctx context.Context, id string, media []string) error {
	b, err := encodeList(media)
	if err != nil {
		return err
	}
	return r.touch(ctx, id, []string{"media = ?"}, []any{b})
}

// Delete removes a room.
func (r *RoomRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// touch runs an UPDATE with the given SET fragments plus updated_at.
// updated_at never moves behind created_at or its previous value.
func (r *RoomRepo) touch(ctx context.Context, id string, set []string, args []any) error {
	now := r.now()
	set = append(set, "updated_at = GREATEST(?, created_at, updated_at)")
	args = append(args, now, id)
	res, err := r.db.ExecContext(ctx, "UPDATE rooms SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}
