package model

import "time"

// Row is one listing row as projected for a role tier.  The tier is
// decided by the query service, never inferred from which fields are set.
type Row interface {
	RowTier() RoleTier
	RowID() string
}

// PublicRow is the projection every visitor may see.
type PublicRow struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	District  string    `json:"district"`
	RoomType  string    `json:"room_type"`
	PriceVND  int64     `json:"price_vnd"`
	Access    string    `json:"access,omitempty"`
	Status    string    `json:"status"`
	Amenities []string  `json:"amenities"`
	Media     []string  `json:"media"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r PublicRow) RowTier() RoleTier { return TierPublic }
func (r PublicRow) RowID() string     { return r.ID }

// AdminTier1Row adds the columns staff need to handle viewings.
type AdminTier1Row struct {
	PublicRow
	Address      string `json:"address"`
	InternalNote string `json:"internal_note"`
}

func (r AdminTier1Row) RowTier() RoleTier { return TierAdmin1 }

// AdminTier2Row adds landlord and commission data.
type AdminTier2Row struct {
	AdminTier1Row
	LandlordName  string  `json:"landlord_name"`
	LandlordPhone string  `json:"landlord_phone"`
	CommissionPct float64 `json:"commission_pct"`
}

func (r AdminTier2Row) RowTier() RoleTier { return TierAdmin2 }

// ProjectRoom builds the row for tier out of a full room record.
func ProjectRoom(tier RoleTier, r Room) Row {
	pub := PublicRow{
		ID:        r.ID,
		Title:     r.Title,
		District:  r.District,
		RoomType:  r.RoomType,
		PriceVND:  r.PriceVND,
		Access:    r.Access,
		Status:    r.Status,
		Amenities: nonNil(r.Amenities),
		Media:     nonNil(r.Media),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	switch tier {
	case TierAdmin1:
		return AdminTier1Row{PublicRow: pub, Address: r.Address, InternalNote: r.InternalNote}
	case TierAdmin2:
		return AdminTier2Row{
			AdminTier1Row: AdminTier1Row{PublicRow: pub, Address: r.Address, InternalNote: r.InternalNote},
			LandlordName:  r.LandlordName,
			LandlordPhone: r.LandlordPhone,
			CommissionPct: r.CommissionPct,
		}
	}
	return pub
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
