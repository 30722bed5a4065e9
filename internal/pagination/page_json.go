package pagination

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/room-rental/internal/model"
)

type pageWire struct {
	Tier       model.RoleTier    `json:"tier"`
	Rows       []json.RawMessage `json:"rows"`
	NextCursor *string           `json:"next_cursor"`
	Total      *int64            `json:"total,omitempty"`
	Reset      bool              `json:"reset"`
}

// MarshalJSON writes next_cursor as null at the end of the collection.
func (p Page) MarshalJSON() ([]byte, error) {
	rows := make([]json.RawMessage, 0, len(p.Rows))
	for _, r := range p.Rows {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, b)
	}
	w := pageWire{Tier: p.Tier, Rows: rows, Total: p.Total, Reset: p.Reset}
	if p.NextCursor != "" {
		nc := p.NextCursor
		w.NextCursor = &nc
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes rows into the concrete type named by tier.
func (p *Page) UnmarshalJSON(b []byte) error {
	var w pageWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	rows := make([]model.Row, 0, len(w.Rows))
	for i, raw := range w.Rows {
		r, err := decodeRow(w.Tier, raw)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, r)
	}
	*p = Page{Tier: w.Tier, Rows: rows, Total: w.Total, Reset: w.Reset}
	if w.NextCursor != nil {
		p.NextCursor = *w.NextCursor
	}
	return nil
}

func decodeRow(tier model.RoleTier, raw json.RawMessage) (model.Row, error) {
	switch tier {
	case model.TierAdmin2:
		var r model.AdminTier2Row
		err := json.Unmarshal(raw, &r)
		return r, err
	case model.TierAdmin1:
		var r model.AdminTier1Row
		err := json.Unmarshal(raw, &r)
		return r, err
	case model.TierPublic, "":
		var r model.PublicRow
		err := json.Unmarshal(raw, &r)
		return r, err
	}
	return nil, fmt.Errorf("unknown tier %q", tier)
}
