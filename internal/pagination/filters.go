package pagination

import (
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/room-rental/internal/model"
)

// MinSearchRunes is the shortest trimmed search string that is forwarded.
// Shorter queries are treated as no search at all.
const MinSearchRunes = 2

// Filters is the raw filter state as entered by a user.
type Filters struct {
	Search    string   `json:"search,omitempty"`
	MinPrice  *int64   `json:"min_price,omitempty"`
	MaxPrice  *int64   `json:"max_price,omitempty"`
	Districts []string `json:"districts,omitempty"`
	RoomTypes []string `json:"room_types,omitempty"`
	Access    string   `json:"access,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// Normalize trims every field, drops empty sets, drops a search below
// MinSearchRunes and discards unknown access or status values.  Legacy
// expansion is applied separately by Expand.
func Normalize(f Filters) model.RoomFilters {
	var out model.RoomFilters

	if q := strings.TrimSpace(f.Search); utf8.RuneCountInString(q) >= MinSearchRunes {
		out.Search = &q
	}

	minP, maxP := nonNegative(f.MinPrice), nonNegative(f.MaxPrice)
	if minP != nil && maxP != nil && *minP > *maxP {
		minP, maxP = maxP, minP
	}
	out.MinPrice, out.MaxPrice = minP, maxP

	out.Districts = cleanSet(f.Districts)
	out.RoomTypes = cleanSet(f.RoomTypes)

	switch a := strings.ToLower(strings.TrimSpace(f.Access)); a {
	case model.AccessElevator, model.AccessStairs:
		out.Access = &a
	}
	if s := strings.ToUpper(strings.TrimSpace(f.Status)); model.ValidRoomStatus(s) {
		out.Status = &s
	}
	return out
}

// Expand replaces the district and room-type sets with their union of
// canonical labels and legacy values.
func Expand(f model.RoomFilters, t *LabelTable) model.RoomFilters {
	f.Districts = t.ExpandDistricts(f.Districts)
	f.RoomTypes = t.ExpandRoomTypes(f.RoomTypes)
	return f
}

func nonNegative(p *int64) *int64 {
	if p == nil || *p < 0 {
		return nil
	}
	v := *p
	return &v
}

func cleanSet(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
