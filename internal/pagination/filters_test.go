package pagination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestNormalize_SearchFloor(t *testing.T) {
	for _, q := range []string{"", " ", "a", "  b  ", "ậ"} {
		assert.Nil(t, Normalize(Filters{Search: q}).Search, "search %q", q)
	}
	got := Normalize(Filters{Search: "  Q1 "}).Search
	require.NotNil(t, got)
	assert.Equal(t, "Q1", *got)

	got = Normalize(Filters{Search: "Bà"}).Search
	require.NotNil(t, got)
	assert.Equal(t, "Bà", *got)
}

func TestNormalize_EmptySetsBecomeNil(t *testing.T) {
	f := Normalize(Filters{Districts: []string{" ", ""}, RoomTypes: []string{}})
	assert.Nil(t, f.Districts)
	assert.Nil(t, f.RoomTypes)

	f = Normalize(Filters{Districts: []string{" Quận 1 ", "Quận 1"}})
	assert.Equal(t, []string{"Quận 1"}, f.Districts)
}

func TestNormalize_PriceRange(t *testing.T) {
	f := Normalize(Filters{MinPrice: int64p(9_000_000), MaxPrice: int64p(4_000_000)})
	assert.Equal(t, int64(4_000_000), *f.MinPrice)
	assert.Equal(t, int64(9_000_000), *f.MaxPrice)

	f = Normalize(Filters{MinPrice: int64p(-1)})
	assert.Nil(t, f.MinPrice)
}

func TestNormalize_AccessAndStatus(t *testing.T) {
	f := Normalize(Filters{Access: " STAIRS ", Status: "available"})
	require.NotNil(t, f.Access)
	assert.Equal(t, "stairs", *f.Access)
	require.NotNil(t, f.Status)
	assert.Equal(t, "AVAILABLE", *f.Status)

	f = Normalize(Filters{Access: "ladder", Status: "sold"})
	assert.Nil(t, f.Access)
	assert.Nil(t, f.Status)
}

func TestLabelTable_LegacyExpansion(t *testing.T) {
	tbl := DefaultLabelTable()

	d := tbl.ExpandDistricts([]string{"Quận 10"})
	assert.Contains(t, d, "Quận 10")
	assert.Contains(t, d, "10")

	rt := tbl.ExpandRoomTypes([]string{"2 Phòng ngủ"})
	assert.Contains(t, rt, "2 Phòng ngủ")
	assert.Contains(t, rt, "2PN")
}

func TestLabelTable_LegacySelectionAddsCanonical(t *testing.T) {
	d := DefaultLabelTable().ExpandDistricts([]string{"10", "Quận 10"})
	assert.Equal(t, "10", d[0])
	assert.Contains(t, d, "Quận 10")
	assert.Contains(t, d, "Q10")
	assert.Len(t, d, 3)
}

func TestLabelTable_UnknownLabelPassesThrough(t *testing.T) {
	assert.Equal(t, []string{"Nhà Bè"}, DefaultLabelTable().ExpandDistricts([]string{"Nhà Bè"}))
	assert.Nil(t, DefaultLabelTable().ExpandDistricts(nil))
}

func TestLoadLabelTable_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("districts:\n  \"Quận 9\": [\"9\"]\nroom_types: {}\n"), 0o644))

	tbl, err := LoadLabelTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quận 9", "9"}, tbl.ExpandDistricts([]string{"Quận 9"}))
	assert.Equal(t, []string{"2 Phòng ngủ"}, tbl.ExpandRoomTypes([]string{"2 Phòng ngủ"}))

	_, err = LoadLabelTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
