package pagination

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// LabelTable maps each human-readable filter label to the legacy raw
// values that older rows may still store.  It is configuration data: the
// defaults ship with the binary and LEGACY_LABELS_FILE can replace them.
type LabelTable struct {
	Districts map[string][]string `yaml:"districts"`
	RoomTypes map[string][]string `yaml:"room_types"`

	districtCanon map[string]string
	roomTypeCanon map[string]string
}

// DefaultLabelTable returns the embedded table.
func DefaultLabelTable() *LabelTable {
	t, err := ParseLabelTable(defaultLabelsYAML)
	if err != nil {
		panic(fmt.Sprintf("pagination: embedded labels.yaml: %v", err))
	}
	return t
}

// LoadLabelTable reads a YAML label table from path.  An empty path
// returns the embedded defaults.
func LoadLabelTable(path string) (*LabelTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLabelTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label table: %w", err)
	}
	return ParseLabelTable(b)
}

// ParseLabelTable decodes a YAML label table.
func ParseLabelTable(b []byte) (*LabelTable, error) {
	var t LabelTable
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse label table: %w", err)
	}
	t.districtCanon = reverse(t.Districts)
	t.roomTypeCanon = reverse(t.RoomTypes)
	return &t, nil
}

func reverse(m map[string][]string) map[string]string {
	out := make(map[string]string)
	for label, legacy := range m {
		for _, v := range legacy {
			out[v] = label
		}
	}
	return out
}

// ExpandDistricts returns the union of the selected district labels and
// all their legacy equivalents.
func (t *LabelTable) ExpandDistricts(selected []string) []string {
	if t == nil {
		return dedupe(selected)
	}
	return expand(selected, t.Districts, t.districtCanon)
}

// ExpandRoomTypes is ExpandDistricts for room-type labels.
func (t *LabelTable) ExpandRoomTypes(selected []string) []string {
	if t == nil {
		return dedupe(selected)
	}
	return expand(selected, t.RoomTypes, t.roomTypeCanon)
}

// expand keeps selection order: each value is followed by its canonical
// label (when it was itself a legacy value) and then the label's legacy
// values.
func expand(selected []string, table map[string][]string, canon map[string]string) []string {
	if len(selected) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(selected)*3)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range selected {
		add(v)
		label := v
		if c, ok := canon[v]; ok {
			label = c
			add(c)
		}
		for _, legacy := range table[label] {
			add(legacy)
		}
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
