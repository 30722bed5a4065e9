package config

// PaginationConfig bounds listing page sizes and points at an optional
// replacement for the built-in legacy label table.
type PaginationConfig struct {
    DefaultLimit int
    MaxLimit     int
    LabelsFile   string
}

// LoadPaginationConfig reads PAGE_SIZE_DEFAULT, PAGE_SIZE_MAX and
// LEGACY_LABELS_FILE.
func LoadPaginationConfig() PaginationConfig {
    cfg := PaginationConfig{
        DefaultLimit: envInt("PAGE_SIZE_DEFAULT", 20),
        MaxLimit:     envInt("PAGE_SIZE_MAX", 100),
        LabelsFile:   envStr("LEGACY_LABELS_FILE", ""),
    }
    if cfg.MaxLimit < 1 { cfg.MaxLimit = 100 }
    if cfg.DefaultLimit < 1 || cfg.DefaultLimit > cfg.MaxLimit { cfg.DefaultLimit = min(20, cfg.MaxLimit) }
    return cfg
}
