package history

import (
	"fmt"
	"path/filepath"

	"sdr-go/internal/config"
	"sdr-go/internal/sdr"
)

// DatabaseFileName is the history database file inside the data directory.
const DatabaseFileName = "history.db"

// NewHistoryFromConfig creates a History based on the configured type.
func NewHistoryFromConfig(cfg config.HistoryConfig) (sdr.History, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		return openSQLite(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		return openSQLite(":memory:")
	case "none", "":
		return NewNopHistory(), nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

func openSQLite(path string) (sdr.History, error) {
	h, err := NewSQLiteHistory(path)
	if err != nil {
		return nil, err
	}
	return h, nil
}
