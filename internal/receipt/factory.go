package receipt

import (
	"context"
	"fmt"

	"sdr-go/internal/config"
	"sdr-go/internal/sdr"
)

// NewStoreFromConfig creates a ReceiptStore based on the receipt config
// type. The "none" type returns a nil store, which disables receipts.
func NewStoreFromConfig(ctx context.Context, cfg config.ReceiptConfig) (sdr.ReceiptStore, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem receipts require fs_root to be set")
		}
		store, err := NewFileSystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 receipts require s3_bucket to be set")
		}
		store, err := NewS3StoreFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown receipt store type: %s", cfg.Type)
	}
}
