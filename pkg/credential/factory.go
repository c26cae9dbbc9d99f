package credential

import (
	"context"
	"fmt"

	"github.com/boardproject/boardadmin/pkg/config"
)

// NewStore creates a credential store based on the configuration.
// When Encrypt is set, sensitive values are sealed before they reach the backend.
func NewStore(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Type {
	case config.StorageMemory:
		return NewMemoryStore(), nil

	case config.StorageFile, "":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("storage.file_path is required for file storage")
		}
		store, err = NewFileStore(cfg.FilePath)

	case config.StorageRedis:
		store, err = NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)

	case config.StorageS3:
		store, err = NewS3Store(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,
		})

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Encrypt {
		return store, nil
	}
	encrypted, err := NewEncryptedStore(store, EncryptionKeyFromEnv())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return encrypted, nil
}
