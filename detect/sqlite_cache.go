package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// DefaultCacheFile is the sqlite file used when no path is configured
const DefaultCacheFile = "sonido-models.sqlite3"

// CachedModel is one row of the cached_models table
type CachedModel struct {
	Name      string `gorm:"primaryKey;type:varchar(255)"`
	Data      []byte
	Size      int
	UpdatedAt time.Time
}

// TableName pins the table name
func (CachedModel) TableName() string {
	return "cached_models"
}

// SQLiteModelCache persists model weights in a sqlite database
type SQLiteModelCache struct {
	db *gorm.DB
}

// NewSQLiteModelCache opens (creating if needed) the cache database at path
func NewSQLiteModelCache(path string) (*SQLiteModelCache, error) {
	if path == "" {
		path = DefaultCacheFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening model cache: %w", err)
	}

	if err := db.AutoMigrate(&CachedModel{}); err != nil {
		return nil, fmt.Errorf("migrating model cache: %w", err)
	}

	return &SQLiteModelCache{db: db}, nil
}

func (c *SQLiteModelCache) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&CachedModel{}).Where("name = ?", key).Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking cached model %q: %w", key, err)
	}
	return count > 0, nil
}

func (c *SQLiteModelCache) Get(ctx context.Context, key string) ([]byte, error) {
	var model CachedModel
	err := c.db.WithContext(ctx).Where("name = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached model %q: %w", key, err)
	}
	return model.Data, nil
}

func (c *SQLiteModelCache) Put(ctx context.Context, key string, data []byte) error {
	model := CachedModel{Name: key, Data: data, Size: len(data), UpdatedAt: time.Now()}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("storing cached model %q: %w", key, err)
	}
	return nil
}

func (c *SQLiteModelCache) Clear(ctx context.Context) error {
	if err := c.db.WithContext(ctx).Where("1 = 1").Delete(&CachedModel{}).Error; err != nil {
		return fmt.Errorf("clearing model cache: %w", err)
	}
	return nil
}

// Close releases the database handle
func (c *SQLiteModelCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
