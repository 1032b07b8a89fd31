package storage

import (
	"context"
	"errors"

	"github.com/beije/packet-storefront/pkg/db"
	"github.com/beije/packet-storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL persists entries in the storage_entries table.
type SQL struct {
	client *db.Client
}

func NewSQL(client *db.Client) *SQL {
	return &SQL{client: client}
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var entry models.StorageEntry
	err := s.client.DB().WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	entry := models.StorageEntry{Key: key, Value: value}
	return s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	return s.client.DB().WithContext(ctx).Where("key = ?", key).Delete(&models.StorageEntry{}).Error
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
