package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docchat/internal/model"
)

// GormStore keeps values in the kv_entries table of a MySQL or SQLite database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := findEntry(s.db.WithContext(ctx), key)
	if err != nil {
		return "", false, err
	}
	if entry == nil || entry.Placeholder {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	return upsertEntry(s.db.WithContext(ctx), key, value)
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&model.KVEntry{}).Error; err != nil {
		return fmt.Errorf("delete kv entry %s failed: %w", key, err)
	}
	return nil
}

// Update locks the row (SELECT ... FOR UPDATE where supported) for the
// duration of the transaction. A missing key is seeded with a placeholder row
// first, so MySQL locks that row instead of a gap that two first writers
// could both hold. Deadlocks are retried.
func (s *GormStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return finishUpdate(retryOnDeadlock(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			seed := model.KVEntry{Key: key, Placeholder: true, UpdatedAt: time.Now()}
			if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "entry_key"}}, DoNothing: true}).Create(&seed).Error; err != nil {
				return fmt.Errorf("seed kv entry %s failed: %w", key, err)
			}
			entry, err := findEntry(tx.Clauses(clause.Locking{Strength: "UPDATE"}), key)
			if err != nil {
				return err
			}
			current, exists := "", false
			if entry != nil && !entry.Placeholder {
				current, exists = entry.Value, true
			}

			next, err := fn(current, exists)
			if err != nil {
				return err
			}
			return upsertEntry(tx, key, next)
		})
	}))
}

const mysqlDeadlock = 1213

func retryOnDeadlock(op func() error) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := op()
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDeadlock {
			continue
		}
		return err
	}
	return ErrConflict
}

func findEntry(db *gorm.DB, key string) (*model.KVEntry, error) {
	var entries []model.KVEntry
	if err := db.Where("entry_key = ?", key).Limit(1).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("get kv entry %s failed: %w", key, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func upsertEntry(db *gorm.DB, key, value string) error {
	entry := model.KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"entry_value": value,
			"placeholder": false,
			"updated_at":  entry.UpdatedAt,
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set kv entry %s failed: %w", key, err)
	}
	return nil
}
