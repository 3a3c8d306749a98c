package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/partyfinder/internal/models"
)

// DatabaseStore is the SQL fallback used when Redis is disabled.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// DatabaseOption customises a DatabaseStore.
type DatabaseOption func(*DatabaseStore)

// WithDatabaseClock overrides the clock used for expiry.
func WithDatabaseClock(now func() time.Time) DatabaseOption {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewDatabaseStore(db *gorm.DB, opts ...DatabaseOption) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("cache: db is required")
	}
	s := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IncrementWithTTL bumps a counter row under a row lock, restarting it once expired.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = defaultWindow
	}
	now := s.now().UTC()

	var (
		count  int64
		expiry time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(keyIs(key)).Take(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			count, expiry = 1, now.Add(window)
			return tx.Create(&models.CacheEntry{Key: key, Value: encodeCount(1), ExpiresAt: expiry}).Error
		case err != nil:
			return err
		}

		if !entry.ExpiresAt.After(now) {
			count, expiry = 1, now.Add(window)
		} else {
			count, expiry = decodeCount(entry.Value)+1, entry.ExpiresAt
		}
		return tx.Model(&models.CacheEntry{}).
			Where(keyIs(key)).
			Updates(map[string]interface{}{
				"value":      encodeCount(count),
				"expires_at": expiry,
			}).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return count, expiry.Sub(now), nil
}

// Set upserts key. A non-positive ttl stores the value without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiry time.Time
	if ttl > 0 {
		expiry = s.now().UTC().Add(ttl)
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&models.CacheEntry{Key: key, Value: value, ExpiresAt: expiry}).Error
}

func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(keyIs(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !entry.ExpiresAt.IsZero() && !entry.ExpiresAt.After(s.now().UTC()) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = key
	}
	return s.db.WithContext(ctx).
		Where(clause.IN{Column: clause.Column{Name: "key"}, Values: values}).
		Delete(&models.CacheEntry{}).Error
}

// PurgeExpired removes rows whose expiry has passed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now().UTC()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// keyIs quotes the key column, which is a reserved word in MySQL.
func keyIs(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
