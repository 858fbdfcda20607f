package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wellness-progression-service/models"

	"gorm.io/gorm"
)

// ProgressionStore is the storage collaborator for progression state. Any
// backend that can do a versioned compare-and-swap on a single record
// satisfies it; production uses postgres via gorm, tests and DB-less dev use
// the in-memory implementation.
type ProgressionStore interface {
	// Get returns ErrNotFound for users with no record yet.
	Get(ctx context.Context, userID string) (*models.UserProgression, error)
	// Create fails with ErrVersionConflict when a record already exists
	// (two first-award races), so the ledger can reload and retry.
	Create(ctx context.Context, p *models.UserProgression) error
	// UpdateIfVersion persists p only if the stored version still equals
	// expectedVersion; otherwise ErrVersionConflict.
	UpdateIfVersion(ctx context.Context, p *models.UserProgression, expectedVersion int64) error

	RecordActivity(ctx context.Context, rec *models.ActivityRecord) error
	RecentActivity(ctx context.Context, userID string, limit int) ([]models.ActivityRecord, error)

	RecordUnlock(ctx context.Context, ua *models.UserAchievement) error
	ListUnlocks(ctx context.Context, userID string) ([]models.UserAchievement, error)

	TopByTotalXP(ctx context.Context, limit int) ([]models.UserProgression, error)
	LapsedStreaks(ctx context.Context, lastActiveBefore time.Time) ([]models.UserProgression, error)
	MirrorsByIDs(ctx context.Context, userIDs []string) (map[string]models.UserMirror, error)
}

type gormProgressionStore struct {
	db *gorm.DB
}

var _ ProgressionStore = (*gormProgressionStore)(nil)

func NewGormProgressionStore(db *gorm.DB) ProgressionStore {
	return &gormProgressionStore{db: db}
}

func (s *gormProgressionStore) Get(ctx context.Context, userID string) (*models.UserProgression, error) {
	var prog models.UserProgression
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

func (s *gormProgressionStore) Create(ctx context.Context, p *models.UserProgression) error {
	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create progression for %s: %w", p.UserID, ErrVersionConflict)
	}
	return err
}

func (s *gormProgressionStore) UpdateIfVersion(ctx context.Context, p *models.UserProgression, expectedVersion int64) error {
	res := s.db.WithContext(ctx).
		Model(&models.UserProgression{}).
		Where("user_id = ? AND version = ?", p.UserID, expectedVersion).
		Select("level", "current_xp", "total_xp", "coins", "streak_days",
			"last_activity_date", "unlocked_achievement_ids", "version", "last_level_up_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update progression for %s at v%d: %w", p.UserID, expectedVersion, ErrVersionConflict)
	}
	return nil
}

func (s *gormProgressionStore) RecordActivity(ctx context.Context, rec *models.ActivityRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *gormProgressionStore) RecentActivity(ctx context.Context, userID string, limit int) ([]models.ActivityRecord, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var recs []models.ActivityRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (s *gormProgressionStore) RecordUnlock(ctx context.Context, ua *models.UserAchievement) error {
	return s.db.WithContext(ctx).Create(ua).Error
}

func (s *gormProgressionStore) ListUnlocks(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var unlocks []models.UserAchievement
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("granted_at ASC").
		Find(&unlocks).Error
	return unlocks, err
}

func (s *gormProgressionStore) TopByTotalXP(ctx context.Context, limit int) ([]models.UserProgression, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	var progs []models.UserProgression
	// user_id tiebreak keeps the ordering reproducible
	err := s.db.WithContext(ctx).
		Order("total_xp DESC, user_id ASC").
		Limit(limit).
		Find(&progs).Error
	return progs, err
}

func (s *gormProgressionStore) LapsedStreaks(ctx context.Context, lastActiveBefore time.Time) ([]models.UserProgression, error) {
	var progs []models.UserProgression
	err := s.db.WithContext(ctx).
		Where("streak_days > 0 AND last_activity_date < ?", lastActiveBefore).
		Find(&progs).Error
	return progs, err
}

func (s *gormProgressionStore) MirrorsByIDs(ctx context.Context, userIDs []string) (map[string]models.UserMirror, error) {
	if len(userIDs) == 0 {
		return map[string]models.UserMirror{}, nil
	}
	var mirrors []models.UserMirror
	if err := s.db.WithContext(ctx).Where("external_user_id IN ?", userIDs).Find(&mirrors).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.UserMirror, len(mirrors))
	for _, m := range mirrors {
		out[m.ExternalUserID] = m
	}
	return out, nil
}
