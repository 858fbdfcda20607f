package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wellness-progression-service/models"

	"github.com/google/uuid"
)

// MemoryProgressionStore keeps everything in process memory. It backs the
// test suite and local runs without a DATABASE_URL. Semantics mirror the
// gorm store, including version conflicts.
type MemoryProgressionStore struct {
	mu         sync.Mutex
	records    map[string]models.UserProgression
	activities []models.ActivityRecord
	unlocks    []models.UserAchievement
	mirrors    map[string]models.UserMirror
}

var _ ProgressionStore = (*MemoryProgressionStore)(nil)

func NewMemoryProgressionStore() *MemoryProgressionStore {
	return &MemoryProgressionStore{
		records: make(map[string]models.UserProgression),
		mirrors: make(map[string]models.UserMirror),
	}
}

func (s *MemoryProgressionStore) Get(_ context.Context, userID string) (*models.UserProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	cp := clone(p)
	return &cp, nil
}

func (s *MemoryProgressionStore) Create(_ context.Context, p *models.UserProgression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[p.UserID]; exists {
		return fmt.Errorf("create progression for %s: %w", p.UserID, ErrVersionConflict)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.records[p.UserID] = clone(*p)
	return nil
}

func (s *MemoryProgressionStore) UpdateIfVersion(_ context.Context, p *models.UserProgression, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[p.UserID]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("update progression for %s at v%d: %w", p.UserID, expectedVersion, ErrVersionConflict)
	}
	s.records[p.UserID] = clone(*p)
	return nil
}

func (s *MemoryProgressionStore) RecordActivity(_ context.Context, rec *models.ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.activities = append(s.activities, *rec)
	return nil
}

func (s *MemoryProgressionStore) RecentActivity(_ context.Context, userID string, limit int) ([]models.ActivityRecord, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityRecord
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if s.activities[i].UserID == userID {
			out = append(out, s.activities[i])
		}
	}
	return out, nil
}

func (s *MemoryProgressionStore) RecordUnlock(_ context.Context, ua *models.UserAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ua.ID == "" {
		ua.ID = uuid.NewString()
	}
	if ua.GrantedAt.IsZero() {
		ua.GrantedAt = time.Now().UTC()
	}
	s.unlocks = append(s.unlocks, *ua)
	return nil
}

func (s *MemoryProgressionStore) ListUnlocks(_ context.Context, userID string) ([]models.UserAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserAchievement
	for _, ua := range s.unlocks {
		if ua.UserID == userID {
			out = append(out, ua)
		}
	}
	return out, nil
}

func (s *MemoryProgressionStore) TopByTotalXP(_ context.Context, limit int) ([]models.UserProgression, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserProgression, 0, len(s.records))
	for _, p := range s.records {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalXP != out[j].TotalXP {
			return out[i].TotalXP > out[j].TotalXP
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryProgressionStore) LapsedStreaks(_ context.Context, lastActiveBefore time.Time) ([]models.UserProgression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserProgression
	for _, p := range s.records {
		if p.StreakDays > 0 && p.LastActivityDate != nil && p.LastActivityDate.Before(lastActiveBefore) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryProgressionStore) MirrorsByIDs(_ context.Context, userIDs []string) (map[string]models.UserMirror, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.UserMirror)
	for _, id := range userIDs {
		if m, ok := s.mirrors[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

// PutMirror seeds a profile mirror (tests and dev only).
func (s *MemoryProgressionStore) PutMirror(m models.UserMirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors[m.ExternalUserID] = m
}

func clone(p models.UserProgression) models.UserProgression {
	cp := p
	cp.UnlockedAchievementIDs = append([]string(nil), p.UnlockedAchievementIDs...)
	if p.LastActivityDate != nil {
		d := *p.LastActivityDate
		cp.LastActivityDate = &d
	}
	if p.LastLevelUpAt != nil {
		t := *p.LastLevelUpAt
		cp.LastLevelUpAt = &t
	}
	return cp
}
