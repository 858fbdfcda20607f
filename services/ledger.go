package services

import (
	"context"
	"errors"
	"math"
	"time"

	"wellness-progression-service/messaging"
	"wellness-progression-service/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BaseXPPerLevel anchors the level curve: level n needs floor(100 * n^1.2)
// XP to clear (level 1 -> 100).
const BaseXPPerLevel = 100

// maxApplyRetries bounds the compare-and-swap retry loop before the caller
// sees ErrConcurrentModification.
const maxApplyRetries = 3

// XPRequiredForLevel returns the XP needed to clear the given level.
// Strictly increasing in level, which terminates the level-up loop.
func XPRequiredForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(level), 1.2))
}

// DateOnly truncates to a UTC calendar date. Streak arithmetic compares
// calendar days, never clock times.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyResult reports one ledger mutation back to the caller.
type ApplyResult struct {
	XPAwarded     int64
	CoinsAwarded  int64
	NewLevel      int
	LeveledUp     bool
	LevelUps      []int
	NewStreak     int
	StreakChanged bool
	State         models.UserProgression
}

// ProgressionLedger owns all mutations of UserProgression records. Writes go
// through the store's versioned compare-and-swap, so per-user updates are
// linearizable even when the service runs multiple replicas.
type ProgressionLedger struct {
	store ProgressionStore
	sink  messaging.EventSink
}

func NewProgressionLedger(store ProgressionStore, sink messaging.EventSink) *ProgressionLedger {
	if sink == nil {
		sink = messaging.LogSink{}
	}
	return &ProgressionLedger{store: store, sink: sink}
}

// ApplyReward applies a computed delta for one action occurrence. The first
// reward for a user creates the record. A failed apply leaves the stored
// record untouched.
func (l *ProgressionLedger) ApplyReward(ctx context.Context, userID string, delta models.RewardDelta, activityDate time.Time, action models.ActionType, reason, idempotencyKey string) (*ApplyResult, error) {
	day := DateOnly(activityDate)

	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		prog, err := l.store.Get(ctx, userID)
		isNew := false
		if errors.Is(err, ErrNotFound) {
			prog = models.NewUserProgression(userID)
			isNew = true
		} else if err != nil {
			return nil, err
		}

		old := *prog
		streakChanged := advanceStreak(prog, day)

		prog.TotalXP += delta.XP
		prog.CurrentXP += delta.XP
		prog.Coins += delta.Coins

		var levelUps []int
		for prog.CurrentXP >= XPRequiredForLevel(prog.Level) {
			prog.CurrentXP -= XPRequiredForLevel(prog.Level)
			prog.Level++
			levelUps = append(levelUps, prog.Level)
		}
		if len(levelUps) > 0 {
			now := time.Now().UTC()
			prog.LastLevelUpAt = &now
		}

		expected := prog.Version
		prog.Version++

		if isNew {
			err = l.store.Create(ctx, prog)
		} else {
			err = l.store.UpdateIfVersion(ctx, prog, expected)
		}
		if errors.Is(err, ErrVersionConflict) {
			log.Debug().Str("user_id", userID).Int("attempt", attempt+1).
				Msg("progression version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		l.recordActivity(ctx, userID, action, reason, delta, day, idempotencyKey)
		l.emitChanged(ctx, old, *prog, delta, levelUps, streakChanged, action, reason)

		return &ApplyResult{
			XPAwarded:     delta.XP,
			CoinsAwarded:  delta.Coins,
			NewLevel:      prog.Level,
			LeveledUp:     len(levelUps) > 0,
			LevelUps:      levelUps,
			NewStreak:     prog.StreakDays,
			StreakChanged: streakChanged,
			State:         *prog,
		}, nil
	}

	return nil, ErrConcurrentModification
}

// GrantAchievement appends the achievement to the unlocked set and applies
// its reward as one atomic mutation, so a crash can never record the unlock
// without its XP. Returns (nil, nil) when a non-repeatable achievement is
// already unlocked.
func (l *ProgressionLedger) GrantAchievement(ctx context.Context, userID string, def models.AchievementDefinition) (*ApplyResult, error) {
	for attempt := 0; attempt < maxApplyRetries; attempt++ {
		prog, err := l.store.Get(ctx, userID)
		if err != nil {
			return nil, err
		}

		alreadyUnlocked := prog.HasAchievement(def.ID)
		if alreadyUnlocked && !def.Repeatable {
			return nil, nil
		}

		old := *prog
		if !alreadyUnlocked {
			prog.UnlockedAchievementIDs = append(prog.UnlockedAchievementIDs, def.ID)
		}

		prog.TotalXP += def.RewardXP
		prog.CurrentXP += def.RewardXP
		prog.Coins += def.RewardCoins

		var levelUps []int
		for prog.CurrentXP >= XPRequiredForLevel(prog.Level) {
			prog.CurrentXP -= XPRequiredForLevel(prog.Level)
			prog.Level++
			levelUps = append(levelUps, prog.Level)
		}
		if len(levelUps) > 0 {
			now := time.Now().UTC()
			prog.LastLevelUpAt = &now
		}

		expected := prog.Version
		prog.Version++

		err = l.store.UpdateIfVersion(ctx, prog, expected)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		grantedAt := time.Now().UTC()
		if err := l.store.RecordUnlock(ctx, &models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: def.ID,
			RewardXP:      def.RewardXP,
			RewardCoins:   def.RewardCoins,
			GrantedAt:     grantedAt,
		}); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("achievement_id", def.ID).
				Msg("failed to record achievement unlock")
		}

		delta := models.RewardDelta{XP: def.RewardXP, Coins: def.RewardCoins}
		l.recordActivity(ctx, userID, models.ActionAchievementUnlock, "achievement:"+def.ID, delta, DateOnly(grantedAt), "")
		l.emitChanged(ctx, old, *prog, delta, levelUps, false, models.ActionAchievementUnlock, "achievement:"+def.ID)

		if err := l.sink.PublishAchievementUnlocked(ctx, messaging.AchievementUnlockedEvent{
			UserID:        userID,
			AchievementID: def.ID,
			RewardXP:      def.RewardXP,
			RewardCoins:   def.RewardCoins,
			GrantedAt:     grantedAt,
		}); err != nil {
			log.Warn().Err(err).Str("achievement_id", def.ID).Msg("failed to publish achievement event")
		}

		return &ApplyResult{
			XPAwarded:    def.RewardXP,
			CoinsAwarded: def.RewardCoins,
			NewLevel:     prog.Level,
			LeveledUp:    len(levelUps) > 0,
			LevelUps:     levelUps,
			NewStreak:    prog.StreakDays,
			State:        *prog,
		}, nil
	}

	return nil, ErrConcurrentModification
}

// ExpireLapsedStreaks zeroes streaks whose last activity is older than
// yesterday relative to now. Conflicting rows are skipped; the next sweep
// picks them up.
func (l *ProgressionLedger) ExpireLapsedStreaks(ctx context.Context, now time.Time) (int, error) {
	yesterday := DateOnly(now).AddDate(0, 0, -1)
	lapsed, err := l.store.LapsedStreaks(ctx, yesterday)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, prog := range lapsed {
		previous := prog.StreakDays
		prog.StreakDays = 0
		expected := prog.Version
		prog.Version++

		if err := l.store.UpdateIfVersion(ctx, &prog, expected); err != nil {
			if !errors.Is(err, ErrVersionConflict) {
				log.Error().Err(err).Str("user_id", prog.UserID).Msg("streak expiry write failed")
			}
			continue
		}
		expired++

		if err := l.sink.PublishStreakExpired(ctx, messaging.StreakExpiredEvent{
			UserID:         prog.UserID,
			PreviousStreak: previous,
			ExpiredAt:      time.Now().UTC(),
		}); err != nil {
			log.Warn().Err(err).Str("user_id", prog.UserID).Msg("failed to publish streak expiry")
		}
	}
	return expired, nil
}

// advanceStreak mutates the streak fields for an action on the given day and
// reports whether anything changed. Late-arriving events (older than the
// stored date) leave the streak and lastActivityDate alone.
func advanceStreak(p *models.UserProgression, day time.Time) bool {
	if p.LastActivityDate == nil {
		p.StreakDays = 1
		p.LastActivityDate = &day
		return true
	}
	last := DateOnly(*p.LastActivityDate)
	switch {
	case day.Equal(last):
		return false // same-day repeats don't inflate the streak
	case day.Before(last):
		return false
	case day.Equal(last.AddDate(0, 0, 1)):
		p.StreakDays++
	default:
		p.StreakDays = 1 // gap: streak restarts at this action
	}
	p.LastActivityDate = &day
	return true
}

func (l *ProgressionLedger) recordActivity(ctx context.Context, userID string, action models.ActionType, reason string, delta models.RewardDelta, day time.Time, idempotencyKey string) {
	err := l.store.RecordActivity(ctx, &models.ActivityRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		ActionType:     string(action),
		Reason:         reason,
		XPAwarded:      delta.XP,
		CoinsAwarded:   delta.Coins,
		IdempotencyKey: idempotencyKey,
		ActivityDate:   day,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to record activity")
	}
}

func (l *ProgressionLedger) emitChanged(ctx context.Context, old, updated models.UserProgression, delta models.RewardDelta, levelUps []int, streakChanged bool, action models.ActionType, reason string) {
	err := l.sink.PublishProgressionChanged(ctx, messaging.ProgressionChangedEvent{
		UserID:        updated.UserID,
		Old:           messaging.SnapshotOf(old),
		New:           messaging.SnapshotOf(updated),
		LevelUps:      levelUps,
		StreakChanged: streakChanged,
		XPAwarded:     delta.XP,
		CoinsAwarded:  delta.Coins,
		ActionType:    string(action),
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", updated.UserID).Msg("failed to publish progression event")
	}
}
