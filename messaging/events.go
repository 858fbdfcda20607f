package messaging

import (
	"context"
	"time"

	"wellness-progression-service/models"

	"github.com/rs/zerolog/log"
)

// ProgressionSnapshot is the event-facing view of a progression record.
type ProgressionSnapshot struct {
	UserID     string `json:"user_id"`
	Level      int    `json:"level"`
	CurrentXP  int64  `json:"current_xp"`
	TotalXP    int64  `json:"total_xp"`
	Coins      int64  `json:"coins"`
	StreakDays int    `json:"streak_days"`
	Version    int64  `json:"version"`
}

// SnapshotOf converts a progression record for event payloads.
func SnapshotOf(p models.UserProgression) ProgressionSnapshot {
	return ProgressionSnapshot{
		UserID:     p.UserID,
		Level:      p.Level,
		CurrentXP:  p.CurrentXP,
		TotalXP:    p.TotalXP,
		Coins:      p.Coins,
		StreakDays: p.StreakDays,
		Version:    p.Version,
	}
}

// ProgressionChangedEvent is emitted after every successful ledger mutation.
type ProgressionChangedEvent struct {
	UserID        string               `json:"user_id"`
	Old           ProgressionSnapshot  `json:"old"`
	New           ProgressionSnapshot  `json:"new"`
	LevelUps      []int                `json:"level_ups,omitempty"`
	StreakChanged bool                 `json:"streak_changed"`
	XPAwarded     int64                `json:"xp_awarded"`
	CoinsAwarded  int64                `json:"coins_awarded"`
	ActionType    string               `json:"action_type"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// AchievementUnlockedEvent notifies downstream consumers of a new unlock.
type AchievementUnlockedEvent struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	RewardXP      int64     `json:"reward_xp"`
	RewardCoins   int64     `json:"reward_coins"`
	GrantedAt     time.Time `json:"granted_at"`
}

// StreakExpiredEvent is emitted by the sweep when a stale streak is zeroed.
type StreakExpiredEvent struct {
	UserID         string    `json:"user_id"`
	PreviousStreak int       `json:"previous_streak"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// EventSink delivers progression events to downstream consumers
// (notifications, analytics). Fire-and-forget: publish failures must never
// fail the reward path.
type EventSink interface {
	PublishProgressionChanged(ctx context.Context, ev ProgressionChangedEvent) error
	PublishAchievementUnlocked(ctx context.Context, ev AchievementUnlockedEvent) error
	PublishStreakExpired(ctx context.Context, ev StreakExpiredEvent) error
}

// LogSink just logs events. Used when no broker is configured and in tests.
type LogSink struct{}

var _ EventSink = LogSink{}

func (LogSink) PublishProgressionChanged(_ context.Context, ev ProgressionChangedEvent) error {
	log.Debug().Str("user_id", ev.UserID).Int("level", ev.New.Level).
		Int64("xp_awarded", ev.XPAwarded).Msg("progression changed")
	return nil
}

func (LogSink) PublishAchievementUnlocked(_ context.Context, ev AchievementUnlockedEvent) error {
	log.Debug().Str("user_id", ev.UserID).Str("achievement_id", ev.AchievementID).
		Msg("achievement unlocked")
	return nil
}

func (LogSink) PublishStreakExpired(_ context.Context, ev StreakExpiredEvent) error {
	log.Debug().Str("user_id", ev.UserID).Int("previous_streak", ev.PreviousStreak).
		Msg("streak expired")
	return nil
}
