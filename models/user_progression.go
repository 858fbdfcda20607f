package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgression is the authoritative gamification record for one user
// (denormalized for read performance). All mutations go through the ledger
// and bump Version, which backs the compare-and-swap writes.
type UserProgression struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to account service

	Level      int   `json:"level" gorm:"default:1"`
	CurrentXP  int64 `json:"current_xp" gorm:"default:0"` // progress toward the next level
	TotalXP    int64 `json:"total_xp" gorm:"default:0"`   // lifetime, never decreases
	Coins      int64 `json:"coins" gorm:"default:0"`
	StreakDays int   `json:"streak_days" gorm:"default:0"`

	// Calendar date (UTC midnight) of the last action that advanced the streak.
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`

	UnlockedAchievementIDs []string `json:"unlocked_achievement_ids" gorm:"type:jsonb;serializer:json"`

	Version int64 `json:"version" gorm:"not null;default:0"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// HasAchievement reports whether the achievement id is already in the unlocked set.
func (p *UserProgression) HasAchievement(id string) bool {
	for _, unlocked := range p.UnlockedAchievementIDs {
		if unlocked == id {
			return true
		}
	}
	return false
}

// NewUserProgression returns the initial record created on a user's first reward.
func NewUserProgression(userID string) *UserProgression {
	return &UserProgression{
		UserID: userID,
		Level:  1,
	}
}

// DefaultProgression is the zero-state snapshot returned for users with no
// record yet. It is never persisted.
func DefaultProgression(userID string) UserProgression {
	return UserProgression{
		UserID: userID,
		Level:  1,
	}
}

// ActivityRecord is the audit row written for every applied reward.
type ActivityRecord struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string    `gorm:"index;not null" json:"user_id"`
	ActionType     string    `gorm:"not null" json:"action_type"`
	Reason         string    `json:"reason"`
	XPAwarded      int64     `json:"xp_awarded"`
	CoinsAwarded   int64     `json:"coins_awarded"`
	IdempotencyKey string    `gorm:"index" json:"idempotency_key,omitempty"`
	ActivityDate   time.Time `json:"activity_date"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement is one awarded achievement instance.
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	AchievementID string    `gorm:"index;not null" json:"achievement_id"`
	RewardXP      int64     `json:"reward_xp"`
	RewardCoins   int64     `json:"reward_coins"`
	GrantedAt     time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

// UserMirror is a read-only copy of account-service profiles, refreshed by the
// profile sync worker. Used to decorate leaderboards with display names.
type UserMirror struct {
	ExternalUserID string  `gorm:"primaryKey" json:"external_user_id"`
	Username       string  `json:"username"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	SyncedAt       time.Time `json:"synced_at"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
