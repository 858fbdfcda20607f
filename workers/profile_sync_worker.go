// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wellness-progression-service/models"
	"wellness-progression-service/utils"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirroredProfile matches the JSON the account service returns per profile.
type MirroredProfile struct {
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type getProfileChangesResponse struct {
	Profiles []MirroredProfile `json:"profiles"`
}

// ProfileSyncWorker polls the account service for changed profiles and
// upserts them into user_mirrors, which decorates leaderboards with display
// names without a cross-service call per request.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g. "http://localhost:8500"
	endpointPath string // e.g. "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Info().Msg("🔁 starting profile sync worker (account-service → user_mirrors)")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time.
	lastSync := time.Time{}
	if err := w.syncBatch(ctx, lastSync); err != nil {
		log.Warn().Err(err).Msg("initial profile sync failed")
	} else {
		lastSync = time.Now().UTC()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("profile sync worker stopped")
			return
		case <-ticker.C:
			batchStart := time.Now().UTC()
			if err := w.syncBatch(ctx, lastSync); err != nil {
				log.Warn().Err(err).Msg("profile sync batch failed")
				continue
			}
			lastSync = batchStart
		}
	}
}

func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	endpoint, err := url.JoinPath(w.baseURL, w.endpointPath)
	if err != nil {
		return fmt.Errorf("profile sync: build URL: %w", err)
	}
	if !since.IsZero() {
		endpoint += "?updated_after=" + url.QueryEscape(since.Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("profile sync: build request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile sync: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile sync: unexpected status %d: %s", resp.StatusCode, body)
	}

	var changes getProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("profile sync: decode response: %w", err)
	}
	if len(changes.Profiles) == 0 {
		return nil
	}

	now := time.Now().UTC()
	mirrors := make([]models.UserMirror, 0, len(changes.Profiles))
	for _, p := range changes.Profiles {
		if p.ExternalID == "" {
			continue
		}
		mirrors = append(mirrors, models.UserMirror{
			ExternalUserID: p.ExternalID,
			Username:       p.Username,
			AvatarURL:      p.AvatarURL,
			SyncedAt:       now,
		})
	}

	err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "synced_at", "updated_at"}),
	}).Create(&mirrors).Error
	if err != nil {
		return fmt.Errorf("profile sync: upsert mirrors: %w", err)
	}

	log.Info().Int("count", len(mirrors)).Msg("✅ profile mirrors synced")
	return nil
}
