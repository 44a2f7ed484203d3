// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"collective-project-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountUser matches the JSON the account service returns for changed
// profiles.
type AccountUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type accountChangesResponse struct {
	Users []AccountUser `json:"users"`
}

// UserSyncWorker mirrors identity from the account service into the local
// users table. Identity fields are the only ones it touches — experience
// and coins belong to this service and must survive the upsert.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, accountServiceURL, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      accountServiceURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (account-service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ User sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is tracked in its own column: reward writes bump the row's
// updated_at, so that timestamp cannot serve as the sync cursor.
func (w *UserSyncWorker) lastSyncTime() time.Time {
	var lastTime *time.Time
	err := w.db.Raw("SELECT MAX(synced_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime == nil {
		return time.Unix(0, 0)
	}
	return *lastTime
}

func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/profiles", w.baseURL))
	if err != nil {
		return fmt.Errorf("invalid account service URL %q: %w", w.baseURL, err)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("account service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed accountChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode account service response: %w", err)
	}
	if len(parsed.Users) == 0 {
		return nil
	}

	now := time.Now()
	for _, account := range parsed.Users {
		user := models.User{
			ID:        account.ID,
			Username:  account.Username,
			AvatarURL: account.AvatarURL,
			SyncedAt:  &now,
		}
		err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "synced_at"}),
		}).Create(&user).Error
		if err != nil {
			log.Printf("⚠️ Failed to upsert user %s: %v", account.ID, err)
		}
	}

	log.Printf("[SYNC] 👤 Mirrored %d user profiles", len(parsed.Users))
	return nil
}
