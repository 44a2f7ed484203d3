// workers/likes_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"collective-project-system/models"

	"gorm.io/gorm"
)

// LikesSyncClient polls the engagement service for contribution like
// counts. Likes are an external signal: this service mirrors them
// read-only, and composition uses the mirrored value to rank featured
// contributions.
type LikesSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewLikesSyncClient(db *gorm.DB) *LikesSyncClient {
	baseURL := os.Getenv("ENGAGEMENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("ENGAGEMENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("PROJECT_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("PROJECT_SERVICE_TOKEN environment variable is required for likes sync")
	}

	return &LikesSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type likeCount struct {
	ContributionID string    `json:"contribution_id"`
	LikesCount     int64     `json:"likes_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetChangedLikes fetches counts updated since the given time.
func (c *LikesSyncClient) GetChangedLikes(ctx context.Context, since time.Time) ([]likeCount, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/likes", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call engagement service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("engagement service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Likes []likeCount `json:"likes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode engagement response: %w", err)
	}
	return response.Likes, nil
}

func (c *LikesSyncClient) applyBatch(counts []likeCount) {
	for _, count := range counts {
		err := c.DB.Model(&models.Contribution{}).
			Where("id = ?", count.ContributionID).
			Update("likes_count", count.LikesCount).Error
		if err != nil {
			log.Printf("⚠️ Failed to mirror likes for contribution %s: %v", count.ContributionID, err)
		}
	}
}

// PollLikes mirrors like counts on a fixed interval until ctx is done.
func PollLikes(ctx context.Context, client *LikesSyncClient, interval time.Duration) {
	log.Println("🔁 Starting likes polling (engagement-service → contributions)…")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastSync := time.Unix(0, 0)

	for {
		select {
		case <-ticker.C:
			counts, err := client.GetChangedLikes(ctx, lastSync)
			if err != nil {
				log.Printf("❌ Likes sync failed: %v", err)
				continue
			}
			if len(counts) == 0 {
				continue
			}
			client.applyBatch(counts)
			lastSync = time.Now()
			log.Printf("[SYNC] ❤️ Mirrored %d like counts", len(counts))
		case <-ctx.Done():
			log.Println("⏹️ Likes polling stopped")
			return
		}
	}
}
