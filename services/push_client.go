// services/push_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"collective-project-system/models"

	"gorm.io/gorm"
)

// PushClient sends notifications through the gateway's push endpoint, one
// request per user covering all of that user's active device tokens.
type PushClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	DB      *gorm.DB
}

// NewPushClientFromEnv returns a nil PushSender when PUSH_SERVICE_URL is
// unset — push delivery is then disabled and notifications are only stored.
// The interface return keeps the disabled case a genuinely nil interface,
// not a typed-nil pointer that would slip past the sender's nil check.
func NewPushClientFromEnv(db *gorm.DB) PushSender {
	baseURL := os.Getenv("PUSH_SERVICE_URL")
	if baseURL == "" {
		log.Println("⚠️  PUSH_SERVICE_URL not set, push delivery disabled")
		return nil
	}
	return &PushClient{
		BaseURL: baseURL,
		Token:   os.Getenv("PROJECT_SERVICE_TOKEN"),
		DB:      db,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushResponse struct {
	Sent int `json:"sent"`
}

// Send delivers title/body to every active device the user has registered.
// Returns the delivery count reported by the transport.
func (c *PushClient) Send(userID, title, body string, data map[string]string) (int, error) {
	var tokens []string
	if err := c.DB.Model(&models.UserDevice{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("device_token", &tokens).Error; err != nil {
		return 0, fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	reqBody := map[string]interface{}{
		"tokens": tokens,
		"title":  title,
		"body":   body,
		"data":   data,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v1/push", c.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("push transport unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("push transport returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to decode push response: %w", err)
	}
	return parsed.Sent, nil
}
