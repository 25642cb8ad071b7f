package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/phronesislabs/phronesis-voice/internal/httpc"
)

// FetchAPIKey retrieves the service API key from the Phronesis backend's
// credentials endpoint (GET /api/get-api-key). Used when the caller does
// not hold a key directly.
func FetchAPIKey(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("conversation: build credentials request: %w", err)
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("conversation: fetch credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("conversation: credentials endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("conversation: decode credentials: %w", err)
	}
	if body.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	return body.APIKey, nil
}
