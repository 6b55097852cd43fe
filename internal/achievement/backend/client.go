// Package backend calls the reward endpoints of the game backend: the
// definition catalog and the per-user progress record. The client shares the
// application's HTTP client, so its own calls flow through the interception
// middleware like everyone else's.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wcarena/tracker/internal/achievement"
)

// Client is a thin REST client over the backend reward endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client rooted at baseURL. A nil httpClient
// falls back to http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

type definitionsResponse struct {
	Achievements []achievement.Definition `json:"achievements"`
}

type progressResponse struct {
	Experience        int                            `json:"experience"`
	Currencies        map[string]int                 `json:"currencies"`
	Completed         []achievement.CompletionRecord `json:"completed"`
	PendingAwardCount int                            `json:"pendingAwardCount"`
	NewlyAwarded      int                            `json:"newlyAwarded"`
}

// ListDefinitions fetches the full reward definition catalog in backend
// order.
func (c *Client) ListDefinitions(ctx context.Context) ([]achievement.Definition, error) {
	var payload definitionsResponse
	if err := c.getJSON(ctx, "/api/achievements", &payload); err != nil {
		return nil, err
	}
	return payload.Achievements, nil
}

// GetProgress fetches the authoritative progress record for one user,
// including the newly-awarded counter.
func (c *Client) GetProgress(ctx context.Context, userID string) (achievement.ProgressRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return achievement.ProgressRecord{}, fmt.Errorf("user id is required")
	}

	var payload progressResponse
	path := "/api/users/" + url.PathEscape(userID) + "/progress"
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return achievement.ProgressRecord{}, err
	}

	record := achievement.ProgressRecord{
		Progress: achievement.Progress{
			Experience:        payload.Experience,
			Currencies:        payload.Currencies,
			Completed:         payload.Completed,
			PendingAwardCount: payload.PendingAwardCount,
		}.Normalize(),
		NewlyAwarded: payload.NewlyAwarded,
	}
	return record, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("backend client is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
