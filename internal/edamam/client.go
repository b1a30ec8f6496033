// Package edamam provides a client for the Edamam nutrition-data API
package edamam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrcode/directdose/internal/models"
)

// DefaultBaseURL is the public Edamam API host
const DefaultBaseURL = "https://api.edamam.com"

const nutritionDataPath = "/api/nutrition-data"

// maxErrorBody caps how much of an error response is kept in APIError
const maxErrorBody = 512

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Client handles communication with the nutrition-data API
type Client struct {
	baseURL    string
	appID      string
	appKey     string
	httpClient *http.Client
}

// NewClient creates a new Edamam client. timeout bounds every request; zero
// means no client-level timeout (callers usually pass a context deadline).
func NewClient(baseURL, appID, appKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		appKey:  appKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// buildRequest creates an HTTP request carrying the app credentials
func (c *Client) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	return body, nil
}

// Lookup fetches nutrition facts for a single ingredient line such as
// "1 cup rice". Facts with zero calories are returned as-is; callers decide
// whether they are usable.
func (c *Client) Lookup(ctx context.Context, ingredient string) (*models.NutritionFacts, error) {
	params := url.Values{}
	params.Set("ingr", ingredient)

	req, err := c.buildRequest(ctx, nutritionDataPath, params)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	var facts models.NutritionFacts
	if err := json.Unmarshal(body, &facts); err != nil {
		return nil, fmt.Errorf("parsing nutrition data: %w", err)
	}

	return &facts, nil
}

// TestConnection checks that the credentials are accepted
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Lookup(ctx, "1 apple")
	return err
}
