package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/example/dining-watcher/internal/subscription"
)

// DisneyClient checks dining availability against the Disney dining API. It
// authenticates with username/password, caches the bearer token, and
// re-authenticates once on a 401.
type DisneyClient struct {
	hc       *http.Client
	baseURL  string
	username string
	password string

	mu    sync.Mutex
	token string
}

type DisneyConfig struct {
	BaseURL  string
	Username string
	Password string
}

func NewDisneyClient(cfg DisneyConfig) *DisneyClient {
	return &DisneyClient{
		hc:       &http.Client{},
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
	}
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type availabilityResponse struct {
	AvailableTimes []struct {
		Time  string `json:"time"`
		Offer string `json:"offer"`
	} `json:"availableTimes"`
}

// Login authenticates and caches the access token. Safe to call
// concurrently; callers normally rely on CheckAvailability doing this
// lazily.
func (c *DisneyClient) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"loginValue": c.username,
		"password":   c.password,
	})
	if err != nil {
		return err
	}

	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/authentication/login", "", nil, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: login failed (status=%d)", ErrUnavailable, status)
	}

	var lr loginResponse
	if err := json.Unmarshal(respBody, &lr); err != nil || lr.AccessToken == "" {
		return fmt.Errorf("%w: login response missing access token", ErrUnavailable)
	}

	c.mu.Lock()
	c.token = lr.AccessToken
	c.mu.Unlock()
	return nil
}

func (c *DisneyClient) CheckAvailability(ctx context.Context, res subscription.ResourceRef, crit subscription.Criteria) ([]Slot, error) {
	if c.currentToken() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	slots, status, err := c.fetchAvailability(ctx, res, crit)
	if status == http.StatusUnauthorized {
		// Token expired; log in once and retry.
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		slots, status, err = c.fetchAvailability(ctx, res, crit)
	}
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: availability check failed (status=%d)", ErrUnavailable, status)
	}
	return slots, nil
}

func (c *DisneyClient) fetchAvailability(ctx context.Context, res subscription.ResourceRef, crit subscription.Criteria) ([]Slot, int, error) {
	params := map[string]string{
		"restaurant": res.RestaurantID,
		"partySize":  strconv.Itoa(crit.PartySize),
		"date":       crit.Date.Format("2006-01-02"),
		"mealPeriod": string(crit.MealPeriod),
	}

	status, body, err := c.do(ctx, http.MethodGet, c.baseURL+"/dining/availability", c.currentToken(), params, nil)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, status, nil
	}

	var ar availabilityResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		// An unparseable response is a failed check, never a match.
		return nil, 0, fmt.Errorf("%w: malformed availability response: %v", ErrUnavailable, err)
	}

	slots := make([]Slot, 0, len(ar.AvailableTimes))
	for _, t := range ar.AvailableTimes {
		slots = append(slots, Slot{Time: t.Time, Ref: t.Offer})
	}
	return slots, status, nil
}

func (c *DisneyClient) do(ctx context.Context, method, rawURL, token string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	if token != "" {
		req.Header.Set("authorization", "Bearer "+token)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, b, nil
}

func (c *DisneyClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// BookingURL builds the reservation deep link included in notifications.
func BookingURL(baseURL string, res subscription.ResourceRef, crit subscription.Criteria) string {
	return fmt.Sprintf("%s/dining/reservations/?restaurant=%s&date=%s",
		baseURL, res.RestaurantID, crit.Date.Format("2006-01-02"))
}
