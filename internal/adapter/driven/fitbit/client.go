// Package fitbit implements the FitbitClient and TokenRefresher ports against
// the Fitbit Web API.
package fitbit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
	"github.com/ericfisherdev/fitsync/internal/domain/port/driven"
)

// CallsPerHour is the vendor's per-user hourly request budget.
const CallsPerHour = 150

// budgetBurst is how many calls may go out back to back: one full cycle.
// The refill rate leaves room for it so no hour window exceeds CallsPerHour.
var budgetBurst = len(model.Categories())

// Compile-time interface satisfaction check.
var _ driven.FitbitClient = (*Client)(nil)

// Client implements the driven.FitbitClient port.
type Client struct {
	http    *http.Client
	baseURL string
	locale  string
	units   model.UnitSystem
	budget  *rate.Limiter
	now     func() time.Time

	mu             sync.Mutex
	exhaustedUntil time.Time
}

// NewClient creates a Fitbit API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. net/http client with a request timeout
//
// locale is sent as Accept-Language and selects the unit system of the
// returned values.
func NewClient(baseURL, locale string) *Client {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   30 * time.Second,
	}
	return NewClientWithHTTPClient(httpClient, baseURL, locale, nil)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client, base URL
// and call budget. A nil budget allows at most CallsPerHour calls in any hour.
// This constructor is used by tests to inject an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, locale string, budget *rate.Limiter) *Client {
	if budget == nil {
		budget = NewBudget()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		locale:  locale,
		units:   model.UnitSystemForLocale(locale),
		budget:  budget,
		now:     time.Now,
	}
}

// NewBudget returns the default call budget: a burst of one cycle, refilling
// at the rate that keeps burst plus an hour of refill at CallsPerHour.
func NewBudget() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(CallsPerHour-budgetBurst)), budgetBurst)
}

// FetchDay retrieves one category for one day and maps the payload to points.
func (c *Client) FetchDay(ctx context.Context, accessToken string, category model.Category, day model.Day) ([]model.Point, error) {
	switch category {
	case model.CategoryActivity:
		var payload activityPayload
		if err := c.get(ctx, accessToken, "/1/user/-/activities/date/"+day.String()+".json", &payload); err != nil {
			return nil, err
		}
		return mapActivity(payload, day, c.units), nil

	case model.CategoryHeart:
		var payload heartPayload
		if err := c.get(ctx, accessToken, "/1/user/-/activities/heart/date/"+day.String()+"/1d.json", &payload); err != nil {
			return nil, err
		}
		return mapHeart(payload, day), nil

	case model.CategoryProfile:
		var payload profilePayload
		if err := c.get(ctx, accessToken, "/1/user/-/profile.json", &payload); err != nil {
			return nil, err
		}
		return mapProfile(payload, day, c.units), nil

	case model.CategorySettings:
		var payload goalsPayload
		if err := c.get(ctx, accessToken, "/1/user/-/activities/goals/daily.json", &payload); err != nil {
			return nil, err
		}
		return mapGoals(payload, day, c.units), nil

	case model.CategorySleep:
		var payload sleepPayload
		if err := c.get(ctx, accessToken, "/1.2/user/-/sleep/date/"+day.String()+".json", &payload); err != nil {
			return nil, err
		}
		return mapSleep(payload, day), nil

	case model.CategoryWeight:
		var payload weightPayload
		if err := c.get(ctx, accessToken, "/1/user/-/body/log/weight/date/"+day.String()+".json", &payload); err != nil {
			return nil, err
		}
		return mapWeight(payload, day, c.units), nil

	default:
		return nil, fmt.Errorf("fetch %s: unknown category", category)
	}
}

// get performs one authenticated GET and decodes the JSON body into v.
// Every outcome other than a decoded 2xx is wrapped with a driven sentinel.
func (c *Client) get(ctx context.Context, accessToken, path string, v any) error {
	if until := c.vendorExhaustedUntil(); c.now().Before(until) {
		return fmt.Errorf("GET %s: %w: vendor reported no calls left until %s", path, driven.ErrRateLimited, until.Format(time.RFC3339))
	}
	if !c.budget.Allow() {
		return fmt.Errorf("GET %s: %w: local budget of %d calls/hour spent", path, driven.ErrRateLimited, CallsPerHour)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if c.locale != "" {
		req.Header.Set("Accept-Language", c.locale)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w: %w", path, driven.ErrTransient, err)
	}
	defer resp.Body.Close()

	c.observeRateLimit(resp, path)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("GET %s: %w", path, driven.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("GET %s: %w: %s", path, driven.ErrUnauthorized, readSnippet(resp.Body))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("GET %s: %w: status %d: %s", path, driven.ErrAuth, resp.StatusCode, readSnippet(resp.Body))
	case resp.StatusCode >= 500:
		return fmt.Errorf("GET %s: %w: status %d", path, driven.ErrTransient, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("GET %s: %w: status %d: %s", path, driven.ErrMalformed, resp.StatusCode, readSnippet(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, driven.ErrMalformed, err)
	}
	return nil
}

// observeRateLimit logs the vendor rate limit headers after each call. When
// the vendor reports no calls left, further calls are refused locally until
// its reset time.
func (c *Client) observeRateLimit(resp *http.Response, path string) {
	remaining := resp.Header.Get("Fitbit-Rate-Limit-Remaining")
	if remaining == "" {
		return
	}

	if remaining == "0" {
		reset, err := strconv.Atoi(resp.Header.Get("Fitbit-Rate-Limit-Reset"))
		if err != nil || reset <= 0 {
			reset = int(time.Hour / time.Second)
		}
		c.mu.Lock()
		c.exhaustedUntil = c.now().Add(time.Duration(reset) * time.Second)
		c.mu.Unlock()
	}

	slog.Debug("fitbit api call",
		"path", path,
		"status", resp.StatusCode,
		"cached", resp.Header.Get(httpcache.XFromCache) != "",
		"rate_remaining", remaining,
		"rate_limit", resp.Header.Get("Fitbit-Rate-Limit-Limit"),
		"rate_reset_seconds", resp.Header.Get("Fitbit-Rate-Limit-Reset"),
	)
}

func (c *Client) vendorExhaustedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhaustedUntil
}

// readSnippet returns at most 256 bytes of an error body for log context.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
