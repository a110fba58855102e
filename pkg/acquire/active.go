package acquire

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

const searchPath = "/api/apps/www_costco_com/query/www_costco_com_navigation"

// QueryURL builds the logical stock query against the search API: every
// listing under the precious-metals landing page.
func QueryURL() string {
	q := url.Values{}
	q.Set("q", "*:*")
	q.Set("locale", "en-US")
	q.Set("start", "0")
	q.Set("rows", "24")
	q.Set("expand", "false")
	q.Set("url", "/precious-metals.html")
	return fmt.Sprintf("https://%s%s?%s", searchHost, searchPath, q.Encode())
}

// ActiveRequest re-issues the search query directly: first inside the page
// session (sharing its cookies), then via a dedicated out-of-band client with
// its own retry policy. Each body is validated structurally before acceptance.
type ActiveRequest struct {
	client *resty.Client
}

// NewActiveRequest builds the strategy with an out-of-band client: 3 attempts
// total, exponential backoff, retrying only on 429 and 5xx responses.
func NewActiveRequest(cfg models.BrowserConfig) *ActiveRequest {
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(8 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &ActiveRequest{client: client}
}

func (a *ActiveRequest) Name() string { return "active-request" }

func (a *ActiveRequest) Attempt(ctx context.Context, s browse.Session) (*Result, error) {
	queryURL := QueryURL()

	// In-session first: the page load may have established cookies the API
	// checks for.
	if body, err := s.FetchJSON(ctx, queryURL); err == nil {
		if payload := models.ParseSearchPayload(body); payload != nil {
			return &Result{Payload: payload}, nil
		}
	}

	resp, err := a.client.R().SetContext(ctx).Get(queryURL)
	if err != nil {
		return nil, fmt.Errorf("out-of-band query failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("out-of-band query returned status %d", resp.StatusCode())
	}
	payload := models.ParseSearchPayload(resp.Body())
	if payload == nil {
		return nil, nil
	}
	return &Result{Payload: payload}, nil
}
