// Package browse is the seam between the pipeline and the page-fetching
// collaborator. The acquisition chain only sees the Session interface;
// a browser-automation implementation can slot in behind it without touching
// the strategies. The shipped implementation is a plain HTTP session.
package browse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/bullionwatch/pmalert/models"
)

// ErrUnsupported is returned by session capabilities the implementation
// cannot provide (e.g. screenshots without a rendering engine).
var ErrUnsupported = errors.New("capability not supported by this session")

// Exchange is one recorded network response observed during the session.
type Exchange struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the exchange carried a JSON content type.
func (e Exchange) IsJSON() bool {
	return strings.Contains(strings.ToLower(e.ContentType), "json")
}

// Session is one page-inspection session against the target URL. All waits
// inside an implementation must be bounded by the configured timeout.
type Session interface {
	// Navigate loads the target page. Failure means no page content at all;
	// the run degrades to the inconclusive path.
	Navigate(ctx context.Context) error
	// HTML returns the raw page markup after navigation.
	HTML() string
	// BodyText returns the visible page text after navigation.
	BodyText() string
	// Captured returns every network response recorded during the session.
	Captured() []Exchange
	// FetchJSON issues a GET within the session context (sharing cookies and
	// headers with the page load) and returns the raw body.
	FetchJSON(ctx context.Context, rawURL string) ([]byte, error)
	// NudgeScroll advances the scroll position to coax a lazy grid into
	// rendering more tiles. A no-op for non-rendering sessions.
	NudgeScroll(ctx context.Context)
	// Screenshot captures the rendered page, or ErrUnsupported.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// New builds a Session for the configured engine. Browser-backed engines are
// launched by the external automation collaborator; when that is unavailable,
// or FORCE_REQUESTS is set, the HTTP session is used for every engine choice.
func New(cfg models.BrowserConfig) Session {
	return NewHTTPSession(cfg)
}

// HTTPSession fetches the page over plain HTTP/1.1, which avoids some
// headless HTTP/2 flakiness on the target host. It records every response it
// performs so the passive-capture strategy has a uniform contract.
type HTTPSession struct {
	client   *resty.Client
	html     string
	bodyText string
	captured []Exchange
}

// NewHTTPSession builds an HTTP session honoring the user agent and timeout.
func NewHTTPSession(cfg models.BrowserConfig) *HTTPSession {
	client := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Referer", "https://www.costco.com/").
		SetHeader("Connection", "keep-alive")
	return &HTTPSession{client: client}
}

func (s *HTTPSession) Navigate(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get(models.TargetURL)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", models.TargetURL, err)
	}
	s.record(models.TargetURL, resp)
	if resp.IsError() {
		return fmt.Errorf("failed to load %s: status %d", models.TargetURL, resp.StatusCode())
	}
	s.html = string(resp.Body())
	s.bodyText = extractText(s.html)
	return nil
}

func (s *HTTPSession) HTML() string     { return s.html }
func (s *HTTPSession) BodyText() string { return s.bodyText }

func (s *HTTPSession) Captured() []Exchange {
	out := make([]Exchange, len(s.captured))
	copy(out, s.captured)
	return out
}

func (s *HTTPSession) FetchJSON(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("session fetch failed: %w", err)
	}
	s.record(rawURL, resp)
	if resp.IsError() {
		return nil, fmt.Errorf("session fetch returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// NudgeScroll is a no-op: static HTML has no lazy grid to advance.
func (s *HTTPSession) NudgeScroll(ctx context.Context) {}

func (s *HTTPSession) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (s *HTTPSession) Close() error { return nil }

func (s *HTTPSession) record(rawURL string, resp *resty.Response) {
	s.captured = append(s.captured, Exchange{
		URL:         rawURL,
		Status:      resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	})
}

// extractText renders visible page text: readability for the main content,
// with a plain goquery body-text fallback when distillation fails (listing
// grids often defeat readability's article heuristics).
func extractText(html string) string {
	if html == "" {
		return ""
	}
	if u, err := url.Parse(models.TargetURL); err == nil {
		parser := readability.NewParser()
		if article, err := parser.Parse(strings.NewReader(html), u); err == nil {
			if t := strings.TrimSpace(article.TextContent); t != "" {
				return t
			}
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("body").Text())
}
