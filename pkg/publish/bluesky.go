// Package publish holds the two social destinations and the gate that
// decides when the secondary one may fire.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bullionwatch/pmalert/models"
)

// Poster is one publish destination.
type Poster interface {
	Name() string
	Post(ctx context.Context, msg models.AlertMessage) error
}

// Bluesky is the primary destination: XRPC with a handle + app password.
type Bluesky struct {
	cfg    models.BlueskyConfig
	client *resty.Client
	logger *slog.Logger
}

// NewBluesky builds the primary publisher.
func NewBluesky(cfg models.BlueskyConfig, logger *slog.Logger) *Bluesky {
	return &Bluesky{
		cfg: cfg,
		client: resty.New().
			SetBaseURL(cfg.ServiceURL).
			SetTimeout(30 * time.Second),
		logger: logger,
	}
}

func (b *Bluesky) Name() string { return "bluesky" }

type blueskySession struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
}

// Post authenticates, uploads the optional image, and creates the feed post
// with its richtext facets.
func (b *Bluesky) Post(ctx context.Context, msg models.AlertMessage) error {
	session, err := b.login(ctx)
	if err != nil {
		return err
	}

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      msg.Text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if facets := facetRecords(msg.Facets); len(facets) > 0 {
		record["facets"] = facets
	}

	if len(msg.Image) > 0 {
		blob, err := b.uploadBlob(ctx, session, msg.Image)
		if err != nil {
			// The image is a nicety; the alert still goes out without it.
			b.logger.Warn("bluesky image upload failed, posting text only", "error", err)
			blob = nil
		}
		if blob != nil {
			record["embed"] = map[string]any{
				"$type": "app.bsky.embed.images",
				"images": []map[string]any{
					{"alt": msg.ImageAlt, "image": blob},
				},
			}
		}
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetAuthToken(session.AccessJWT).
		SetBody(map[string]any{
			"repo":       session.DID,
			"collection": "app.bsky.feed.post",
			"record":     record,
		}).
		Post("/xrpc/com.atproto.repo.createRecord")
	if err != nil {
		return fmt.Errorf("bluesky createRecord failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bluesky createRecord returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (b *Bluesky) login(ctx context.Context) (*blueskySession, error) {
	var session blueskySession
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"identifier": b.cfg.Handle,
			"password":   b.cfg.AppPassword,
		}).
		SetResult(&session).
		Post("/xrpc/com.atproto.server.createSession")
	if err != nil {
		return nil, fmt.Errorf("bluesky login failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bluesky login returned status %d", resp.StatusCode())
	}
	if session.AccessJWT == "" || session.DID == "" {
		return nil, fmt.Errorf("bluesky login returned incomplete session")
	}
	return &session, nil
}

func (b *Bluesky) uploadBlob(ctx context.Context, session *blueskySession, image []byte) (json.RawMessage, error) {
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetAuthToken(session.AccessJWT).
		SetHeader("Content-Type", "image/png").
		SetBody(image).
		SetResult(&out).
		Post("/xrpc/com.atproto.repo.uploadBlob")
	if err != nil {
		return nil, fmt.Errorf("bluesky uploadBlob failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bluesky uploadBlob returned status %d", resp.StatusCode())
	}
	if len(out.Blob) == 0 {
		return nil, fmt.Errorf("bluesky uploadBlob returned no blob")
	}
	return out.Blob, nil
}

// facetRecords maps facets onto the app.bsky.richtext.facet wire shape.
func facetRecords(facets []models.Facet) []map[string]any {
	out := make([]map[string]any, 0, len(facets))
	for _, f := range facets {
		var feature map[string]any
		switch f.Kind {
		case models.FacetTag:
			feature = map[string]any{
				"$type": "app.bsky.richtext.facet#tag",
				"tag":   f.Value,
			}
		case models.FacetLink:
			feature = map[string]any{
				"$type": "app.bsky.richtext.facet#link",
				"uri":   f.Value,
			}
		default:
			continue
		}
		out = append(out, map[string]any{
			"index": map[string]int{
				"byteStart": f.ByteStart,
				"byteEnd":   f.ByteEnd,
			},
			"features": []map[string]any{feature},
		})
	}
	return out
}
