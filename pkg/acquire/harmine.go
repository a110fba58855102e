package acquire

import (
	"context"
	"strings"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

// searchHost is the host the structured stock query is served from; capture
// entries for other hosts are ignored during mining.
const searchHost = "search.costco.com"

// HARMine scans a recorded traffic capture for a matching search payload.
// Among all matching entries the one with the most docs wins: the page often
// fires several progressively narrower queries, and the widest one is the
// most complete picture of the listing.
type HARMine struct {
	Path string
}

func (h *HARMine) Name() string { return "capture-mining" }

func (h *HARMine) Attempt(ctx context.Context, s browse.Session) (*Result, error) {
	if h.Path == "" {
		return nil, nil
	}
	exchanges, err := browse.LoadHAR(h.Path)
	if err != nil {
		return nil, err
	}

	var best *models.SearchPayload
	for _, ex := range exchanges {
		if !ex.IsJSON() || !strings.Contains(ex.URL, searchHost) {
			continue
		}
		payload := models.ParseSearchPayload(ex.Body)
		if payload == nil {
			continue
		}
		if best == nil || len(payload.Response.Docs) > len(best.Response.Docs) {
			best = payload
		}
	}
	if best == nil {
		return nil, nil
	}
	return &Result{Payload: best}, nil
}
