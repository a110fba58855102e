package acquire

import (
	"context"

	"github.com/bullionwatch/pmalert/models"
	"github.com/bullionwatch/pmalert/pkg/browse"
)

// PassiveCapture scans the responses recorded while the target page loaded.
// The first JSON response whose body structurally matches the search payload
// shape wins and short-circuits the chain.
type PassiveCapture struct{}

func (p *PassiveCapture) Name() string { return "passive-capture" }

func (p *PassiveCapture) Attempt(ctx context.Context, s browse.Session) (*Result, error) {
	for _, ex := range s.Captured() {
		if !ex.IsJSON() {
			continue
		}
		if payload := models.ParseSearchPayload(ex.Body); payload != nil {
			return &Result{Payload: payload}, nil
		}
	}
	return nil, nil
}
