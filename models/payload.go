package models

import "encoding/json"

// SearchPayload mirrors the search API response shape:
// { "response": { "numFound": int, "docs": [...] } }.
type SearchPayload struct {
	Response SearchResponse `json:"response"`
}

// SearchResponse is the inner response envelope.
type SearchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

// Doc is one raw listing record inside a structured payload. Only the fields
// used for normalization are mapped; everything else is ignored.
type Doc struct {
	MetalForm   []string `json:"Precious_Metal_Form_attr"`
	Purity      []string `json:"Purity_attr"`
	Name        string   `json:"name"`
	InStock     *bool    `json:"isItemInStock"`
	StockStatus string   `json:"stock_status"`
	ItemNumber  string   `json:"item_number"`
	ID          string   `json:"id"`
}

// Identifier returns the fallback key for this record: item number, then id,
// then display name. Empty when the record carries none of them.
func (d Doc) Identifier() string {
	if d.ItemNumber != "" {
		return d.ItemNumber
	}
	if d.ID != "" {
		return d.ID
	}
	return d.Name
}

// Valid reports whether the payload structurally matches the expected shape.
// A docs array must be present; numFound alone is not enough.
func (p *SearchPayload) Valid() bool {
	return p != nil && p.Response.Docs != nil
}

// ParseSearchPayload unmarshals and structurally validates a response body.
// Returns nil when the body is not a matching payload; the caller treats that
// as "this source produced nothing", not as an error.
func ParseSearchPayload(body []byte) *SearchPayload {
	// Probe for the docs array before committing to the full decode, so that
	// arbitrary JSON bodies ({"ok":true} and friends) are rejected cheaply.
	var probe struct {
		Response *struct {
			Docs json.RawMessage `json:"docs"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.Response == nil || len(probe.Response.Docs) == 0 {
		return nil
	}

	var payload SearchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if !payload.Valid() {
		return nil
	}
	return &payload
}
