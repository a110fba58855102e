package models

import (
	"sort"
	"time"
)

// GateState is the persisted record governing the secondary publish
// destination: per-month usage counters, the last post timestamp, and the
// in-stock identifier set recorded after the last post.
type GateState struct {
	MonthUsage   map[string]int `json:"month_usage"`
	LastPostUnix int64          `json:"last_post_timestamp"`
	LastInStock  []string       `json:"last_instock_identifiers"`
}

// NewGateState returns the zero state used when no state file exists.
func NewGateState() *GateState {
	return &GateState{MonthUsage: make(map[string]int)}
}

// MonthKey renders the usage-map key for t, e.g. "2024-05".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// UsageFor returns the post count recorded for the given month.
func (g *GateState) UsageFor(t time.Time) int {
	if g == nil || g.MonthUsage == nil {
		return 0
	}
	return g.MonthUsage[MonthKey(t)]
}

// RecordPost mutates the state for a successful secondary publish: bumps the
// month counter, stamps the post time, and replaces the identifier set.
func (g *GateState) RecordPost(now time.Time, inStockIDs []string) {
	if g.MonthUsage == nil {
		g.MonthUsage = make(map[string]int)
	}
	g.MonthUsage[MonthKey(now)]++
	g.LastPostUnix = now.Unix()
	ids := make([]string, len(inStockIDs))
	copy(ids, inStockIDs)
	sort.Strings(ids)
	g.LastInStock = ids
}

// SameInStock reports whether ids matches the recorded identifier set,
// ignoring order and duplicates.
func (g *GateState) SameInStock(ids []string) bool {
	if g == nil {
		return len(ids) == 0
	}
	return sameSet(g.LastInStock, ids)
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, v := range a {
		as[v] = true
	}
	bs := make(map[string]bool, len(b))
	for _, v := range b {
		bs[v] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if !bs[v] {
			return false
		}
	}
	return true
}
