package domain

import (
	"slices"
	"sync"
)

// Quota is the run wide unit budget. Reserve is an atomic check-and-increment;
// the first refusal closes the budget for every region
type Quota struct {
	mu      sync.Mutex
	limit   int
	used    int
	closed  bool
	regions map[string]*RegionQuota
}

// NewQuota returns a budget of limit units
func NewQuota(limit int) *Quota {
	return &Quota{limit: limit, regions: map[string]*RegionQuota{}}
}

// Reserve books m's cost against region and reports whether the request may be issued
func (q *Quota) Reserve(region string, m Method) bool {
	cost := m.Cost()
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.used+cost > q.limit {
		q.closed = true
		return false
	}
	q.used += cost
	rq := q.regions[region]
	if rq == nil {
		rq = &RegionQuota{Region: region}
		q.regions[region] = rq
	}
	rq.UnitsConsumed += cost
	rq.QueriesIssued++
	return true
}

// Exhausted reports whether a reservation has been refused
func (q *Quota) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Used returns the units consumed so far
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Regions returns per region usage sorted by region
func (q *Quota) Regions() []RegionQuota {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]RegionQuota, 0, len(q.regions))
	for _, rq := range q.regions {
		out = append(out, *rq)
	}
	slices.SortFunc(out, func(a, b RegionQuota) int {
		switch {
		case a.Region < b.Region:
			return -1
		case a.Region > b.Region:
			return 1
		}
		return 0
	})
	return out
}
