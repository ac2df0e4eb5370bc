package domain

import (
	"sync"
	"testing"

	perr "tubesense/internal/platform/errors"
)

func TestRunConfig_NormalizedAndPairs(t *testing.T) {
	c := RunConfig{
		Regions:          []string{"us", " IN", "US", ""},
		Keywords:         []string{"tutorial", " gaming ", "tutorial", ""},
		VideosPerKeyword: 2,
	}.Normalized()

	if got := c.Regions; len(got) != 2 || got[0] != "IN" || got[1] != "US" {
		t.Fatalf("regions = %v", got)
	}
	if got := c.Keywords; len(got) != 2 || got[0] != "tutorial" || got[1] != "gaming" {
		t.Fatalf("keywords = %v", got)
	}
	if c.DryRunCap != DefaultDryRunCap {
		t.Fatalf("dry run cap = %d", c.DryRunCap)
	}

	want := []Pair{{0, "IN", "tutorial"}, {1, "IN", "gaming"}, {2, "US", "tutorial"}, {3, "US", "gaming"}}
	got := c.Pairs()
	if len(got) != len(want) {
		t.Fatalf("pairs = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pair %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRunConfig_Validate(t *testing.T) {
	ok := RunConfig{Regions: []string{"US"}, Keywords: []string{"x"}, VideosPerKeyword: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	bad := map[string]RunConfig{
		"regions":            {Keywords: []string{"x"}, VideosPerKeyword: 1},
		"search_keywords":    {Regions: []string{"US"}, VideosPerKeyword: 1},
		"videos_per_keyword": {Regions: []string{"US"}, Keywords: []string{"x"}},
		"quota_budget":       {Regions: []string{"US"}, Keywords: []string{"x"}, VideosPerKeyword: 1, QuotaBudget: -1},
	}
	for field, c := range bad {
		err := c.Validate()
		if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%s: err = %v", field, err)
		}
		if e, _ := perr.As(err); e.Field() != field {
			t.Fatalf("%s: field = %q", field, e.Field())
		}
	}

	c := ok
	c.Regions = []string{"USA"}
	if err := c.Validate(); err == nil {
		t.Fatal("three letter region accepted")
	}
}

func TestQuota_ReserveIsStickyOnRefusal(t *testing.T) {
	q := NewQuota(102)
	if !q.Reserve("US", MethodSearch) || !q.Reserve("US", MethodVideos) {
		t.Fatal("first reservations should fit")
	}
	if q.Reserve("IN", MethodSearch) {
		t.Fatal("search should not fit in 1 remaining unit")
	}
	if q.Reserve("IN", MethodChannels) {
		t.Fatal("budget must stay closed after a refusal")
	}
	if !q.Exhausted() || q.Used() != 101 {
		t.Fatalf("exhausted=%v used=%d", q.Exhausted(), q.Used())
	}
	regions := q.Regions()
	if len(regions) != 1 || regions[0] != (RegionQuota{Region: "US", UnitsConsumed: 101, QueriesIssued: 2}) {
		t.Fatalf("regions = %+v", regions)
	}
}

func TestQuota_ZeroBudget(t *testing.T) {
	q := NewQuota(0)
	if q.Reserve("US", MethodChannels) {
		t.Fatal("zero budget admitted a request")
	}
}

func TestQuota_ConcurrentNeverOverruns(t *testing.T) {
	q := NewQuota(1000)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			region := []string{"US", "IN", "GB", "CA"}[i%4]
			for j := 0; j < 10; j++ {
				if q.Reserve(region, MethodSearch) {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()
	if granted != 10 || q.Used() != 1000 {
		t.Fatalf("granted=%d used=%d", granted, q.Used())
	}
}

func TestMethod_Cost(t *testing.T) {
	if MethodSearch.Cost() != 100 || MethodVideos.Cost() != 1 || MethodChannels.Cost() != 1 || Method("x").Cost() != 0 {
		t.Fatal("unexpected unit costs")
	}
}
