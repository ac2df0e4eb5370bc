package module

import (
	"context"
	"testing"
	"time"

	"tubesense/internal/core/record"
	"tubesense/internal/modkit"
	"tubesense/internal/modkit/module"
	"tubesense/internal/platform/config"
	"tubesense/internal/services/collect/domain"
)

type nopSource struct{}

func (nopSource) Search(context.Context, domain.SearchQuery) (domain.SearchPage, error) {
	return domain.SearchPage{}, nil
}
func (nopSource) Videos(context.Context, []string) ([]record.Video, error)     { return nil, nil }
func (nopSource) Channels(context.Context, []string) ([]record.Channel, error) { return nil, nil }

func TestFromConfig_ReadsCollectEnv(t *testing.T) {
	t.Setenv("CORE_COLLECT_REGIONS", "us, in ,US")
	t.Setenv("CORE_COLLECT_SEARCH_KEYWORDS", "tutorial,gaming")
	t.Setenv("CORE_COLLECT_VIDEOS_PER_KEYWORD", "7")
	t.Setenv("CORE_COLLECT_QUOTA_BUDGET", "500")
	t.Setenv("CORE_COLLECT_DRY_RUN", "true")
	t.Setenv("CORE_COLLECT_PAGE_TIMEOUT", "5s")

	o := FromConfig(config.New())
	if o.VideosPerKeyword != 7 || o.QuotaBudget != 500 || !o.DryRun || o.PageTimeout != 5*time.Second {
		t.Fatalf("options = %+v", o)
	}
	run := o.Run()
	if len(run.Regions) != 2 || run.Regions[0] != "IN" || run.Regions[1] != "US" {
		t.Fatalf("regions = %v", run.Regions)
	}
	if len(run.Keywords) != 2 || run.DryRunCap != domain.DefaultDryRunCap {
		t.Fatalf("run = %+v", run)
	}
}

func TestNew_ExposesCollectorPort(t *testing.T) {
	m, err := New(context.Background(), modkit.Deps{Cfg: config.New()}, nopSource{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "collect" {
		t.Fatalf("name = %q", m.Name())
	}
	if c, ok := module.PortsOf[domain.CollectorPort](m); !ok || c == nil {
		t.Fatal("collector port not exposed")
	}
}

func TestNew_WithoutKeyFails(t *testing.T) {
	t.Setenv("SERVICE_YOUTUBE_API_KEY", "")
	if _, err := New(context.Background(), modkit.Deps{Cfg: config.New()}, nil, nil); err == nil {
		t.Fatal("expected missing api key error")
	}
}
