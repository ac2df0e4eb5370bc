package version

import "testing"

func TestInfo(t *testing.T) {
	b := Info("")
	if b.Service != "tubesense" || b.Version != "dev" {
		t.Fatalf("defaults = %+v", b)
	}
	if got := Info("tubesense-api").String(); got != "tubesense-api dev (none, unknown)" {
		t.Fatalf("String = %q", got)
	}
}
