package testkit

import (
	"sync"
	"testing"
	"time"
)

var quotaCost = func(method string) int { return 100 }

func TestSwap_RestoresAfterSubtest(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &quotaCost, func(string) int { return 1 })
		if quotaCost("search") != 1 {
			t.Fatalf("swap did not take effect")
		}
	})
	if quotaCost("search") != 100 {
		t.Fatalf("swap did not restore")
	}
}

func TestSerial_NoInterleaving(t *testing.T) {
	var mu sync.Mutex
	var seq []string
	record := func(s string) { mu.Lock(); seq = append(seq, s); mu.Unlock() }

	t.Run("group", func(t *testing.T) {
		for _, name := range []string{"A", "B"} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				Serial(t)
				record(name + "-start")
				time.Sleep(20 * time.Millisecond)
				record(name + "-end")
			})
		}
	})

	if len(seq) != 4 || seq[0][0] != seq[1][0] || seq[2][0] != seq[3][0] {
		t.Fatalf("expected grouped execution, got %v", seq)
	}
}
