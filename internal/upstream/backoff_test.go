package upstream

import (
	"testing"
	"time"
)

func TestBackoff_DoublesUpToCap(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Fatalf("attempt %d: delay = %v, want %v", i, got, w)
		}
	}
}

func TestBackoff_ResetRestartsAtBase(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)
	for i := 0; i < 4; i++ {
		b.NextBackOff()
	}
	b.Reset()
	if got := b.NextBackOff(); got != time.Second {
		t.Fatalf("delay after reset = %v, want 1s", got)
	}
}
