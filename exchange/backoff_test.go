package exchange

import (
	"testing"
	"time"
)

func TestBackoffFixedInterval(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Max: 5 * time.Second}
	for _, attempt := range []int{-1, 0, 1, 2, 10} {
		if d := b.Delay(attempt); d != 5*time.Second {
			t.Errorf("attempt %d: expected 5s, got %v", attempt, d)
		}
	}
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 8 * time.Second}
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if d := b.Delay(i + 1); d != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, d)
		}
	}
}
