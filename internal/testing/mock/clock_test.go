package mock

import (
	"sync"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}

	before := time.Now()
	clockTime := clock.Now()
	after := time.Now()

	if clockTime.Before(before) || clockTime.After(after) {
		t.Errorf("RealClock.Now() returned time outside expected range")
	}
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Fatalf("Expected time %v, got %v", start, clock.Now())
	}

	clock.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !clock.Now().Equal(want) {
		t.Errorf("Expected time %v after advance, got %v", want, clock.Now())
	}

	other := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(other)
	if !clock.Now().Equal(other) {
		t.Errorf("Expected time %v after set, got %v", other, clock.Now())
	}
}

func TestMockClock_ZeroUsesNow(t *testing.T) {
	clock := NewMockClock(time.Time{})
	if time.Since(clock.Now()) > time.Minute {
		t.Errorf("Expected zero start time to default to now, got %v", clock.Now())
	}
}

func TestMockClock_Concurrent(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); clock.Advance(time.Second) }()
		go func() { defer wg.Done(); _ = clock.Now() }()
	}
	wg.Wait()

	if got := clock.Now(); !got.Equal(time.Unix(50, 0)) {
		t.Errorf("Expected 50s after concurrent advances, got %v", got)
	}
}
