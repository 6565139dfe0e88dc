package srs

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func seeded() State {
	return State{Strength: 0, IntervalDays: 1, EaseFactor: 2.5}
}

func TestReviewAgain(t *testing.T) {
	s := State{Strength: 4, IntervalDays: 12, EaseFactor: 2.5, Lapses: 1}

	res, err := Review(s, Again, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", res.IntervalDays)
	}
	if !approxEq(res.EaseFactor, 2.3) {
		t.Errorf("EaseFactor = %v, want 2.3", res.EaseFactor)
	}
	if res.Lapses != 2 {
		t.Errorf("Lapses = %d, want 2", res.Lapses)
	}
	if res.Strength != 4 {
		t.Errorf("Strength = %d, want unchanged 4", res.Strength)
	}
	if want := t0.Add(24 * time.Hour); !res.NextDueAt.Equal(want) {
		t.Errorf("NextDueAt = %v, want %v", res.NextDueAt, want)
	}
}

func TestReviewGood(t *testing.T) {
	res, err := Review(seeded(), Good, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays != 3 {
		t.Errorf("IntervalDays = %d, want 3", res.IntervalDays)
	}
	if res.EaseFactor != 2.5 {
		t.Errorf("EaseFactor = %v, want unchanged 2.5", res.EaseFactor)
	}
	if res.Strength != 1 {
		t.Errorf("Strength = %d, want 1", res.Strength)
	}
}

func TestReviewHard(t *testing.T) {
	s := State{IntervalDays: 10, EaseFactor: 2.5}

	res, err := Review(s, Hard, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays != 12 {
		t.Errorf("IntervalDays = %d, want 12", res.IntervalDays)
	}
	if !approxEq(res.EaseFactor, 2.35) {
		t.Errorf("EaseFactor = %v, want 2.35", res.EaseFactor)
	}
	if res.Strength != 1 {
		t.Errorf("Strength = %d, want 1", res.Strength)
	}
}

func TestReviewEasy(t *testing.T) {
	res, err := Review(seeded(), Easy, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays != 3 {
		t.Errorf("IntervalDays = %d, want 3", res.IntervalDays)
	}
	if !approxEq(res.EaseFactor, 2.65) {
		t.Errorf("EaseFactor = %v, want 2.65", res.EaseFactor)
	}
	if res.Strength != 2 {
		t.Errorf("Strength = %d, want 2", res.Strength)
	}
}

func TestReviewEasyAlwaysGrows(t *testing.T) {
	// A low ease must not leave the interval flat on Easy.
	s := State{IntervalDays: 5, EaseFactor: minEase}

	res, err := Review(s, Easy, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays <= 5 {
		t.Errorf("IntervalDays = %d, want > 5", res.IntervalDays)
	}
}

func TestEaseFloor(t *testing.T) {
	s := State{IntervalDays: 1, EaseFactor: 1.35}

	res, err := Review(s, Again, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.EaseFactor != minEase {
		t.Errorf("EaseFactor = %v, want floor %v", res.EaseFactor, minEase)
	}
}

func TestRepairsUnseededState(t *testing.T) {
	res, err := Review(State{}, Good, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.EaseFactor != seedEase {
		t.Errorf("EaseFactor = %v, want seed %v", res.EaseFactor, seedEase)
	}
	if res.IntervalDays < 1 {
		t.Errorf("IntervalDays = %d, want >= 1", res.IntervalDays)
	}
}

func TestIntervalCeiling(t *testing.T) {
	s := State{IntervalDays: maxInterval, EaseFactor: 2.5}

	res, err := Review(s, Good, t0)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if res.IntervalDays != maxInterval {
		t.Errorf("IntervalDays = %d, want capped at %d", res.IntervalDays, maxInterval)
	}
}

func TestReviewInvalidRating(t *testing.T) {
	_, err := Review(seeded(), Rating(9), t0)
	if !errors.Is(err, ErrInvalidRating) {
		t.Errorf("err = %v, want ErrInvalidRating", err)
	}
}

func TestStrengthMonotonic(t *testing.T) {
	s := seeded()
	for i, r := range []Rating{Good, Hard, Again, Easy, Good} {
		before := s.Strength
		res, err := Review(s, r, t0)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Strength < before {
			t.Fatalf("step %d (%s): Strength dropped %d -> %d", i, r, before, res.Strength)
		}
		s = res.State
	}
}

func TestRatingRoundTrip(t *testing.T) {
	for _, r := range []Rating{Again, Hard, Good, Easy} {
		text, err := r.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", r, err)
		}
		parsed, err := ParseRating(string(text))
		if err != nil {
			t.Fatalf("ParseRating(%q): %v", text, err)
		}
		if parsed != r {
			t.Errorf("round trip %v -> %q -> %v", r, text, parsed)
		}
	}
}

func TestParseRatingCaseInsensitive(t *testing.T) {
	r, err := ParseRating("GOOD")
	if err != nil || r != Good {
		t.Errorf("ParseRating(GOOD) = %v, %v; want Good", r, err)
	}
	if _, err := ParseRating("amazing"); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("ParseRating(amazing) err = %v, want ErrInvalidRating", err)
	}
}
