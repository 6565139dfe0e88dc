// Package srs implements the spaced-repetition update applied after each
// review: an SM-2 style schedule where the review interval grows with the
// ease factor and a failed recall restarts the interval at one day.
package srs

import (
	"math"
	"time"
)

// Version identifies the scheduling formula. Stored per word so a future
// scheduler can migrate state in place.
const Version = 1

const (
	minEase     = 1.3
	seedEase    = 2.5
	maxInterval = 36500 // 100 years, same ceiling as common FSRS implementations
)

// State is the scheduling state of a word going into a review.
type State struct {
	Strength     int
	IntervalDays int
	EaseFactor   float64
	Lapses       int
}

// Result is the scheduling state after a review, plus the next due date.
type Result struct {
	State
	NextDueAt time.Time
}

// Review applies a rating to the given state at time now.
//
//	Again: interval restarts at 1 day, ease drops by 0.20, a lapse is counted.
//	Hard:  interval grows slowly (×1.2), ease drops by 0.15.
//	Good:  interval multiplies by the ease factor.
//	Easy:  interval multiplies by ease with a 1.3 bonus, ease rises by 0.15.
//
// Strength only ever increases: +1 on any successful recall, +2 on Easy.
func Review(s State, r Rating, now time.Time) (Result, error) {
	if !r.IsValid() {
		return Result{}, ErrInvalidRating
	}

	// Repair unseeded state so legacy rows behave sensibly.
	if s.EaseFactor == 0 {
		s.EaseFactor = seedEase
	}
	if s.IntervalDays < 1 {
		s.IntervalDays = 1
	}

	switch r {
	case Again:
		s.IntervalDays = 1
		s.EaseFactor = math.Max(minEase, s.EaseFactor-0.20)
		s.Lapses++
	case Hard:
		s.IntervalDays = clampInterval(int(math.Round(float64(s.IntervalDays) * 1.2)))
		s.EaseFactor = math.Max(minEase, s.EaseFactor-0.15)
		s.Strength++
	case Good:
		s.IntervalDays = clampInterval(int(math.Round(float64(s.IntervalDays) * s.EaseFactor)))
		s.Strength++
	case Easy:
		next := int(math.Round(float64(s.IntervalDays) * s.EaseFactor * 1.3))
		if next <= s.IntervalDays {
			next = s.IntervalDays + 1
		}
		s.IntervalDays = clampInterval(next)
		s.EaseFactor += 0.15
		s.Strength += 2
	}

	return Result{
		State:     s,
		NextDueAt: now.Add(time.Duration(s.IntervalDays) * 24 * time.Hour),
	}, nil
}

func clampInterval(days int) int {
	if days < 1 {
		return 1
	}
	if days > maxInterval {
		return maxInterval
	}
	return days
}
