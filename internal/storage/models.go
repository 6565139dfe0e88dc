package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a job operation is attempted from a
// status that does not permit it (e.g. completing a job that was never claimed).
var ErrInvalidTransition = errors.New("invalid job status transition")

// Word processing statuses, derived from the word's generation job lifecycle.
const (
	WordStatusQueued     = "queued"
	WordStatusProcessing = "processing"
	WordStatusReady      = "ready"
	WordStatusFailed     = "failed"
)

// Generation job statuses.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Word is a vocabulary item the learner is studying.
type Word struct {
	ID          int64
	Text        string
	Language    string
	Translation string
	Topic       string

	Strength int
	Known    bool
	Ignored  bool

	// Spaced-repetition state. IntervalDays is at least 1, EaseFactor is
	// seeded at 2.5, NextDueAt is always set (tomorrow at creation).
	IntervalDays  int
	EaseFactor    float64
	LastReviewAt  *time.Time
	NextDueAt     time.Time
	LastStudiedAt *time.Time

	// Extended scheduler state, stored for future scheduler versions.
	Difficulty       float64
	Stability        float64
	Lapses           int
	LastRating       string
	SchedulerVersion int

	ProcessingStatus string
	SentenceCount    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sentence is example usage text for a word. WordID is the legacy owner; the
// sentence_words link table is authoritative for which words it reinforces.
type Sentence struct {
	ID                 int64
	WordID             int64
	Text               string
	Translation        string
	ContextText        string
	ContextTranslation string
	AudioPath          string
	LastShownAt        *time.Time
	CreatedAt          time.Time
}

// GenerationJob is one outstanding unit of content-generation work.
// There is exactly one job row per word.
type GenerationJob struct {
	ID            int64
	WordID        int64
	Language      string
	Topic         string
	SentenceCount int
	Status        string
	Attempts      int
	LastError     string
	StartedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QueueWord is a word currently queued or processing, for queue display.
type QueueWord struct {
	WordID   int64
	Text     string
	Language string
	Status   string
}

// QueueSummary aggregates generation queue state for observers.
type QueueSummary struct {
	Queued     int
	Processing int
	Failed     int
	Active     []QueueWord
}

// ReviewLogEntry records a single review outcome, kept for future
// scheduler parameter tuning.
type ReviewLogEntry struct {
	ID             string
	WordID         int64
	Rating         string
	IntervalBefore int
	IntervalAfter  int
	EaseBefore     float64
	EaseAfter      float64
	ReviewedAt     time.Time
}
