package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const wordColumns = `id, text, language, translation, topic, strength, known, ignored,
	interval_days, ease_factor, last_review_at, next_due_at, last_studied_at,
	processing_status, sentence_count, difficulty, stability, lapses, last_rating,
	scheduler_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWord(row rowScanner) (Word, error) {
	var w Word
	var lastReview, lastStudied sql.NullString
	var nextDue, createdAt, updatedAt string
	err := row.Scan(
		&w.ID, &w.Text, &w.Language, &w.Translation, &w.Topic, &w.Strength, &w.Known, &w.Ignored,
		&w.IntervalDays, &w.EaseFactor, &lastReview, &nextDue, &lastStudied,
		&w.ProcessingStatus, &w.SentenceCount, &w.Difficulty, &w.Stability, &w.Lapses, &w.LastRating,
		&w.SchedulerVersion, &createdAt, &updatedAt,
	)
	if err != nil {
		return Word{}, err
	}
	if w.LastReviewAt, err = parseNullTime(lastReview); err != nil {
		return Word{}, fmt.Errorf("parsing last_review_at: %w", err)
	}
	if w.LastStudiedAt, err = parseNullTime(lastStudied); err != nil {
		return Word{}, fmt.Errorf("parsing last_studied_at: %w", err)
	}
	if w.NextDueAt, err = parseTime(nextDue); err != nil {
		return Word{}, fmt.Errorf("parsing next_due_at: %w", err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return Word{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Word{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return w, nil
}

// CreateWord inserts a new word and returns its id. Zero-value scheduling
// fields are seeded: interval 1 day, ease factor 2.5, due tomorrow.
func (s *Store) CreateWord(w Word) (int64, error) {
	now := time.Now().UTC()
	if w.IntervalDays <= 0 {
		w.IntervalDays = 1
	}
	if w.EaseFactor == 0 {
		w.EaseFactor = 2.5
	}
	if w.NextDueAt.IsZero() {
		w.NextDueAt = now.Add(24 * time.Hour)
	}
	if w.ProcessingStatus == "" {
		w.ProcessingStatus = WordStatusQueued
	}
	if w.SchedulerVersion == 0 {
		w.SchedulerVersion = 1
	}

	res, err := s.db.Exec(`
		INSERT INTO words (text, language, translation, topic, strength, known, ignored,
			interval_days, ease_factor, next_due_at, processing_status, sentence_count,
			difficulty, stability, lapses, last_rating, scheduler_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Text, w.Language, w.Translation, w.Topic, w.Strength, w.Known, w.Ignored,
		w.IntervalDays, w.EaseFactor, fmtTime(w.NextDueAt), w.ProcessingStatus, w.SentenceCount,
		w.Difficulty, w.Stability, w.Lapses, w.LastRating, w.SchedulerVersion,
		fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetWord returns the word with the given id, or ErrNotFound.
func (s *Store) GetWord(id int64) (Word, error) {
	row := s.db.QueryRow(`SELECT `+wordColumns+` FROM words WHERE id = ?`, id)
	w, err := scanWord(row)
	if err == sql.ErrNoRows {
		return Word{}, ErrNotFound
	}
	return w, err
}

// ListWords returns words for a language ordered by creation time descending.
// Pass language "" for all languages.
func (s *Store) ListWords(language string, limit, offset int) ([]Word, error) {
	query := `SELECT ` + wordColumns + ` FROM words`
	args := []any{}
	if language != "" {
		query += ` WHERE language = ?`
		args = append(args, language)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWords(rows)
}

func collectWords(rows *sql.Rows) ([]Word, error) {
	var words []Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// SetWordFlags updates the known/ignored flags. Nil fields are left unchanged.
func (s *Store) SetWordFlags(id int64, known, ignored *bool) error {
	if known == nil && ignored == nil {
		return nil
	}
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(time.Now().UTC())}
	if known != nil {
		sets = append(sets, "known = ?")
		args = append(args, *known)
	}
	if ignored != nil {
		sets = append(sets, "ignored = ?")
		args = append(args, *ignored)
	}
	args = append(args, id)

	res, err := s.db.Exec(`UPDATE words SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// dueFilter is the shared predicate for review eligibility: a learning word
// in the given language with at least one linked sentence.
const dueFilter = `known = 0 AND ignored = 0 AND language = ? AND sentence_count > 0`

// DueWithPriority returns up to limit due words, most overdue first, weakest
// first on ties.
func (s *Store) DueWithPriority(language string, limit int) ([]Word, error) {
	now := fmtTime(time.Now().UTC())
	rows, err := s.db.Query(`
		SELECT `+wordColumns+` FROM words
		WHERE `+dueFilter+` AND next_due_at <= ?
		ORDER BY CAST(julianday(?) - julianday(next_due_at) AS INTEGER) DESC, strength ASC
		LIMIT ?`,
		language, now, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWords(rows)
}

// DueCount returns the number of words currently due for review.
func (s *Store) DueCount(language string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM words WHERE `+dueFilter+` AND next_due_at <= ?`,
		language, fmtTime(time.Now().UTC()),
	).Scan(&count)
	return count, err
}

// StudyBatch returns up to limit words to study: due words first (in priority
// order), then backlog words that are not due yet, weakest first with a
// randomized tie-break. No word appears twice.
func (s *Store) StudyBatch(language string, limit int) ([]Word, error) {
	batch, err := s.DueWithPriority(language, limit)
	if err != nil {
		return nil, err
	}
	remaining := limit - len(batch)
	if remaining <= 0 {
		return batch, nil
	}

	query := `
		SELECT ` + wordColumns + ` FROM words
		WHERE ` + dueFilter + ` AND next_due_at > ?`
	args := []any{language, fmtTime(time.Now().UTC())}
	if len(batch) > 0 {
		placeholders := strings.Repeat(",?", len(batch)-1)
		query += ` AND id NOT IN (?` + placeholders + `)`
		for _, w := range batch {
			args = append(args, w.ID)
		}
	}
	query += ` ORDER BY strength ASC, RANDOM() LIMIT ?`
	args = append(args, remaining)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fill, err := collectWords(rows)
	if err != nil {
		return nil, err
	}
	return append(batch, fill...), nil
}

// Outcome is the full set of scheduling fields written by a review.
type Outcome struct {
	Strength     int
	IntervalDays int
	EaseFactor   float64
	NextDueAt    time.Time

	// Extended scheduler state; nil leaves the stored values untouched.
	Extended *ExtendedOutcome
}

// ExtendedOutcome carries scheduler state beyond the SM-2 fields.
type ExtendedOutcome struct {
	Difficulty       float64
	Stability        float64
	Lapses           int
	LastRating       string
	SchedulerVersion int
}

// RecordOutcome atomically updates all SRS fields for a word after a review
// and stamps last_review_at/last_studied_at. Returns ErrNotFound for an
// unknown word id.
func (s *Store) RecordOutcome(wordID int64, o Outcome) error {
	now := fmtTime(time.Now().UTC())

	query := `UPDATE words SET strength = ?, interval_days = ?, ease_factor = ?, next_due_at = ?,
		last_review_at = ?, last_studied_at = ?, updated_at = ?`
	args := []any{o.Strength, o.IntervalDays, o.EaseFactor, fmtTime(o.NextDueAt), now, now, now}
	if o.Extended != nil {
		query += `, difficulty = ?, stability = ?, lapses = ?, last_rating = ?, scheduler_version = ?`
		args = append(args, o.Extended.Difficulty, o.Extended.Stability, o.Extended.Lapses,
			o.Extended.LastRating, o.Extended.SchedulerVersion)
	}
	query += ` WHERE id = ?`
	args = append(args, wordID)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LearningWordTexts returns the texts of all words the learner is actively
// studying in a language. Used as a hint for sentence generation so new
// material reinforces existing vocabulary.
func (s *Store) LearningWordTexts(language string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT text FROM words WHERE known = 0 AND ignored = 0 AND language = ?
		ORDER BY id ASC`, language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// --- Review log ---

// SaveReviewLog appends a review outcome record.
func (s *Store) SaveReviewLog(e ReviewLogEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO review_log (id, word_id, rating, interval_before, interval_after,
			ease_before, ease_after, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.WordID, e.Rating, e.IntervalBefore, e.IntervalAfter,
		e.EaseBefore, e.EaseAfter, fmtTime(e.ReviewedAt),
	)
	return err
}

// ListReviewLog returns review log entries for a word, most recent first.
func (s *Store) ListReviewLog(wordID int64, limit int) ([]ReviewLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, word_id, rating, interval_before, interval_after, ease_before, ease_after, reviewed_at
		FROM review_log WHERE word_id = ? ORDER BY reviewed_at DESC LIMIT ?`,
		wordID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ReviewLogEntry
	for rows.Next() {
		var e ReviewLogEntry
		var reviewedAt string
		if err := rows.Scan(&e.ID, &e.WordID, &e.Rating, &e.IntervalBefore, &e.IntervalAfter,
			&e.EaseBefore, &e.EaseAfter, &reviewedAt); err != nil {
			return nil, err
		}
		if e.ReviewedAt, err = parseTime(reviewedAt); err != nil {
			return nil, fmt.Errorf("parsing reviewed_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
