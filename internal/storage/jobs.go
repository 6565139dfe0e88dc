package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const jobColumns = `id, word_id, language, topic, sentence_count, status, attempts,
	last_error, started_at, created_at, updated_at`

func scanJob(row rowScanner) (GenerationJob, error) {
	var j GenerationJob
	var lastError, startedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&j.ID, &j.WordID, &j.Language, &j.Topic, &j.SentenceCount, &j.Status, &j.Attempts,
		&lastError, &startedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return GenerationJob{}, err
	}
	j.LastError = lastError.String
	if j.StartedAt, err = parseNullTime(startedAt); err != nil {
		return GenerationJob{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return GenerationJob{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return GenerationJob{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return j, nil
}

// EnqueueJob creates or resets the generation job for a word. Re-enqueueing is
// "start over": the existing row is overwritten with the new parameters,
// status returns to queued, and attempt history is cleared. The word's
// processing status follows to queued. This is the only path that revives a
// failed job.
func (s *Store) EnqueueJob(wordID int64, language, topic string, sentenceCount int) error {
	if sentenceCount <= 0 {
		sentenceCount = 3
	}
	now := fmtTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE words SET processing_status = ?, updated_at = ? WHERE id = ?`,
		WordStatusQueued, now, wordID)
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

	if _, err := tx.Exec(`
		INSERT INTO generation_jobs (word_id, language, topic, sentence_count, status, attempts, last_error, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', 0, NULL, NULL, ?, ?)
		ON CONFLICT(word_id) DO UPDATE SET
			language = excluded.language,
			topic = excluded.topic,
			sentence_count = excluded.sentence_count,
			status = 'queued',
			attempts = 0,
			last_error = NULL,
			started_at = NULL,
			updated_at = excluded.updated_at`,
		wordID, language, topic, sentenceCount, now, now,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// NextJob returns the oldest queued job that is visible (a rescheduled job
// stays hidden until its deferred updated_at passes), or nil if the queue is
// empty. Read-only: claiming is a separate MarkJobProcessing call, and the
// two-step claim assumes a single consumer.
func (s *Store) NextJob() (*GenerationJob, error) {
	row := s.db.QueryRow(`
		SELECT `+jobColumns+` FROM generation_jobs
		WHERE status = 'queued' AND updated_at <= ?
		ORDER BY updated_at ASC, created_at ASC
		LIMIT 1`,
		fmtTime(time.Now().UTC()),
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkJobProcessing claims a queued job: status moves to processing, the
// attempt counter increments, and started_at is stamped. The word's
// processing status follows. Returns ErrInvalidTransition if the job is not
// queued.
func (s *Store) MarkJobProcessing(jobID int64) error {
	now := fmtTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE generation_jobs
		SET status = 'processing', attempts = attempts + 1, started_at = ?, updated_at = ?
		WHERE id = ? AND status = 'queued'`,
		now, now, jobID,
	)
	if err != nil {
		return err
	}
	if err := requireTransition(tx, res, jobID); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE words SET processing_status = ?, updated_at = ?
		WHERE id = (SELECT word_id FROM generation_jobs WHERE id = ?)`,
		WordStatusProcessing, now, jobID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// RescheduleJob returns a processing job to the queue with deferred
// visibility: NextJob will not surface it until delay has elapsed. Attempts
// are preserved; the caller computes the backoff. An empty lastError leaves
// the stored error untouched.
func (s *Store) RescheduleJob(jobID int64, delay time.Duration, lastError string) error {
	now := time.Now().UTC()
	visibleAt := fmtTime(now.Add(delay))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning reschedule transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE generation_jobs SET status = 'queued', started_at = NULL, updated_at = ?`
	args := []any{visibleAt}
	if lastError != "" {
		query += `, last_error = ?`
		args = append(args, lastError)
	}
	query += ` WHERE id = ? AND status = 'processing'`
	args = append(args, jobID)

	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}
	if err := requireTransition(tx, res, jobID); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE words SET processing_status = ?, updated_at = ?
		WHERE id = (SELECT word_id FROM generation_jobs WHERE id = ?)`,
		WordStatusQueued, fmtTime(now), jobID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// CompleteJob marks a processing job completed. The word becomes ready only
// if sentence insertion (which happens before completion) gave it at least
// one linked sentence.
func (s *Store) CompleteJob(jobID int64) error {
	now := fmtTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning complete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE generation_jobs SET status = 'completed', started_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		now, jobID,
	)
	if err != nil {
		return err
	}
	if err := requireTransition(tx, res, jobID); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE words SET processing_status = ?, updated_at = ?
		WHERE id = (SELECT word_id FROM generation_jobs WHERE id = ?) AND sentence_count > 0`,
		WordStatusReady, now, jobID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// FailJob marks a processing job failed. Terminal: only a fresh EnqueueJob
// revives it. The word's processing status follows.
func (s *Store) FailJob(jobID int64, errMsg string) error {
	now := fmtTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE generation_jobs SET status = 'failed', last_error = ?, started_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		errMsg, now, jobID,
	)
	if err != nil {
		return err
	}
	if err := requireTransition(tx, res, jobID); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE words SET processing_status = ?, updated_at = ?
		WHERE id = (SELECT word_id FROM generation_jobs WHERE id = ?)`,
		WordStatusFailed, now, jobID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// requireTransition distinguishes a missing job from a conditional update
// that matched no row because the job was in the wrong status.
func requireTransition(tx *sql.Tx, res sql.Result, jobID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM generation_jobs WHERE id = ?`, jobID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

// GetJob returns the job with the given id, or ErrNotFound.
func (s *Store) GetJob(jobID int64) (GenerationJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, jobID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return GenerationJob{}, ErrNotFound
	}
	return j, err
}

// GetJobForWord returns the job for the given word, or ErrNotFound.
func (s *Store) GetJobForWord(wordID int64) (GenerationJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM generation_jobs WHERE word_id = ?`, wordID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return GenerationJob{}, ErrNotFound
	}
	return j, err
}

// GetQueueSummary aggregates job counts and lists the words currently queued
// or processing. Pass language "" for all languages. Words already marked
// failed are excluded from the active list to avoid double-reporting.
func (s *Store) GetQueueSummary(language string) (QueueSummary, error) {
	var summary QueueSummary

	countQuery := `SELECT status, COUNT(*) FROM generation_jobs`
	countArgs := []any{}
	if language != "" {
		countQuery += ` WHERE language = ?`
		countArgs = append(countArgs, language)
	}
	countQuery += ` GROUP BY status`

	rows, err := s.db.Query(countQuery, countArgs...)
	if err != nil {
		return QueueSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return QueueSummary{}, err
		}
		switch status {
		case JobStatusQueued:
			summary.Queued = count
		case JobStatusProcessing:
			summary.Processing = count
		case JobStatusFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return QueueSummary{}, err
	}

	activeQuery := `
		SELECT j.word_id, w.text, w.language, j.status
		FROM generation_jobs j
		JOIN words w ON w.id = j.word_id
		WHERE j.status IN ('queued', 'processing') AND w.processing_status != 'failed'`
	activeArgs := []any{}
	if language != "" {
		activeQuery += ` AND j.language = ?`
		activeArgs = append(activeArgs, language)
	}
	activeQuery += ` ORDER BY j.created_at ASC`

	activeRows, err := s.db.Query(activeQuery, activeArgs...)
	if err != nil {
		return QueueSummary{}, err
	}
	defer activeRows.Close()
	for activeRows.Next() {
		var qw QueueWord
		if err := activeRows.Scan(&qw.WordID, &qw.Text, &qw.Language, &qw.Status); err != nil {
			return QueueSummary{}, err
		}
		summary.Active = append(summary.Active, qw)
	}
	return summary, activeRows.Err()
}
