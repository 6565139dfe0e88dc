package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nkoreli/lexibase/internal/linker"
)

const sentenceColumns = `id, word_id, text, translation, context_text, context_translation,
	audio_path, last_shown_at, created_at`

func scanSentence(row rowScanner) (Sentence, error) {
	var s Sentence
	var lastShown sql.NullString
	var createdAt string
	err := row.Scan(
		&s.ID, &s.WordID, &s.Text, &s.Translation, &s.ContextText, &s.ContextTranslation,
		&s.AudioPath, &lastShown, &createdAt,
	)
	if err != nil {
		return Sentence{}, err
	}
	if s.LastShownAt, err = parseNullTime(lastShown); err != nil {
		return Sentence{}, fmt.Errorf("parsing last_shown_at: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return Sentence{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return s, nil
}

// InsertSentence stores a sentence and links it to every learning word it
// reinforces, incrementing each newly linked word's sentence count exactly
// once. Matching runs over normalized fragments of the sentence text; the
// owner word is linked unconditionally so every sentence has at least one
// link even when tokenization misses it (inflected forms and the like).
func (s *Store) InsertSentence(sent Sentence) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	var language string
	err = tx.QueryRow(`SELECT language FROM words WHERE id = ?`, sent.WordID).Scan(&language)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO sentences (word_id, text, translation, context_text, context_translation, audio_path, last_shown_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sent.WordID, sent.Text, sent.Translation, sent.ContextText, sent.ContextTranslation,
		sent.AudioPath, fmtNullTime(sent.LastShownAt), fmtTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, err
	}
	sentenceID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	matched, err := matchLearningWords(tx, language, sent.Text)
	if err != nil {
		return 0, err
	}
	matched[sent.WordID] = true

	for wordID := range matched {
		linkRes, err := tx.Exec(`INSERT OR IGNORE INTO sentence_words (sentence_id, word_id) VALUES (?, ?)`,
			sentenceID, wordID)
		if err != nil {
			return 0, err
		}
		n, err := linkRes.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		if _, err := tx.Exec(`UPDATE words SET sentence_count = sentence_count + 1 WHERE id = ?`, wordID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return sentenceID, nil
}

// matchLearningWords returns the ids of all learning words in the language
// whose normalized text appears among the sentence's normalized fragments.
func matchLearningWords(tx *sql.Tx, language, text string) (map[int64]bool, error) {
	rows, err := tx.Query(`SELECT id, text FROM words WHERE known = 0 AND ignored = 0 AND language = ?`, language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lookup := make(map[string]int64)
	for rows.Next() {
		var id int64
		var wordText string
		if err := rows.Scan(&id, &wordText); err != nil {
			return nil, err
		}
		if n := linker.Normalize(wordText); n != "" {
			lookup[n] = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matched := make(map[int64]bool)
	for _, fragment := range linker.Fragments(language, text) {
		if id, ok := lookup[fragment]; ok {
			matched[id] = true
		}
	}
	return matched, nil
}

// GetSentence returns the sentence with the given id, or ErrNotFound.
func (s *Store) GetSentence(id int64) (Sentence, error) {
	row := s.db.QueryRow(`SELECT `+sentenceColumns+` FROM sentences WHERE id = ?`, id)
	sent, err := scanSentence(row)
	if err == sql.ErrNoRows {
		return Sentence{}, ErrNotFound
	}
	return sent, err
}

// ListSentencesForWord returns sentences reinforcing a word. The link table is
// authoritative; the legacy owner column is kept as a fallback for rows
// created before linking existed.
func (s *Store) ListSentencesForWord(wordID int64, limit int) ([]Sentence, error) {
	rows, err := s.db.Query(`
		SELECT `+sentenceColumns+` FROM sentences
		WHERE id IN (SELECT sentence_id FROM sentence_words WHERE word_id = ?) OR word_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		wordID, wordID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sentences []Sentence
	for rows.Next() {
		sent, err := scanSentence(rows)
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, sent)
	}
	return sentences, rows.Err()
}

// NextSentenceForWord returns the example sentence to show for a word:
// never-shown sentences first, then the least recently shown, so repeated
// study sessions rotate through the material. ErrNotFound when the word has
// no sentences.
func (s *Store) NextSentenceForWord(wordID int64) (Sentence, error) {
	row := s.db.QueryRow(`
		SELECT `+sentenceColumns+` FROM sentences
		WHERE id IN (SELECT sentence_id FROM sentence_words WHERE word_id = ?) OR word_id = ?
		ORDER BY last_shown_at IS NOT NULL, last_shown_at ASC, created_at ASC, id ASC
		LIMIT 1`,
		wordID, wordID,
	)
	sent, err := scanSentence(row)
	if err == sql.ErrNoRows {
		return Sentence{}, ErrNotFound
	}
	return sent, err
}

// CountSentencesForWord returns how many sentences reinforce a word,
// using the same dual-path lookup as ListSentencesForWord.
func (s *Store) CountSentencesForWord(wordID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sentences
		WHERE id IN (SELECT sentence_id FROM sentence_words WHERE word_id = ?) OR word_id = ?`,
		wordID, wordID,
	).Scan(&count)
	return count, err
}

// DeleteSentence removes a sentence, decrementing the sentence count of every
// linked word (never below zero) and dropping its link rows. Sentences that
// predate the link table fall back to decrementing the legacy owner.
func (s *Store) DeleteSentence(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int64
	err = tx.QueryRow(`SELECT word_id FROM sentences WHERE id = ?`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	rows, err := tx.Query(`SELECT word_id FROM sentence_words WHERE sentence_id = ?`, id)
	if err != nil {
		return err
	}
	var linked []int64
	for rows.Next() {
		var wordID int64
		if err := rows.Scan(&wordID); err != nil {
			rows.Close()
			return err
		}
		linked = append(linked, wordID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(linked) == 0 {
		linked = []int64{ownerID}
	}

	for _, wordID := range linked {
		if _, err := tx.Exec(`UPDATE words SET sentence_count = MAX(sentence_count - 1, 0) WHERE id = ?`, wordID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM sentence_words WHERE sentence_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sentences WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// SetSentenceAudio records the synthesized audio reference for a sentence.
func (s *Store) SetSentenceAudio(id int64, audioPath string) error {
	res, err := s.db.Exec(`UPDATE sentences SET audio_path = ? WHERE id = ?`, audioPath, id)
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

// MarkSentenceShown stamps last_shown_at, so study sessions can rotate
// example sentences.
func (s *Store) MarkSentenceShown(id int64) error {
	res, err := s.db.Exec(`UPDATE sentences SET last_shown_at = ? WHERE id = ?`,
		fmtTime(time.Now().UTC()), id)
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
