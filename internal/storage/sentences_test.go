package storage

import (
	"errors"
	"testing"
	"time"
)

func TestInsertSentenceLinksOwner(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	// Owner link is unconditional even when the text never mentions the word.
	sentID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El animal duerme.", Translation: "The animal sleeps."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}
	if sentID == 0 {
		t.Fatal("sentence id is zero")
	}

	w, _ := s.GetWord(wordID)
	if w.SentenceCount != 1 {
		t.Errorf("SentenceCount = %d, want 1", w.SentenceCount)
	}
	count, err := s.CountSentencesForWord(wordID)
	if err != nil {
		t.Fatalf("CountSentencesForWord: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestInsertSentenceMissingWord(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.InsertSentence(Sentence{WordID: 9999, Text: "hola"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("InsertSentence missing word = %v, want ErrNotFound", err)
	}
}

// TestInsertSentenceLinksAllLearningWords inserts a sentence owned by one word
// that also mentions two other learning words; each linked word's count goes
// up exactly once, and words outside the language or marked known stay
// untouched.
func TestInsertSentenceLinksAllLearningWords(t *testing.T) {
	s := openTestStore(t)

	owner := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})
	mentioned := mustCreateWord(t, s, Word{Text: "gato", Language: "spanish"})
	alsoMentioned := mustCreateWord(t, s, Word{Text: "casa", Language: "spanish"})
	knownWord := mustCreateWord(t, s, Word{Text: "come", Language: "spanish", Known: true})
	otherLanguage := mustCreateWord(t, s, Word{Text: "gato", Language: "portuguese"})

	_, err := s.InsertSentence(Sentence{
		WordID: owner,
		Text:   "El perro y el gato come en la casa.",
	})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	for _, tc := range []struct {
		id   int64
		want int
	}{
		{owner, 1},
		{mentioned, 1},
		{alsoMentioned, 1},
		{knownWord, 0},
		{otherLanguage, 0},
	} {
		w, err := s.GetWord(tc.id)
		if err != nil {
			t.Fatalf("GetWord(%d): %v", tc.id, err)
		}
		if w.SentenceCount != tc.want {
			t.Errorf("word %q SentenceCount = %d, want %d", w.Text, w.SentenceCount, tc.want)
		}
	}
}

// TestInsertSentenceRepeatedWord checks that a word appearing twice in one
// sentence is still counted once.
func TestInsertSentenceRepeatedWord(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	if _, err := s.InsertSentence(Sentence{WordID: wordID, Text: "Perro grande, perro pequeño."}); err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	w, _ := s.GetWord(wordID)
	if w.SentenceCount != 1 {
		t.Errorf("SentenceCount = %d, want 1", w.SentenceCount)
	}
}

func TestListSentencesForWord(t *testing.T) {
	s := openTestStore(t)
	owner := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})
	mentioned := mustCreateWord(t, s, Word{Text: "gato", Language: "spanish"})

	if _, err := s.InsertSentence(Sentence{WordID: owner, Text: "El perro corre."}); err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}
	if _, err := s.InsertSentence(Sentence{WordID: owner, Text: "El perro ve al gato."}); err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	got, err := s.ListSentencesForWord(owner, 10)
	if err != nil {
		t.Fatalf("ListSentencesForWord(owner): %v", err)
	}
	if len(got) != 2 {
		t.Errorf("owner sees %d sentences, want 2", len(got))
	}

	// The mentioned word sees the sentence through the link table even though
	// it does not own the row.
	got, err = s.ListSentencesForWord(mentioned, 10)
	if err != nil {
		t.Fatalf("ListSentencesForWord(mentioned): %v", err)
	}
	if len(got) != 1 || got[0].Text != "El perro ve al gato." {
		t.Errorf("mentioned word sentences = %v, want the shared sentence", got)
	}
}

// TestListSentencesLegacyOwnerFallback covers rows created before the link
// table existed: a sentence with no link rows is still visible to its owner.
func TestListSentencesLegacyOwnerFallback(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	res, err := s.DB().Exec(`
		INSERT INTO sentences (word_id, text, translation, context_text, context_translation, audio_path, created_at)
		VALUES (?, 'El perro ladra.', '', '', '', '', ?)`,
		wordID, fmtTime(time.Now().UTC()))
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}
	legacyID, _ := res.LastInsertId()

	got, err := s.ListSentencesForWord(wordID, 10)
	if err != nil {
		t.Fatalf("ListSentencesForWord: %v", err)
	}
	if len(got) != 1 || got[0].ID != legacyID {
		t.Errorf("legacy sentence not visible: %v", got)
	}
	count, _ := s.CountSentencesForWord(wordID)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDeleteSentence(t *testing.T) {
	s := openTestStore(t)
	owner := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})
	mentioned := mustCreateWord(t, s, Word{Text: "gato", Language: "spanish"})

	sentID, err := s.InsertSentence(Sentence{WordID: owner, Text: "El perro ve al gato."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	if err := s.DeleteSentence(sentID); err != nil {
		t.Fatalf("DeleteSentence: %v", err)
	}

	for _, id := range []int64{owner, mentioned} {
		w, _ := s.GetWord(id)
		if w.SentenceCount != 0 {
			t.Errorf("word %q SentenceCount = %d after delete, want 0", w.Text, w.SentenceCount)
		}
	}
	if _, err := s.GetSentence(sentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSentence after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteSentence(sentID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

// TestDeleteSentenceFloorsAtZero forces a stale count and verifies the
// decrement never drives it negative.
func TestDeleteSentenceFloorsAtZero(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	sentID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El perro corre."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}
	if _, err := s.DB().Exec(`UPDATE words SET sentence_count = 0 WHERE id = ?`, wordID); err != nil {
		t.Fatalf("forcing stale count: %v", err)
	}

	if err := s.DeleteSentence(sentID); err != nil {
		t.Fatalf("DeleteSentence: %v", err)
	}
	w, _ := s.GetWord(wordID)
	if w.SentenceCount != 0 {
		t.Errorf("SentenceCount = %d, want floor 0", w.SentenceCount)
	}
}

func TestSetSentenceAudio(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})
	sentID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El perro corre."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	if err := s.SetSentenceAudio(sentID, "audio/abc.wav"); err != nil {
		t.Fatalf("SetSentenceAudio: %v", err)
	}
	sent, _ := s.GetSentence(sentID)
	if sent.AudioPath != "audio/abc.wav" {
		t.Errorf("AudioPath = %q", sent.AudioPath)
	}

	if err := s.SetSentenceAudio(9999, "x.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetSentenceAudio missing id = %v, want ErrNotFound", err)
	}
}

// TestNextSentenceForWordRotates checks that marking a sentence shown moves
// the pick to the next one, and that the rotation wraps around.
func TestNextSentenceForWordRotates(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	firstID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El perro corre."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}
	secondID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El perro duerme."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	pick, err := s.NextSentenceForWord(wordID)
	if err != nil {
		t.Fatalf("NextSentenceForWord: %v", err)
	}
	if pick.ID != firstID {
		t.Errorf("first pick = %d, want the oldest unshown %d", pick.ID, firstID)
	}
	if err := s.MarkSentenceShown(pick.ID); err != nil {
		t.Fatalf("MarkSentenceShown: %v", err)
	}

	pick, err = s.NextSentenceForWord(wordID)
	if err != nil {
		t.Fatalf("NextSentenceForWord: %v", err)
	}
	if pick.ID != secondID {
		t.Errorf("second pick = %d, want the unshown %d", pick.ID, secondID)
	}
	if err := s.MarkSentenceShown(pick.ID); err != nil {
		t.Fatalf("MarkSentenceShown: %v", err)
	}

	// Both shown: the least recently shown comes back around.
	pick, err = s.NextSentenceForWord(wordID)
	if err != nil {
		t.Fatalf("NextSentenceForWord: %v", err)
	}
	if pick.ID != firstID {
		t.Errorf("wrap-around pick = %d, want %d", pick.ID, firstID)
	}
}

func TestNextSentenceForWordEmpty(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})

	if _, err := s.NextSentenceForWord(wordID); !errors.Is(err, ErrNotFound) {
		t.Errorf("NextSentenceForWord with no sentences = %v, want ErrNotFound", err)
	}
}

func TestMarkSentenceShown(t *testing.T) {
	s := openTestStore(t)
	wordID := mustCreateWord(t, s, Word{Text: "perro", Language: "spanish"})
	sentID, err := s.InsertSentence(Sentence{WordID: wordID, Text: "El perro corre."})
	if err != nil {
		t.Fatalf("InsertSentence: %v", err)
	}

	sent, _ := s.GetSentence(sentID)
	if sent.LastShownAt != nil {
		t.Fatal("LastShownAt set before first show")
	}

	if err := s.MarkSentenceShown(sentID); err != nil {
		t.Fatalf("MarkSentenceShown: %v", err)
	}
	sent, _ = s.GetSentence(sentID)
	if sent.LastShownAt == nil {
		t.Error("LastShownAt not stamped")
	}
}
