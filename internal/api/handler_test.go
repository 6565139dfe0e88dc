package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nkoreli/lexibase/internal/storage"
)

const testToken = "test-token-12345"

func setupAppHandler(t *testing.T, token string) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewAppHandler(AppDeps{
		Store: store,
		Token: token,
	})
	return handler, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/words", "", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/words", "", "wrong-token"))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	// Health stays open.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/health", "", ""))
	if rr.Code != http.StatusOK {
		t.Errorf("health: status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCreateWord(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	body := `{"text":"perro","language":"spanish","translation":"dog","topic":"animals"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/words", body, testToken))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != storage.WordStatusQueued {
		t.Errorf("status = %q, want %q", resp.Status, storage.WordStatusQueued)
	}
	if resp.ID == 0 {
		t.Fatal("response missing id")
	}

	word, err := store.GetWord(resp.ID)
	if err != nil {
		t.Fatalf("GetWord(%d) failed: %v", resp.ID, err)
	}
	if word.Text != "perro" || word.Translation != "dog" {
		t.Errorf("word = %q/%q, want perro/dog", word.Text, word.Translation)
	}

	job, err := store.GetJobForWord(resp.ID)
	if err != nil {
		t.Fatalf("GetJobForWord: %v", err)
	}
	if job.Status != storage.JobStatusQueued {
		t.Errorf("job status = %q, want %q", job.Status, storage.JobStatusQueued)
	}
	if job.Topic != "animals" {
		t.Errorf("job topic = %q, want %q", job.Topic, "animals")
	}
}

func TestCreateWord_Validation(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	for _, body := range []string{
		`{"language":"spanish"}`,
		`{"text":"perro"}`,
		`not json`,
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPost, "/words", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestPatchWord(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "gato", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, fmt.Sprintf("/words/%d", id), `{"known":true}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	word, err := store.GetWord(id)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}
	if !word.Known {
		t.Error("word not marked known")
	}
	if word.Ignored {
		t.Error("ignored flag changed unexpectedly")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/words/9999", `{"ignored":true}`, testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing word: status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, fmt.Sprintf("/words/%d", id), `{}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty patch: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRequeueWord(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "casa", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}
	if err := store.EnqueueJob(id, "spanish", "", 5); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	// Drive the job to failed.
	job, err := store.NextJob()
	if err != nil || job == nil {
		t.Fatalf("NextJob: job=%v err=%v", job, err)
	}
	if err := store.MarkJobProcessing(job.ID); err != nil {
		t.Fatalf("MarkJobProcessing: %v", err)
	}
	if err := store.FailJob(job.ID, "model unavailable"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, fmt.Sprintf("/words/%d/requeue", id), "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	requeued, err := store.GetJobForWord(id)
	if err != nil {
		t.Fatalf("GetJobForWord: %v", err)
	}
	if requeued.Status != storage.JobStatusQueued {
		t.Errorf("job status = %q, want %q", requeued.Status, storage.JobStatusQueued)
	}
	if requeued.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after requeue", requeued.Attempts)
	}
	if requeued.SentenceCount != 5 {
		t.Errorf("sentence count = %d, want 5 (kept from previous job)", requeued.SentenceCount)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/words/9999/requeue", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing word: status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestRecordReview(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "libro", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}
	before, err := store.GetWord(id)
	if err != nil {
		t.Fatalf("GetWord: %v", err)
	}

	body := fmt.Sprintf(`{"word_id":%d,"rating":"good"}`, id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/study/reviews", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp ReviewResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Strength != before.Strength+1 {
		t.Errorf("strength = %d, want %d", resp.Strength, before.Strength+1)
	}
	if resp.IntervalDays <= before.IntervalDays {
		t.Errorf("interval = %d, want > %d", resp.IntervalDays, before.IntervalDays)
	}

	after, err := store.GetWord(id)
	if err != nil {
		t.Fatalf("GetWord after review: %v", err)
	}
	if after.LastReviewAt == nil {
		t.Error("LastReviewAt not stamped")
	}
	if !after.NextDueAt.After(before.NextDueAt) {
		t.Errorf("NextDueAt = %v, want after %v", after.NextDueAt, before.NextDueAt)
	}

	entries, err := store.ListReviewLog(id, 10)
	if err != nil {
		t.Fatalf("ListReviewLog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("review log entries = %d, want 1", len(entries))
	}
	if entries[0].Rating != "good" {
		t.Errorf("logged rating = %q, want %q", entries[0].Rating, "good")
	}
}

func TestListReviews(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "libro", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}

	for _, rating := range []string{"good", "again"} {
		body := fmt.Sprintf(`{"word_id":%d,"rating":%q}`, id, rating)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPost, "/study/reviews", body, testToken))
		if rr.Code != http.StatusOK {
			t.Fatalf("review %q: status = %d; body = %s", rating, rr.Code, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, fmt.Sprintf("/words/%d/reviews", id), "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	var entries []storage.ReviewLogEntry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("decoding entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/words/9999/reviews", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing word: status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestRecordReview_Invalid(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "sol", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/study/reviews", fmt.Sprintf(`{"word_id":%d,"rating":"amazing"}`, id), testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad rating: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/study/reviews", `{"word_id":9999,"rating":"good"}`, testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing word: status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStudyEndpoints_RequireLanguage(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	for _, url := range []string{"/study/batch", "/study/due-count"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, url, "", testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s without language: status = %d, want %d", url, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestDeleteSentence_NotFound(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodDelete, "/sentences/9999", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestQueueSummary(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	id, err := store.CreateWord(storage.Word{Text: "pan", Language: "spanish"})
	if err != nil {
		t.Fatalf("CreateWord: %v", err)
	}
	if err := store.EnqueueJob(id, "spanish", "", 0); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/queue?language=spanish", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var summary storage.QueueSummary
	json.NewDecoder(rr.Body).Decode(&summary)
	if summary.Queued != 1 {
		t.Errorf("queued = %d, want 1", summary.Queued)
	}
	if len(summary.Active) != 1 {
		t.Errorf("active = %d, want 1", len(summary.Active))
	}
}
