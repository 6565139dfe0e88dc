package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nkoreli/lexibase/internal/srs"
	"github.com/nkoreli/lexibase/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Store *storage.Store
	Token string
}

// NewAppHandler returns the REST API for words, sentences, study sessions
// and the generation queue. Everything except /health requires bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/words", handleCreateWord(deps))
		r.Get("/words", handleListWords(deps))
		r.Get("/words/{id}", handleGetWord(deps))
		r.Patch("/words/{id}", handlePatchWord(deps))
		r.Post("/words/{id}/requeue", handleRequeueWord(deps))
		r.Get("/words/{id}/sentences", handleListSentences(deps))
		r.Get("/words/{id}/reviews", handleListReviews(deps))
		r.Delete("/sentences/{id}", handleDeleteSentence(deps))

		r.Get("/study/batch", handleStudyBatch(deps))
		r.Get("/study/due-count", handleDueCount(deps))
		r.Post("/study/reviews", handleRecordReview(deps))

		r.Get("/queue", handleQueueSummary(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type CreateWordRequest struct {
	Text          string `json:"text"`
	Language      string `json:"language"`
	Translation   string `json:"translation"`
	Topic         string `json:"topic"`
	SentenceCount int    `json:"sentence_count"`
}

func handleCreateWord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateWordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		if req.Language == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "language is required")
			return
		}

		id, err := deps.Store.CreateWord(storage.Word{
			Text:        req.Text,
			Language:    req.Language,
			Translation: req.Translation,
			Topic:       req.Topic,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create word: %v", err)
			return
		}
		if err := deps.Store.EnqueueJob(id, req.Language, req.Topic, req.SentenceCount); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue generation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     id,
			"status": storage.WordStatusQueued,
		})
	}
}

func handleListWords(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")
		limit := parseIntParam(r, "limit", 50, 500)
		offset := parseIntParam(r, "offset", 0, 0)

		words, err := deps.Store.ListWords(language, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list words: %v", err)
			return
		}
		if words == nil {
			words = []storage.Word{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(words)
	}
}

func handleGetWord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		word, err := deps.Store.GetWord(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(word)
	}
}

type PatchWordRequest struct {
	Known   *bool `json:"known"`
	Ignored *bool `json:"ignored"`
}

func handlePatchWord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req PatchWordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Known == nil && req.Ignored == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of known or ignored is required")
			return
		}

		err := deps.Store.SetWordFlags(id, req.Known, req.Ignored)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update word: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

func handleRequeueWord(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		word, err := deps.Store.GetWord(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}

		// Keep the sentence count of the previous job if there was one.
		count := 0
		if job, err := deps.Store.GetJobForWord(id); err == nil {
			count = job.SentenceCount
		}

		if err := deps.Store.EnqueueJob(id, word.Language, word.Topic, count); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue generation: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     id,
			"status": storage.WordStatusQueued,
		})
	}
}

func handleListSentences(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", 50, 200)

		if _, err := deps.Store.GetWord(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}

		sentences, err := deps.Store.ListSentencesForWord(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sentences: %v", err)
			return
		}
		if sentences == nil {
			sentences = []storage.Sentence{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sentences)
	}
}

func handleListReviews(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", 20, 200)

		if _, err := deps.Store.GetWord(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}

		entries, err := deps.Store.ListReviewLog(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reviews: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.ReviewLogEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func handleDeleteSentence(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		err := deps.Store.DeleteSentence(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "sentence not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete sentence: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleStudyBatch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")
		if language == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "language is required")
			return
		}
		limit := parseIntParam(r, "limit", 10, 100)

		words, err := deps.Store.StudyBatch(language, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build study batch: %v", err)
			return
		}
		if words == nil {
			words = []storage.Word{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(words)
	}
}

func handleDueCount(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")
		if language == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "language is required")
			return
		}

		count, err := deps.Store.DueCount(language)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count due words: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"due": count})
	}
}

type ReviewRequest struct {
	WordID int64  `json:"word_id"`
	Rating string `json:"rating"`
}

type ReviewResponse struct {
	WordID       int64     `json:"word_id"`
	Rating       string    `json:"rating"`
	Strength     int       `json:"strength"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	NextDueAt    time.Time `json:"next_due_at"`
}

func handleRecordReview(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rating, err := srs.ParseRating(req.Rating)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid rating %q", req.Rating)
			return
		}

		word, err := deps.Store.GetWord(req.WordID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "word not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get word: %v", err)
			return
		}

		now := time.Now().UTC()
		result, err := srs.Review(srs.State{
			Strength:     word.Strength,
			IntervalDays: word.IntervalDays,
			EaseFactor:   word.EaseFactor,
			Lapses:       word.Lapses,
		}, rating, now)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		outcome := storage.Outcome{
			Strength:     result.Strength,
			IntervalDays: result.IntervalDays,
			EaseFactor:   result.EaseFactor,
			NextDueAt:    result.NextDueAt,
			Extended: &storage.ExtendedOutcome{
				Difficulty:       word.Difficulty,
				Stability:        word.Stability,
				Lapses:           result.Lapses,
				LastRating:       rating.String(),
				SchedulerVersion: srs.Version,
			},
		}
		if err := deps.Store.RecordOutcome(word.ID, outcome); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record outcome: %v", err)
			return
		}

		logEntry := storage.ReviewLogEntry{
			ID:             uuid.New().String(),
			WordID:         word.ID,
			Rating:         rating.String(),
			IntervalBefore: word.IntervalDays,
			IntervalAfter:  result.IntervalDays,
			EaseBefore:     word.EaseFactor,
			EaseAfter:      result.EaseFactor,
			ReviewedAt:     now,
		}
		if err := deps.Store.SaveReviewLog(logEntry); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save review log: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ReviewResponse{
			WordID:       word.ID,
			Rating:       rating.String(),
			Strength:     result.Strength,
			IntervalDays: result.IntervalDays,
			EaseFactor:   result.EaseFactor,
			NextDueAt:    result.NextDueAt,
		})
	}
}

func handleQueueSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")

		summary, err := deps.Store.GetQueueSummary(language)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get queue summary: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid id")
		return 0, false
	}
	return id, true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
