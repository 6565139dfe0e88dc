package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nkoreli/lexibase/internal/generator"
	"github.com/nkoreli/lexibase/internal/storage"
)

// JobStore abstracts the queue and sentence operations the worker needs.
type JobStore interface {
	NextJob() (*storage.GenerationJob, error)
	MarkJobProcessing(jobID int64) error
	RescheduleJob(jobID int64, delay time.Duration, lastError string) error
	CompleteJob(jobID int64) error
	FailJob(jobID int64, errMsg string) error
	CountSentencesForWord(wordID int64) (int, error)
	InsertSentence(sent storage.Sentence) (int64, error)
	SetSentenceAudio(id int64, path string) error
	GetWord(id int64) (storage.Word, error)
	LearningWordTexts(language string) ([]string, error)
}

// Worker drains generation jobs from the queue. It is the queue's single
// consumer: claims are two-step and rely on no other process racing NextJob.
type Worker struct {
	store       JobStore
	generator   generator.SentenceGenerator
	synthesizer generator.AudioSynthesizer
	poll        time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0 it defaults to 2s; maxAttempts <= 0 defaults to 3.
// synthesizer may be nil, in which case sentences are stored without audio.
func NewWorker(store JobStore, gen generator.SentenceGenerator, synth generator.AudioSynthesizer, pollInterval time.Duration, maxAttempts int) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		store:       store,
		generator:   gen,
		synthesizer: synth,
		poll:        pollInterval,
		maxAttempts: maxAttempts,
		logger:      slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single generation job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.NextJob()
	if err != nil {
		return false, fmt.Errorf("fetching next job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.store.MarkJobProcessing(job.ID); err != nil {
		return false, fmt.Errorf("claiming job %d: %w", job.ID, err)
	}
	// MarkJobProcessing incremented attempts.
	attempts := job.Attempts + 1

	if err := w.processJob(ctx, job); err != nil {
		if generator.IsPermanent(err) || attempts >= w.maxAttempts {
			w.logger.Warn("job failed", "job_id", job.ID, "word_id", job.WordID, "attempts", attempts, "error", err)
			if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
				w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
			}
			return true, nil
		}
		delay := backoff(attempts)
		w.logger.Warn("job rescheduled", "job_id", job.ID, "word_id", job.WordID, "attempts", attempts, "delay", delay, "error", err)
		if rescErr := w.store.RescheduleJob(job.ID, delay, err.Error()); rescErr != nil {
			w.logger.Error("failed to reschedule job", "job_id", job.ID, "error", rescErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %d: %w", job.ID, err)
	}
	w.logger.Info("job completed", "job_id", job.ID, "word_id", job.WordID)
	return true, nil
}

// backoff returns the retry delay after the given number of attempts:
// 2s, 4s, 8s, capped at 5 minutes.
func backoff(attempts int) time.Duration {
	secs := math.Pow(2, float64(attempts))
	d := time.Duration(secs) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

func (w *Worker) processJob(ctx context.Context, job *storage.GenerationJob) error {
	word, err := w.store.GetWord(job.WordID)
	if err != nil {
		return generator.Permanent("loading word %d: %v", job.WordID, err)
	}

	have, err := w.store.CountSentencesForWord(word.ID)
	if err != nil {
		return fmt.Errorf("counting sentences for word %d: %w", word.ID, err)
	}
	need := job.SentenceCount - have
	if need <= 0 {
		return nil
	}

	known, err := w.store.LearningWordTexts(job.Language)
	if err != nil {
		return fmt.Errorf("loading learning words: %w", err)
	}

	generated, err := w.generator.GenerateSentences(ctx, generator.Request{
		Word:       word.Text,
		Language:   job.Language,
		Topic:      job.Topic,
		Count:      need,
		KnownWords: known,
	})
	if err != nil {
		return fmt.Errorf("generating sentences: %w", err)
	}

	type stored struct {
		id   int64
		text string
	}
	inserted := make([]stored, 0, len(generated))
	for _, gs := range generated {
		id, err := w.store.InsertSentence(storage.Sentence{
			WordID:             word.ID,
			Text:               gs.Text,
			Translation:        gs.Translation,
			ContextText:        gs.ContextText,
			ContextTranslation: gs.ContextTranslation,
		})
		if err != nil {
			return fmt.Errorf("storing sentence: %w", err)
		}
		inserted = append(inserted, stored{id: id, text: gs.Text})
	}

	if w.synthesizer == nil {
		return nil
	}

	// Audio is best effort: a synth failure leaves the sentence without
	// audio rather than failing the job.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, s := range inserted {
		g.Go(func() error {
			path, err := w.synthesizer.Synthesize(gctx, s.text, job.Language, uuid.New().String())
			if err != nil {
				w.logger.Warn("audio synthesis failed", "sentence_id", s.id, "error", err)
				return nil
			}
			if err := w.store.SetSentenceAudio(s.id, path); err != nil {
				w.logger.Warn("storing audio path failed", "sentence_id", s.id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
