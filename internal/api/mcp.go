package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nkoreli/lexibase/internal/srs"
	"github.com/nkoreli/lexibase/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	// DefaultLanguage is used when a tool call omits the language argument.
	DefaultLanguage string
}

// NewMCPServer creates an MCP server exposing the vocabulary base to
// assistants: adding words, pulling study batches, recording reviews and
// inspecting the generation queue.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lexibase",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lexibase is a local vocabulary base with spaced-repetition scheduling and example sentence generation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_word",
			mcp.WithDescription("Add a vocabulary word and queue example sentence generation for it."),
			mcp.WithString("text", mcp.Description("The word or phrase to learn"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Language the word belongs to")),
			mcp.WithString("translation", mcp.Description("Known translation, if any")),
			mcp.WithString("topic", mcp.Description("Topic to theme generated sentences around")),
		),
		mcpAddWord(deps),
	)

	s.AddTool(
		mcp.NewTool("study_batch",
			mcp.WithDescription("Return the next batch of words to study: due words first, backlog fill after."),
			mcp.WithString("language", mcp.Description("Language to study")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of words (default 10)")),
		),
		mcpStudyBatch(deps),
	)

	s.AddTool(
		mcp.NewTool("record_review",
			mcp.WithDescription("Record a review outcome for a word. Rating is one of: again, hard, good, easy."),
			mcp.WithNumber("word_id", mcp.Description("ID of the reviewed word"), mcp.Required()),
			mcp.WithString("rating", mcp.Description("Review rating"), mcp.Required()),
		),
		mcpRecordReview(deps),
	)

	s.AddTool(
		mcp.NewTool("queue_status",
			mcp.WithDescription("Show the sentence generation queue: counts by status and the words currently in flight."),
			mcp.WithString("language", mcp.Description("Filter by language")),
		),
		mcpQueueStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"study://due",
			"Due Words",
			mcp.WithResourceDescription("Words currently due for review in the default language"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDue(deps),
	)

	return s
}

func mcpAddWord(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		language := req.GetString("language", deps.DefaultLanguage)
		if language == "" {
			return mcpError("language is required (no default configured)"), nil
		}
		translation := req.GetString("translation", "")
		topic := req.GetString("topic", "")

		id, err := deps.Store.CreateWord(storage.Word{
			Text:        text,
			Language:    language,
			Translation: translation,
			Topic:       topic,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save word: %v", err)), nil
		}
		if err := deps.Store.EnqueueJob(id, language, topic, 0); err != nil {
			return mcpError(fmt.Sprintf("saved word but failed to queue generation: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Added word %d (%s), sentence generation queued", id, text)), nil
	}
}

func mcpStudyBatch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		language := req.GetString("language", deps.DefaultLanguage)
		if language == "" {
			return mcpError("language is required (no default configured)"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		words, err := deps.Store.StudyBatch(language, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build study batch: %v", err)), nil
		}
		if len(words) == 0 {
			return mcpText("[]"), nil
		}

		type batchWord struct {
			ID                  int64  `json:"id"`
			Text                string `json:"text"`
			Translation         string `json:"translation"`
			Strength            int    `json:"strength"`
			NextDueAt           string `json:"next_due_at"`
			Sentence            string `json:"sentence,omitempty"`
			SentenceTranslation string `json:"sentence_translation,omitempty"`
		}

		results := make([]batchWord, len(words))
		for i, w := range words {
			results[i] = batchWord{
				ID:          w.ID,
				Text:        w.Text,
				Translation: w.Translation,
				Strength:    w.Strength,
				NextDueAt:   w.NextDueAt.Format(time.RFC3339),
			}
			// Attach a rotating example sentence; stamping it shown moves
			// the rotation forward for the next session.
			sent, err := deps.Store.NextSentenceForWord(w.ID)
			if err != nil {
				continue
			}
			results[i].Sentence = sent.Text
			results[i].SentenceTranslation = sent.Translation
			if err := deps.Store.MarkSentenceShown(sent.ID); err != nil {
				return mcpError(fmt.Sprintf("failed to mark sentence shown: %v", err)), nil
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal batch: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecordReview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		wordID, err := req.RequireInt("word_id")
		if err != nil {
			return mcpError("word_id is required"), nil
		}
		ratingStr, err := req.RequireString("rating")
		if err != nil {
			return mcpError("rating is required"), nil
		}
		rating, err := srs.ParseRating(ratingStr)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid rating %q (use again, hard, good or easy)", ratingStr)), nil
		}

		word, err := deps.Store.GetWord(int64(wordID))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load word %d: %v", wordID, err)), nil
		}

		now := time.Now().UTC()
		result, err := srs.Review(srs.State{
			Strength:     word.Strength,
			IntervalDays: word.IntervalDays,
			EaseFactor:   word.EaseFactor,
			Lapses:       word.Lapses,
		}, rating, now)
		if err != nil {
			return mcpError(fmt.Sprintf("review failed: %v", err)), nil
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
			return mcpError(fmt.Sprintf("failed to record outcome: %v", err)), nil
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
			return mcpError(fmt.Sprintf("outcome recorded but review log failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Recorded %s for %q: next review in %d day(s)", rating, word.Text, result.IntervalDays)), nil
	}
}

func mcpQueueStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		language := req.GetString("language", "")

		summary, err := deps.Store.GetQueueSummary(language)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get queue summary: %v", err)), nil
		}

		b, err := json.Marshal(summary)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceDue(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.DefaultLanguage == "" {
			return nil, fmt.Errorf("no default language configured")
		}

		words, err := deps.Store.DueWithPriority(deps.DefaultLanguage, 50)
		if err != nil {
			return nil, fmt.Errorf("failed to load due words: %w", err)
		}

		type dueWord struct {
			ID        int64  `json:"id"`
			Text      string `json:"text"`
			Strength  int    `json:"strength"`
			NextDueAt string `json:"next_due_at"`
		}
		results := make([]dueWord, len(words))
		for i, w := range words {
			results[i] = dueWord{
				ID:        w.ID,
				Text:      w.Text,
				Strength:  w.Strength,
				NextDueAt: w.NextDueAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal due words: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
