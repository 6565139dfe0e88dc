package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nkoreli/lexibase/internal/ollama"
)

// OllamaGenerator produces example sentences with a local Ollama model,
// using a structured-output chat request.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

// NewOllamaGenerator creates a generator using the given client and model name.
func NewOllamaGenerator(client *ollama.Client, model string) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model}
}

var sentenceSchema = &ollama.Schema{
	Type: "object",
	Properties: map[string]ollama.SchemaProperty{
		"sentences": {
			Type: "array",
			Items: &ollama.Schema{
				Type: "object",
				Properties: map[string]ollama.SchemaProperty{
					"text":                {Type: "string", Description: "Example sentence in the target language"},
					"translation":         {Type: "string", Description: "English translation of the sentence"},
					"context":             {Type: "string", Description: "Optional preceding sentence for context"},
					"context_translation": {Type: "string", Description: "Translation of the context sentence"},
				},
				Required: []string{"text", "translation"},
			},
		},
	},
	Required: []string{"sentences"},
}

type sentenceBatch struct {
	Sentences []GeneratedSentence `json:"sentences"`
}

// GenerateSentences asks the model for req.Count example sentences.
// Model and decode failures are transient: local models are flaky and a
// retry usually succeeds.
func (g *OllamaGenerator) GenerateSentences(ctx context.Context, req Request) ([]GeneratedSentence, error) {
	if req.Count <= 0 {
		return nil, nil
	}

	messages := []ollama.Message{
		{Role: "system", Content: "You are a language tutor creating study material. Respond only with JSON matching the requested schema."},
		{Role: "user", Content: buildPrompt(req)},
	}

	raw, err := g.client.Chat(ctx, g.model, messages, sentenceSchema)
	if err != nil {
		return nil, Transient("generating sentences for %q: %v", req.Word, err)
	}

	var batch sentenceBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, Transient("decoding model output for %q: %v", req.Word, err)
	}

	sentences := make([]GeneratedSentence, 0, len(batch.Sentences))
	for _, s := range batch.Sentences {
		if strings.TrimSpace(s.Text) == "" || strings.TrimSpace(s.Translation) == "" {
			continue
		}
		sentences = append(sentences, s)
	}
	if len(sentences) == 0 {
		return nil, Transient("model returned no usable sentences for %q", req.Word)
	}
	if len(sentences) > req.Count {
		sentences = sentences[:req.Count]
	}
	return sentences, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d natural example sentences in %s using the word %q.\n", req.Count, req.Language, req.Word)
	fmt.Fprintf(&b, "Each sentence needs an English translation. Vary register and sentence length.\n")
	if req.Topic != "" {
		fmt.Fprintf(&b, "Theme the sentences around: %s.\n", req.Topic)
	}
	if len(req.KnownWords) > 0 {
		hint := req.KnownWords
		if len(hint) > 40 {
			hint = hint[:40]
		}
		fmt.Fprintf(&b, "Where it reads naturally, reuse words the learner already studies: %s.\n", strings.Join(hint, ", "))
	}
	return b.String()
}
