package generator

import (
	"context"
	"fmt"
)

// StubGenerator returns canned sentences without calling a model.
// Useful for tests and for running the pipeline offline.
type StubGenerator struct {
	// Err, when set, is returned from every call.
	Err error
	// Sentences, when set, is returned as-is (truncated to the
	// requested count). Otherwise synthetic sentences are fabricated
	// from the request.
	Sentences []GeneratedSentence

	// Calls records every request received.
	Calls []Request
}

func (g *StubGenerator) GenerateSentences(_ context.Context, req Request) ([]GeneratedSentence, error) {
	g.Calls = append(g.Calls, req)
	if g.Err != nil {
		return nil, g.Err
	}
	if g.Sentences != nil {
		out := g.Sentences
		if len(out) > req.Count {
			out = out[:req.Count]
		}
		return out, nil
	}
	out := make([]GeneratedSentence, req.Count)
	for i := range out {
		out[i] = GeneratedSentence{
			Text:        fmt.Sprintf("%s example %d", req.Word, i+1),
			Translation: fmt.Sprintf("translation %d", i+1),
		}
	}
	return out, nil
}

// StubSynthesizer fakes audio synthesis by returning a deterministic path.
type StubSynthesizer struct {
	Err   error
	Calls []string
}

func (s *StubSynthesizer) Synthesize(_ context.Context, text, _, idHint string) (string, error) {
	s.Calls = append(s.Calls, text)
	if s.Err != nil {
		return "", s.Err
	}
	return "audio/" + idHint + ".wav", nil
}
