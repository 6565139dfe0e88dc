package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxAudioSize = 20 << 20 // 20MB

// HTTPSynthesizer calls a local text-to-speech server and stores the
// returned audio under audioDir. The endpoint contract is a plain
// POST /synthesize with {"text", "language"} returning raw audio bytes.
type HTTPSynthesizer struct {
	baseURL    string
	audioDir   string
	httpClient *http.Client
}

// NewHTTPSynthesizer creates a synthesizer targeting baseURL, writing audio
// files into audioDir.
func NewHTTPSynthesizer(baseURL, audioDir string) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		audioDir:   audioDir,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Synthesize produces audio for text and returns the stored file path.
// Client errors from the TTS server are permanent (the input won't get
// better on retry); server and transport errors are transient.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, language, idHint string) (string, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Language: language})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", Transient("synthesize request: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", Permanent("synthesize: status %d", resp.StatusCode)
	default:
		return "", Transient("synthesize: status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return "", Transient("reading audio response: %v", err)
	}
	if len(audio) == 0 {
		return "", Transient("synthesize returned empty audio")
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("creating audio directory: %w", err)
	}
	path := filepath.Join(s.audioDir, idHint+".wav")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("writing audio file: %w", err)
	}
	return path, nil
}
