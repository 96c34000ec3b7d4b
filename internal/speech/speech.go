// Package speech turns reply text into audio.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/attendhq/attend/internal/config"
)

const ttsEndpoint = "https://translate.google.com/translate_tts"

// SynthesisError wraps synthesis failures so callers can fall back to text.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("synthesis error: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// Synthesizer produces spoken audio for a text in a language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// GoogleSynthesizer fetches MP3 audio from the Google Translate TTS endpoint.
type GoogleSynthesizer struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGoogleSynthesizer creates a synthesizer from config.
func NewGoogleSynthesizer(log *slog.Logger, cfg config.SpeechConfig) *GoogleSynthesizer {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultTimeoutSeconds) * time.Second
	}
	return &GoogleSynthesizer{
		endpoint:   ttsEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "speech")),
	}
}

// Synthesize returns MP3 bytes for text, or a SynthesisError.
func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if text == "" {
		return nil, &SynthesisError{Err: fmt.Errorf("empty text")}
	}
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("tl", lang)
	query.Set("client", "tw-ob")
	query.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{Err: fmt.Errorf("tts status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	if len(data) == 0 {
		return nil, &SynthesisError{Err: fmt.Errorf("empty audio payload")}
	}
	return data, nil
}
