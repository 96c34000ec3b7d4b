package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attendhq/attend/internal/config"
)

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) *GoogleSynthesizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewGoogleSynthesizer(nil, config.SpeechConfig{TimeoutSeconds: 5})
	s.endpoint = srv.URL
	return s
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pt", r.URL.Query().Get("tl"))
		require.Equal(t, "tw-ob", r.URL.Query().Get("client"))
		require.Equal(t, "Olá, tudo bem?", r.URL.Query().Get("q"))
		w.Write([]byte("mp3-bytes"))
	})

	data, err := s.Synthesize(context.Background(), "Olá, tudo bem?", "pt")
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), data)
}

func TestSynthesizeNon200IsSynthesisError(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := s.Synthesize(context.Background(), "texto", "pt")
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
}

func TestSynthesizeEmptyBodyIsSynthesisError(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := s.Synthesize(context.Background(), "texto", "pt")
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
}
