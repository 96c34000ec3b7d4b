package inbound

import (
	"context"
	"log/slog"

	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/speech"
)

// Dispatcher delivers a reply as a voice note, falling back to plain text
// exactly once when synthesis or the media send fails.
type Dispatcher struct {
	synth    speech.Synthesizer
	language string
	disabled bool
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(log *slog.Logger, synth speech.Synthesizer, cfg config.SpeechConfig) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	language := cfg.Language
	if language == "" {
		language = config.DefaultSpeechLanguage
	}
	return &Dispatcher{
		synth:    synth,
		language: language,
		disabled: cfg.Disabled,
		logger:   log.With(slog.String("service", "dispatcher")),
	}
}

// Dispatch sends text to the contact. The audio attempt and the text
// fallback do not loop; a failed fallback is only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, sess channel.Session, to, text string) error {
	if !d.disabled && d.synth != nil {
		if audio, err := d.synth.Synthesize(ctx, text, d.language); err != nil {
			d.logger.Warn("speech synthesis failed, falling back to text",
				slog.String("to", to), slog.Any("error", err))
		} else if err := sess.SendMedia(ctx, to, "audio/mp3", audio, "reply.mp3"); err != nil {
			d.logger.Warn("audio send failed, falling back to text",
				slog.String("to", to), slog.Any("error", err))
		} else {
			return nil
		}
	}
	return sess.SendText(ctx, to, text)
}
