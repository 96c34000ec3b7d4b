// Package media extracts the text of an inbound message, transcribing
// voice notes when needed.
package media

import (
	"context"
	"log/slog"
	"strings"

	"github.com/attendhq/attend/internal/channel"
)

// Normalizer reduces any inbound message to plain text. It never fails the
// pipeline: every error degrades to the raw message body.
type Normalizer struct {
	transcriber Transcriber
	transcoder  Transcoder
	logger      *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(log *slog.Logger, transcriber Transcriber, transcoder Transcoder) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{
		transcriber: transcriber,
		transcoder:  transcoder,
		logger:      log.With(slog.String("service", "media")),
	}
}

// Normalize returns the user text for a message. Audio attachments are
// downloaded, converted to mp3 if the encoding requires it, and
// transcribed; any failure falls back to the raw body.
func (n *Normalizer) Normalize(ctx context.Context, msg channel.InboundMessage) string {
	if !msg.HasMedia || msg.Media == nil {
		return msg.Body
	}

	payload, err := msg.Media(ctx)
	if err != nil {
		n.logger.Warn("media download failed, using raw body",
			slog.String("message_id", msg.ID), slog.Any("error", err))
		return msg.Body
	}
	if !strings.HasPrefix(payload.MimeType, "audio/") {
		return msg.Body
	}

	audio := payload.Data
	contentType := payload.MimeType
	if strings.Contains(payload.MimeType, "ogg") || strings.Contains(payload.MimeType, "opus") {
		converted, err := n.transcoder.Transcode(ctx, payload.Data, "ogg", "mp3")
		if err != nil {
			n.logger.Warn("audio transcode failed, using raw body",
				slog.String("message_id", msg.ID), slog.Any("error", err))
			return msg.Body
		}
		audio = converted
		contentType = "audio/mp3"
	}

	text, err := n.transcriber.Transcribe(ctx, audio, "audio.mp3", contentType)
	if err != nil {
		n.logger.Warn("transcription failed, using raw body",
			slog.String("message_id", msg.ID), slog.Any("error", err))
		return msg.Body
	}
	if text == "" {
		return msg.Body
	}
	return text
}
