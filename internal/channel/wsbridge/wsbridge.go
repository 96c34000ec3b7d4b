// Package wsbridge implements channel.Dialer over a websocket connection to
// the channel gateway process. The gateway owns the platform credentials and
// pairing flow; this side only exchanges JSON frames with it.
package wsbridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/config"
)

const writeTimeout = 10 * time.Second

// Dialer opens one gateway websocket per branch.
type Dialer struct {
	gatewayURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDialer(log *slog.Logger, cfg config.ChannelConfig) *Dialer {
	if log == nil {
		log = slog.Default()
	}
	gatewayURL := cfg.GatewayURL
	if gatewayURL == "" {
		gatewayURL = config.DefaultGatewayURL
	}
	return &Dialer{
		gatewayURL: gatewayURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.With(slog.String("component", "wsbridge")),
	}
}

// Dial connects to the gateway session endpoint for the branch. Lifecycle
// progress arrives as frames on the socket and is forwarded to the handler.
func (d *Dialer) Dial(ctx context.Context, cfg channel.DialConfig, handler channel.EventHandler) (channel.Session, error) {
	u, err := url.Parse(d.gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("gateway url: %w", err)
	}
	u.Path = "/sessions/" + cfg.BranchID
	q := u.Query()
	q.Set("credentials_path", cfg.CredentialsPath)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s := &session{
		conn:       conn,
		handler:    handler,
		httpClient: d.httpClient,
		logger:     d.logger.With(slog.String("branch_id", cfg.BranchID)),
		closed:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// gatewayFrame is one JSON message in either direction on the socket.
type gatewayFrame struct {
	Type     string        `json:"type"`
	Code     string        `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
	Message  *messageFrame `json:"message,omitempty"`
	To       string        `json:"to,omitempty"`
	Text     string        `json:"text,omitempty"`
	MimeType string        `json:"mime_type,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Data     string        `json:"data,omitempty"`
}

type messageFrame struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	ChatID   string `json:"chat_id"`
	Body     string `json:"body"`
	HasMedia bool   `json:"has_media"`
	MediaURL string `json:"media_url,omitempty"`
}

type session struct {
	conn       *websocket.Conn
	handler    channel.EventHandler
	httpClient *http.Client
	logger     *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *session) SendText(ctx context.Context, to, text string) error {
	return s.write(ctx, gatewayFrame{Type: "send_text", To: to, Text: text})
}

func (s *session) SendMedia(ctx context.Context, to, mimeType string, data []byte, filename string) error {
	return s.write(ctx, gatewayFrame{
		Type:     "send_media",
		To:       to,
		MimeType: mimeType,
		Filename: filename,
		Data:     base64.StdEncoding.EncodeToString(data),
	})
}

func (s *session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *session) write(ctx context.Context, frame gatewayFrame) error {
	select {
	case <-s.closed:
		return errors.New("session closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *session) readLoop() {
	ctx := context.Background()
	for {
		var frame gatewayFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Warn("gateway socket read failed", slog.Any("error", err))
				s.handler(ctx, channel.EventDisconnected{})
			}
			return
		}
		s.dispatch(ctx, frame)
	}
}

func (s *session) dispatch(ctx context.Context, frame gatewayFrame) {
	switch frame.Type {
	case "paired":
		s.handler(ctx, channel.EventPaired{Code: frame.Code})
	case "ready":
		s.handler(ctx, channel.EventReady{})
	case "auth_failure":
		s.handler(ctx, channel.EventAuthFailure{Err: errors.New(frame.Error)})
	case "disconnected":
		s.handler(ctx, channel.EventDisconnected{})
	case "message":
		if frame.Message == nil {
			s.logger.Warn("message frame without payload")
			return
		}
		s.handler(ctx, channel.EventMessage{Message: s.toInbound(*frame.Message)})
	default:
		s.logger.Warn("unknown gateway frame", slog.String("type", frame.Type))
	}
}

func (s *session) toInbound(mf messageFrame) channel.InboundMessage {
	msg := channel.InboundMessage{
		ID:       mf.ID,
		From:     mf.From,
		ChatID:   mf.ChatID,
		Body:     mf.Body,
		HasMedia: mf.HasMedia,
	}
	if mf.HasMedia && mf.MediaURL != "" {
		mediaURL := mf.MediaURL
		msg.Media = func(ctx context.Context) (channel.MediaPayload, error) {
			return s.fetchMedia(ctx, mediaURL)
		}
	}
	return msg
}

func (s *session) fetchMedia(ctx context.Context, mediaURL string) (channel.MediaPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return channel.MediaPayload{}, fmt.Errorf("media request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return channel.MediaPayload{}, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return channel.MediaPayload{}, fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return channel.MediaPayload{}, fmt.Errorf("read media: %w", err)
	}
	return channel.MediaPayload{MimeType: resp.Header.Get("Content-Type"), Data: data}, nil
}
