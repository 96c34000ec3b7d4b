package wsbridge

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/config"
)

type gatewayStub struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	paths []string
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()
	g := &gatewayStub{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.conns = append(g.conns, conn)
		g.paths = append(g.paths, r.URL.Path)
		g.mu.Unlock()
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *gatewayStub) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *gatewayStub) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		if len(g.conns) > 0 {
			conn := g.conns[len(g.conns)-1]
			g.mu.Unlock()
			return conn
		}
		g.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("gateway never saw a connection")
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []channel.Event
}

func (r *eventRecorder) handle(_ context.Context, ev channel.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) waitFor(t *testing.T, match func(channel.Event) bool) channel.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, ev := range r.events {
			if match(ev) {
				r.mu.Unlock()
				return ev
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event never arrived")
	return nil
}

func TestDialConnectsToBranchEndpoint(t *testing.T) {
	t.Parallel()

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1", CredentialsPath: "/tmp/b1"}, rec.handle)
	require.NoError(t, err)
	defer sess.Close(context.Background())

	gw.conn(t)
	gw.mu.Lock()
	path := gw.paths[0]
	gw.mu.Unlock()
	require.Equal(t, "/sessions/b1", path)
}

func TestLifecycleFramesBecomeEvents(t *testing.T) {
	t.Parallel()

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1"}, rec.handle)
	require.NoError(t, err)
	defer sess.Close(context.Background())

	conn := gw.conn(t)
	require.NoError(t, conn.WriteJSON(gatewayFrame{Type: "paired", Code: "ABCD-1234"}))
	require.NoError(t, conn.WriteJSON(gatewayFrame{Type: "ready"}))

	ev := rec.waitFor(t, func(ev channel.Event) bool {
		_, ok := ev.(channel.EventPaired)
		return ok
	})
	require.Equal(t, "ABCD-1234", ev.(channel.EventPaired).Code)

	rec.waitFor(t, func(ev channel.Event) bool {
		_, ok := ev.(channel.EventReady)
		return ok
	})
}

func TestMessageFrameCarriesMediaFetcher(t *testing.T) {
	t.Parallel()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("opus-bytes"))
	}))
	t.Cleanup(media.Close)

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1"}, rec.handle)
	require.NoError(t, err)
	defer sess.Close(context.Background())

	conn := gw.conn(t)
	require.NoError(t, conn.WriteJSON(gatewayFrame{Type: "message", Message: &messageFrame{
		ID:       "m1",
		From:     "5511999@c.us",
		ChatID:   "5511999@c.us",
		Body:     "",
		HasMedia: true,
		MediaURL: media.URL + "/m1",
	}}))

	ev := rec.waitFor(t, func(ev channel.Event) bool {
		_, ok := ev.(channel.EventMessage)
		return ok
	})
	msg := ev.(channel.EventMessage).Message
	require.Equal(t, "m1", msg.ID)
	require.True(t, msg.HasMedia)
	require.NotNil(t, msg.Media)

	payload, err := msg.Media(context.Background())
	require.NoError(t, err)
	require.Equal(t, "audio/ogg", payload.MimeType)
	require.Equal(t, []byte("opus-bytes"), payload.Data)
}

func TestSendTextAndMediaReachGateway(t *testing.T) {
	t.Parallel()

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1"}, rec.handle)
	require.NoError(t, err)
	defer sess.Close(context.Background())

	conn := gw.conn(t)

	require.NoError(t, sess.SendText(context.Background(), "5511999@c.us", "olá"))
	var text gatewayFrame
	require.NoError(t, conn.ReadJSON(&text))
	require.Equal(t, "send_text", text.Type)
	require.Equal(t, "5511999@c.us", text.To)
	require.Equal(t, "olá", text.Text)

	require.NoError(t, sess.SendMedia(context.Background(), "5511999@c.us", "audio/mp3", []byte{1, 2, 3}, "reply.mp3"))
	var mediaFrame gatewayFrame
	require.NoError(t, conn.ReadJSON(&mediaFrame))
	require.Equal(t, "send_media", mediaFrame.Type)
	require.Equal(t, "audio/mp3", mediaFrame.MimeType)
	require.Equal(t, "reply.mp3", mediaFrame.Filename)
	decoded, err := base64.StdEncoding.DecodeString(mediaFrame.Data)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, decoded)
}

func TestPeerDropReportsDisconnected(t *testing.T) {
	t.Parallel()

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1"}, rec.handle)
	require.NoError(t, err)
	defer sess.Close(context.Background())

	conn := gw.conn(t)
	require.NoError(t, conn.Close())

	rec.waitFor(t, func(ev channel.Event) bool {
		_, ok := ev.(channel.EventDisconnected)
		return ok
	})
}

func TestSendAfterCloseFails(t *testing.T) {
	t.Parallel()

	gw := newGatewayStub(t)
	d := NewDialer(nil, config.ChannelConfig{GatewayURL: gw.wsURL()})

	rec := &eventRecorder{}
	sess, err := d.Dial(context.Background(), channel.DialConfig{BranchID: "b1"}, rec.handle)
	require.NoError(t, err)

	require.NoError(t, sess.Close(context.Background()))
	require.Error(t, sess.SendText(context.Background(), "x", "y"))
}
