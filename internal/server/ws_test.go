package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dmchat/internal/realtime"
	"dmchat/internal/storage"
)

func wsTestServer(t *testing.T, h *handler) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(h.requireAuth(http.HandlerFunc(h.serveWS)))
	t.Cleanup(ts.Close)

	return ts
}

func wsURL(ts *httptest.Server, rawToken string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + rawToken
}

func dialWS(t *testing.T, ts *httptest.Server, rawToken string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, rawToken), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestServeWSDeliversDispatchedEnvelope(t *testing.T) {
	t.Parallel()

	bob := storage.User{ID: 9, Username: "bob"}
	h := bootstrapHandler(&fakeStore{
		userByIDFn: func(int64) (storage.User, error) { return bob, nil },
	})
	ts := wsTestServer(t, h)

	raw, err := h.tokens.Sign(bob.ID)
	require.NoError(t, err)

	conn := dialWS(t, ts, raw)

	require.Eventually(t, func() bool { return h.registry.Connected(bob.ID) },
		time.Second, 10*time.Millisecond)

	sentAt := time.Now()
	h.dispatcher.Dispatch(bob.ID, realtime.Envelope{
		ChatID:         3,
		MessageID:      21,
		MessageText:    "hello",
		SentTime:       sentAt,
		FriendUsername: "alice",
		FriendUserID:   7,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	var got realtime.Envelope
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, int64(3), got.ChatID)
	require.Equal(t, int64(21), got.MessageID)
	require.Equal(t, "hello", got.MessageText)
	require.Equal(t, "alice", got.FriendUsername)
	require.Equal(t, int64(7), got.FriendUserID)
	require.True(t, got.SentTime.Equal(sentAt))
}

func TestServeWSRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(&fakeStore{})
	ts := wsTestServer(t, h)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "not.a.token"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWSReconnectSupersedes(t *testing.T) {
	t.Parallel()

	bob := storage.User{ID: 9, Username: "bob"}
	h := bootstrapHandler(&fakeStore{
		userByIDFn: func(int64) (storage.User, error) { return bob, nil },
	})
	ts := wsTestServer(t, h)

	raw, err := h.tokens.Sign(bob.ID)
	require.NoError(t, err)

	first := dialWS(t, ts, raw)
	require.Eventually(t, func() bool { return h.registry.Connected(bob.ID) },
		time.Second, 10*time.Millisecond)

	second := dialWS(t, ts, raw)

	// the first connection is displaced and closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// the user must still be reachable through the second connection
	require.Eventually(t, func() bool { return h.registry.Connected(bob.ID) },
		time.Second, 10*time.Millisecond)

	h.dispatcher.Dispatch(bob.ID, realtime.Envelope{ChatID: 3, MessageID: 22, MessageText: "still here"})

	require.NoError(t, second.SetReadDeadline(time.Now().Add(time.Second)))
	var got realtime.Envelope
	require.NoError(t, second.ReadJSON(&got))
	require.Equal(t, int64(22), got.MessageID)
}

func TestServeWSDisconnectUnregisters(t *testing.T) {
	t.Parallel()

	bob := storage.User{ID: 9, Username: "bob"}
	h := bootstrapHandler(&fakeStore{
		userByIDFn: func(int64) (storage.User, error) { return bob, nil },
	})
	ts := wsTestServer(t, h)

	raw, err := h.tokens.Sign(bob.ID)
	require.NoError(t, err)

	conn := dialWS(t, ts, raw)
	require.Eventually(t, func() bool { return h.registry.Connected(bob.ID) },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !h.registry.Connected(bob.ID) },
		time.Second, 10*time.Millisecond)

	require.Equal(t, realtime.NotConnected,
		h.registry.SendTo(bob.ID, realtime.Envelope{MessageID: 1}))
}
