package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/models"
)

func dialPush(t *testing.T, svc *WebSocketPushService) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(svc.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPush(t *testing.T, conn *websocket.Conn) PushMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg PushMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketPushDeliversByTopic(t *testing.T) {
	svc := NewWebSocketPushService(nil)
	t.Cleanup(svc.Close)
	conn := dialPush(t, svc)

	assert.Equal(t, "connection_established", readPush(t, conn).Type)
	require.Eventually(t, func() bool { return svc.GetActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	svc.BroadcastTokens([]models.TokenView{{Address: tokenA.Hex(), Symbol: "AAA"}})
	msg := readPush(t, conn)
	assert.Equal(t, "tokens_snapshot", msg.Type)
	assert.Equal(t, "tokens", msg.Topic)
	raw, _ := json.Marshal(msg.Data)
	assert.Contains(t, string(raw), "AAA")

	require.NoError(t, conn.WriteJSON(ClientCommand{Action: "unsubscribe", Topics: []string{"price"}}))
	msg = readPush(t, conn)
	assert.Equal(t, "subscriptions", msg.Type)

	svc.OnPriceChange(&clients.NativePrice{InstID: "XPL-USDT"})
	require.NoError(t, svc.Publish(clients.SubjectTradesSettled, map[string]string{"id": "t1"}))
	msg = readPush(t, conn)
	assert.Equal(t, clients.SubjectTradesSettled, msg.Type, "price update skipped after unsubscribe")
	assert.Equal(t, "events", msg.Topic)
}

func TestWebSocketPushRejectsUnknownTopic(t *testing.T) {
	svc := NewWebSocketPushService([]string{"*"})
	t.Cleanup(svc.Close)
	conn := dialPush(t, svc)
	readPush(t, conn)

	require.NoError(t, conn.WriteJSON(ClientCommand{Action: "subscribe", Topics: []string{"candles"}}))
	msg := readPush(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "subscriptions", readPush(t, conn).Type)
}

func TestSubscriptionManager(t *testing.T) {
	m := NewWebSocketSubscriptionManager()
	m.RegisterClient("a", TopicTokens)
	m.RegisterClient("b", AllTopics...)

	assert.ElementsMatch(t, []string{"a", "b"}, m.ClientsFor(TopicTokens))
	assert.Equal(t, []string{"b"}, m.ClientsFor(TopicPrice))

	require.NoError(t, m.Subscribe("a", TopicPrice))
	require.NoError(t, m.Unsubscribe("b", TopicPrice))
	assert.Equal(t, []string{"a"}, m.ClientsFor(TopicPrice))
	assert.ErrorIs(t, m.Unsubscribe("b", TopicPrice), ErrSubscriptionNotFound)
	assert.ErrorIs(t, m.Subscribe("zz", TopicPrice), ErrClientNotFound)

	m.UnregisterClient("a")
	assert.Empty(t, m.ClientsFor(TopicPrice))
	assert.Equal(t, []SubscriptionTopic{TopicTokens, TopicEvents}, m.Topics("b"))

	_, err := ParseTopic("candles")
	assert.ErrorIs(t, err, ErrUnknownTopic)
}
