package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// client messages are small subscribe/unsubscribe commands
	maxMessageSize = 1024
)

// Connection one WebSocket client
type Connection struct {
	ID       string          `json:"id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage envelope of everything sent to clients
type PushMessage struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// ClientCommand subscribe or unsubscribe, sent by clients
type ClientCommand struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

// WebSocketPushService fans snapshots, price updates and events out to WebSocket clients
type WebSocketPushService struct {
	connections map[string]*Connection // key: connectionID
	subs        *WebSocketSubscriptionManager
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
}

// NewWebSocketPushService allowedOrigins empty or containing "*" accepts any origin
func NewWebSocketPushService(allowedOrigins []string) *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		subs:        NewWebSocketSubscriptionManager(),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
	}
	service.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}

	go service.run()
	return service
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case message := <-s.hub:
			s.handleBroadcast(message)

		case <-s.done:
			s.mutex.Lock()
			for id, conn := range s.connections {
				close(conn.Send)
				delete(s.connections, id)
			}
			s.mutex.Unlock()
			metrics.WebSocketConnections.Set(0)
			return
		}
	}
}

// Close disconnects every client and stops the hub
func (s *WebSocketPushService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	s.connections[conn.ID] = conn
	s.mutex.Unlock()
	s.subs.RegisterClient(conn.ID, AllTopics...)
	metrics.WebSocketConnections.Inc()

	logrus.Infof("📱 [WebSocket] Connection registered: %s", conn.ID)

	s.sendToConnection(conn, newPushMessage("connection_established", "", map[string]interface{}{
		"connection_id": conn.ID,
		"topics":        AllTopics,
	}))
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	_, exists := s.connections[conn.ID]
	delete(s.connections, conn.ID)
	s.mutex.Unlock()
	if !exists {
		return
	}

	s.subs.UnregisterClient(conn.ID)
	close(conn.Send)
	metrics.WebSocketConnections.Dec()
	logrus.Infof("📱 [WebSocket] Connection unregistered: %s", conn.ID)
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("❌ [WebSocket] Failed to marshal %s: %v", message.Type, err)
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sent, dropped := 0, 0
	for _, id := range s.subs.ClientsFor(SubscriptionTopic(message.Topic)) {
		conn, ok := s.connections[id]
		if !ok {
			continue
		}
		select {
		case conn.Send <- data:
			sent++
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logrus.Warnf("⚠️ [WebSocket] %s: sent=%d dropped=%d (channel full)", message.Type, sent, dropped)
	}
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("❌ [WebSocket] Failed to marshal %s: %v", message.Type, err)
		return
	}
	select {
	case conn.Send <- data:
	default:
		logrus.Warnf("⚠️ [WebSocket] Failed to send to connection: %s", conn.ID)
	}
}

func newPushMessage(msgType string, topic SubscriptionTopic, data interface{}) PushMessage {
	return PushMessage{
		Type:      msgType,
		Topic:     string(topic),
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Data:      data,
	}
}

// Broadcast queues data for every client subscribed to topic; drops it when the hub is full
func (s *WebSocketPushService) Broadcast(topic SubscriptionTopic, msgType string, data interface{}) {
	select {
	case s.hub <- newPushMessage(msgType, topic, data):
	case <-s.done:
	default:
		logrus.Warnf("⚠️ [WebSocket] Hub full, dropping %s", msgType)
	}
}

// BroadcastTokens is registered as a token feed listener
func (s *WebSocketPushService) BroadcastTokens(views []models.TokenView) {
	s.Broadcast(TopicTokens, "tokens_snapshot", views)
}

// OnPriceChange implements PriceChangeListener
func (s *WebSocketPushService) OnPriceChange(p *clients.NativePrice) {
	s.Broadcast(TopicPrice, "price_update", p)
}

// Publish implements EventPublisher so events reach WebSocket clients too
func (s *WebSocketPushService) Publish(subject string, payload interface{}) error {
	s.Broadcast(TopicEvents, subject, payload)
	return nil
}

// HandleWebSocket upgrades the request and starts the connection pumps
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("❌ [WebSocket] Upgrade failed: %v", err)
		return
	}

	connection := &Connection{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}

	select {
	case s.register <- connection:
	case <-s.done:
		conn.Close()
		return
	}

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.Debugf("❌ [WebSocket] Write failed on %s: %v", conn.ID, err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		var cmd ClientCommand
		if err := conn.Conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("❌ [WebSocket] Read error on %s: %v", conn.ID, err)
			}
			return
		}
		s.applyCommand(conn, cmd)
	}
}

func (s *WebSocketPushService) applyCommand(conn *Connection, cmd ClientCommand) {
	for _, name := range cmd.Topics {
		topic, err := ParseTopic(name)
		if err == nil {
			switch cmd.Action {
			case "subscribe":
				err = s.subs.Subscribe(conn.ID, topic)
			case "unsubscribe":
				err = s.subs.Unsubscribe(conn.ID, topic)
			default:
				err = NewError("unknown action " + cmd.Action)
			}
		}
		if err != nil {
			s.sendToConnection(conn, newPushMessage("error", "", map[string]string{"topic": name, "error": err.Error()}))
		}
	}
	s.sendToConnection(conn, newPushMessage("subscriptions", "", s.subs.Topics(conn.ID)))
}

// GetActiveConnections number of open connections
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}
