package services

import (
	"sync"
)

// SubscriptionTopic what a WebSocket client receives
type SubscriptionTopic string

const (
	TopicTokens SubscriptionTopic = "tokens" // token snapshot after every cycle
	TopicPrice  SubscriptionTopic = "price"  // native price updates
	TopicEvents SubscriptionTopic = "events" // trade, creation and staking events
)

// AllTopics every client starts subscribed to these
var AllTopics = []SubscriptionTopic{TopicTokens, TopicPrice, TopicEvents}

// ParseTopic returns ErrUnknownTopic for anything outside AllTopics
func ParseTopic(s string) (SubscriptionTopic, error) {
	for _, t := range AllTopics {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnknownTopic
}

// WebSocketSubscriptionManager tracks which clients want which topics
type WebSocketSubscriptionManager struct {
	mu      sync.RWMutex
	clients map[string]map[SubscriptionTopic]bool
	// topic -> clientID set
	index map[SubscriptionTopic]map[string]bool
}

// NewWebSocketSubscriptionManager creates a new subscription manager
func NewWebSocketSubscriptionManager() *WebSocketSubscriptionManager {
	return &WebSocketSubscriptionManager{
		clients: make(map[string]map[SubscriptionTopic]bool),
		index:   make(map[SubscriptionTopic]map[string]bool),
	}
}

// RegisterClient registers a client with an initial topic set
func (m *WebSocketSubscriptionManager) RegisterClient(clientID string, topics ...SubscriptionTopic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[clientID] = make(map[SubscriptionTopic]bool)
	for _, t := range topics {
		m.addLocked(clientID, t)
	}
}

// UnregisterClient removes a client and all its subscriptions
func (m *WebSocketSubscriptionManager) UnregisterClient(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, exists := m.clients[clientID]
	if !exists {
		return
	}
	for t := range subs {
		delete(m.index[t], clientID)
	}
	delete(m.clients, clientID)
}

// Subscribe adds topic for a client
func (m *WebSocketSubscriptionManager) Subscribe(clientID string, topic SubscriptionTopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[clientID]; !exists {
		return ErrClientNotFound
	}
	m.addLocked(clientID, topic)
	return nil
}

// Unsubscribe removes topic for a client
func (m *WebSocketSubscriptionManager) Unsubscribe(clientID string, topic SubscriptionTopic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, exists := m.clients[clientID]
	if !exists {
		return ErrClientNotFound
	}
	if !subs[topic] {
		return ErrSubscriptionNotFound
	}
	delete(subs, topic)
	delete(m.index[topic], clientID)
	return nil
}

func (m *WebSocketSubscriptionManager) addLocked(clientID string, topic SubscriptionTopic) {
	m.clients[clientID][topic] = true
	if m.index[topic] == nil {
		m.index[topic] = make(map[string]bool)
	}
	m.index[topic][clientID] = true
}

// ClientsFor returns the ids of clients subscribed to topic
func (m *WebSocketSubscriptionManager) ClientsFor(topic SubscriptionTopic) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clientIDs := make([]string, 0, len(m.index[topic]))
	for clientID := range m.index[topic] {
		clientIDs = append(clientIDs, clientID)
	}
	return clientIDs
}

// Topics returns the topics of one client
func (m *WebSocketSubscriptionManager) Topics(clientID string) []SubscriptionTopic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var topics []SubscriptionTopic
	for _, t := range AllTopics {
		if m.clients[clientID][t] {
			topics = append(topics, t)
		}
	}
	return topics
}

// Error types
var (
	ErrClientNotFound       = NewError("client not found")
	ErrSubscriptionNotFound = NewError("subscription not found")
	ErrUnknownTopic         = NewError("unknown topic")
)

// Error helper
type Error struct {
	Message string
}

func NewError(msg string) Error {
	return Error{Message: msg}
}

func (e Error) Error() string {
	return e.Message
}
