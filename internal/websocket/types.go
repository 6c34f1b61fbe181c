package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeJobStarted is sent when a request has been accepted for anonymization
	EventTypeJobStarted EventType = "job_started"
	// EventTypeJobCompleted is sent when an outcome has been reconciled
	EventTypeJobCompleted EventType = "job_completed"
	// EventTypeJobFailed is sent when a request was rejected or the engine failed
	EventTypeJobFailed EventType = "job_failed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// JobEvent describes one anonymization request. Values are never included.
type JobEvent struct {
	Shape        string   `json:"shape"`
	Rows         int      `json:"rows,omitempty"`
	Attributes   []string `json:"attributes,omitempty"`
	Schemes      []string `json:"schemes,omitempty"`
	Ignored      []string `json:"ignored,omitempty"`
	OptimumFound bool     `json:"optimum_found"`
	DurationMS   float64  `json:"duration_ms,omitempty"`
	ErrorKind    string   `json:"error_kind,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest narrows the events a client receives
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter restricts job events by request shape
type EventFilter struct {
	Shapes []string `json:"shapes,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

// Subscribe replaces the client's subscription; nil receives everything
func (c *Client) Subscribe(s *SubscriptionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscription = s
}

// Subscription returns the current subscription
func (c *Client) Subscription() *SubscriptionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription
}
