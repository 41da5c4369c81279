package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventUserRegistered  EventType = "USER_REGISTERED"
	EventUserLoggedIn    EventType = "USER_LOGGED_IN"
	EventLicenseRedeemed EventType = "LICENSE_REDEEMED"
	EventLicenseBanned   EventType = "LICENSE_BANNED"
	EventUserBanned      EventType = "USER_BANNED"
	EventLogAppended     EventType = "LOG_APPENDED"
	EventChatMessage     EventType = "CHAT_MESSAGE"
	EventError           EventType = "ERROR"
)

// Event represents a system event scoped to one application
type Event struct {
	Type      EventType              `json:"type"`
	OwnerID   string                 `json:"owner_id"`
	AppName   string                 `json:"app_name"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus fans events out to subscribers. Publishing never blocks the
// request path: every subscriber runs on its own goroutine.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishUserRegistered publishes a registration event
func (eb *EventBus) PublishUserRegistered(ownerID, appName, username string) {
	eb.Publish(Event{
		Type:    EventUserRegistered,
		OwnerID: ownerID,
		AppName: appName,
		Data: map[string]interface{}{
			"username": username,
		},
	})
}

// PublishUserLoggedIn publishes a login event
func (eb *EventBus) PublishUserLoggedIn(ownerID, appName, credential string) {
	eb.Publish(Event{
		Type:    EventUserLoggedIn,
		OwnerID: ownerID,
		AppName: appName,
		Data: map[string]interface{}{
			"credential": credential,
		},
	})
}

// PublishLicenseRedeemed publishes a redemption event
func (eb *EventBus) PublishLicenseRedeemed(ownerID, appName, credential, plan string) {
	eb.Publish(Event{
		Type:    EventLicenseRedeemed,
		OwnerID: ownerID,
		AppName: appName,
		Data: map[string]interface{}{
			"credential": credential,
			"plan":       plan,
		},
	})
}

// PublishUserBanned publishes a ban event
func (eb *EventBus) PublishUserBanned(ownerID, appName, username, reason string) {
	eb.Publish(Event{
		Type:    EventUserBanned,
		OwnerID: ownerID,
		AppName: appName,
		Data: map[string]interface{}{
			"username": username,
			"reason":   reason,
		},
	})
}

// PublishLogAppended publishes a client log event
func (eb *EventBus) PublishLogAppended(ownerID, appName, credential, message string) {
	eb.Publish(Event{
		Type:    EventLogAppended,
		OwnerID: ownerID,
		AppName: appName,
		Data: map[string]interface{}{
			"credential": credential,
			"message":    message,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
