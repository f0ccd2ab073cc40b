package domain

import "time"

// Event is the envelope delivered to webhook subscribers.
type Event struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	Type      string    `json:"type"`
	Data      EventData `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

type EventData struct {
	Object any `json:"object"`
}

func NewEvent(eventType string, object any) Event {
	return Event{
		ID:        NewID("evt"),
		Object:    "event",
		Type:      eventType,
		Data:      EventData{Object: object},
		CreatedAt: time.Now().UTC(),
	}
}

// Webhook is a registered event subscriber. Events of ["*"] matches
// everything.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

func NewWebhook(url string, events []string) *Webhook {
	if len(events) == 0 {
		events = []string{"*"}
	}
	return &Webhook{
		ID:        NewID("webhook"),
		URL:       url,
		Events:    events,
		CreatedAt: time.Now().UTC(),
	}
}

func (w *Webhook) Matches(eventType string) bool {
	for _, e := range w.Events {
		if e == "*" || e == eventType {
			return true
		}
	}
	return false
}
