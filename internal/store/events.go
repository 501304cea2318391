package store

import "github.com/google/uuid"

type EventKind string

const (
	EventLoggedIn            EventKind = "logged_in"
	EventUserCreated         EventKind = "user_created"
	EventLoggedOut           EventKind = "logged_out"
	EventProfileUpdated      EventKind = "profile_updated"
	EventRequestPosted       EventKind = "request_posted"
	EventOfferMade           EventKind = "offer_made"
	EventOfferAccepted       EventKind = "offer_accepted"
	EventConversationStarted EventKind = "conversation_started"
	EventMessageSent         EventKind = "message_sent"
	EventConversationRead    EventKind = "conversation_read"
	EventBrowseChanged       EventKind = "browse_changed"
)

// Event describes one committed change. Only the ids relevant to Kind are set.
type Event struct {
	Kind           EventKind `json:"kind"`
	UserID         uuid.UUID `json:"user_id"`
	RequestID      uuid.UUID `json:"request_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

// Subscribe registers fn to be called with every committed event, in commit
// order per command. fn runs on the committing goroutine after the state
// lock is released, so it may call queries. The returned func unsubscribes.
func (m *Marketplace) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Marketplace) publish(e Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
