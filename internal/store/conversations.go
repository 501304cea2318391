package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
)

// ConversationExists reports whether a conversation between exactly a and b
// exists, regardless of argument order.
func (m *Marketplace) ConversationExists(a, b uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversationExists(a, b)
}

func (m *Marketplace) conversationExists(a, b uuid.UUID) bool {
	_, ok := m.findConversationBetween(a, b)
	return ok
}

// startConversation appends a conversation seeded with first. Callers must
// have checked that the pair has no conversation yet.
func (m *Marketplace) startConversation(a, b uuid.UUID, first models.Message) *models.Conversation {
	m.conversations = append(m.conversations, models.Conversation{
		ID:                   uuid.New(),
		Participants:         [2]uuid.UUID{a, b},
		Messages:             []models.Message{first},
		LastMessageTimestamp: first.Timestamp,
	})
	return &m.conversations[len(m.conversations)-1]
}

// SendMessage appends a message from the session user to receiverID,
// starting their conversation if they have none.
func (m *Marketplace) SendMessage(ctx context.Context, receiverID uuid.UUID, content string) (models.Message, error) {
	m.mu.Lock()
	msg, fx, err := m.sendMessage(receiverID, content)
	m.commit(ctx, fx)
	return msg, err
}

func (m *Marketplace) sendMessage(receiverID uuid.UUID, content string) (models.Message, *effects, error) {
	sender, ok := m.sessionUser()
	if !ok {
		return models.Message{}, nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, nil, ErrEmptyMessage
	}
	if receiverID == sender.ID {
		return models.Message{}, nil, ErrSelfMessage
	}
	receiver, ok := m.findUser(receiverID)
	if !ok {
		return models.Message{}, nil, ErrUserNotFound
	}

	msg := models.Message{
		ID:         uuid.New(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Content:    content,
		Timestamp:  m.now(),
	}

	fx := &effects{}
	if conv, ok := m.findConversationBetween(sender.ID, receiver.ID); ok {
		// Keep the message list chronological even if the clock steps back.
		if last, ok := conv.LastMessage(); ok && msg.Timestamp.Before(last.Timestamp) {
			msg.Timestamp = last.Timestamp
		}
		conv.Messages = append(conv.Messages, msg)
		conv.LastMessageTimestamp = msg.Timestamp

		fx.event(Event{Kind: EventMessageSent, UserID: sender.ID, ConversationID: conv.ID, MessageID: msg.ID})
		fx.notify(receiver.ID, "New Message", fmt.Sprintf("You have a new message from %s", sender.Name))
		return msg, fx, nil
	}

	conv := m.startConversation(sender.ID, receiver.ID, msg)
	fx.event(Event{Kind: EventConversationStarted, UserID: sender.ID, ConversationID: conv.ID, MessageID: msg.ID})
	fx.notify(receiver.ID, "New Conversation", fmt.Sprintf("%s has started a conversation with you", sender.Name))
	return msg, fx, nil
}

// ConversationsForCurrentUser returns the session user's conversations, or
// none when logged out.
func (m *Marketplace) ConversationsForCurrentUser() []models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Conversation{}
	if m.session == uuid.Nil {
		return out
	}
	for _, c := range m.conversations {
		if c.Involves(m.session) {
			out = append(out, cloneConversation(c))
		}
	}
	return out
}

// ConversationWith returns the session user's conversation with userID.
func (m *Marketplace) ConversationWith(userID uuid.UUID) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == uuid.Nil {
		return models.Conversation{}, ErrNotAuthenticated
	}
	conv, ok := m.findConversationBetween(m.session, userID)
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return cloneConversation(*conv), nil
}

func (m *Marketplace) Conversation(id uuid.UUID) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.findConversation(id)
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return cloneConversation(*conv), nil
}

// MarkConversationRead flags every message addressed to the session user in
// the conversation as read and returns how many changed.
func (m *Marketplace) MarkConversationRead(ctx context.Context, conversationID uuid.UUID) (int, error) {
	m.mu.Lock()
	n, fx, err := m.markConversationRead(conversationID)
	m.commit(ctx, fx)
	return n, err
}

func (m *Marketplace) markConversationRead(conversationID uuid.UUID) (int, *effects, error) {
	if m.session == uuid.Nil {
		return 0, nil, ErrNotAuthenticated
	}
	conv, ok := m.findConversation(conversationID)
	if !ok || !conv.Involves(m.session) {
		return 0, nil, ErrConversationNotFound
	}

	changed := 0
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.ReceiverID == m.session && !msg.IsRead {
			msg.IsRead = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil, nil
	}

	fx := &effects{}
	fx.event(Event{Kind: EventConversationRead, UserID: m.session, ConversationID: conv.ID})
	return changed, fx, nil
}
