package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
	"github.com/shopspring/decimal"
)

// PostRequest turns draft into an open request owned by the session user.
func (m *Marketplace) PostRequest(ctx context.Context, draft models.RequestDraft) (models.Request, error) {
	m.mu.Lock()
	req, fx, err := m.postRequest(draft)
	m.commit(ctx, fx)
	return req, err
}

func (m *Marketplace) postRequest(draft models.RequestDraft) (models.Request, *effects, error) {
	u, ok := m.sessionUser()
	if !ok {
		return models.Request{}, nil, ErrNotAuthenticated
	}
	if err := validateDraft(&draft); err != nil {
		return models.Request{}, nil, err
	}

	location := draft.Location
	if location == "" {
		location = u.Location
	}

	req := models.Request{
		ID:             uuid.New(),
		ConsumerID:     u.ID,
		ConsumerName:   u.Name,
		MeatType:       draft.MeatType,
		Quantity:       draft.Quantity,
		Unit:           draft.Unit,
		Budget:         draft.Budget,
		DeliveryOption: draft.DeliveryOption,
		PreferredDate:  draft.PreferredDate,
		Location:       location,
		Coordinates:    draft.Coordinates,
		AdditionalInfo: draft.AdditionalInfo,
		PostedAt:       m.now(),
		IsOpen:         true,
		Responses:      []models.RequestResponse{},
	}
	m.requests = append(m.requests, req)

	fx := &effects{}
	fx.event(Event{Kind: EventRequestPosted, UserID: u.ID, RequestID: req.ID})
	fx.notify(u.ID, "Request Posted", fmt.Sprintf("Your request for %s has been posted successfully!", req.MeatType))
	return cloneRequest(req), fx, nil
}

func validateDraft(d *models.RequestDraft) error {
	d.MeatType = strings.TrimSpace(d.MeatType)
	if d.MeatType == "" {
		return fmt.Errorf("%w: meat type is required", ErrInvalidDraft)
	}
	if !d.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidDraft)
	}
	if d.Budget.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidDraft)
	}
	if d.DeliveryOption == "" {
		d.DeliveryOption = models.DeliveryEither
	}
	if !d.DeliveryOption.Valid() {
		return fmt.Errorf("%w: unknown delivery option %q", ErrInvalidDraft, d.DeliveryOption)
	}
	if d.Coordinates != nil {
		c := *d.Coordinates
		d.Coordinates = &c
	}
	return nil
}

// RespondToRequest records a farmer's offer on an open request and notifies
// the request's consumer. The request stays open.
func (m *Marketplace) RespondToRequest(ctx context.Context, requestID, farmerID uuid.UUID, farmerName string, offerAmount decimal.Decimal, message string) (models.RequestResponse, error) {
	m.mu.Lock()
	resp, fx, err := m.respondToRequest(requestID, farmerID, farmerName, offerAmount, message)
	m.commit(ctx, fx)
	return resp, err
}

func (m *Marketplace) respondToRequest(requestID, farmerID uuid.UUID, farmerName string, offerAmount decimal.Decimal, message string) (models.RequestResponse, *effects, error) {
	req, ok := m.findRequest(requestID)
	if !ok {
		return models.RequestResponse{}, nil, ErrRequestNotFound
	}
	if !req.IsOpen {
		return models.RequestResponse{}, nil, ErrRequestClosed
	}

	resp := models.RequestResponse{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		FarmerName:  farmerName,
		OfferAmount: offerAmount,
		Message:     message,
		Timestamp:   m.now(),
	}
	req.Responses = append(req.Responses, resp)

	fx := &effects{}
	fx.event(Event{Kind: EventOfferMade, UserID: farmerID, RequestID: req.ID})
	if consumer, ok := m.findUser(req.ConsumerID); ok {
		fx.notify(consumer.ID, "New Offer on Your Request",
			fmt.Sprintf("%s has made an offer on your %s request!", farmerName, req.MeatType))
	}
	return resp, fx, nil
}

// AcceptRequest closes the request in favour of the response at
// responseIndex, notifies the farmer, and makes sure the consumer and the
// farmer share a conversation. A request can be accepted only once.
func (m *Marketplace) AcceptRequest(ctx context.Context, requestID uuid.UUID, responseIndex int) (models.Request, error) {
	m.mu.Lock()
	req, fx, err := m.acceptRequest(requestID, responseIndex)
	m.commit(ctx, fx)
	return req, err
}

func (m *Marketplace) acceptRequest(requestID uuid.UUID, responseIndex int) (models.Request, *effects, error) {
	req, ok := m.findRequest(requestID)
	if !ok {
		return models.Request{}, nil, ErrRequestNotFound
	}
	if responseIndex < 0 || responseIndex >= len(req.Responses) {
		return models.Request{}, nil, fmt.Errorf("%w: %d of %d", ErrResponseOutOfRange, responseIndex, len(req.Responses))
	}
	if !req.IsOpen {
		return models.Request{}, nil, ErrRequestClosed
	}

	req.IsOpen = false
	resp := req.Responses[responseIndex]

	fx := &effects{}
	fx.event(Event{Kind: EventOfferAccepted, UserID: req.ConsumerID, RequestID: req.ID})
	if farmer, ok := m.findUser(resp.FarmerID); ok {
		fx.notify(farmer.ID, "Request Accepted!",
			fmt.Sprintf("Your offer on the %s request has been accepted!", req.MeatType))
	}

	if !m.conversationExists(resp.FarmerID, req.ConsumerID) {
		msg := models.Message{
			ID:         uuid.New(),
			SenderID:   req.ConsumerID,
			ReceiverID: resp.FarmerID,
			Content:    fmt.Sprintf("I've accepted your offer on my %s request. Let's discuss the details.", req.MeatType),
			Timestamp:  m.now(),
		}
		conv := m.startConversation(req.ConsumerID, resp.FarmerID, msg)
		fx.event(Event{Kind: EventConversationStarted, UserID: req.ConsumerID, ConversationID: conv.ID, MessageID: msg.ID})
	}

	return cloneRequest(*req), fx, nil
}

func (m *Marketplace) Request(id uuid.UUID) (models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.findRequest(id)
	if !ok {
		return models.Request{}, ErrRequestNotFound
	}
	return cloneRequest(*req), nil
}

// OpenRequests returns every request still accepting offers, in posting order.
func (m *Marketplace) OpenRequests() []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterRequests(func(r *models.Request) bool { return r.IsOpen })
}

// MyRequests returns the session user's requests, or none when logged out.
func (m *Marketplace) MyRequests() []models.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == uuid.Nil {
		return []models.Request{}
	}
	session := m.session
	return m.filterRequests(func(r *models.Request) bool { return r.ConsumerID == session })
}

func (m *Marketplace) filterRequests(keep func(*models.Request) bool) []models.Request {
	out := []models.Request{}
	for i := range m.requests {
		if keep(&m.requests[i]) {
			out = append(out, cloneRequest(m.requests[i]))
		}
	}
	return out
}
