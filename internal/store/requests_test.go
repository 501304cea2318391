package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostRequest(t *testing.T) {
	m, rec, clock := newTestMarketplace(t)
	ctx := context.Background()
	alex := userByEmail(t, m, "alex@example.com")

	req, err := m.PostRequest(ctx, models.RequestDraft{
		MeatType:       " Pork ",
		Quantity:       dec("40"),
		Unit:           "pounds",
		Budget:         dec("320.50"),
		DeliveryOption: models.DeliveryDelivery,
		PreferredDate:  clock.Now().AddDate(0, 0, 7),
		AdditionalInfo: "Half hog, cut and wrapped.",
	})
	if err != nil {
		t.Fatalf("Post request: %v", err)
	}

	if req.ID == uuid.Nil {
		t.Error("Request ID should be assigned")
	}
	if !req.IsOpen {
		t.Error("New request should be open")
	}
	if len(req.Responses) != 0 {
		t.Errorf("Expected no responses, got %d", len(req.Responses))
	}
	if req.ConsumerID != alex.ID || req.ConsumerName != alex.Name {
		t.Errorf("Expected consumer %s, got %s (%s)", alex.ID, req.ConsumerID, req.ConsumerName)
	}
	if req.MeatType != "Pork" {
		t.Errorf("Expected trimmed meat type, got %q", req.MeatType)
	}
	if req.Location != alex.Location {
		t.Errorf("Expected location to default to %q, got %q", alex.Location, req.Location)
	}
	if !req.PostedAt.Equal(clock.Now()) {
		t.Errorf("Expected posted at %s, got %s", clock.Now(), req.PostedAt)
	}

	mine := m.MyRequests()
	if len(mine) != 2 || mine[1].ID != req.ID {
		t.Errorf("Expected new request last in my requests, got %d requests", len(mine))
	}

	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Title != "Request Posted" || sent[0].Recipient != alex.ID {
		t.Fatalf("Unexpected notifications %+v", sent)
	}
	if sent[0].Body != "Your request for Pork has been posted successfully!" {
		t.Errorf("Unexpected body %q", sent[0].Body)
	}
}

func TestPostRequestIDsAreUnique(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	ctx := context.Background()

	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 20; i++ {
		req, err := m.PostRequest(ctx, models.RequestDraft{MeatType: "Beef", Quantity: dec("1")})
		if err != nil {
			t.Fatalf("Post request %d: %v", i, err)
		}
		if seen[req.ID] {
			t.Fatalf("Duplicate request id %s", req.ID)
		}
		seen[req.ID] = true
	}
}

func TestPostRequestValidation(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)

	tests := []struct {
		name  string
		draft models.RequestDraft
	}{
		{"missing meat type", models.RequestDraft{Quantity: dec("5")}},
		{"zero quantity", models.RequestDraft{MeatType: "Beef", Quantity: dec("0")}},
		{"negative budget", models.RequestDraft{MeatType: "Beef", Quantity: dec("5"), Budget: dec("-1")}},
		{"unknown delivery", models.RequestDraft{MeatType: "Beef", Quantity: dec("5"), DeliveryOption: "drone"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.PostRequest(context.Background(), tt.draft)
			if !errors.Is(err, ErrInvalidDraft) {
				t.Errorf("Expected invalid draft error, got: %v", err)
			}
		})
	}

	if got := len(m.OpenRequests()); got != 2 {
		t.Errorf("Rejected drafts must not be stored, got %d open requests", got)
	}
	if got := len(rec.Sent()); got != 0 {
		t.Errorf("Rejected drafts must not notify, got %d notifications", got)
	}
}

func TestRespondToRequestAccumulates(t *testing.T) {
	m, rec, clock := newTestMarketplace(t)
	ctx := context.Background()
	john := userByEmail(t, m, "john@greenpastures.com")
	alex := userByEmail(t, m, "alex@example.com")
	target := m.MyRequests()[0]
	prior := len(target.Responses)

	amounts := []string{"180", "190", "195.25"}
	for _, amount := range amounts {
		clock.Advance(time.Minute)
		if _, err := m.RespondToRequest(ctx, target.ID, john.ID, john.Name, dec(amount), "Can do"); err != nil {
			t.Fatalf("Respond to request: %v", err)
		}
	}

	got, err := m.Request(target.ID)
	if err != nil {
		t.Fatalf("Get request: %v", err)
	}
	if len(got.Responses) != prior+len(amounts) {
		t.Fatalf("Expected %d responses, got %d", prior+len(amounts), len(got.Responses))
	}
	for i, amount := range amounts {
		if !got.Responses[prior+i].OfferAmount.Equal(dec(amount)) {
			t.Errorf("Response %d: expected amount %s, got %s", i, amount, got.Responses[prior+i].OfferAmount)
		}
	}
	if !got.IsOpen {
		t.Error("Responding must not close the request")
	}

	sent := rec.Sent()
	if len(sent) != len(amounts) {
		t.Fatalf("Expected %d notifications, got %d", len(amounts), len(sent))
	}
	if sent[0].Recipient != alex.ID || sent[0].Title != "New Offer on Your Request" {
		t.Errorf("Unexpected notification %+v", sent[0])
	}
	if sent[0].Body != "John Smith has made an offer on your Beef request!" {
		t.Errorf("Unexpected body %q", sent[0].Body)
	}
}

func TestRespondToUnknownRequest(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)

	_, err := m.RespondToRequest(context.Background(), uuid.New(), uuid.New(), "Nobody", dec("1"), "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected not found, got: %v", err)
	}
	if len(rec.Sent()) != 0 {
		t.Error("A missed lookup must not notify")
	}
}

func TestRespondWithoutKnownConsumerDoesNotNotify(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)
	ctx := context.Background()
	orphan := models.Request{ID: uuid.New(), ConsumerID: uuid.New(), MeatType: "Goat", IsOpen: true}

	m.mu.Lock()
	m.requests = append(m.requests, orphan)
	m.mu.Unlock()

	if _, err := m.RespondToRequest(ctx, orphan.ID, uuid.New(), "Farmer", dec("10"), ""); err != nil {
		t.Fatalf("Respond to request: %v", err)
	}
	if len(rec.Sent()) != 0 {
		t.Errorf("Expected no notification, got %+v", rec.Sent())
	}
}

func TestAcceptRequest(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)
	ctx := context.Background()
	mary := userByEmail(t, m, "mary@hillsidefarm.com")
	alex := userByEmail(t, m, "alex@example.com")
	target := m.MyRequests()[0]

	if _, err := m.RespondToRequest(ctx, target.ID, mary.ID, mary.Name, dec("210"), "Grass-fed"); err != nil {
		t.Fatalf("Respond to request: %v", err)
	}
	if m.ConversationExists(alex.ID, mary.ID) {
		t.Fatal("No conversation should exist before acceptance")
	}
	rec.Reset()

	accepted, err := m.AcceptRequest(ctx, target.ID, 0)
	if err != nil {
		t.Fatalf("Accept request: %v", err)
	}
	if accepted.IsOpen {
		t.Error("Accepted request should be closed")
	}

	for _, r := range m.OpenRequests() {
		if r.ID == target.ID {
			t.Error("Accepted request should not be listed as open")
		}
	}
	for _, r := range m.MyRequests() {
		if r.ID == target.ID && r.IsOpen {
			t.Error("My requests should show the request closed")
		}
	}

	if !m.ConversationExists(mary.ID, alex.ID) {
		t.Fatal("Acceptance should start a conversation")
	}
	conv, err := m.ConversationWith(mary.ID)
	if err != nil {
		t.Fatalf("Conversation with farmer: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("Expected one seeded message, got %d", len(conv.Messages))
	}
	msg := conv.Messages[0]
	if msg.SenderID != alex.ID || msg.ReceiverID != mary.ID {
		t.Errorf("Seeded message should go from consumer to farmer, got %s -> %s", msg.SenderID, msg.ReceiverID)
	}
	if msg.Content != "I've accepted your offer on my Beef request. Let's discuss the details." {
		t.Errorf("Unexpected seeded message %q", msg.Content)
	}
	if !conv.LastMessageTimestamp.Equal(msg.Timestamp) {
		t.Error("Last message timestamp should match the seeded message")
	}

	sent := rec.Sent()
	if len(sent) != 1 || sent[0].Recipient != mary.ID || sent[0].Title != "Request Accepted!" {
		t.Fatalf("Unexpected notifications %+v", sent)
	}
}

func TestAcceptRequestReusesExistingConversation(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	ctx := context.Background()
	john := userByEmail(t, m, "john@greenpastures.com")
	alex := userByEmail(t, m, "alex@example.com")
	target := m.MyRequests()[0]

	before, err := m.ConversationWith(john.ID)
	if err != nil {
		t.Fatalf("Seed conversation missing: %v", err)
	}

	if _, err := m.RespondToRequest(ctx, target.ID, john.ID, john.Name, dec("200"), ""); err != nil {
		t.Fatalf("Respond to request: %v", err)
	}
	if _, err := m.AcceptRequest(ctx, target.ID, 0); err != nil {
		t.Fatalf("Accept request: %v", err)
	}

	after, err := m.ConversationWith(john.ID)
	if err != nil {
		t.Fatalf("Conversation with farmer: %v", err)
	}
	if after.ID != before.ID || len(after.Messages) != len(before.Messages) {
		t.Error("Existing conversation should be left untouched")
	}
	if n := countConversationsBetween(m, john.ID, alex.ID); n != 1 {
		t.Errorf("Expected one conversation, got %d", n)
	}
}

func TestAcceptRequestOutOfRange(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)
	ctx := context.Background()
	target := m.MyRequests()[0]

	for _, idx := range []int{0, -1, 5} {
		_, err := m.AcceptRequest(ctx, target.ID, idx)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Index %d: expected out of range, got: %v", idx, err)
		}
	}

	got, _ := m.Request(target.ID)
	if !got.IsOpen {
		t.Error("Request must stay open after a failed accept")
	}
	if len(rec.Sent()) != 0 {
		t.Error("Failed accept must not notify")
	}

	if _, err := m.AcceptRequest(ctx, uuid.New(), 0); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("Expected request not found, got: %v", err)
	}
}

func TestAcceptRequestTwice(t *testing.T) {
	m, rec, _ := newTestMarketplace(t)
	ctx := context.Background()
	mary := userByEmail(t, m, "mary@hillsidefarm.com")
	alex := userByEmail(t, m, "alex@example.com")
	target := m.MyRequests()[0]

	if _, err := m.RespondToRequest(ctx, target.ID, mary.ID, mary.Name, dec("200"), ""); err != nil {
		t.Fatalf("Respond to request: %v", err)
	}
	if _, err := m.AcceptRequest(ctx, target.ID, 0); err != nil {
		t.Fatalf("First accept: %v", err)
	}
	rec.Reset()

	_, err := m.AcceptRequest(ctx, target.ID, 0)
	if err != ErrRequestClosed {
		t.Errorf("Expected request closed, got: %v", err)
	}
	if len(rec.Sent()) != 0 {
		t.Error("Repeated accept must not notify")
	}
	if n := countConversationsBetween(m, mary.ID, alex.ID); n != 1 {
		t.Errorf("Expected one conversation, got %d", n)
	}

	if _, err := m.RespondToRequest(ctx, target.ID, mary.ID, mary.Name, dec("1"), ""); err != ErrRequestClosed {
		t.Errorf("Expected offers on a closed request to be rejected, got: %v", err)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	m, _, _ := newTestMarketplace(t)
	ctx := context.Background()
	john := userByEmail(t, m, "john@greenpastures.com")
	target := m.MyRequests()[0]

	if _, err := m.RespondToRequest(ctx, target.ID, john.ID, john.Name, dec("200"), "original"); err != nil {
		t.Fatalf("Respond to request: %v", err)
	}

	got, _ := m.Request(target.ID)
	got.IsOpen = false
	got.Responses[0].Message = "tampered"
	got.Coordinates.Latitude = 0

	again, _ := m.Request(target.ID)
	if !again.IsOpen {
		t.Error("Mutating a returned request must not close the stored one")
	}
	if again.Responses[0].Message != "original" {
		t.Error("Mutating returned responses must not change stored ones")
	}
	if again.Coordinates.Latitude == 0 {
		t.Error("Mutating returned coordinates must not change stored ones")
	}
}
