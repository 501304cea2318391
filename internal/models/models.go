package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleConsumer Role = "consumer"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleConsumer
}

// UnmarshalText accepts role names case-insensitively and rejects anything
// outside the two known roles.
func (r *Role) UnmarshalText(text []byte) error {
	role := Role(strings.ToLower(strings.TrimSpace(string(text))))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", text)
	}
	*r = role
	return nil
}

type DeliveryOption string

const (
	DeliveryPickup   DeliveryOption = "pickup"
	DeliveryDelivery DeliveryOption = "delivery"
	DeliveryEither   DeliveryOption = "either"
)

func (d DeliveryOption) Valid() bool {
	switch d {
	case DeliveryPickup, DeliveryDelivery, DeliveryEither:
		return true
	}
	return false
}

func (d *DeliveryOption) UnmarshalText(text []byte) error {
	option := DeliveryOption(strings.ToLower(strings.TrimSpace(string(text))))
	if !option.Valid() {
		return fmt.Errorf("unknown delivery option %q", text)
	}
	*d = option
	return nil
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Location string    `json:"location"`
	Phone    string    `json:"phone,omitempty"`
	Bio      string    `json:"bio,omitempty"`
	Avatar   string    `json:"avatar,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type MeatOffering struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Unit        string          `json:"unit"`
	Description string          `json:"description,omitempty"`
	Available   bool            `json:"available"`
}

type Farm struct {
	ID                uuid.UUID      `json:"id"`
	OwnerID           uuid.UUID      `json:"owner_id"`
	Name              string         `json:"name"`
	Location          string         `json:"location"`
	Coordinates       *Coordinates   `json:"coordinates,omitempty"`
	Description       string         `json:"description,omitempty"`
	Offerings         []MeatOffering `json:"offerings"`
	Rating            float64        `json:"rating"`
	ReviewCount       int            `json:"review_count"`
	DeliveryAvailable bool           `json:"delivery_available"`
	PickupAvailable   bool           `json:"pickup_available"`
	Image             string         `json:"image,omitempty"`
}

// OffersType reports whether any offering of the farm has exactly the given type.
func (f Farm) OffersType(meatType string) bool {
	for _, o := range f.Offerings {
		if o.Type == meatType {
			return true
		}
	}
	return false
}

type RequestResponse struct {
	ID          uuid.UUID       `json:"id"`
	FarmerID    uuid.UUID       `json:"farmer_id"`
	FarmerName  string          `json:"farmer_name"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	Message     string          `json:"message"`
	Timestamp   time.Time       `json:"timestamp"`
}

type Request struct {
	ID             uuid.UUID         `json:"id"`
	ConsumerID     uuid.UUID         `json:"consumer_id"`
	ConsumerName   string            `json:"consumer_name"`
	MeatType       string            `json:"meat_type"`
	Quantity       decimal.Decimal   `json:"quantity"`
	Unit           string            `json:"unit"`
	Budget         decimal.Decimal   `json:"budget"`
	DeliveryOption DeliveryOption    `json:"delivery_option"`
	PreferredDate  time.Time         `json:"preferred_date"`
	Location       string            `json:"location"`
	Coordinates    *Coordinates      `json:"coordinates,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty"`
	PostedAt       time.Time         `json:"posted_at"`
	IsOpen         bool              `json:"is_open"`
	Responses      []RequestResponse `json:"responses"`
}

// RequestDraft is the caller-supplied part of a request. Identity, owner,
// posting time and lifecycle state are assigned by the store.
type RequestDraft struct {
	MeatType       string          `json:"meat_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	Budget         decimal.Decimal `json:"budget"`
	DeliveryOption DeliveryOption  `json:"delivery_option"`
	PreferredDate  time.Time       `json:"preferred_date"`
	Location       string          `json:"location,omitempty"`
	Coordinates    *Coordinates    `json:"coordinates,omitempty"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`
}

type Conversation struct {
	ID                   uuid.UUID    `json:"id"`
	Participants         [2]uuid.UUID `json:"participants"`
	Messages             []Message    `json:"messages"`
	LastMessageTimestamp time.Time    `json:"last_message_timestamp"`
}

// Involves reports whether the user is one of the two participants.
func (c Conversation) Involves(userID uuid.UUID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Between reports whether the participant pair is exactly {a, b}, in either order.
func (c Conversation) Between(a, b uuid.UUID) bool {
	return (c.Participants[0] == a && c.Participants[1] == b) ||
		(c.Participants[0] == b && c.Participants[1] == a)
}

// Counterpart returns the participant that is not userID.
func (c Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
