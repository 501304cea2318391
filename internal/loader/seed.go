package loader

import (
	"time"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
	"github.com/shopspring/decimal"
)

// Seed returns the built-in data set: two farmers with a farm each, two
// consumers with one open request each, and a conversation between the
// first farmer and the first consumer. Ids are freshly generated on every call.
func Seed(now time.Time) *Snapshot {
	farmer1 := models.User{
		ID:       uuid.New(),
		Email:    "john@greenpastures.com",
		Name:     "John Smith",
		Role:     models.RoleFarmer,
		Location: "Greenville, CA",
		Phone:    "555-123-4567",
		Bio:      "Third-generation family farm raising grass-fed beef and pastured pork since 1952.",
		Avatar:   "person.circle",
	}
	farmer2 := models.User{
		ID:       uuid.New(),
		Email:    "mary@hillsidefarm.com",
		Name:     "Mary Johnson",
		Role:     models.RoleFarmer,
		Location: "Riverview, CA",
		Phone:    "555-987-6543",
		Bio:      "Sustainable farm specializing in heritage breed chickens and turkey.",
		Avatar:   "person.circle",
	}
	consumer1 := models.User{
		ID:       uuid.New(),
		Email:    "alex@example.com",
		Name:     "Alex Rodriguez",
		Role:     models.RoleConsumer,
		Location: "San Francisco, CA",
		Phone:    "555-234-5678",
		Bio:      "Food enthusiast looking for high-quality, locally raised meat.",
		Avatar:   "person.circle",
	}
	consumer2 := models.User{
		ID:       uuid.New(),
		Email:    "sarah@example.com",
		Name:     "Sarah Chen",
		Role:     models.RoleConsumer,
		Location: "Oakland, CA",
		Phone:    "555-876-5432",
		Bio:      "Health-conscious parent looking to buy in bulk for my family.",
		Avatar:   "person.circle",
	}

	farms := []models.Farm{
		{
			ID:          uuid.New(),
			OwnerID:     farmer1.ID,
			Name:        "Green Pastures Farm",
			Location:    "Greenville, CA",
			Coordinates: &models.Coordinates{Latitude: 37.773972, Longitude: -122.431297},
			Description: "Family-owned farm focused on sustainable practices. We raise grass-fed beef, pastured pork, and free-range chickens without antibiotics or hormones.",
			Offerings: []models.MeatOffering{
				offering("Beef", "8.99", "Grass-fed and finished beef, dry-aged for 21 days."),
				offering("Pork", "7.50", "Heritage breed pork raised on pasture and non-GMO feed."),
			},
			Rating:            4.8,
			ReviewCount:       24,
			DeliveryAvailable: true,
			PickupAvailable:   true,
			Image:             "farm",
		},
		{
			ID:          uuid.New(),
			OwnerID:     farmer2.ID,
			Name:        "Hillside Poultry Farm",
			Location:    "Riverview, CA",
			Coordinates: &models.Coordinates{Latitude: 37.733972, Longitude: -122.391297},
			Description: "Specializing in pasture-raised poultry. Our birds are moved to fresh grass daily and have access to natural forage plus organic feed.",
			Offerings: []models.MeatOffering{
				offering("Chicken", "6.99", "Pasture-raised broilers, processed on farm."),
				offering("Turkey", "9.50", "Heritage breed turkeys, available seasonally."),
			},
			Rating:            4.6,
			ReviewCount:       18,
			DeliveryAvailable: false,
			PickupAvailable:   true,
			Image:             "farm",
		},
	}

	requests := []models.Request{
		{
			ID:             uuid.New(),
			ConsumerID:     consumer1.ID,
			ConsumerName:   consumer1.Name,
			MeatType:       "Beef",
			Quantity:       decimal.NewFromInt(25),
			Unit:           "pounds",
			Budget:         decimal.NewFromInt(200),
			DeliveryOption: models.DeliveryEither,
			PreferredDate:  now.AddDate(0, 0, 10),
			Location:       "San Francisco, CA",
			Coordinates:    &models.Coordinates{Latitude: 37.7749, Longitude: -122.4194},
			AdditionalInfo: "Looking for a mix of steaks, ground beef, and roasts.",
			PostedAt:       now,
			IsOpen:         true,
			Responses:      []models.RequestResponse{},
		},
		{
			ID:             uuid.New(),
			ConsumerID:     consumer2.ID,
			ConsumerName:   consumer2.Name,
			MeatType:       "Chicken",
			Quantity:       decimal.NewFromInt(15),
			Unit:           "pounds",
			Budget:         decimal.NewFromInt(100),
			DeliveryOption: models.DeliveryPickup,
			PreferredDate:  now.AddDate(0, 0, 5),
			Location:       "Oakland, CA",
			Coordinates:    &models.Coordinates{Latitude: 37.8044, Longitude: -122.2711},
			AdditionalInfo: "Prefer whole chickens if possible.",
			PostedAt:       now,
			IsOpen:         true,
			Responses:      []models.RequestResponse{},
		},
	}

	first := now.Add(-24 * time.Hour)
	second := now.Add(-23 * time.Hour)
	conversations := []models.Conversation{
		{
			ID:           uuid.New(),
			Participants: [2]uuid.UUID{farmer1.ID, consumer1.ID},
			Messages: []models.Message{
				{
					ID:         uuid.New(),
					SenderID:   consumer1.ID,
					ReceiverID: farmer1.ID,
					Content:    "Hi, I'm interested in your beef. Do you have any quarter cow packages available?",
					Timestamp:  first,
				},
				{
					ID:         uuid.New(),
					SenderID:   farmer1.ID,
					ReceiverID: consumer1.ID,
					Content:    "Yes, we have quarter cow packages available. They're about 110-125 pounds of meat for $850.",
					Timestamp:  second,
				},
			},
			LastMessageTimestamp: second,
		},
	}

	return &Snapshot{
		Users:         []models.User{farmer1, farmer2, consumer1, consumer2},
		Farms:         farms,
		Requests:      requests,
		Conversations: conversations,
	}
}

func offering(meatType, price, description string) models.MeatOffering {
	return models.MeatOffering{
		ID:          uuid.New(),
		Type:        meatType,
		Price:       decimal.RequireFromString(price),
		Unit:        "per pound",
		Description: description,
		Available:   true,
	}
}
