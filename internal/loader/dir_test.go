package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/safar/localmeat/internal/models"
)

const usersJSON = `[
  // seeded by hand
  {"id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a01", "email": "ann@farm.com", "name": "Ann", "role": "Farmer", "location": "Davis, CA"},
  {"id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a02", "email": "bo@example.com", "name": "Bo", "role": "consumer", "location": "Sacramento, CA"},
]`

const farmsYAML = `
- id: 1b0b8a3e-1d0c-4c52-8d8f-0f4f8e9b1c01
  owner_id: 7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a01
  name: Ann's Acres
  location: Davis, CA
  coordinates:
    latitude: 38.5449
    longitude: -121.7405
  offerings:
    - id: 2c0b8a3e-1d0c-4c52-8d8f-0f4f8e9b1c01
      type: Lamb
      price: 11.25
      unit: per pound
      available: true
  rating: 4.9
  review_count: 12
  delivery_available: false
  pickup_available: true
`

const requestsJSON = `[
  {
    "id": "3d0b8a3e-1d0c-4c52-8d8f-0f4f8e9b1c01",
    "consumer_id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a02",
    "consumer_name": "Bo",
    "meat_type": "Lamb",
    "quantity": "12",
    "unit": "pounds",
    "budget": 140,
    "delivery_option": "Pickup",
    "preferred_date": "2025-05-01T00:00:00Z",
    "location": "Sacramento, CA",
    "posted_at": "2025-04-09T12:00:00Z",
    "is_open": true
  }
]`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Write %s: %v", name, err)
	}
}

func TestDirSourceLoadsMixedFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", usersJSON)
	writeFile(t, dir, "farms.yaml", farmsYAML)
	writeFile(t, dir, "requests.json", requestsJSON)

	snap, err := DirSource{Dir: dir}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(snap.Users) != 2 || len(snap.Farms) != 1 || len(snap.Requests) != 1 {
		t.Fatalf("Unexpected sizes: %d users, %d farms, %d requests", len(snap.Users), len(snap.Farms), len(snap.Requests))
	}
	if snap.Users[0].Role != models.RoleFarmer {
		t.Errorf("Expected role to be normalized to farmer, got %q", snap.Users[0].Role)
	}

	farm := snap.Farms[0]
	if farm.Coordinates == nil || farm.Coordinates.Latitude != 38.5449 {
		t.Errorf("Unexpected coordinates %+v", farm.Coordinates)
	}
	if len(farm.Offerings) != 1 || farm.Offerings[0].Price.String() != "11.25" {
		t.Errorf("Unexpected offerings %+v", farm.Offerings)
	}

	req := snap.Requests[0]
	if req.DeliveryOption != models.DeliveryPickup {
		t.Errorf("Expected pickup, got %q", req.DeliveryOption)
	}
	if req.Quantity.String() != "12" || req.Budget.String() != "140" {
		t.Errorf("Unexpected quantity %s and budget %s", req.Quantity, req.Budget)
	}
	if req.Responses == nil {
		t.Error("Responses should be an empty list, not nil")
	}
	if want := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC); !req.PreferredDate.Equal(want) {
		t.Errorf("Expected preferred date %s, got %s", want, req.PreferredDate)
	}
}

func TestDirSourceFailures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"missing requests", map[string]string{
			"users.json": usersJSON, "farms.yaml": farmsYAML,
		}},
		{"malformed requests", map[string]string{
			"users.json": usersJSON, "farms.yaml": farmsYAML, "requests.json": `[{"id": 42}]`,
		}},
		{"unknown field", map[string]string{
			"users.json": `[{"id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a01", "role": "farmer", "nickname": "x"}]`,
			"farms.yaml": farmsYAML, "requests.json": requestsJSON,
		}},
		{"unknown role", map[string]string{
			"users.json": `[{"id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a01", "role": "admin"}]`,
			"farms.yaml": farmsYAML, "requests.json": requestsJSON,
		}},
		{"missing role", map[string]string{
			"users.json": `[{"id": "7f1c1f0e-5a4e-4a43-9d8e-2d7b0c2f9a01", "email": "a@b.c"}]`,
			"farms.yaml": farmsYAML, "requests.json": requestsJSON,
		}},
		{"broken yaml", map[string]string{
			"users.json": usersJSON, "farms.yml": "- id: [unterminated", "requests.json": requestsJSON,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := DirSource{Dir: dir}.Load(context.Background())
			if !errors.Is(err, ErrLoadFailure) {
				t.Errorf("Expected load failure, got: %v", err)
			}
		})
	}
}

func TestLoadOrSeedIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", usersJSON)
	writeFile(t, dir, "farms.yaml", farmsYAML)
	writeFile(t, dir, "requests.json", `{"not": "a list"}`)

	snap, seeded := LoadOrSeed(context.Background(), DirSource{Dir: dir}, time.Now(), nil)
	if !seeded {
		t.Fatal("Expected seed fallback")
	}

	for _, u := range snap.Users {
		if u.Email == "ann@farm.com" || u.Email == "bo@example.com" {
			t.Errorf("Loaded user %s leaked into seeded data", u.Email)
		}
	}
	if len(snap.Users) != 4 || len(snap.Farms) != 2 || len(snap.Requests) != 2 {
		t.Errorf("Expected the full seed data set, got %d users, %d farms, %d requests",
			len(snap.Users), len(snap.Farms), len(snap.Requests))
	}
}

func TestLoadOrSeedRejectsEmptyCollection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", usersJSON)
	writeFile(t, dir, "farms.yaml", farmsYAML)
	writeFile(t, dir, "requests.json", `[]`)

	_, seeded := LoadOrSeed(context.Background(), DirSource{Dir: dir}, time.Now(), nil)
	if !seeded {
		t.Error("An empty collection should trigger the seed fallback")
	}
}

func TestLoadOrSeedUsesCompleteSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.json", usersJSON)
	writeFile(t, dir, "farms.yaml", farmsYAML)
	writeFile(t, dir, "requests.json", requestsJSON)

	snap, seeded := LoadOrSeed(context.Background(), DirSource{Dir: dir}, time.Now(), nil)
	if seeded {
		t.Fatal("Expected the loaded data to be used")
	}
	if len(snap.Conversations) != 0 {
		t.Errorf("Loaded data should start without conversations, got %d", len(snap.Conversations))
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 4, 9, 12, 0, 0, 0, time.UTC)
	seed := Seed(now)

	if err := WriteJSON(dir, seed); err != nil {
		t.Fatalf("Write JSON: %v", err)
	}

	snap, err := DirSource{Dir: dir}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Users) != len(seed.Users) || len(snap.Farms) != len(seed.Farms) || len(snap.Requests) != len(seed.Requests) {
		t.Fatal("Round trip changed collection sizes")
	}
	if snap.Farms[0].ID != seed.Farms[0].ID || !snap.Farms[0].Offerings[0].Price.Equal(seed.Farms[0].Offerings[0].Price) {
		t.Error("Round trip changed farm data")
	}
	if !snap.Requests[1].PreferredDate.Equal(seed.Requests[1].PreferredDate) {
		t.Error("Round trip changed request dates")
	}
}

func TestSeed(t *testing.T) {
	snap := Seed(time.Now())

	if !snap.Complete() {
		t.Fatal("Seed data should be complete")
	}
	if len(snap.Conversations) != 1 || len(snap.Conversations[0].Messages) != 2 {
		t.Error("Seed should carry one conversation with two messages")
	}
	for _, r := range snap.Requests {
		if !r.IsOpen {
			t.Errorf("Seed request %s should be open", r.MeatType)
		}
	}
}

func TestBundledResources(t *testing.T) {
	snap, seeded := LoadOrSeed(context.Background(), DirSource{Dir: "../../Resources"}, time.Now(), nil)
	if seeded {
		t.Fatal("Bundled resources should load without falling back to seed data")
	}
	if len(snap.Users) != 4 || len(snap.Farms) != 2 || len(snap.Requests) != 2 {
		t.Errorf("Unexpected sizes: %d users, %d farms, %d requests", len(snap.Users), len(snap.Farms), len(snap.Requests))
	}
	if got := len(snap.Requests[1].Responses); got != 1 {
		t.Errorf("Expected one bundled offer, got %d", got)
	}
}
