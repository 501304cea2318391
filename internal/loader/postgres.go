package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/database"
	"github.com/safar/localmeat/internal/models"
)

// PostgresSource reads a snapshot from the tables created by the migrations
// directory. All tables are read in one read-only transaction.
type PostgresSource struct {
	DB *sql.DB
}

func (s PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot

	err := database.WithRetry(ctx, s.DB, database.SnapshotTxOptions(), func(tx *sql.Tx) error {
		next := &Snapshot{}
		var err error

		if next.Users, err = queryUsers(ctx, tx); err != nil {
			return loadErr(CollectionUsers, err)
		}
		if next.Farms, err = queryFarms(ctx, tx); err != nil {
			return loadErr(CollectionFarms, err)
		}
		if next.Requests, err = queryRequests(ctx, tx); err != nil {
			return loadErr(CollectionRequests, err)
		}

		snap = next
		return nil
	})
	if err != nil {
		return nil, loadErr("snapshot", err)
	}

	if err := validate(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func queryUsers(ctx context.Context, tx *sql.Tx) ([]models.User, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, email, name, role, location, phone, bio, avatar
		FROM users
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var role string
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Name,
			&role,
			&user.Location,
			&user.Phone,
			&user.Bio,
			&user.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if err := user.Role.UnmarshalText([]byte(role)); err != nil {
			return nil, fmt.Errorf("user %s: %w", user.ID, err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func queryFarms(ctx context.Context, tx *sql.Tx) ([]models.Farm, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, owner_id, name, location, latitude, longitude, description,
		       rating, review_count, delivery_available, pickup_available, image
		FROM farms
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list farms: %w", err)
	}
	defer rows.Close()

	var farms []models.Farm
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var farm models.Farm
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&farm.ID,
			&farm.OwnerID,
			&farm.Name,
			&farm.Location,
			&lat,
			&lng,
			&farm.Description,
			&farm.Rating,
			&farm.ReviewCount,
			&farm.DeliveryAvailable,
			&farm.PickupAvailable,
			&farm.Image,
		); err != nil {
			return nil, fmt.Errorf("scan farm: %w", err)
		}
		farm.Coordinates = coordinates(lat, lng)
		farm.Offerings = []models.MeatOffering{}
		index[farm.ID] = len(farms)
		farms = append(farms, farm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	offerings, err := tx.QueryContext(ctx, `
		SELECT id, farm_id, type, price, unit, description, available
		FROM meat_offerings
		ORDER BY farm_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer offerings.Close()

	for offerings.Next() {
		var offering models.MeatOffering
		var farmID uuid.UUID
		if err := offerings.Scan(
			&offering.ID,
			&farmID,
			&offering.Type,
			&offering.Price,
			&offering.Unit,
			&offering.Description,
			&offering.Available,
		); err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		i, ok := index[farmID]
		if !ok {
			return nil, fmt.Errorf("offering %s references unknown farm %s", offering.ID, farmID)
		}
		farms[i].Offerings = append(farms[i].Offerings, offering)
	}
	if err := offerings.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return farms, nil
}

func queryRequests(ctx context.Context, tx *sql.Tx) ([]models.Request, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, consumer_id, consumer_name, meat_type, quantity, unit, budget,
		       delivery_option, preferred_date, location, latitude, longitude,
		       additional_info, posted_at, is_open
		FROM requests
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []models.Request
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var req models.Request
		var option string
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&req.ID,
			&req.ConsumerID,
			&req.ConsumerName,
			&req.MeatType,
			&req.Quantity,
			&req.Unit,
			&req.Budget,
			&option,
			&req.PreferredDate,
			&req.Location,
			&lat,
			&lng,
			&req.AdditionalInfo,
			&req.PostedAt,
			&req.IsOpen,
		); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		if err := req.DeliveryOption.UnmarshalText([]byte(option)); err != nil {
			return nil, fmt.Errorf("request %s: %w", req.ID, err)
		}
		req.Coordinates = coordinates(lat, lng)
		req.Responses = []models.RequestResponse{}
		index[req.ID] = len(requests)
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	responses, err := tx.QueryContext(ctx, `
		SELECT id, request_id, farmer_id, farmer_name, offer_amount, message, created_at
		FROM request_responses
		ORDER BY request_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer responses.Close()

	for responses.Next() {
		var resp models.RequestResponse
		var requestID uuid.UUID
		if err := responses.Scan(
			&resp.ID,
			&requestID,
			&resp.FarmerID,
			&resp.FarmerName,
			&resp.OfferAmount,
			&resp.Message,
			&resp.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		i, ok := index[requestID]
		if !ok {
			return nil, fmt.Errorf("response %s references unknown request %s", resp.ID, requestID)
		}
		requests[i].Responses = append(requests[i].Responses, resp)
	}
	if err := responses.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}

func coordinates(lat, lng sql.NullFloat64) *models.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
}

// WritePostgres inserts the users, farms and requests of snap into the
// snapshot tables in one transaction. Existing rows with the same ids make
// the whole write fail.
func WritePostgres(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	opts := database.TxOptions{IsolationLevel: sql.LevelSerializable, MaxRetries: 3}

	return database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		for _, u := range snap.Users {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO users (id, email, name, role, location, phone, bio, avatar)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				u.ID, u.Email, u.Name, string(u.Role), u.Location, u.Phone, u.Bio, u.Avatar,
			); err != nil {
				return fmt.Errorf("insert user %s: %w", u.ID, err)
			}
		}

		for _, f := range snap.Farms {
			lat, lng := nullCoordinates(f.Coordinates)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO farms (id, owner_id, name, location, latitude, longitude, description,
				                   rating, review_count, delivery_available, pickup_available, image)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				f.ID, f.OwnerID, f.Name, f.Location, lat, lng, f.Description,
				f.Rating, f.ReviewCount, f.DeliveryAvailable, f.PickupAvailable, f.Image,
			); err != nil {
				return fmt.Errorf("insert farm %s: %w", f.ID, err)
			}
			for _, o := range f.Offerings {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO meat_offerings (id, farm_id, type, price, unit, description, available)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					o.ID, f.ID, o.Type, o.Price, o.Unit, o.Description, o.Available,
				); err != nil {
					return fmt.Errorf("insert offering %s: %w", o.ID, err)
				}
			}
		}

		for _, r := range snap.Requests {
			lat, lng := nullCoordinates(r.Coordinates)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO requests (id, consumer_id, consumer_name, meat_type, quantity, unit, budget,
				                      delivery_option, preferred_date, location, latitude, longitude,
				                      additional_info, posted_at, is_open)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				r.ID, r.ConsumerID, r.ConsumerName, r.MeatType, r.Quantity, r.Unit, r.Budget,
				string(r.DeliveryOption), r.PreferredDate, r.Location, lat, lng,
				r.AdditionalInfo, r.PostedAt, r.IsOpen,
			); err != nil {
				return fmt.Errorf("insert request %s: %w", r.ID, err)
			}
			for _, resp := range r.Responses {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO request_responses (id, request_id, farmer_id, farmer_name, offer_amount, message, created_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					resp.ID, r.ID, resp.FarmerID, resp.FarmerName, resp.OfferAmount, resp.Message, resp.Timestamp,
				); err != nil {
					return fmt.Errorf("insert response %s: %w", resp.ID, err)
				}
			}
		}
		return nil
	})
}

func nullCoordinates(c *models.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Latitude, Valid: true}, sql.NullFloat64{Float64: c.Longitude, Valid: true}
}

var _ Source = PostgresSource{}
