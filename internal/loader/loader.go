// Package loader supplies the marketplace with its initial data set.
//
// A Source produces a Snapshot of users, farms and requests. LoadOrSeed
// treats the three collections as one group: if the source fails or leaves
// any of them empty, the whole group is replaced by the built-in seed data.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/safar/localmeat/internal/models"
)

// ErrLoadFailure marks every error produced while reading a source.
var ErrLoadFailure = errors.New("load failure")

// Collection names, also used as resource names by DirSource.
const (
	CollectionUsers    = "users"
	CollectionFarms    = "farms"
	CollectionRequests = "requests"
)

type Snapshot struct {
	Users         []models.User
	Farms         []models.Farm
	Requests      []models.Request
	Conversations []models.Conversation
}

// Complete reports whether none of the three primary collections is empty.
func (s *Snapshot) Complete() bool {
	return s != nil && len(s.Users) > 0 && len(s.Farms) > 0 && len(s.Requests) > 0
}

type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// LoadOrSeed reads src and falls back to Seed(now) when src is nil, fails,
// or yields an incomplete snapshot. The boolean result is true when the seed
// data was installed.
func LoadOrSeed(ctx context.Context, src Source, now time.Time, logger *slog.Logger) (*Snapshot, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		return Seed(now), true
	}

	snap, err := src.Load(ctx)
	if err != nil {
		logger.Warn("bulk load failed, using seed data", "error", err)
		return Seed(now), true
	}
	if !snap.Complete() {
		logger.Warn("bulk load incomplete, using seed data",
			"users", len(snap.Users),
			"farms", len(snap.Farms),
			"requests", len(snap.Requests),
		)
		return Seed(now), true
	}

	logger.Info("bulk load complete",
		"users", len(snap.Users),
		"farms", len(snap.Farms),
		"requests", len(snap.Requests),
	)
	return snap, false
}

func loadErr(collection string, err error) error {
	if errors.Is(err, ErrLoadFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadFailure, collection, err)
}

// validate checks the invariants a decoder cannot express.
func validate(snap *Snapshot) error {
	for i, u := range snap.Users {
		if u.ID == uuid.Nil {
			return loadErr(CollectionUsers, fmt.Errorf("record %d: missing id", i))
		}
		if !u.Role.Valid() {
			return loadErr(CollectionUsers, fmt.Errorf("record %d: invalid role %q", i, u.Role))
		}
	}
	for i, f := range snap.Farms {
		if f.ID == uuid.Nil || f.OwnerID == uuid.Nil {
			return loadErr(CollectionFarms, fmt.Errorf("record %d: missing id or owner id", i))
		}
		for j := range f.Offerings {
			if f.Offerings[j].ID == uuid.Nil {
				snap.Farms[i].Offerings[j].ID = uuid.New()
			}
		}
	}
	for i, r := range snap.Requests {
		if r.ID == uuid.Nil || r.ConsumerID == uuid.Nil {
			return loadErr(CollectionRequests, fmt.Errorf("record %d: missing id or consumer id", i))
		}
		if !r.DeliveryOption.Valid() {
			return loadErr(CollectionRequests, fmt.Errorf("record %d: invalid delivery option %q", i, r.DeliveryOption))
		}
		if r.Responses == nil {
			snap.Requests[i].Responses = []models.RequestResponse{}
		}
	}
	return nil
}
