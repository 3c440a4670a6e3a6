package storage

import (
	"context"
	"errors"

	"github.com/example/shelter-matching/internal/models"
)

var ErrNotFound = errors.New("not found")

// ShelterStore is the shelter candidate provider. ListShelters returns the full
// current set, unfiltered, in a stable order.
type ShelterStore interface {
	ListShelters(ctx context.Context) ([]models.ShelterCandidate, error)
	GetShelter(ctx context.Context, id string) (models.ShelterCandidate, error)
	UpsertShelter(ctx context.Context, s models.ShelterCandidate) error
}

// ProfileStore keeps the latest intake answers per user.
type ProfileStore interface {
	SaveProfile(ctx context.Context, userID string, p models.UserProfile) error
	LoadProfile(ctx context.Context, userID string) (models.UserProfile, error)
}
