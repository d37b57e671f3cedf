package catalog

import (
	"context"

	"github.com/oscillatelabsllc/argoquery/internal/filter"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Repository is the measurement store contract.
type Repository interface {
	UpsertProfiles(ctx context.Context, profiles []models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, limit int) ([]models.Profile, error)
	AllProfiles(ctx context.Context) ([]models.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	Execute(ctx context.Context, sq filter.StoreQuery) (models.SearchResult, error)
	Stats(ctx context.Context) (*models.StoreStats, error)
	Ping(ctx context.Context) error
}

// VectorIndex is the similarity index contract.
type VectorIndex interface {
	Index(ctx context.Context, profiles []models.Profile) error
	Remove(ids ...string)
	Search(ctx context.Context, text string, k int) ([]models.ScoredProfile, error)
	Load(ctx context.Context) (int, error)
	Len() int
	Version() string
}
