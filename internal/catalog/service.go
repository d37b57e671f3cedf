// Package catalog keeps the measurement store and the vector index in step
// for ingest, lookup and retrieval.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/filter"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// MaxIngestBatch caps the profiles accepted per ingest call.
const MaxIngestBatch = 1000

// Status reports store and index health for dashboards.
type Status struct {
	Store          *models.StoreStats `json:"store"`
	IndexedRecords int                `json:"indexed_records"`
	IndexVersion   string             `json:"index_version,omitempty"`
}

// Service handles profile CRUD with automatic indexing.
type Service struct {
	repo   Repository
	index  VectorIndex
	logger *zap.Logger
}

// New creates a catalog service. index may be nil when semantic search is disabled.
func New(repo Repository, index VectorIndex, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, index: index, logger: logger}
}

// Ingest stores profiles and indexes them. Profiles without an id are assigned one.
// Stored profiles stay stored when indexing fails; Reindex repairs the index later.
func (s *Service) Ingest(ctx context.Context, profiles []models.Profile) ([]string, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles given", models.ErrInvalidArgument)
	}
	if len(profiles) > MaxIngestBatch {
		return nil, fmt.Errorf("%w: at most %d profiles per batch, got %d",
			models.ErrInvalidArgument, MaxIngestBatch, len(profiles))
	}

	ids := make([]string, len(profiles))
	for i := range profiles {
		if profiles[i].ID == "" {
			profiles[i].ID = uuid.New().String()
		}
		ids[i] = profiles[i].ID
	}

	if err := s.repo.UpsertProfiles(ctx, profiles); err != nil {
		return nil, fmt.Errorf("store profiles: %w", err)
	}
	if s.index == nil {
		return ids, nil
	}
	if err := s.index.Index(ctx, profiles); err != nil {
		s.logger.Warn("profiles stored but not indexed", zap.Int("count", len(profiles)), zap.Error(err))
		return ids, fmt.Errorf("index profiles: %w", err)
	}
	return ids, nil
}

// Get returns one profile.
func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	return s.repo.GetProfile(ctx, id)
}

// List returns the newest profiles, clamping limit to 1..MaxLimit.
func (s *Service) List(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = intent.DefaultLimit
	}
	limit = min(limit, intent.MaxLimit)
	return s.repo.ListProfiles(ctx, limit)
}

// Delete removes a profile from the store and the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		s.index.Remove(id)
	}
	return nil
}

// Query compiles an intent and runs it against the store.
func (s *Service) Query(ctx context.Context, q intent.QueryIntent) (filter.StoreQuery, models.SearchResult, error) {
	sq, err := filter.Compile(q)
	if err != nil {
		return filter.StoreQuery{}, models.SearchResult{}, err
	}
	res, err := s.repo.Execute(ctx, sq)
	if err != nil {
		return sq, models.SearchResult{}, fmt.Errorf("execute query: %w", err)
	}
	return sq, res, nil
}

// Retrieve runs a semantic search.
func (s *Service) Retrieve(ctx context.Context, text string, k int) ([]models.ScoredProfile, error) {
	if s.index == nil {
		return nil, fmt.Errorf("%w: semantic search is not configured", models.ErrEmbeddingUnavailable)
	}
	return s.index.Search(ctx, text, k)
}

// Status reports table statistics and the index size.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	out := Status{Store: st}
	if s.index != nil {
		out.IndexedRecords = s.index.Len()
		out.IndexVersion = s.index.Version()
	}
	return out, nil
}

// Ready checks the store connection.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Warm restores persisted embedding records, rebuilding from the store when
// they were produced by another embedding model or when rebuild is forced.
func (s *Service) Warm(ctx context.Context, rebuild bool) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	if !rebuild {
		n, err := s.index.Load(ctx)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, models.ErrIncompatibleIndex) {
			return 0, fmt.Errorf("load index: %w", err)
		}
		s.logger.Info("persisted embeddings use another model, rebuilding", zap.Error(err))
	}
	return s.Reindex(ctx)
}

// Reindex embeds every stored profile again.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	profiles, err := s.repo.AllProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}
	for start := 0; start < len(profiles); start += MaxIngestBatch {
		end := min(start+MaxIngestBatch, len(profiles))
		if err := s.index.Index(ctx, profiles[start:end]); err != nil {
			return start, fmt.Errorf("index profiles: %w", err)
		}
	}
	s.logger.Info("index rebuilt", zap.Int("profiles", len(profiles)), zap.String("version", s.index.Version()))
	return len(profiles), nil
}
