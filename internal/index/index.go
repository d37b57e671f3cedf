// Package index is an in-process vector similarity index over profile summaries.
//
// Searches read an immutable snapshot; Index builds a new snapshot under a single
// writer lock and swaps it in, so indexing never blocks concurrent searches.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oscillatelabsllc/argoquery/internal/embedding"
	"github.com/oscillatelabsllc/argoquery/internal/metrics"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// RecordStore persists embedding records across restarts
type RecordStore interface {
	SaveEmbeddingRecords(ctx context.Context, records []models.EmbeddingRecord) error
	LoadEmbeddingRecords(ctx context.Context) ([]models.EmbeddingRecord, error)
	ProfilesByID(ctx context.Context, ids []string) (map[string]models.Profile, error)
}

type entry struct {
	record  models.EmbeddingRecord
	profile models.Profile
	norm    float64
}

type snapshot struct {
	version string
	dims    int
	entries []entry
	byID    map[string]int
}

// Index maps profile ids to embedded summaries
type Index struct {
	provider embedding.Provider
	store    RecordStore
	logger   *zap.Logger
	workers  int
	now      func() time.Time

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// Option configures an Index
type Option func(*Index)

// WithRecordStore persists records on every Index call and enables Load
func WithRecordStore(s RecordStore) Option {
	return func(ix *Index) { ix.store = s }
}

// WithLogger sets the index logger
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// WithConcurrency bounds parallel embedding calls during Index
func WithConcurrency(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithClock injects the IndexedAt time source
func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

// New creates an empty index bound to one embedding provider
func New(provider embedding.Provider, opts ...Option) *Index {
	ix := &Index{
		provider: provider,
		logger:   zap.NewNop(),
		workers:  4,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.snap.Store(&snapshot{version: provider.Version(), byID: map[string]int{}})
	return ix
}

// Len returns the number of indexed profiles
func (ix *Index) Len() int {
	return len(ix.snap.Load().entries)
}

// Version returns the embedding version the index was built with
func (ix *Index) Version() string {
	return ix.snap.Load().version
}

// Index summarizes, embeds and stores profiles. Re-indexing an id replaces its record.
func (ix *Index) Index(ctx context.Context, profiles []models.Profile) error {
	if len(profiles) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// last occurrence of an id wins
	pos := make(map[string]int, len(profiles))
	unique := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			return fmt.Errorf("profile without id: %w", models.ErrInvalidArgument)
		}
		if i, ok := pos[p.ID]; ok {
			unique[i] = p
			continue
		}
		pos[p.ID] = len(unique)
		unique = append(unique, p)
	}

	version := ix.provider.Version()
	indexedAt := ix.now()
	fresh := make([]entry, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, p := range unique {
		g.Go(func() error {
			summary, tags := Summarize(p)
			vec, err := ix.provider.Embed(gctx, summary)
			if err != nil {
				return embedFailure(fmt.Sprintf("profile %s", p.ID), err)
			}
			fresh[i] = entry{
				record: models.EmbeddingRecord{
					ProfileID:    p.ID,
					Summary:      summary,
					Vector:       vec,
					ModelVersion: version,
					Tags:         tags,
					CollectedAt:  p.CollectedAt,
					IndexedAt:    indexedAt,
				},
				profile: p,
				norm:    norm(vec),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	old := ix.snap.Load()
	dims := old.dims
	if old.version != version && len(old.entries) > 0 {
		return fmt.Errorf("index built with %s, provider is %s: %w", old.version, version, models.ErrIncompatibleIndex)
	}
	for _, e := range fresh {
		if dims == 0 {
			dims = len(e.record.Vector)
		}
		if len(e.record.Vector) != dims {
			return fmt.Errorf("vector for %s has %d dimensions, index has %d: %w",
				e.record.ProfileID, len(e.record.Vector), dims, models.ErrIncompatibleIndex)
		}
	}

	if ix.store != nil {
		records := make([]models.EmbeddingRecord, len(fresh))
		for i, e := range fresh {
			records[i] = e.record
		}
		if err := ix.store.SaveEmbeddingRecords(ctx, records); err != nil {
			return fmt.Errorf("failed to persist embedding records: %w", err)
		}
	}

	ix.swap(old.merge(version, dims, fresh))
	ix.logger.Info("indexed profiles", zap.Int("count", len(fresh)), zap.Int("total", ix.Len()), zap.String("version", version))
	return nil
}

// Remove drops profiles from the in-memory index
func (ix *Index) Remove(ids ...string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	old := ix.snap.Load()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	next := &snapshot{version: old.version, dims: old.dims, byID: make(map[string]int, len(old.entries))}
	for _, e := range old.entries {
		if drop[e.record.ProfileID] {
			continue
		}
		next.byID[e.record.ProfileID] = len(next.entries)
		next.entries = append(next.entries, e)
	}
	if len(next.entries) == 0 {
		next.dims = 0
	}
	ix.swap(next)
}

// Load restores persisted records. Records embedded with a different model version are
// rejected with ErrIncompatibleIndex and the index is left unchanged.
func (ix *Index) Load(ctx context.Context) (int, error) {
	if ix.store == nil {
		return 0, nil
	}

	records, err := ix.store.LoadEmbeddingRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load embedding records: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	version := ix.provider.Version()
	stale := 0
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ModelVersion != version {
			stale++
		}
		ids = append(ids, r.ProfileID)
	}
	if stale > 0 {
		return 0, fmt.Errorf("%d of %d persisted records were embedded with another model (want %s): %w",
			stale, len(records), version, models.ErrIncompatibleIndex)
	}

	profiles, err := ix.store.ProfilesByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load indexed profiles: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	fresh := make([]entry, 0, len(records))
	dims := 0
	for _, r := range records {
		p, ok := profiles[r.ProfileID]
		if !ok {
			continue
		}
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) != dims {
			return 0, fmt.Errorf("record %s has %d dimensions, expected %d: %w", r.ProfileID, len(r.Vector), dims, models.ErrIncompatibleIndex)
		}
		fresh = append(fresh, entry{record: r, profile: p, norm: norm(r.Vector)})
	}

	ix.swap((&snapshot{version: version, byID: map[string]int{}}).merge(version, dims, fresh))
	ix.logger.Info("loaded embedding records", zap.Int("count", len(fresh)), zap.String("version", version))
	return len(fresh), nil
}

// Search embeds the query text and returns the k most similar profiles. Ties in
// similarity go to the most recently collected profile.
func (ix *Index) Search(ctx context.Context, text string, k int) ([]models.ScoredProfile, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d: %w", k, models.ErrInvalidArgument)
	}

	snap := ix.snap.Load()
	if len(snap.entries) == 0 {
		return []models.ScoredProfile{}, nil
	}
	if v := ix.provider.Version(); v != snap.version {
		return nil, fmt.Errorf("index built with %s, provider is %s: %w", snap.version, v, models.ErrIncompatibleIndex)
	}

	query, err := ix.provider.Embed(ctx, text)
	if err != nil {
		return nil, embedFailure("query", err)
	}
	if len(query) != snap.dims {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d: %w", len(query), snap.dims, models.ErrIncompatibleIndex)
	}
	qnorm := norm(query)

	type scored struct {
		idx int
		sim float64
	}
	scores := make([]scored, len(snap.entries))
	for i, e := range snap.entries {
		scores[i] = scored{idx: i, sim: cosine(query, qnorm, e.record.Vector, e.norm)}
	}
	sort.Slice(scores, func(a, b int) bool {
		ea, eb := snap.entries[scores[a].idx], snap.entries[scores[b].idx]
		if scores[a].sim != scores[b].sim {
			return scores[a].sim > scores[b].sim
		}
		if !ea.record.CollectedAt.Equal(eb.record.CollectedAt) {
			return ea.record.CollectedAt.After(eb.record.CollectedAt)
		}
		return ea.record.ProfileID < eb.record.ProfileID
	})

	if k > len(scores) {
		k = len(scores)
	}
	terms := termSet(text)
	results := make([]models.ScoredProfile, 0, k)
	for _, s := range scores[:k] {
		e := snap.entries[s.idx]
		results = append(results, models.ScoredProfile{
			Profile:     e.profile,
			Similarity:  s.sim,
			Explanation: explain(terms, e, s.sim),
			Summary:     e.record.Summary,
		})
	}
	return results, nil
}

func (ix *Index) swap(next *snapshot) {
	ix.snap.Store(next)
	metrics.IndexSize.Set(float64(len(next.entries)))
}

// merge returns a copy of s with fresh entries replacing or appended by id
func (s *snapshot) merge(version string, dims int, fresh []entry) *snapshot {
	next := &snapshot{
		version: version,
		dims:    dims,
		entries: make([]entry, len(s.entries), len(s.entries)+len(fresh)),
		byID:    make(map[string]int, len(s.entries)+len(fresh)),
	}
	copy(next.entries, s.entries)
	for id, i := range s.byID {
		next.byID[id] = i
	}
	for _, e := range fresh {
		if i, ok := next.byID[e.record.ProfileID]; ok {
			next.entries[i] = e
			continue
		}
		next.byID[e.record.ProfileID] = len(next.entries)
		next.entries = append(next.entries, e)
	}
	return next
}

func embedFailure(what string, err error) error {
	if errors.Is(err, models.ErrEmbeddingUnavailable) || errors.Is(err, models.ErrInvalidArgument) {
		return fmt.Errorf("failed to embed %s: %w", what, err)
	}
	return fmt.Errorf("failed to embed %s: %w: %w", what, models.ErrEmbeddingUnavailable, err)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}) {
		terms[f] = true
	}
	return terms
}

// explain names the tags the query shares with a hit, plus its headline values
func explain(terms map[string]bool, e entry, sim float64) string {
	var shared []string
	for _, tag := range e.record.Tags.List() {
		if strings.HasPrefix(tag, "outside") {
			continue
		}
		for _, word := range strings.Fields(tag) {
			if len(word) > 5 && terms[word] {
				shared = append(shared, tag)
				break
			}
		}
	}

	p := e.profile
	detail := fmt.Sprintf("%s profile at %s, %.1f°C, %.2f PSU, %s",
		e.record.Tags.Season, position(p.Latitude, p.Longitude), p.SurfaceTemp, p.SurfaceSalinity, e.record.Tags.ThermalRegime)
	if len(shared) == 0 {
		return fmt.Sprintf("Similarity %.2f from the overall profile description; %s.", sim, detail)
	}
	return fmt.Sprintf("Similarity %.2f; matches %s; %s.", sim, strings.Join(shared, ", "), detail)
}
