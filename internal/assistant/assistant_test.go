package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oscillatelabsllc/argoquery/internal/filter"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
	"github.com/oscillatelabsllc/argoquery/internal/retry"
	"github.com/oscillatelabsllc/argoquery/internal/synth"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	queries []filter.StoreQuery
	// failures is how many leading calls fail with err
	failures int
	err      error
	result   models.SearchResult
	started  chan struct{}
	block    bool
}

func (s *fakeStore) Execute(ctx context.Context, sq filter.StoreQuery) (models.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.queries = append(s.queries, sq)
	call := s.calls
	s.mu.Unlock()

	if s.started != nil && call == 1 {
		close(s.started)
	}
	if s.block {
		<-ctx.Done()
		return models.SearchResult{}, fmt.Errorf("failed to execute: %w: %w", models.ErrStoreUnavailable, ctx.Err())
	}
	if call <= s.failures {
		return models.SearchResult{}, s.err
	}
	return s.result, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeIndex struct {
	hits []models.ScoredProfile
	err  error
	size int
	// waitFor, when set, must close before Search returns
	waitFor <-chan struct{}
}

func (ix *fakeIndex) Len() int { return ix.size }

func (ix *fakeIndex) Search(ctx context.Context, text string, k int) ([]models.ScoredProfile, error) {
	if ix.waitFor != nil {
		select {
		case <-ix.waitFor:
		case <-time.After(2 * time.Second):
			return nil, errors.New("store query was not issued concurrently")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ix.err != nil {
		return nil, ix.err
	}
	if len(ix.hits) > k {
		return ix.hits[:k], nil
	}
	return ix.hits, nil
}

func profile(id string, temp float64) models.Profile {
	return models.Profile{
		ID:              id,
		CollectedAt:     time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
		Latitude:        15,
		Longitude:       65,
		SurfaceTemp:     temp,
		SurfaceSalinity: 36,
		QC:              models.QCFlags{Temperature: "A"},
	}
}

func fastRetry() retry.Opts {
	return retry.Opts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func newTestAssistant(store Store, opts ...Option) *Assistant {
	base := []Option{
		WithExtractor(intent.NewExtractor(intent.WithClock(func() time.Time { return fixedNow }))),
		WithRetry(fastRetry()),
		WithTimeout(time.Second),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(store, append(base, opts...)...)
}

func statesEqual(got []State, want ...State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestChatCount(t *testing.T) {
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultAggregate, Aggregate: &models.Aggregate{Count: 4821}}}
	a := newTestAssistant(store)

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "How many ARGO profiles are in the database?"})
	if reply.Err != nil {
		t.Fatalf("Expected no error, got %v", reply.Err)
	}
	if reply.Mode != intent.ModeCount {
		t.Errorf("Expected count mode, got %s", reply.Mode)
	}
	nums := regexp.MustCompile(`\d+`).FindAllString(reply.Response.Content, -1)
	if len(nums) != 1 || nums[0] != "4821" {
		t.Errorf("Expected a single figure 4821, got %v in %q", nums, reply.Response.Content)
	}
	if !statesEqual(reply.States, StateReceived, StateExtracted, StateCompiled, StateExecuted, StateSynthesized, StateDone) {
		t.Errorf("Unexpected state path %v", reply.States)
	}
	if len(store.queries) != 1 || store.queries[0].Aggregation == nil || len(store.queries[0].Predicates) != 0 {
		t.Errorf("Expected one unfiltered count query, got %+v", store.queries)
	}
	if reply.RequestID == "" {
		t.Error("Expected a generated request id")
	}
}

func TestChatWarmWater(t *testing.T) {
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultRows, Rows: []models.Profile{profile("p1", 27), profile("p2", 29)}}}
	a := newTestAssistant(store)

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "Find warm water profiles", Mode: models.ModeExplorer})
	if reply.Err != nil {
		t.Fatalf("Expected no error, got %v", reply.Err)
	}
	if !strings.Contains(reply.Response.Content, "warm") || !strings.Contains(reply.Response.Content, "Temperature range:") {
		t.Errorf("Expected warm narrative with a temperature range, got %q", reply.Response.Content)
	}
	actions := reply.Response.Actions
	if len(actions) == 0 || actions[len(actions)-1].Type != models.ActionExport {
		t.Errorf("Expected explorer reply to end with export, got %+v", actions)
	}
}

func TestChatEmptyResult(t *testing.T) {
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultRows}}
	a := newTestAssistant(store)

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "temperature above 99"})
	if reply.Err != nil {
		t.Fatalf("Expected no error, got %v", reply.Err)
	}
	if !strings.HasPrefix(reply.Response.Content, synth.NoResults) {
		t.Errorf("Expected no-results narrative, got %q", reply.Response.Content)
	}
	if len(reply.Response.Actions) != 1 || reply.Response.Actions[0].Type != models.ActionBroaden {
		t.Errorf("Expected only a broaden action, got %+v", reply.Response.Actions)
	}
}

func TestChatFallbackAfterRetries(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := &fakeStore{
		failures: 10,
		err:      fmt.Errorf("failed to execute: %w: connection reset", models.ErrStoreUnavailable),
	}
	a := newTestAssistant(store, WithLogger(zap.New(core)))

	ctx := WithRequestID(context.Background(), "req-42")
	reply := a.Chat(ctx, models.ChatRequest{Message: "Show me profiles in the Arabian Sea"})

	if reply.Response.Content != Fallback {
		t.Errorf("Expected fallback narrative, got %q", reply.Response.Content)
	}
	if reply.Response.Actions == nil {
		t.Error("Expected a non-nil action list")
	}
	if !errors.Is(reply.Err, models.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", reply.Err)
	}
	if store.callCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", store.callCount())
	}
	if !statesEqual(reply.States, StateReceived, StateExtracted, StateCompiled, StateFailed) {
		t.Errorf("Unexpected state path %v", reply.States)
	}

	entries := logs.FilterMessage("chat request failed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one error log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["query"] != "Show me profiles in the Arabian Sea" {
		t.Errorf("Expected query in log, got %v", fields["query"])
	}
	if fields["request_id"] != "req-42" {
		t.Errorf("Expected request id in log, got %v", fields["request_id"])
	}
	if _, ok := fields["timestamp"]; !ok {
		t.Error("Expected timestamp in log")
	}
}

func TestChatDoesNotRetryOtherErrors(t *testing.T) {
	store := &fakeStore{failures: 10, err: errors.New("syntax error")}
	a := newTestAssistant(store)

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "show profiles"})
	if reply.Response.Content != Fallback {
		t.Errorf("Expected fallback narrative, got %q", reply.Response.Content)
	}
	if store.callCount() != 1 {
		t.Errorf("Expected a single attempt, got %d", store.callCount())
	}
}

func TestChatTimeout(t *testing.T) {
	store := &fakeStore{block: true}
	a := newTestAssistant(store, WithTimeout(20*time.Millisecond))

	start := time.Now()
	reply := a.Chat(context.Background(), models.ChatRequest{Message: "show profiles"})
	if time.Since(start) > time.Second {
		t.Errorf("Expected the request to stop at the timeout, took %v", time.Since(start))
	}
	if reply.Response.Content != Fallback {
		t.Errorf("Expected fallback narrative, got %q", reply.Response.Content)
	}
	if !errors.Is(reply.Err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", reply.Err)
	}
}

func TestChatInvalidIntent(t *testing.T) {
	bad := intent.Rule{
		Name:     "bad_month",
		Category: intent.CatMonth,
		Pattern:  regexp.MustCompile(`thirteenth month`),
		Apply: func(q *intent.QueryIntent, _ []string, _ time.Time) bool {
			q.Month = 13
			return true
		},
	}
	store := &fakeStore{}
	a := newTestAssistant(store, WithExtractor(intent.NewExtractor(intent.WithRules([]intent.Rule{bad}))))

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "profiles in the thirteenth month"})
	var invalid *models.InvalidIntentError
	if !errors.As(reply.Err, &invalid) {
		t.Fatalf("Expected InvalidIntentError, got %v", reply.Err)
	}
	if reply.Response.Content != Fallback {
		t.Errorf("Expected fallback narrative, got %q", reply.Response.Content)
	}
	if store.callCount() != 0 {
		t.Errorf("Expected no store call, got %d", store.callCount())
	}
	if !statesEqual(reply.States, StateReceived, StateExtracted, StateFailed) {
		t.Errorf("Unexpected state path %v", reply.States)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	store := &fakeStore{}
	reply := newTestAssistant(store).Chat(context.Background(), models.ChatRequest{Message: "   "})

	if reply.Response.Content != Help {
		t.Errorf("Expected help narrative, got %q", reply.Response.Content)
	}
	if !statesEqual(reply.States, StateReceived, StateSynthesized, StateDone) {
		t.Errorf("Unexpected state path %v", reply.States)
	}
	if store.callCount() != 0 {
		t.Errorf("Expected no store call, got %d", store.callCount())
	}
}

func TestChatSemanticUpgrade(t *testing.T) {
	started := make(chan struct{})
	store := &fakeStore{
		started: started,
		result:  models.SearchResult{Kind: models.ResultRows, Rows: []models.Profile{profile("b", 26), profile("c", 25)}},
	}
	ix := &fakeIndex{
		size:    3,
		waitFor: started,
		hits: []models.ScoredProfile{
			{Profile: profile("a", 28), Similarity: 0.93, Explanation: "Similarity 0.93; matches southwest monsoon."},
			{Profile: profile("b", 26), Similarity: 0.71, Explanation: "Similarity 0.71 from the overall profile description."},
		},
	}
	a := newTestAssistant(store, WithIndex(ix))

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "profiles similar to monsoon upwelling"})
	if reply.Err != nil {
		t.Fatalf("Expected no error, got %v", reply.Err)
	}
	if reply.Mode != intent.ModeSemantic {
		t.Errorf("Expected semantic mode, got %s", reply.Mode)
	}
	if !statesEqual(reply.States, StateReceived, StateExtracted, StateEmbedded, StateExecuted, StateSynthesized, StateDone) {
		t.Errorf("Unexpected state path %v", reply.States)
	}
	content := reply.Response.Content
	for _, want := range []string{"Found 3 ARGO profiles.", "1. a: Similarity 0.93", "Structured cross-check: 2 profiles"} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected %q in %q", want, content)
		}
	}
}

func TestChatSemanticHonoursExplicitLimit(t *testing.T) {
	hits := make([]models.ScoredProfile, 12)
	for i := range hits {
		hits[i] = models.ScoredProfile{Profile: profile(fmt.Sprintf("p%02d", i), 27), Similarity: 0.9 - float64(i)/100}
	}
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultRows, Rows: []models.Profile{profile("s1", 26), profile("s2", 25)}}}
	a := newTestAssistant(store, WithIndex(&fakeIndex{size: len(hits), hits: hits}), WithTopK(10))

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "show me 3 profiles similar to monsoon upwelling"})
	if reply.Err != nil {
		t.Fatalf("Expected no error, got %v", reply.Err)
	}
	if reply.Mode != intent.ModeSemantic {
		t.Fatalf("Expected semantic mode, got %s", reply.Mode)
	}
	if !strings.HasPrefix(reply.Response.Content, "Found 3 ARGO profiles.") {
		t.Errorf("Expected 3 profiles, got %q", reply.Response.Content)
	}
}

type panicStore struct{}

func (panicStore) Execute(context.Context, filter.StoreQuery) (models.SearchResult, error) {
	var m map[string]int
	m["rows"]++
	return models.SearchResult{}, nil
}

type panicIndex struct{}

func (panicIndex) Len() int { return 1 }

func (panicIndex) Search(context.Context, string, int) ([]models.ScoredProfile, error) {
	panic("index snapshot corrupted")
}

func TestChatRecoversFromPanics(t *testing.T) {
	tests := []struct {
		name    string
		store   Store
		index   Searcher
		message string
		want    string
	}{
		{"store on structured path", panicStore{}, nil, "Find warm water profiles", "assignment to entry in nil map"},
		{"store on semantic path", panicStore{}, &fakeIndex{size: 1}, "profiles similar to monsoon upwelling", "assignment to entry in nil map"},
		{"searcher", &fakeStore{result: models.SearchResult{Kind: models.ResultRows}}, panicIndex{}, "profiles similar to monsoon upwelling", "index snapshot corrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			opts := []Option{WithLogger(zap.New(core))}
			if tt.index != nil {
				opts = append(opts, WithIndex(tt.index))
			}
			a := newTestAssistant(tt.store, opts...)

			reply := a.Chat(WithRequestID(context.Background(), "req-panic"), models.ChatRequest{Message: tt.message})
			if !errors.Is(reply.Err, errPanic) {
				t.Fatalf("Expected recovered panic error, got %v", reply.Err)
			}
			if !strings.Contains(reply.Err.Error(), tt.want) {
				t.Errorf("Expected panic value %q in %v", tt.want, reply.Err)
			}
			if reply.Response.Content != Fallback || reply.Response.Actions == nil {
				t.Errorf("Expected fallback response, got %+v", reply.Response)
			}
			if reply.States[len(reply.States)-1] != StateFailed {
				t.Errorf("Expected failed terminal state, got %v", reply.States)
			}

			entries := logs.FilterMessage("chat request failed").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 error log, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["query"] != tt.message || fields["request_id"] != "req-panic" || fields["panic"] != true {
				t.Errorf("Unexpected log fields %v", fields)
			}
		})
	}
}

func TestChatSemanticEmbeddingUnavailable(t *testing.T) {
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultRows}}
	ix := &fakeIndex{size: 1, err: fmt.Errorf("failed to embed query: %w", models.ErrEmbeddingUnavailable)}
	a := newTestAssistant(store, WithIndex(ix))

	reply := a.Chat(context.Background(), models.ChatRequest{Message: "describe typical monsoon patterns"})
	if !errors.Is(reply.Err, models.ErrEmbeddingUnavailable) {
		t.Errorf("Expected ErrEmbeddingUnavailable, got %v", reply.Err)
	}
	if reply.Response.Content != Fallback {
		t.Errorf("Expected fallback narrative, got %q", reply.Response.Content)
	}
	if reply.States[len(reply.States)-2] != StateEmbedded {
		t.Errorf("Expected failure after embedding, got %v", reply.States)
	}
}

func TestChatRouting(t *testing.T) {
	tests := []struct {
		name    string
		message string
		index   Searcher
		want    intent.Mode
	}{
		{"no index", "profiles similar to monsoon upwelling", nil, intent.ModeList},
		{"empty index", "profiles similar to monsoon upwelling", &fakeIndex{}, intent.ModeList},
		{"structured text stays structured", "warm water like the Arabian Sea", &fakeIndex{size: 1}, intent.ModeList},
		{"plain listing", "show profiles", &fakeIndex{size: 1}, intent.ModeList},
		{"count wins", "how many profiles like these", &fakeIndex{size: 1}, intent.ModeCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{result: models.SearchResult{Kind: models.ResultRows, Rows: []models.Profile{profile("p", 20)}}}
			var opts []Option
			if tt.index != nil {
				opts = append(opts, WithIndex(tt.index))
			}
			reply := newTestAssistant(store, opts...).Chat(context.Background(), models.ChatRequest{Message: tt.message})
			if reply.Mode != tt.want {
				t.Errorf("Expected mode %s, got %s", tt.want, reply.Mode)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	hits := []models.ScoredProfile{
		{Profile: profile("a", 1), Similarity: 0.9},
		{Profile: profile("b", 1), Similarity: 0.8},
	}
	rows := []models.Profile{profile("b", 1), profile("c", 1), profile("d", 1)}

	t.Run("dedupes by id", func(t *testing.T) {
		res := merge(hits, rows, 50)
		ids := make([]string, 0, len(res.Ranked))
		for _, r := range res.Ranked {
			ids = append(ids, r.Profile.ID)
		}
		if strings.Join(ids, ",") != "a,b,c,d" {
			t.Errorf("Expected a,b,c,d, got %v", ids)
		}
		if res.Ranked[1].Similarity != 0.8 {
			t.Errorf("Expected semantic score to survive the merge, got %v", res.Ranked[1].Similarity)
		}
		if res.CrossCheck != 3 {
			t.Errorf("Expected cross-check 3, got %d", res.CrossCheck)
		}
	})

	t.Run("limit caps store rows", func(t *testing.T) {
		res := merge(hits, rows, 3)
		if len(res.Ranked) != 3 {
			t.Errorf("Expected 3 results, got %d", len(res.Ranked))
		}
	})

	t.Run("limit caps semantic hits", func(t *testing.T) {
		res := merge(hits, rows, 1)
		if len(res.Ranked) != 1 || res.Ranked[0].Profile.ID != "a" {
			t.Errorf("Expected only the top hit, got %+v", res.Ranked)
		}
		if res.CrossCheck != 3 {
			t.Errorf("Expected cross-check 3, got %d", res.CrossCheck)
		}
	})
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateReceived, StateExtracted, true},
		{StateExtracted, StateCompiled, true},
		{StateExtracted, StateEmbedded, true},
		{StateCompiled, StateEmbedded, false},
		{StateExecuted, StateDone, false},
		{StateSynthesized, StateDone, true},
		{StateCompiled, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateDone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestChatConcurrentRequests(t *testing.T) {
	store := &fakeStore{result: models.SearchResult{Kind: models.ResultAggregate, Aggregate: &models.Aggregate{Count: 7}}}
	a := newTestAssistant(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := a.Chat(context.Background(), models.ChatRequest{Message: "how many profiles?"})
			if reply.Err != nil || !strings.Contains(reply.Response.Content, "count: 7") {
				t.Errorf("Expected count reply, got %q (%v)", reply.Response.Content, reply.Err)
			}
		}()
	}
	wg.Wait()
	if store.callCount() != 16 {
		t.Errorf("Expected 16 store calls, got %d", store.callCount())
	}
}
