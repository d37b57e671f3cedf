// Package assistant routes chat messages through extraction, compilation,
// search and synthesis, and never lets a failure reach the caller.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oscillatelabsllc/argoquery/internal/filter"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/metrics"
	"github.com/oscillatelabsllc/argoquery/internal/models"
	"github.com/oscillatelabsllc/argoquery/internal/retry"
	"github.com/oscillatelabsllc/argoquery/internal/synth"
)

var tracer = otel.Tracer("github.com/oscillatelabsllc/argoquery/internal/assistant")

var exploratory = regexp.MustCompile(`\b(similar|like|patterns?|characteristics|where are|describe|explain|compare|upwelling|monsoon|seasons?|seasonal|typical|resembl\w*)\b`)

// errPanic marks a collaborator panic converted into an error
var errPanic = errors.New("recovered panic")

// Store runs compiled queries against the measurement store
type Store interface {
	Execute(ctx context.Context, sq filter.StoreQuery) (models.SearchResult, error)
}

// Searcher is the vector similarity index
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]models.ScoredProfile, error)
	Len() int
}

// Reply is the chat response plus the route it took
type Reply struct {
	Response  models.ChatResponse
	Mode      intent.Mode
	States    []State
	RequestID string
	Err       error
}

// Assistant answers chat requests. It holds no per-request state.
type Assistant struct {
	extractor *intent.Extractor
	store     Store
	index     Searcher
	logger    *zap.Logger
	timeout   time.Duration
	retry     retry.Opts
	topK      int
	now       func() time.Time
}

// Option configures an Assistant
type Option func(*Assistant)

// WithIndex enables semantic routing
func WithIndex(ix Searcher) Option {
	return func(a *Assistant) { a.index = ix }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithTimeout bounds every request
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) { a.timeout = d }
}

// WithRetry overrides the store retry policy
func WithRetry(opts retry.Opts) Option {
	return func(a *Assistant) { a.retry = opts }
}

// WithTopK sets how many semantic hits to request
func WithTopK(k int) Option {
	return func(a *Assistant) { a.topK = k }
}

// WithExtractor replaces the default extractor
func WithExtractor(e *intent.Extractor) Option {
	return func(a *Assistant) { a.extractor = e }
}

// WithClock injects the time source used for log timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// New creates an Assistant over a measurement store
func New(store Store, opts ...Option) *Assistant {
	a := &Assistant{
		extractor: intent.NewExtractor(),
		store:     store,
		logger:    zap.NewNop(),
		timeout:   30 * time.Second,
		retry:     retry.Default,
		topK:      10,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.retry.Retryable = func(err error) bool { return errors.Is(err, models.ErrStoreUnavailable) }
	return a
}

type requestIDKey struct{}

// WithRequestID attaches a caller-chosen request id to ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Chat answers one message. The reply content is never empty.
func (a *Assistant) Chat(ctx context.Context, req models.ChatRequest) Reply {
	req = req.Normalize()
	start := time.Now()
	reply := Reply{RequestID: requestID(ctx), Mode: intent.ModeList}
	t := newTrail()

	ctx, span := tracer.Start(ctx, "assistant.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("argoquery.request_id", reply.RequestID),
		attribute.String("argoquery.chat_mode", string(req.Mode)),
	)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text := strings.TrimSpace(req.Message)
	outcome := "ok"
	var err error
	if text == "" {
		t.to(StateSynthesized)
		reply.Response = models.ChatResponse{Content: Help, Actions: []models.Action{}}
	} else {
		var q intent.QueryIntent
		q, reply.Response, err = a.guardedAnswer(ctx, text, req.Mode, t)
		if q.Mode != "" {
			reply.Mode = q.Mode
		}
		if err == nil && strings.HasPrefix(reply.Response.Content, synth.NoResults) {
			outcome = "empty"
		}
	}

	if err != nil {
		outcome = "fallback"
		failedAt := t.current()
		t.to(StateFailed)
		reply.Err = err
		reply.Response = models.ChatResponse{Content: Fallback, Actions: []models.Action{}}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error("chat request failed",
			zap.Error(err),
			zap.String("query", text),
			zap.String("request_id", reply.RequestID),
			zap.Time("timestamp", a.now()),
			zap.String("failed_at", string(failedAt)),
			zap.Bool("invalid_intent", errors.Is(err, models.ErrInvalidIntent)),
			zap.Bool("panic", errors.Is(err, errPanic)),
		)
	} else {
		t.to(StateDone)
	}

	reply.States = t.states
	span.SetAttributes(
		attribute.String("argoquery.mode", string(reply.Mode)),
		attribute.String("argoquery.outcome", outcome),
	)
	metrics.ChatRequestsTotal.WithLabelValues(string(reply.Mode), outcome).Inc()
	metrics.ChatRequestDuration.WithLabelValues(string(reply.Mode)).Observe(time.Since(start).Seconds())

	a.logger.Debug("chat request handled",
		zap.String("request_id", reply.RequestID),
		zap.String("mode", string(reply.Mode)),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)
	return reply
}

// guardedAnswer turns a panic anywhere in the pipeline into an error
func (a *Assistant) guardedAnswer(ctx context.Context, text string, mode models.ChatMode, t *trail) (q intent.QueryIntent, resp models.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return a.answer(ctx, text, mode, t)
}

// guard runs f in an errgroup goroutine, returning a panic as an error
func guard(f func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanic, r)
			}
		}()
		return f()
	}
}

func (a *Assistant) answer(ctx context.Context, text string, mode models.ChatMode, t *trail) (intent.QueryIntent, models.ChatResponse, error) {
	q := a.extractor.Extract(text)
	t.to(StateExtracted)
	if a.explore(q) {
		q.Mode = intent.ModeSemantic
	}

	sq, err := filter.Compile(q)
	if err != nil {
		return q, models.ChatResponse{}, err
	}

	var res models.SearchResult
	if q.Mode == intent.ModeSemantic {
		t.to(StateEmbedded)
		res, err = a.semantic(ctx, q, sq)
	} else {
		t.to(StateCompiled)
		res, err = a.execute(ctx, sq)
	}
	if err != nil {
		return q, models.ChatResponse{}, err
	}
	t.to(StateExecuted)

	resp := synth.Respond(q, res, mode)
	t.to(StateSynthesized)
	return q, resp, nil
}

// explore upgrades free-form exploratory text to a semantic search
func (a *Assistant) explore(q intent.QueryIntent) bool {
	if a.index == nil || a.index.Len() == 0 || q.Structured() {
		return false
	}
	return exploratory.MatchString(strings.ToLower(q.Text))
}

func (a *Assistant) execute(ctx context.Context, sq filter.StoreQuery) (models.SearchResult, error) {
	return retry.Do(ctx, a.retry, func(ctx context.Context) (models.SearchResult, error) {
		return a.store.Execute(ctx, sq)
	}, func(attempt int, err error) {
		metrics.StoreRetriesTotal.Inc()
		a.logger.Warn("retrying store query", zap.Int("attempt", attempt), zap.Error(err))
	})
}

// semantic runs the vector search and the structured cross-check in parallel
func (a *Assistant) semantic(ctx context.Context, q intent.QueryIntent, sq filter.StoreQuery) (models.SearchResult, error) {
	var (
		hits  []models.ScoredProfile
		check models.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		var err error
		hits, err = a.index.Search(gctx, q.Text, min(a.topK, q.Limit))
		return err
	}))
	g.Go(guard(func() error {
		var err error
		check, err = a.execute(gctx, sq)
		return err
	}))
	if err := g.Wait(); err != nil {
		return models.SearchResult{}, err
	}
	return merge(hits, check.Rows, q.Limit), nil
}

// merge keeps semantic rank order and appends unscored store rows; the result never exceeds limit
func merge(hits []models.ScoredProfile, rows []models.Profile, limit int) models.SearchResult {
	ranked := make([]models.ScoredProfile, 0, len(hits)+len(rows))
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if len(ranked) >= limit {
			break
		}
		if seen[h.Profile.ID] {
			continue
		}
		seen[h.Profile.ID] = true
		ranked = append(ranked, h)
	}
	for _, p := range rows {
		if len(ranked) >= limit {
			break
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		ranked = append(ranked, models.ScoredProfile{
			Profile:     p,
			Explanation: "Matched the structured filters; not ranked by similarity.",
		})
	}
	return models.SearchResult{Kind: models.ResultRanked, Ranked: ranked, CrossCheck: len(rows)}
}
