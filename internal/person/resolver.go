package person

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"casework/pkg/domain"
)

//go:generate mockgen -source=resolver.go -destination=mocks/mocks.go -package=mocks Client

// AccessStrategy selects how restrictions apply to the requesting user.
type AccessStrategy int

const (
	// StrategyCheckAccess honors per-user restrictions: limited-access
	// subjects come back Restricted unless the caller holds an exclusion.
	StrategyCheckAccess AccessStrategy = iota
	// StrategyIgnoreRestrictions is for privileged internal consumers
	// (reporting) that may see full summaries.
	StrategyIgnoreRestrictions
)

// Client is the upstream case-data service. One call resolves one batch of
// CRNs; results come back in arbitrary order and may omit nothing — every
// requested CRN maps to exactly one result.
type Client interface {
	Resolve(ctx context.Context, crns []domain.CRN, strategy AccessStrategy) ([]SummaryInfoResult, error)
}

// Metrics is the subset of platform metrics the resolver reports to.
type Metrics interface {
	ObservePersonBatch(size int)
}

// Cache is the narrow slice of the redis API the resolver uses. *redis.Client
// satisfies it; tests substitute a fake built on redis.NewStringResult.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Resolver batch-resolves subject display information. Results are keyed by
// CRN, never by position: chunks resolve concurrently and concatenate in
// completion order.
type Resolver struct {
	client    Client
	cache     Cache
	cacheTTL  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   Metrics
}

type Option func(*Resolver)

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver constructs a Resolver. batchSize caps CRNs per upstream call.
func NewResolver(client Client, batchSize int, opts ...Option) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("person client is required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	r := &Resolver{
		client:    client,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveOne resolves a single CRN. Used by lifecycle services for
// subject-access checks.
func (r *Resolver) ResolveOne(ctx context.Context, crn domain.CRN, strategy AccessStrategy) (SummaryInfoResult, error) {
	results, err := r.ResolveMany(ctx, []domain.CRN{crn}, strategy)
	if err != nil {
		return SummaryInfoResult{}, err
	}
	for _, res := range results {
		if res.CRN() == crn {
			return res, nil
		}
	}
	return NotFound(crn), nil
}

// ResolveMany resolves a set of CRNs in one upstream call, deduplicating
// input. Callers index results by CRN.
func (r *Resolver) ResolveMany(ctx context.Context, crns []domain.CRN, strategy AccessStrategy) ([]SummaryInfoResult, error) {
	unique := dedupe(crns)
	if len(unique) == 0 {
		return nil, nil
	}

	remaining := unique
	var results []SummaryInfoResult
	if r.cache != nil && strategy == StrategyIgnoreRestrictions {
		cached, misses := r.fromCache(ctx, unique)
		results = cached
		remaining = misses
	}
	if len(remaining) == 0 {
		return results, nil
	}

	if r.metrics != nil {
		r.metrics.ObservePersonBatch(len(remaining))
	}
	resolved, err := r.client.Resolve(ctx, remaining, strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve %d crns: %w", len(remaining), err)
	}

	if r.cache != nil && strategy == StrategyIgnoreRestrictions {
		r.toCache(ctx, resolved)
	}
	return append(results, resolved...), nil
}

// ResolveManyInBatches partitions the CRN set into chunks of at most
// batchSize and issues one resolution per chunk. Chunks run concurrently;
// results concatenate in completion order, so callers must index by CRN,
// not position.
func (r *Resolver) ResolveManyInBatches(ctx context.Context, crns []domain.CRN, strategy AccessStrategy, batchSize int) ([]SummaryInfoResult, error) {
	if batchSize <= 0 {
		batchSize = r.batchSize
	}
	unique := dedupe(crns)
	if len(unique) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var results []SummaryInfoResult

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(unique); start += batchSize {
		end := start + batchSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]
		g.Go(func() error {
			resolved, err := r.ResolveMany(gctx, chunk, strategy)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, resolved...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dedupe preserves a deterministic order so chunking is stable for a given
// input set.
func dedupe(crns []domain.CRN) []domain.CRN {
	seen := make(map[domain.CRN]struct{}, len(crns))
	out := make([]domain.CRN, 0, len(crns))
	for _, crn := range crns {
		if _, ok := seen[crn]; ok {
			continue
		}
		seen[crn] = struct{}{}
		out = append(out, crn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type cachedSummary struct {
	CRN       string `json:"crn"`
	FirstName string `json:"firstName"`
	Surname   string `json:"surname"`
}

func cacheKey(crn domain.CRN) string { return "person-summary:" + crn.String() }

// fromCache returns cached Full results and the CRNs that missed. Only Full
// results are ever cached; Restricted and NotFound always re-resolve so
// access changes take effect promptly.
func (r *Resolver) fromCache(ctx context.Context, crns []domain.CRN) (hits []SummaryInfoResult, misses []domain.CRN) {
	for _, crn := range crns {
		raw, err := r.cache.Get(ctx, cacheKey(crn)).Result()
		if err != nil {
			misses = append(misses, crn)
			continue
		}
		var cached cachedSummary
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			misses = append(misses, crn)
			continue
		}
		hits = append(hits, Full(CaseSummary{
			CRN:       domain.CRN(cached.CRN),
			FirstName: cached.FirstName,
			Surname:   cached.Surname,
		}))
	}
	return hits, misses
}

func (r *Resolver) toCache(ctx context.Context, results []SummaryInfoResult) {
	for _, res := range results {
		if res.Kind() != SummaryFull {
			continue
		}
		summary := res.Summary()
		raw, err := json.Marshal(cachedSummary{
			CRN:       summary.CRN.String(),
			FirstName: summary.FirstName,
			Surname:   summary.Surname,
		})
		if err != nil {
			continue
		}
		if err := r.cache.Set(ctx, cacheKey(summary.CRN), raw, r.cacheTTL).Err(); err != nil {
			// Cache-aside: a write failure degrades to a re-resolve.
			r.logger.DebugContext(ctx, "person summary cache write failed",
				"crn", summary.CRN.String(), "error", err)
		}
	}
}
