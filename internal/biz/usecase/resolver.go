package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

const (
	defaultFetchTimeout   = 5 * time.Second
	defaultRateLimitPause = time.Second
)

// ResolverUsecase resolves link matches to author identities, adapting
// between providers using live health telemetry, with the resolution cache
// as fast path and last resort.
//
// Resolve never surfaces provider errors: they are recorded as health
// signal and swallowed. The only "failure" a caller sees is a nil identity,
// which means defer, not crash.
type ResolverUsecase struct {
	cache     repo.CacheRepo
	audit     repo.AuditRepo
	health    *ProviderHealthRegistry
	providers []repo.IdentityProvider
	log       *zap.Logger

	fetchTimeout   time.Duration
	rateLimitPause time.Duration
	now            func() time.Time
	sleep          func(context.Context, time.Duration)
}

// NewResolverUsecase creates a resolver. Provider order is the tie-break
// priority when health scores are equal; audit may be nil to skip username
// tracking.
func NewResolverUsecase(
	cache repo.CacheRepo,
	audit repo.AuditRepo,
	health *ProviderHealthRegistry,
	providers []repo.IdentityProvider,
	log *zap.Logger,
) *ResolverUsecase {
	return &ResolverUsecase{
		cache:          cache,
		audit:          audit,
		health:         health,
		providers:      providers,
		log:            log,
		fetchTimeout:   defaultFetchTimeout,
		rateLimitPause: defaultRateLimitPause,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Resolve maps a match to an identity, or nil when every path is exhausted.
//
// The identity may carry an empty UserID: found but unresolved, which the
// caller treats as unresolved without treating the whole resolution as an
// error.
func (r *ResolverUsecase) Resolve(ctx context.Context, match domain.Match) (*domain.ResolvedIdentity, error) {
	cached, err := r.cache.Get(ctx, match)
	if err != nil {
		r.log.Warn("cache read failed", zap.Error(err))
		cached = nil
	}
	if cached.Fresh(r.now()) {
		return cached.Identity(), nil
	}

	// A user-id match needs no fetch: neither provider can look tweets up
	// by author id, and the id is already in hand. Serve the (possibly
	// stale) cache record or pass the id through with the username
	// unresolved.
	if match.Kind == domain.MatchUserID {
		if cached != nil {
			return cached.Identity(), nil
		}
		return &domain.ResolvedIdentity{UserID: match.UserID, Source: domain.SourceCache}, nil
	}

	result := r.fetch(ctx, match)

	if result == nil {
		if cached != nil {
			r.log.Warn("serving stale cache after provider exhaustion",
				zap.String("key", match.Key()))
			return cached.Identity(), nil
		}
		return nil, nil
	}

	// One provider's tweet lookups know the author's username but not its
	// id; backfill from the cache's username index before giving up.
	if result.UserID == "" && result.Username != "" {
		id, err := r.cache.GetIDByUsername(ctx, result.Username)
		if err != nil {
			r.log.Warn("username index read failed", zap.Error(err))
		} else if id != "" {
			result.UserID = id
		}
	}

	if result.UserID != "" {
		if err := r.cache.Put(ctx, result); err != nil {
			r.log.Warn("cache write failed", zap.Error(err))
		}
		if r.audit != nil && result.Username != "" {
			if err := r.audit.RecordUsername(ctx, result.UserID, result.Username, string(result.Source)+"_api"); err != nil {
				r.log.Warn("username tracking failed", zap.Error(err))
			}
		}
	}

	return result, nil
}

// fetch tries each provider in descending health order. It returns nil only
// when every provider failed.
func (r *ResolverUsecase) fetch(ctx context.Context, match domain.Match) *domain.ResolvedIdentity {
	ordered := make([]repo.IdentityProvider, len(r.providers))
	copy(ordered, r.providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return r.health.Score(ordered[i].Source()) > r.health.Score(ordered[j].Source())
	})

	for _, p := range ordered {
		start := r.now()
		fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		identity, err := p.Lookup(fctx, match)
		cancel()
		latency := r.now().Sub(start)

		if err != nil {
			r.health.RecordFailure(p.Source())
			r.log.Warn("provider lookup failed",
				zap.String("provider", string(p.Source())),
				zap.String("key", match.Key()),
				zap.Error(err))
			if errors.Is(err, repo.ErrRateLimited) {
				r.sleep(ctx, r.rateLimitPause)
			}
			continue
		}

		r.health.RecordSuccess(p.Source(), latency)
		identity.Source = p.Source()
		return identity
	}
	return nil
}
