package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

func newTestResolver(cache *fakeCache, audit *fakeAudit, providers ...repo.IdentityProvider) (*ResolverUsecase, *ProviderHealthRegistry) {
	health := NewProviderHealthRegistry(domain.SourceFx, domain.SourceVx)
	var auditRepo repo.AuditRepo
	if audit != nil {
		auditRepo = audit
	}
	r := NewResolverUsecase(cache, auditRepo, health, providers, zap.NewNop())
	r.sleep = func(context.Context, time.Duration) {}
	return r, health
}

func tweetMatch(id string) domain.Match {
	return domain.Match{Kind: domain.MatchTweet, TweetID: id}
}

func TestResolveFreshCacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.records["42"] = &domain.CacheRecord{UserID: "42", Username: "jack", CachedAt: time.Now()}
	cache.byUsername["jack"] = "42"

	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return nil, errors.New("should not be called")
	}}
	r, _ := newTestResolver(cache, nil, provider)

	id, err := r.Resolve(context.Background(), domain.Match{Kind: domain.MatchUsername, Username: "jack"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, domain.SourceCache, id.Source)
	assert.Zero(t, provider.calls)
}

func TestResolveUserIDNeedsNoFetch(t *testing.T) {
	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return nil, errors.New("should not be called")
	}}
	r, _ := newTestResolver(newFakeCache(), nil, provider)

	id, err := r.Resolve(context.Background(), domain.Match{Kind: domain.MatchUserID, UserID: "42"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Empty(t, id.Username)
	assert.Equal(t, domain.SourceCache, id.Source)
	assert.Zero(t, provider.calls)
}

func TestResolveUserIDServesStaleCache(t *testing.T) {
	cache := newFakeCache()
	cache.records["42"] = &domain.CacheRecord{UserID: "42", Username: "jack", CachedAt: time.Now().Add(-48 * time.Hour)}
	r, _ := newTestResolver(cache, nil)

	id, err := r.Resolve(context.Background(), domain.Match{Kind: domain.MatchUserID, UserID: "42"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "jack", id.Username)
}

func TestResolveFetchCachesAndTracks(t *testing.T) {
	cache := newFakeCache()
	audit := &fakeAudit{}
	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return &domain.ResolvedIdentity{UserID: "42", Username: "jack"}, nil
	}}
	r, _ := newTestResolver(cache, audit, provider)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, domain.SourceFx, id.Source)

	require.Len(t, cache.puts, 1)
	assert.Equal(t, "42", cache.puts[0].UserID)
	assert.Equal(t, []string{"42/jack/fx_api"}, audit.usernames)
}

func TestResolveBackfillsMissingUserID(t *testing.T) {
	cache := newFakeCache()
	cache.byUsername["jack"] = "42"
	provider := &fakeProvider{source: domain.SourceVx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return &domain.ResolvedIdentity{UserID: "", Username: "jack"}, nil
	}}
	r, _ := newTestResolver(cache, nil, provider)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, domain.SourceVx, id.Source)
	assert.Len(t, cache.puts, 1)
}

func TestResolveKeepsEmptyUserIDWhenUnknown(t *testing.T) {
	provider := &fakeProvider{source: domain.SourceVx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return &domain.ResolvedIdentity{UserID: "", Username: "stranger"}, nil
	}}
	cache := newFakeCache()
	r, _ := newTestResolver(cache, nil, provider)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.False(t, id.Resolved())
	assert.Empty(t, cache.puts)
}

func TestResolveStaleCacheFallback(t *testing.T) {
	cache := newFakeCache()
	cache.records["42"] = &domain.CacheRecord{UserID: "42", Username: "jack", CachedAt: time.Now().Add(-48 * time.Hour)}
	cache.byUsername["jack"] = "42"
	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return nil, errors.New("upstream down")
	}}
	r, _ := newTestResolver(cache, nil, provider)

	id, err := r.Resolve(context.Background(), domain.Match{Kind: domain.MatchUsername, Username: "jack"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, domain.SourceCache, id.Source)
}

func TestResolveNeverSurfacesProviderErrors(t *testing.T) {
	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return nil, errors.New("upstream down")
	}}
	r, _ := newTestResolver(newFakeCache(), nil, provider)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestResolveCacheErrorIsNonFatal(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("db locked")
	provider := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return &domain.ResolvedIdentity{UserID: "42", Username: "jack"}, nil
	}}
	r, _ := newTestResolver(cache, nil, provider)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
}

func TestResolvePrefersHealthierProvider(t *testing.T) {
	var order []domain.IdentitySource
	fx := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		order = append(order, domain.SourceFx)
		return nil, errors.New("down")
	}}
	vx := &fakeProvider{source: domain.SourceVx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		order = append(order, domain.SourceVx)
		return &domain.ResolvedIdentity{UserID: "42", Username: "jack"}, nil
	}}
	r, health := newTestResolver(newFakeCache(), nil, fx, vx)

	// Tank the primary's health so the secondary is tried first.
	for i := 0; i < 5; i++ {
		health.RecordFailure(domain.SourceFx)
	}
	health.RecordSuccess(domain.SourceVx, 100*time.Millisecond)

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	require.NotEmpty(t, order)
	assert.Equal(t, domain.SourceVx, order[0])
	assert.Zero(t, fx.calls)
}

func TestResolveFailsOverAndPauses(t *testing.T) {
	var paused int
	fx := &fakeProvider{source: domain.SourceFx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return nil, repo.ErrRateLimited
	}}
	vx := &fakeProvider{source: domain.SourceVx, lookup: func(domain.Match) (*domain.ResolvedIdentity, error) {
		return &domain.ResolvedIdentity{UserID: "42", Username: "jack"}, nil
	}}
	r, _ := newTestResolver(newFakeCache(), nil, fx, vx)
	r.sleep = func(context.Context, time.Duration) { paused++ }

	id, err := r.Resolve(context.Background(), tweetMatch("123"))
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, domain.SourceVx, id.Source)
	assert.Equal(t, 1, paused)
	assert.Equal(t, 1, fx.calls)
}
